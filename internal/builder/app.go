package builder

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/futig/interview-orchestrator/internal/media"
	"github.com/futig/interview-orchestrator/internal/usecase/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App represents the application with all its components
type App struct {
	server          *http.Server
	sessions        *session.SessionUsecase
	media           *media.Manager
	closers         []func(ctx context.Context) error
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// Run serves HTTP until a shutdown signal arrives or the server fails
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Server error", zap.Error(err))
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Received shutdown signal")
		return a.shutdown()
	})

	return g.Wait()
}

// shutdown stops taking requests, then releases every live session and
// flushes the notifiers.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.logger.Info("Shutting down server gracefully")

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("Server shutdown error", zap.Error(err))
		errs = append(errs, err)
	}

	a.sessions.Shutdown()
	a.media.Shutdown()

	for _, closeFn := range a.closers {
		if err := closeFn(ctx); err != nil {
			a.logger.Error("Notifier shutdown error", zap.Error(err))
			errs = append(errs, err)
		}
	}

	a.logger.Info("Application stopped gracefully")
	_ = a.logger.Sync()

	return errors.Join(errs...)
}
