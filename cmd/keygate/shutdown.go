package main

import (
	"context"

	"github.com/vyrodovalexey/keygate/internal/config"
	"github.com/vyrodovalexey/keygate/internal/observability"
)

// runKeygate starts the application and blocks until ctx is cancelled,
// then shuts everything down.
func runKeygate(ctx context.Context, app *application, flags cliFlags) error {
	if err := app.start(ctx); err != nil {
		return err
	}

	var watcher *config.Watcher
	if flags.watch {
		watcher = app.startConfigWatcher(ctx, flags.configPath)
	}

	<-ctx.Done()
	app.logger.Info("received shutdown signal")

	if watcher != nil {
		_ = watcher.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.currentConfig().Spec.Server.ShutdownTimeout)
	defer cancel()

	app.shutdown(shutdownCtx)
	return nil
}

// shutdown stops listeners first so in-flight checks can still reach the
// identity store, then releases backends.
func (app *application) shutdown(ctx context.Context) {
	app.healthChecker.SetReady(false)

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("failed to stop auth server gracefully", observability.Error(err))
	}

	if app.metricsServer != nil {
		app.logger.Info("stopping metrics server")
		if err := app.metricsServer.Shutdown(ctx); err != nil {
			app.logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	if err := app.currentProvider().Close(); err != nil {
		app.logger.Error("failed to close secrets provider", observability.Error(err))
	}

	if app.redisStore != nil {
		if err := app.redisStore.Close(); err != nil {
			app.logger.Error("failed to close redis store", observability.Error(err))
		}
	}

	if err := app.tracer.Shutdown(ctx); err != nil {
		app.logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	app.logger.Info("keygate stopped")
}
