package main

import (
	"context"
	"path/filepath"
	"reflect"

	"github.com/vyrodovalexey/keygate/internal/config"
	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/secrets"
)

// startConfigWatcher watches the configuration file and, for the local
// provider, the client key file.
func (app *application) startConfigWatcher(ctx context.Context, configPath string) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.GatewayConfig) {
		if reloadErr := app.applyConfig(ctx, newCfg); reloadErr != nil {
			app.logger.Error("failed to reload", observability.Error(reloadErr))
		}
	},
		config.WithLogger(app.logger),
		config.WithErrorCallback(func(err error) { app.metrics.RecordReload(err) }),
		config.WithExtraPaths(localClientPaths(app.currentProvider(), app.currentConfig())...),
	)
	if err != nil {
		app.logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		app.logger.Warn("failed to start config watcher", observability.Error(err))
		return nil
	}

	return watcher
}

// localClientPaths returns the files the local provider may read the
// client secret from.
func localClientPaths(provider secrets.Provider, cfg *config.GatewayConfig) []string {
	local, ok := provider.(*secrets.LocalProvider)
	if !ok {
		return nil
	}

	path := cfg.Spec.APIKey.Clients.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(local.BasePath(), path)
	}
	return []string{path, path + ".yaml", path + ".yml", path + ".json"}
}

// applyConfig switches to newCfg and reloads the client keys. The
// identity store and listeners keep their startup settings.
func (app *application) applyConfig(ctx context.Context, newCfg *config.GatewayConfig) (err error) {
	defer func() { app.metrics.RecordReload(err) }()

	oldCfg := app.currentConfig()
	oldAPIKey := oldCfg.Spec.APIKey
	newAPIKey := newCfg.Spec.APIKey

	if !reflect.DeepEqual(oldAPIKey.Store, newAPIKey.Store) {
		app.logger.Warn("identity store settings changed; restart to apply")
		newAPIKey.Store = oldAPIKey.Store
	}

	if oldCfg.ClientsProvider() != newCfg.ClientsProvider() ||
		!reflect.DeepEqual(oldCfg.Spec.Secrets, newCfg.Spec.Secrets) {
		provider, providerErr := newSecretsProvider(newCfg, app.logger)
		if providerErr != nil {
			return providerErr
		}

		app.mu.Lock()
		previous := app.provider
		app.provider = provider
		app.mu.Unlock()

		if closeErr := previous.Close(); closeErr != nil {
			app.logger.Warn("failed to close previous secrets provider", observability.Error(closeErr))
		}
		app.logger.Info("secrets provider replaced",
			observability.String("provider", string(provider.Type())),
		)
	}

	if !reflect.DeepEqual(oldAPIKey.Route, newAPIKey.Route) || !reflect.DeepEqual(oldAPIKey.Spec, newAPIKey.Spec) {
		app.rebuildAuthHandler(newAPIKey)
		app.logger.Info("credential sources updated")
	}

	app.mu.Lock()
	app.config = newCfg
	app.mu.Unlock()

	if err = app.loadClients(ctx); err != nil {
		return err
	}
	app.healthChecker.SetReady(true)
	return nil
}
