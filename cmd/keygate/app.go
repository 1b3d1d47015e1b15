package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/keygate/internal/auth/apikey"
	"github.com/vyrodovalexey/keygate/internal/config"
	"github.com/vyrodovalexey/keygate/internal/health"
	"github.com/vyrodovalexey/keygate/internal/middleware"
	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/secrets"
)

// redisBreakerName names the circuit breaker guarding Redis lookups.
const redisBreakerName = "redis-identity-store"

// Identity endpoints tell an authorized caller which client its key maps to.
const (
	pathIdentityRoute = "/_identity/route"
	pathIdentitySpec  = "/_identity/spec"

	headerClientName  = "X-Client-Name"
	headerFingerprint = "X-Key-Fingerprint"
)

var ginModeOnce sync.Once

// application holds all application components.
type application struct {
	config        *config.GatewayConfig
	logger        observability.Logger
	metrics       *observability.Metrics
	apikeyMetrics *apikey.Metrics
	tracer        *observability.Tracer
	healthChecker *health.Checker

	provider    secrets.Provider
	store       apikey.IdentityStore
	memoryStore *apikey.MemoryStore
	redisStore  *apikey.RedisStore
	authHandler atomic.Pointer[apikey.Handler]
	identity    atomic.Pointer[gin.Engine]

	server        *http.Server
	listener      net.Listener
	metricsServer *http.Server

	// mu guards config and provider, which change on reload.
	mu sync.RWMutex
}

// initApplication initializes all application components. Nothing is
// listening yet; see start.
func initApplication(cfg *config.GatewayConfig, logger observability.Logger) (*application, error) {
	app := &application{
		config:        cfg,
		logger:        logger,
		metrics:       observability.NewMetrics("keygate"),
		apikeyMetrics: apikey.NewMetrics("keygate"),
		healthChecker: health.NewChecker(version),
	}

	app.metrics.SetBuildInfo(version, gitCommit, buildTime)
	app.apikeyMetrics.Init()
	app.apikeyMetrics.MustRegister(app.metrics.Registry())
	middleware.GetMetrics().MustRegister(app.metrics.Registry())
	secrets.MustRegisterMetrics(app.metrics.Registry())

	tracer, err := initTracer(cfg.Spec.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	app.tracer = tracer

	provider, err := newSecretsProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.provider = provider

	if err := app.initIdentityStore(cfg.Spec.APIKey); err != nil {
		return nil, err
	}
	app.rebuildAuthHandler(cfg.Spec.APIKey)
	app.registerHealthChecks()

	app.server = &http.Server{
		Addr:         cfg.Spec.Server.Address,
		Handler:      app.routes(),
		ReadTimeout:  cfg.Spec.Server.ReadTimeout,
		WriteTimeout: cfg.Spec.Server.WriteTimeout,
		IdleTimeout:  cfg.Spec.Server.IdleTimeout,
	}

	if cfg.Spec.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Spec.Metrics.Path, app.metrics.Handler())
		app.healthChecker.Register(mux)
		app.metricsServer = &http.Server{
			Addr:              cfg.Spec.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: cfg.Spec.Server.ReadTimeout,
			WriteTimeout:      cfg.Spec.Server.WriteTimeout,
		}
	}

	return app, nil
}

// initTracer initializes the tracer.
func initTracer(cfg config.TracingConfig) (*observability.Tracer, error) {
	return observability.NewTracer(observability.TracerConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.GetSamplingRate(),
		Enabled:        cfg.Enabled,
	})
}

// newSecretsProvider creates the provider holding the client secret.
func newSecretsProvider(cfg *config.GatewayConfig, logger observability.Logger) (secrets.Provider, error) {
	providerCfg := cfg.Spec.Secrets.ProviderConfig(cfg.ClientsProvider(), observability.ZapLogger(logger))
	provider, err := secrets.NewProvider(providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s secrets provider: %w", cfg.ClientsProvider(), err)
	}
	return provider, nil
}

// initIdentityStore creates the identity store selected by cfg.
func (app *application) initIdentityStore(cfg *apikey.Config) error {
	switch cfg.GetEffectiveStoreType() {
	case apikey.StoreTypeRedis:
		redisCfg := cfg.Store.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Address,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})

		opts := []apikey.RedisStoreOption{apikey.WithRedisLogger(app.logger)}
		if redisCfg.KeyPrefix != "" {
			opts = append(opts, apikey.WithRedisKeyPrefix(redisCfg.KeyPrefix))
		}
		if cb := redisCfg.CircuitBreaker; cb != nil {
			opts = append(opts, apikey.WithRedisBreaker(middleware.NewCircuitBreaker(
				redisBreakerName, cb.Threshold, cb.Timeout,
				middleware.WithCircuitBreakerLogger(app.logger),
			)))
		}

		app.redisStore = apikey.NewRedisStore(client, opts...)
		app.store = app.redisStore
	case apikey.StoreTypeMemory:
		app.memoryStore = apikey.NewMemoryStore()
		app.store = app.memoryStore
	default:
		return fmt.Errorf("unsupported identity store type: %s", cfg.GetEffectiveStoreType())
	}
	return nil
}

// rebuildAuthHandler swaps in the checkpoint handler and the identity
// engine built from cfg.
func (app *application) rebuildAuthHandler(cfg *apikey.Config) {
	resolver := apikey.NewResolver(cfg, app.store,
		apikey.WithResolverLogger(app.logger),
		apikey.WithResolverMetrics(app.apikeyMetrics),
	)
	handler := apikey.NewHandler(resolver,
		apikey.WithHandlerLogger(app.logger),
		apikey.WithHandlerMetrics(app.apikeyMetrics),
		apikey.WithHandlerTracer(app.tracer.Tracer()),
	)
	app.authHandler.Store(handler)
	app.identity.Store(newIdentityEngine(resolver))
}

// newIdentityEngine serves the identity endpoints, each guarded by its
// checkpoint through the gin adapter.
func newIdentityEngine(resolver *apikey.Resolver) *gin.Engine {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.GET(pathIdentityRoute, apikey.GinMiddleware(apikey.CheckpointRoute, resolver), identityHandler)
	engine.GET(pathIdentitySpec, apikey.GinMiddleware(apikey.CheckpointSpec, resolver), identityHandler)
	return engine
}

func identityHandler(c *gin.Context) {
	client := c.GetString(apikey.ContextKeyClient)
	c.Header(headerClientName, client)
	c.Header(headerFingerprint, c.GetString(apikey.ContextKeyFingerprint))
	c.String(http.StatusOK, client)
}

// registerHealthChecks adds readiness checks for the secrets provider and
// the identity store.
func (app *application) registerHealthChecks() {
	app.healthChecker.RegisterCheck("secrets", func(ctx context.Context) error {
		return app.currentProvider().HealthCheck(ctx)
	})
	if app.redisStore != nil {
		app.healthChecker.RegisterCheck("store", app.redisStore.Ping)
	}
}

// routes builds the main listener handler.
func (app *application) routes() http.Handler {
	auth := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.authHandler.Load().ServeHTTP(w, r)
	})
	identity := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.identity.Load().ServeHTTP(w, r)
	})

	mux := http.NewServeMux()
	mux.Handle("/_auth/", auth)
	mux.Handle("/_hash/", auth)
	mux.Handle("/_identity/", identity)
	app.healthChecker.Register(mux)

	return middleware.Chain(mux,
		middleware.RequestID(),
		middleware.Logging(app.logger, health.ProbePaths...),
		observability.TracingMiddleware(app.tracer, health.ProbePaths...),
		middleware.Recovery(app.logger),
	)
}

func (app *application) currentProvider() secrets.Provider {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.provider
}

func (app *application) currentConfig() *config.GatewayConfig {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.config
}

// loadClients reads the client secret and replaces the identity store
// contents. On error the previous clients stay in place.
func (app *application) loadClients(ctx context.Context) error {
	app.mu.RLock()
	provider := app.provider
	path := app.config.Spec.APIKey.Clients.Path
	app.mu.RUnlock()

	secret, err := provider.GetSecret(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load client secret %q: %w", path, err)
	}

	keys := apikey.ClientKeysFromSecretData(secret.Data)
	if app.redisStore != nil {
		if err := app.redisStore.Sync(ctx, keys); err != nil {
			return err
		}
	} else {
		app.memoryStore.Replace(keys)
	}

	app.logger.Info("api key clients loaded",
		observability.String("provider", string(provider.Type())),
		observability.String("secret", secret.String()),
		observability.Int("clients", len(keys)),
	)
	return nil
}

// start loads the client keys and starts the listeners. A failed key
// load leaves the service running but not ready.
func (app *application) start(ctx context.Context) error {
	if err := app.loadClients(ctx); err != nil {
		app.logger.Error("initial client load failed", observability.Error(err))
	} else {
		app.healthChecker.SetReady(true)
	}

	listener, err := net.Listen("tcp", app.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.server.Addr, err)
	}
	app.listener = listener

	app.logger.Info("starting auth server", observability.String("address", listener.Addr().String()))
	go app.serve(app.server, listener)

	if app.metricsServer != nil {
		metricsListener, err := net.Listen("tcp", app.metricsServer.Addr)
		if err != nil {
			_ = app.server.Close()
			return fmt.Errorf("failed to listen on %s: %w", app.metricsServer.Addr, err)
		}
		app.logger.Info("starting metrics server",
			observability.String("address", metricsListener.Addr().String()),
			observability.String("metrics_path", app.currentConfig().Spec.Metrics.Path),
		)
		go app.serve(app.metricsServer, metricsListener)
	}

	return nil
}

func (app *application) serve(server *http.Server, listener net.Listener) {
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error("server error",
			observability.String("address", listener.Addr().String()),
			observability.Error(err),
		)
	}
}
