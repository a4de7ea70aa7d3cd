package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/unveil/unveil-bridge/internal/audit"
	"github.com/unveil/unveil-bridge/internal/blob"
	"github.com/unveil/unveil-bridge/internal/config"
	"github.com/unveil/unveil-bridge/internal/lookup"
	"github.com/unveil/unveil-bridge/internal/namestore"
	"github.com/unveil/unveil-bridge/internal/observe"
	"github.com/unveil/unveil-bridge/internal/resolve"
	"github.com/unveil/unveil-bridge/internal/rules"
	"github.com/unveil/unveil-bridge/internal/scan"
	"github.com/unveil/unveil-bridge/internal/server"

	"github.com/justinas/alice"
)

func configureServerRoutes(names *namestore.Store, driver *scan.Driver) http.Handler {
	// wrap a mux such that HTTP telemetry is configured by default
	muxWithoutTelemetry := http.NewServeMux()
	mux := observe.NewMux(muxWithoutTelemetry)

	auditor := audit.Middleware()

	// augmentation bodies are whole HTML documents; the administrative
	// routes carry at most a short JSON object
	documentLimiter := maxRequestSize(2 << 20) // 2 MB
	adminLimiter := maxRequestSize(20 << 10)   // 20 KB

	documentRouteMiddleware := alice.New(documentLimiter, auditor)
	adminRouteMiddleware := alice.New(adminLimiter, auditor)
	standardRouteMiddleware := alice.New(adminLimiter)

	mux.Handle("POST /augment", documentRouteMiddleware.Then(handleAugment(driver)))

	mux.Handle("GET /names/{origin}", adminRouteMiddleware.Then(handleListNames(names)))
	mux.Handle("PUT /names/{origin}/{handle}", adminRouteMiddleware.Then(handlePutName(names)))
	mux.Handle("PATCH /names/{origin}/{handle}", adminRouteMiddleware.Then(handlePatchName(names)))
	mux.Handle("DELETE /names/{origin}/{handle}", adminRouteMiddleware.Then(handleDeleteName(names)))

	mux.Handle("POST /maintenance/sweep", adminRouteMiddleware.Then(handleSweep(names)))

	// healthchecks are not included in telemetry
	muxWithoutTelemetry.Handle("GET /healthcheck", standardRouteMiddleware.Then(handleHealthCheck()))

	return mux
}

func main() {
	configureLogging()

	logBuildInfo()

	err := launchServer()
	if err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launchServer() error {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	// configure telemetry, including wrapping default HTTP client
	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}

	http.DefaultTransport = observe.HTTPTransport(
		configureHTTPTransport(cfg.Server),
		cfg.Observe,
	)
	http.DefaultClient = &http.Client{
		Transport: http.DefaultTransport,
	}

	blobs, err := blob.NewFromConfig[namestore.Entry](ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("name store configuration failed: %w", err)
	}

	names := namestore.New(blobs)

	// clear out entries that went stale while the service was down
	if removed, err := names.Sweep(ctx); err != nil {
		log.Warn().Err(err).Msg("startup sweep failed, continuing")
	} else {
		log.Info().Int("removed", removed).Msg("startup sweep complete")
	}

	lookupFn, err := lookup.NewFromConfig(cfg.Lookup, http.DefaultClient)
	if err != nil {
		return fmt.Errorf("lookup configuration failed: %w", err)
	}

	coordinator := resolve.NewCoordinator(names, lookupFn)

	ruleStore, err := configureRules(ctx, cfg.Rules)
	if err != nil {
		return fmt.Errorf("rules configuration failed: %w", err)
	}

	driver := scan.NewDriver(coordinator, ruleStore)

	handler := configureServerRoutes(names, driver)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		MaxHeaderBytes:    20 << 10,         // 20 KB
		ReadHeaderTimeout: 20 * time.Second, // Prevent Slowloris attacks
	}

	shutdownHooks := &server.ShutdownHooks{}
	shutdownHooks.AddContext("telemetry", shutdownTelemetry)
	shutdownHooks.Add("name store", names.Close)

	err = serveHTTP(ctx, cfg.Server, httpServer, shutdownHooks)
	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// configureRules seeds the rule store with the built-in defaults, overlays
// the configured file when present, and watches it for changes.
func configureRules(ctx context.Context, cfg config.RulesConfig) (*rules.Store, error) {
	store := rules.NewStore(rules.Default())

	if cfg.File == "" {
		return store, nil
	}

	loaded, err := rules.Load(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("loading rules from %q: %w", cfg.File, err)
	}
	store.Update(loaded)

	go func() {
		if err := rules.Watch(ctx, cfg.File, store); err != nil {
			log.Warn().Err(err).Msg("rules file watch failed; updates require a restart")
		}
	}()

	return store, nil
}

func serveHTTP(ctx context.Context, cfg config.ServerConfig, httpServer *http.Server, hooks *server.ShutdownHooks) error {
	listenErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("server starting")
		listenErr <- httpServer.ListenAndServe()
	}()

	notify, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-listenErr:
		return err
	case <-notify.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn().Err(err).Msg("server shutdown failed")
	}

	hooks.Execute(shutdownCtx)

	return nil
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately. However, it means that any logger that sets its
	// level will log as this effectively disables the global level.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}

func configureHTTPTransport(cfg config.ServerConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingHTTPMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingHTTPMaxConnsPerHost

	return transport
}
