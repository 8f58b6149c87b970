package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"mediagen/internal/adapter/repo"
	"mediagen/internal/http/handlers"
	httpapi "mediagen/internal/http/httpapi"
	"mediagen/internal/infra"
	"mediagen/internal/infra/credentials"
	"mediagen/internal/infra/geoip"
	"mediagen/internal/notify"
	"mediagen/internal/orchestrator"
	"mediagen/internal/providers/renderworker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	generations := repo.NewGenerationRepository(runner)
	messages := repo.NewMessageRepository(runner)
	analytics := repo.NewAnalyticsRepository(runner)

	workerAPIKey := strings.TrimSpace(cfg.WorkerAPIKey)
	if workerAPIKey == "" {
		credStore := credentials.NewStore(runner)
		keyFromStore, err := credStore.WorkerAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to load worker api key from store")
		} else {
			workerAPIKey = keyFromStore
		}
	}

	workerClient, err := renderworker.NewClient(renderworker.Options{
		APIKey:         workerAPIKey,
		BaseURL:        cfg.WorkerBaseURL,
		HTTPClient:     &http.Client{Timeout: cfg.WorkerTimeout},
		Logger:         &logger,
		RequestTimeout: cfg.WorkerTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure render worker client")
	}
	if !workerClient.HasCredentials() {
		logger.Warn().Msg("render worker api key missing, dispatches will fail")
	}

	orc := orchestrator.New(orchestrator.Options{
		Generations: generations,
		Worker:      workerClient,
		Notifier:    notify.NewConversationNotifier(messages, logger),
		Renderer:    notify.NewRenderer(),
		Analytics:   analytics,
		Logger:      logger,
	})

	var countryLookup func(ip string) (string, error)
	geoResolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip resolver disabled")
	} else if geoResolver != nil {
		countryLookup = geoResolver.CountryCode
	}

	app := handlers.NewApp(orc, generations, messages, analytics, cfg.WorkerWebhookSecret, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:      cfg.JWTSecret,
		DefaultLocale:  cfg.DefaultLocale,
		CountryLookup:  countryLookup,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:      cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
