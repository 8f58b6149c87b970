package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mediagen/internal/adapter/repo"
	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/infra/credentials"
	"mediagen/internal/notify"
	"mediagen/internal/orchestrator"
	"mediagen/internal/providers/renderworker"
)

// The reconciler is the safety net for lost webhooks: it sweeps dispatched
// records that have not moved recently and polls the worker for their
// current status.
type reconciler struct {
	generations domain.GenerationRepository
	orc         *orchestrator.Orchestrator
	logger      infra.Logger
	staleAfter  time.Duration
	batchSize   int
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "reconciler").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("reconciler: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	generations := repo.NewGenerationRepository(runner)
	messages := repo.NewMessageRepository(runner)
	analytics := repo.NewAnalyticsRepository(runner)

	workerAPIKey := strings.TrimSpace(cfg.WorkerAPIKey)
	if workerAPIKey == "" {
		credStore := credentials.NewStore(runner)
		keyFromStore, err := credStore.WorkerAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("reconciler: failed to load worker api key from store")
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
		logger.Fatal().Err(err).Msg("reconciler: failed to configure render worker client")
	}

	orc := orchestrator.New(orchestrator.Options{
		Generations: generations,
		Worker:      workerClient,
		Notifier:    notify.NewConversationNotifier(messages, logger),
		Renderer:    notify.NewRenderer(),
		Analytics:   analytics,
		Logger:      logger,
	})

	r := &reconciler{
		generations: generations,
		orc:         orc,
		logger:      logger,
		staleAfter:  cfg.ReconcileStaleAfter,
		batchSize:   cfg.ReconcileBatchSize,
	}

	if err := r.run(ctx, cfg.ReconcilePollEvery); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("reconciler: stopped with error")
	}
	logger.Info().Msg("reconciler: stopped")
}

func (r *reconciler) run(ctx context.Context, every time.Duration) error {
	r.logger.Info().Dur("interval", every).Msg("reconciler: started")
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		r.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *reconciler) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.staleAfter)
	stale, err := r.generations.ListStale(ctx, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("reconciler: failed to list stale records")
		return
	}
	if len(stale) == 0 {
		return
	}
	r.logger.Info().Int("count", len(stale)).Msg("reconciler: sweeping stale records")
	for i := range stale {
		if ctx.Err() != nil {
			return
		}
		gen := &stale[i]
		if _, err := r.orc.Poll(ctx, gen.ID); err != nil {
			r.logger.Warn().Err(err).
				Str("generation_id", gen.ID).
				Str("job_id", gen.ExternalJobID).
				Msg("reconciler: poll failed")
		}
	}
}
