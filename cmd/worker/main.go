package main

import (
	"context"
	"log"
	"time"

	"closetapi/config"
	"closetapi/dbhelper"
	"closetapi/logging"
	"closetapi/recommendation"
	"closetapi/services"
	"closetapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
)

func runScheduler(brokerAddr string, logger *logging.Logger) {
	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: brokerAddr}, &asynq.SchedulerOpts{
		LogLevel: asynq.InfoLevel,
	})

	periodic := []struct {
		cron string
		task *asynq.Task
		desc string
	}{
		{
			cron: "*/15 * * * *",
			task: tasks.NewClothingReindexTask(),
			desc: "Re-enqueue stale and failed clothing embeddings",
		},
	}

	for _, t := range periodic {
		entryID, err := scheduler.Register(t.cron, t.task, asynq.Queue(tasks.QueueIndexing))
		if err != nil {
			logger.Fatal("failed to register periodic task", "desc", t.desc, "error", err)
		}
		logger.Info("registered periodic task", "desc", t.desc, "entry_id", entryID, "cron", t.cron)
	}

	logger.Info("starting scheduler")
	if err := scheduler.Run(); err != nil {
		logger.Fatal("scheduler failed", "error", err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %s", err)
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %s", err)
	}
	defer logger.Sync()

	if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env, Release: "closetapi-worker@1.0.0"}); err != nil {
		logger.Fatal("sentry.Init failed", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx := context.Background()
	db := dbhelper.SetupDB(cfg.Database)

	gemini, err := services.NewGeminiService(ctx, cfg.Gemini, logger)
	if err != nil {
		logger.Fatal("[Queue] failed to initialize gemini", "error", err)
	}
	index, err := recommendation.OpenVectorBackend(ctx, cfg.Search, cfg.Gemini.EmbeddingDims, db)
	if err != nil {
		logger.Fatal("[Queue] failed to open vector backend", "backend", cfg.Search.Backend, "error", err)
	}
	client := tasks.NewClient(cfg.Broker.Addr)
	defer client.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Broker.Addr},
		asynq.Config{Concurrency: cfg.Broker.Concurrency, Queues: map[string]int{
			tasks.QueueIndexing: 6,
			tasks.QueueDefault:  4,
		}},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeClothingIndex, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleClothingIndexTask(ctx, t, db, gemini, index, logger)
	})
	mux.HandleFunc(tasks.TypeOutfitWorn, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleOutfitWornTask(ctx, t, db, logger)
	})
	mux.HandleFunc(tasks.TypeClothingReindex, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleClothingReindexTask(ctx, t, db, client, logger)
	})

	go runScheduler(cfg.Broker.Addr, logger)
	if err := srv.Run(mux); err != nil {
		logger.Fatal("worker stopped", "error", err)
	}
}
