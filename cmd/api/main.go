package main

import (
	"context"
	"log"
	"time"

	"closetapi/config"
	"closetapi/controllers"
	"closetapi/dbhelper"
	"closetapi/logging"
	"closetapi/recommendation"
	"closetapi/services"
	"closetapi/tasks"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

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

	err = sentry.Init(sentry.ClientOptions{
		// empty DSN disables reporting
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Env,
		Release:          "closetapi@1.0.0",
		Debug:            false,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		logger.Fatal("sentry.Init failed", "error", err)
	}
	defer sentry.Recover()
	defer sentry.Flush(2 * time.Second)

	ctx := context.Background()
	db := dbhelper.SetupDB(cfg.Database)

	gemini, err := services.NewGeminiService(ctx, cfg.Gemini, logger)
	if err != nil {
		logger.Fatal("failed to initialize gemini", "error", err)
	}
	embedder, err := services.NewCachedEmbedder(gemini)
	if err != nil {
		logger.Fatal("failed to initialize embedding cache", "error", err)
	}
	weather, err := services.NewOpenMeteoWeatherService(cfg.Weather, logger)
	if err != nil {
		logger.Fatal("failed to initialize weather service", "error", err)
	}
	calendar := services.NewGoogleCalendarService(cfg.Calendar, gemini, weather, logger)

	store, err := recommendation.OpenVectorBackend(ctx, cfg.Search, cfg.Gemini.EmbeddingDims, db)
	if err != nil {
		logger.Fatal("failed to open vector backend", "backend", cfg.Search.Backend, "error", err)
	}

	engine := recommendation.NewEngine(
		recommendation.NewResolver(cfg.Resolver, gemini, calendar, weather, logger),
		recommendation.NewRetriever(embedder, store, recommendation.NewGormItemSource(db), cfg.Search.CandidatesPerCategory, logger),
		recommendation.NewScorer(cfg.Scoring),
		recommendation.NewComposer(cfg.Search),
		logger,
	)
	ledger := recommendation.NewLedger(db, logger)

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	awsService := &services.AWSService{}
	urlCache, err := services.NewURLCacheService(awsService, bucketName, logger)
	if err != nil {
		logger.Fatal("failed to initialize URL cache service", "error", err)
	}
	asynqClient := tasks.NewClient(cfg.Broker.Addr)
	defer asynqClient.Close()

	e := controllers.SetupServer(cfg.Server, db, awsService, urlCache, engine, ledger, asynqClient, logger)
	e.Debug = cfg.Env == "local"
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit))))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))

	logger.Info("starting api", "addr", cfg.Server.Addr, "search_backend", cfg.Search.Backend)
	e.Logger.Fatal(e.Start(cfg.Server.Addr))
}
