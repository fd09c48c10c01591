package main

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/speaklab/backend/modules/billing"
	"github.com/speaklab/backend/modules/feedback"
	"github.com/speaklab/backend/pkg/config"
	"github.com/speaklab/backend/pkg/httpserver"
	"github.com/speaklab/backend/pkg/logger"
	"github.com/speaklab/backend/pkg/mongo"
	"github.com/speaklab/backend/pkg/redis"
	"github.com/speaklab/backend/pkg/session"
)

type appConfig struct {
	Logger   logger.Config
	HTTP     httpserver.Config
	Mongo    mongo.Config
	Redis    redis.Config
	Session  session.Config
	Stripe   billing.StripeConfig
	Checkout billing.CheckoutConfig
	Scorer   feedback.ScorerConfig

	CORSOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(cfg.Logger, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, cfg.Mongo)
	if err != nil {
		log.Error("mongo connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	db := mongoClient.Database(cfg.Mongo.Database)

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	if err := billing.EnsureIndexes(ctx, db); err != nil {
		log.Error("billing index setup failed", logger.Error(err))
		os.Exit(1)
	}
	if err := feedback.EnsureIndexes(ctx, db); err != nil {
		log.Error("feedback index setup failed", logger.Error(err))
		os.Exit(1)
	}

	verifier, err := session.NewVerifier(cfg.Session)
	if err != nil {
		log.Error("session verifier setup failed", logger.Error(err))
		os.Exit(1)
	}

	stripeProvider, err := billing.NewStripeProvider(cfg.Stripe)
	if err != nil {
		log.Error("stripe provider setup failed", logger.Error(err))
		os.Exit(1)
	}

	billingSvc := billing.NewService(
		billing.NewMongoStore(db),
		stripeProvider,
		billing.DefaultCatalog(),
		log.With(logger.Component("billing")),
		billing.WithSnapshotCache(billing.NewRedisSnapshotCache(redisClient, 0)),
		billing.WithCheckoutConfig(cfg.Checkout),
	)

	feedbackSvc := feedback.NewService(
		feedback.NewMongoStore(db),
		feedback.NewHTTPScorer(cfg.Scorer),
		log.With(logger.Component("feedback")),
	)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler(
		mongo.Healthcheck(mongoClient),
		redis.Healthcheck(redisClient),
	))

	r.Mount("/billing", billing.Router(billing.RouterOptions{
		Service: billingSvc,
		Session: verifier,
		Logger:  log,
	}))
	r.Mount("/feedback", feedback.Router(feedback.RouterOptions{
		Service: feedbackSvc,
		Session: verifier,
		Logger:  log,
	}))

	srv := httpserver.New(cfg.HTTP, log)
	if err := srv.Run(ctx, r); err != nil {
		log.Error("server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func healthHandler(checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
