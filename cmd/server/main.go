package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dpetrov/speedrun-tracker/internal/api"
	"github.com/dpetrov/speedrun-tracker/internal/config"
	"github.com/dpetrov/speedrun-tracker/internal/gate"
	"github.com/dpetrov/speedrun-tracker/internal/handler"
	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/auth"
	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/kafka"
	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/redis"
	"github.com/dpetrov/speedrun-tracker/internal/observability"
	core "github.com/dpetrov/speedrun-tracker/internal/repository/postgres"
	service "github.com/dpetrov/speedrun-tracker/internal/services"
	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	shutdownTracing, metricsHandler := observability.Setup("speedrun-tracker")
	defer shutdownTracing(context.Background())

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	userRepo := core.NewPostgresUserRepository(db)
	gameRepo := core.NewPostgresGameRepository(db)
	submissionRepo := core.NewPostgresSubmissionRepository(db)
	moderationRepo := core.NewPostgresModerationLogRepository(db)

	redisClient, err := redis.NewClient(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	tokens := auth.NewTokenManager(cfg.JWTSecret)

	svc := service.NewSpeedrunService(userRepo, gameRepo, submissionRepo, moderationRepo, redisClient, producer, tokens, gate.SystemClock{})

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, "submissions", "speedrun-tracker-group", moderationRepo, redisClient)
	go consumer.Consume(consumerCtx)
	defer consumer.Close()
	defer stopConsumer()

	h := handler.NewHandler(svc, tokens, cfg.CookieSecure)
	router := api.SetupRouter(h, tokens, redisClient, metricsHandler)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
