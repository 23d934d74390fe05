package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hesapduragi/config"
	"hesapduragi/internal/api"
	"hesapduragi/internal/auth"
	"hesapduragi/internal/broker"
	"hesapduragi/internal/redisclient"
	"hesapduragi/internal/service"
	"hesapduragi/internal/store"
	"hesapduragi/internal/util"
	"hesapduragi/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting hesapduragi service")

	tp, err := util.InitTracer("hesapduragi", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	reserver := service.NewReserver(db, redisClient)
	gateway := service.NewSimulatedGateway(cfg.Business.PaymentDelay, cfg.Business.PaymentSuccessRate)
	checkoutService := service.NewCheckoutService(db, reserver, gateway, eventPublisher)
	catalogService := service.NewCatalogService(db, redisClient)
	reviewService := service.NewReviewService(db)
	userService := service.NewUserService(db, tokens)

	ctx := context.Background()
	if err := catalogService.SyncMirror(ctx); err != nil {
		log.Printf("Failed to sync availability mirror: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	statsConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	statsWorker := worker.NewStatsWorker(statsConsumer, db, redisClient)
	go func() {
		if err := statsWorker.Start(workerCtx); err != nil {
			log.Printf("Stats worker error: %v", err)
		}
	}()

	reconciler := worker.NewReconciler(db, reserver, cfg.Business.OrderTimeout, cfg.Business.ReconcileInterval)
	go reconciler.Start(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(checkoutService, catalogService, reviewService, userService, db, redisClient, tokens)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	statsWorker.Stop()

	log.Println("Server exited")
}
