package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/api"
	bookingdb "ms-booking/internal/booking/db"
	bookingkafka "ms-booking/internal/booking/kafka"
	bookingredis "ms-booking/internal/booking/redis"
	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/notify"
	"ms-booking/internal/payment"
	paymenthandlers "ms-booking/internal/payment/handler"
	"ms-booking/internal/payment/services"
	"ms-booking/internal/payment/storage"
	"ms-booking/internal/provision"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	const maxRetries = 5
	var err error
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		if err = sqldb.Ping(); err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Booking Gateway initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()

	// --- PostgreSQL ---
	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), log)
	if err := runner.RunMigrations(); err != nil {
		log.Warn("DATABASE", fmt.Sprintf("Migration runner failed (%v), falling back to schema sync", err))
		if err := bookingdb.Migrate(context.Background(), bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Schema sync failed: %v", err))
		}
	}

	// --- Redis ---
	redisClient := connectRedis(cfg.Redis, log)
	defer redisClient.Close()

	// --- Kafka ---
	var events booking.EventPublisher = bookingkafka.NoopPublisher{}
	var producer *kafka.Producer
	if cfg.Kafka.Enabled && !cfg.Kafka.MockMode {
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()

		requiredTopics := []string{cfg.Kafka.Topics.BookingEvents, cfg.Kafka.Topics.PaymentEvents}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		events = bookingkafka.NewPublisher(producer, cfg.Kafka.Topics.BookingEvents)
	} else {
		log.Warn("KAFKA", "Kafka disabled or mocked, booking events will not be streamed")
	}

	// --- Email ---
	var mailer notify.Mailer
	if cfg.Email.SMTPUsername != "" {
		mailer = notify.NewSMTPMailer(cfg.Email, log)
	} else {
		log.Warn("EMAIL", "SMTP credentials not configured, using console mailer")
		mailer = notify.NewConsoleMailer(log)
	}
	notifier := notify.NewService(mailer, cfg.Email, cfg.Site)

	// --- Core services ---
	store := &bookingdb.DB{Bun: bunDB}
	limiter := bookingredis.NewRateLimiter(redisClient, cfg.Redis.SubmitCooldown)
	provisioner := provision.NewAccountProvisioner(store, log)

	bookingService := booking.NewService(store, limiter, notifier, provisioner, events, log)
	handler := api.NewHandler(bookingService, store, cfg, log)

	// --- Booking gateway (chi) ---
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Booking Gateway running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Payment API (gin) ---
	var paymentServer *http.Server
	stripeService, err := services.NewStripeService(
		cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.Currency, cfg.Site.BaseURL, log)
	if err != nil {
		log.Warn("STRIPE", "Stripe not configured, payment API disabled")
	} else {
		paymentStore, err := storage.NewPostgreSQLStore(cfg.Database, log)
		if err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to initialize payment storage: %v", err))
		}
		defer paymentStore.Close()

		processor := payment.NewWebhookProcessor(paymentStore, bookingService, log)
		stripeHandler := paymenthandlers.NewStripeHandler(
			stripeService, paymentStore, processor, bookingService, producer,
			notifier, cfg.Kafka.Topics.PaymentEvents, log)

		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())

		router.POST("/api/v1/payments/webhook", stripeHandler.Webhook)
		adminRoutes := router.Group("/api/v1/payments", auth.GinMiddleware(cfg.Bootstrap.AdminJWTSecret, "admin"))
		{
			adminRoutes.POST("/link", stripeHandler.CreatePaymentLink)
			adminRoutes.GET("/booking/:bookingID", stripeHandler.ListPayments)
			adminRoutes.GET("/booking/:bookingID/summary", stripeHandler.PaymentSummary)
		}

		paymentServer = &http.Server{
			Addr:         cfg.Server.PaymentPort,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			log.Info("HTTP", fmt.Sprintf("🚀 Payment API running on %s", cfg.Server.PaymentPort))
			if err := paymentServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("HTTP", fmt.Sprintf("Payment server error: %v", err))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	}
	if paymentServer != nil {
		if err := paymentServer.Shutdown(ctxShutdown); err != nil {
			log.Error("HTTP", fmt.Sprintf("Payment server shutdown failed: %v", err))
		}
	}
	log.Info("HTTP", "✅ Booking Gateway shutdown complete")
}
