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

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-events/internal/auth"
	"ms-events/internal/category"
	"ms-events/internal/category/category_api"
	category_db "ms-events/internal/category/db"
	"ms-events/internal/config"
	"ms-events/internal/database/migrations"
	"ms-events/internal/event"
	event_db "ms-events/internal/event/db"
	"ms-events/internal/event/event_api"
	"ms-events/internal/identity"
	"ms-events/internal/kafka"
	"ms-events/internal/logger"
	"ms-events/internal/order"
	order_db "ms-events/internal/order/db"
	"ms-events/internal/order/order_api"
	"ms-events/internal/order/qr"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Events Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.MigrateUp(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	log.Info("DATABASE", "Schema migrations applied")

	order.InitStripe(cfg.Stripe.SecretKey)

	identityClient := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.SecretKey, cfg.Identity.Timeout)
	identityCache := identity.NewRedisProfileCache(redisClient)
	identityService := identity.NewService(identityClient, identityCache, cfg.Identity.CacheTTL, log)

	eventDB := &event_db.DB{Bun: bunDB}
	categoryDB := &category_db.DB{Bun: bunDB}
	orderDB := &order_db.DB{Bun: bunDB}

	var producer *kafka.Producer
	var orderPublisher order.KafkaPublisher
	if cfg.Kafka.Enabled {
		requiredTopics := []string{
			cfg.Kafka.Topics.OrderCreated,
			cfg.Kafka.Topics.UserDeleted,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderCreated, log)
		orderPublisher = producer
		defer producer.Close()
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, order events will not be published")
	}

	eventService := event.NewEventService(eventDB, identityService, log)
	categoryService := category.NewCategoryService(categoryDB)
	orderService := order.NewOrderService(orderDB, eventDB, identityService, orderPublisher, cfg.Stripe, log)

	qrGen := qr.NewQRGenerator(cfg.Auth.QRSecret)

	eventHandler := event_api.NewHandler(eventService, log)
	categoryHandler := category_api.NewHandler(categoryService, log)
	orderHandler := order_api.NewHandler(orderService, qrGen, log)

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.UserDeleted, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		go consumer.StartUserDeleted(ctx, func(ctx context.Context, subject string) {
			if n, err := eventDB.UnlinkOrganizer(ctx, subject); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Failed to unlink organizer %s: %v", subject, err))
			} else if n > 0 {
				log.Info("KAFKA", fmt.Sprintf("Unlinked %d events from deleted user %s", n, subject))
			}
			if n, err := orderDB.UnlinkBuyer(ctx, subject); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Failed to unlink buyer %s: %v", subject, err))
			} else if n > 0 {
				log.Info("KAFKA", fmt.Sprintf("Unlinked %d orders from deleted user %s", n, subject))
			}
			identityService.Forget(ctx, subject)
		})
		log.Info("KAFKA", "User deletion consumer started")
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Post("/api/webhook/stripe", orderHandler.StripeWebhook)
	r.Get("/api/events", eventHandler.ListEvents)
	r.Get("/api/events/{eventId}", eventHandler.GetEvent)
	r.Get("/api/events/{eventId}/related", eventHandler.ListRelatedEvents)
	r.Get("/api/categories", categoryHandler.ListCategories)
	log.Info("ROUTER", "Public routes registered")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))
		log.Info("AUTH", "OIDC middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			r.Route("/events", func(r chi.Router) {
				r.Post("/", eventHandler.CreateEvent)
				r.Get("/mine", eventHandler.ListMyEvents)
				r.Put("/{eventId}", eventHandler.UpdateEvent)
				r.Delete("/{eventId}", eventHandler.DeleteEvent)
			})

			r.Post("/categories", categoryHandler.CreateCategory)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", orderHandler.ListMyOrders)
				r.Post("/checkout", orderHandler.CreateCheckout)
				r.Post("/checkin", orderHandler.CheckInTicket)
				r.Get("/event/{eventId}", orderHandler.ListOrdersByEvent)
				r.Get("/{orderId}/qr", orderHandler.GetOrderQR)
			})
		})
		log.Info("ROUTER", "Protected routes registered under /api")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Events Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Events Service shutdown complete")
	}
}
