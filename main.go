package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-boxoffice/internal/booking"
	"ms-boxoffice/internal/booking/booking_api"
	seatlock "ms-boxoffice/internal/booking/redis"
	"ms-boxoffice/internal/checkin"
	"ms-boxoffice/internal/checkin/checkin_api"
	"ms-boxoffice/internal/config"
	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/database/migrations"
	"ms-boxoffice/internal/events"
	"ms-boxoffice/internal/kafka"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/middleware"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/rabbitmq"
	"ms-boxoffice/internal/reservations"
	"ms-boxoffice/internal/reservations/reservation_api"
	"ms-boxoffice/internal/shows"
	"ms-boxoffice/internal/shows/show_api"
	"ms-boxoffice/internal/sse"
	"ms-boxoffice/internal/tickets/ticket_api"
	"ms-boxoffice/internal/tokens"
	"ms-boxoffice/internal/tokens/token_api"
)

func prepareSchema(ctx context.Context, cfg config.DatabaseConfig, bunDB *bun.DB, log *logger.Logger) error {
	if !cfg.AutoMigrate {
		log.Info("DATABASE", "Auto-migrate disabled, assuming schema is in place")
		return nil
	}
	if cfg.Driver != database.DriverPostgres {
		log.Info("DATABASE", fmt.Sprintf("Creating %s schema from models", cfg.Driver))
		return database.CreateSchema(ctx, bunDB)
	}

	runner := migrations.NewRunner(cfg.DSN, log)
	if err := runner.Initialize(); err != nil {
		return err
	}
	defer runner.Close()
	return runner.MigrateUp()
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Info("REDIS", "Redis disabled, seat locks rely on the database only")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable at %s, continuing without seat locks: %v", cfg.Addr, err))
		client.Close()
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return client
}

// setupEvents builds the publisher every service emits to. With Kafka on,
// live feeds are fed back from the topic so every instance sees every
// change; otherwise the local feed is published to directly.
func setupEvents(ctx context.Context, cfg *config.Config, feed *sse.Feed, log *logger.Logger) (*events.Fanout, func()) {
	fanout := events.NewFanout(log)
	var closers []func()

	if cfg.Kafka.Enabled {
		if !cfg.Kafka.MockMode {
			if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topic}, log); err != nil {
				log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
			} else {
				log.Info("KAFKA", "Required topics ensured successfully")
			}
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.MockMode, log)
		fanout.Add(producer)
		closers = append(closers, func() { producer.Close() })

		if cfg.Kafka.MockMode {
			fanout.Add(feed)
		} else {
			host, _ := os.Hostname()
			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID+"-"+host, log)
			go func() {
				if err := consumer.Start(ctx, feed.Publish); err != nil {
					log.Error("KAFKA", fmt.Sprintf("Feed consumer stopped: %v", err))
				}
			}()
			closers = append(closers, func() { consumer.Close() })
		}
		log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for topic %s", cfg.Kafka.Topic))
	} else {
		fanout.Add(feed)
	}

	if cfg.RabbitMQ.Enabled {
		publisher, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Warn("RABBITMQ", fmt.Sprintf("RabbitMQ unavailable, events stay local: %v", err))
		} else {
			fanout.Add(publisher)
			closers = append(closers, func() { publisher.Close() })
			log.Info("RABBITMQ", fmt.Sprintf("Publishing reservation events to exchange %s", cfg.RabbitMQ.Exchange))
		}
	}

	return fanout, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("CONFIG: .env file not found, using environment variables")
	}

	cfg := config.Load()
	log := logger.NewLogger(cfg.Log.Service, cfg.Log.Dir, cfg.Log.Level)
	defer log.Close()

	log.Info("APP", "Starting Box Office service initialization")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if err := prepareSchema(ctx, cfg.Database, bunDB, log); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Schema setup failed: %v", err))
	}

	var locker booking.SeatLocker
	if redisClient := connectRedis(ctx, cfg.Redis, log); redisClient != nil {
		defer redisClient.Close()
		locker = seatlock.NewRedis(redisClient, log, cfg.Redis.LockTTL)
	}

	feed := sse.NewFeed()
	publisher, closeEvents := setupEvents(ctx, cfg, feed, log)
	defer closeEvents()

	showService := shows.NewShowService(bunDB, log)

	tokenService := tokens.NewTokenService(bunDB, showService, log)
	tokenService.DefaultCastQuota = cfg.Booking.DefaultCastQuota
	tokenService.DefaultClassSeats = cfg.Booking.ClassSeats

	reservationService := reservations.NewReservationService(bunDB, publisher, log)
	reservationService.HoldWindow = cfg.Booking.HoldWindow

	bookingService := booking.NewBookingService(bunDB, showService, locker, publisher, log)
	bookingService.HoldWindow = cfg.Booking.HoldWindow
	bookingService.CounterFee = cfg.Booking.CounterFee

	checkinService := checkin.NewCheckInService(bunDB, publisher, log)

	showHandler := show_api.NewHandler(showService, log)
	tokenHandler := token_api.NewHandler(tokenService, log)
	reservationHandler := reservation_api.NewHandler(reservationService, log)
	bookingHandler := booking_api.NewHandler(bookingService, log)
	checkinHandler := checkin_api.NewHandler(checkinService, log)
	ticketHandler := ticket_api.NewHandler(reservationService, log)
	feedHandler := sse.NewHandler(feed, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			http.Error(w, models.ErrStorageUnavailable.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		// Live feeds are long-lived and stay outside the limiter.
		feedHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			if cfg.RateLimit.Enabled {
				r.Use(middleware.NewRateLimiter(cfg.RateLimit.Every, cfg.RateLimit.Burst, log).Handler)
				log.Info("ROUTER", "Rate limiting applied to public routes")
			}
			showHandler.RegisterPublicRoutes(r)
			tokenHandler.RegisterPublicRoutes(r)
			bookingHandler.RegisterPublicRoutes(r)
			reservationHandler.RegisterPublicRoutes(r)
			ticketHandler.RegisterRoutes(r)
		})
		log.Info("ROUTER", "Public routes registered under /api")

		r.Route("/admin", func(r chi.Router) {
			showHandler.RegisterAdminRoutes(r)
			tokenHandler.RegisterAdminRoutes(r)
			bookingHandler.RegisterAdminRoutes(r)
			reservationHandler.RegisterAdminRoutes(r)
			checkinHandler.RegisterRoutes(r)
		})
		log.Info("ROUTER", "Staff routes registered under /api/admin")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Box Office service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		log.Info("HTTP", "✅ Box Office service shutdown complete")
	}
}
