package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"golang.org/x/time/rate"

	"ms-lunch/internal/admin"
	"ms-lunch/internal/admin/admin_api"
	"ms-lunch/internal/auth"
	"ms-lunch/internal/auth/auth_api"
	authdb "ms-lunch/internal/auth/db"
	"ms-lunch/internal/cart"
	"ms-lunch/internal/cart/cart_api"
	cartdb "ms-lunch/internal/cart/db"
	"ms-lunch/internal/config"
	"ms-lunch/internal/database"
	"ms-lunch/internal/database/migrations"
	"ms-lunch/internal/events"
	"ms-lunch/internal/group"
	"ms-lunch/internal/group/group_api"
	groupdb "ms-lunch/internal/group/db"
	"ms-lunch/internal/kafka"
	"ms-lunch/internal/lock"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/metrics"
	"ms-lunch/internal/middleware"
	"ms-lunch/internal/models"
	"ms-lunch/internal/order"
	orderdb "ms-lunch/internal/order/db"
	"ms-lunch/internal/order/order_api"
	"ms-lunch/internal/payment"
	"ms-lunch/internal/payment/payment_api"
	"ms-lunch/internal/payment/storage"
	"ms-lunch/internal/qr"
	"ms-lunch/internal/restaurant"
	restdb "ms-lunch/internal/restaurant/db"
	"ms-lunch/internal/restaurant/restaurant_api"
	"ms-lunch/internal/sse"
	"ms-lunch/internal/sweeper"
	"ms-lunch/internal/talabat"
	"ms-lunch/internal/talabat/talabat_api"
	"ms-lunch/internal/utils"
	"ms-lunch/internal/voting"
	votingdb "ms-lunch/internal/voting/db"
	"ms-lunch/internal/voting/voting_api"
)

func connectDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) *bun.DB {
	bunDB, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open database: %v", err))
	}

	switch {
	case cfg.Database.Driver == "sqlite":
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to create sqlite schema: %v", err))
		}
		log.Info("DATABASE", "✅ SQLite schema ready")
	case cfg.Database.AutoMigrate:
		runner := migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.Database.MigrationsDir}, log)
		if err := runner.Up(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		log.Info("DATABASE", "✅ Migrations applied")
	}
	return bunDB
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	lock.EnableKeyspaceNotifications(ctx, client, log)
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return client
}

func topicsByStream(t config.TopicConfig) map[string]string {
	return map[string]string{
		"voting":   t.Voting,
		"groups":   t.Groups,
		"carts":    t.Carts,
		"payments": t.Payments,
		"orders":   t.Orders,
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println(".env file not found, using environment variables")
	}
	cfg := config.Load()

	log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Service: "lunch", MinLevel: cfg.Log.Level, Terminal: os.Stdout})
	if err != nil {
		log = logger.NewLogger()
		log.Warn("APP", fmt.Sprintf("File logging disabled: %v", err))
	}
	defer log.Close()

	log.Info("APP", "Starting lunch service initialization")
	if err := cfg.Voting.Validate(); err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Voting window rejected: %v", err))
	}

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	bunDB := connectDatabase(ctx, cfg, log)
	defer bunDB.Close()
	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	m := metrics.New()
	hub := sse.NewGroupEventHub()

	var producer events.KafkaProducer
	if cfg.Kafka.Enabled {
		topics := topicsByStream(cfg.Kafka.Topics)
		names := make([]string, 0, len(topics))
		for _, name := range topics {
			names = append(names, name)
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, names, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer kafkaProducer.Close()
		producer = kafkaProducer

		// Every instance relays the event streams to its own SSE clients.
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, names, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		go consumer.Start(ctx, func(evt models.DomainEvent) { hub.Broadcast(evt) })
		log.Info("KAFKA", "Kafka producer and consumer initialized")
	} else {
		log.Info("KAFKA", "Kafka disabled, events are broadcast in-process")
	}
	dispatcher := events.NewDispatcher(producer, topicsByStream(cfg.Kafka.Topics), hub, m, log)

	users := &authdb.DB{Bun: bunDB}
	restaurants := &restdb.DB{Bun: bunDB}
	periods := &votingdb.DB{Bun: bunDB}
	locks := lock.NewRedis(redisClient, cfg.Redis.JoinLock, cfg.Redis.LockRetry, log)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	revoked := auth.NewRedisRevocationList(redisClient)
	var verifier auth.TokenVerifier = jwtManager
	if cfg.Auth.OIDCIssuer != "" {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer, users)
		if err != nil {
			log.Error("AUTH", fmt.Sprintf("OIDC disabled: %v", err))
		} else {
			verifier = auth.ChainVerifier{jwtManager, oidcVerifier}
			log.Info("AUTH", "OIDC tokens accepted from "+cfg.Auth.OIDCIssuer)
		}
	}
	authn := &auth.Authenticator{Verifier: verifier, Users: users, Revoked: revoked, Logger: log}
	authService := auth.NewService(users, jwtManager, revoked, cfg.Auth.AllowedEmailDomain, log)

	restaurantService := restaurant.NewService(restaurants, log)
	votingService := voting.NewService(periods, restaurants, cfg.Voting, dispatcher, m, log)

	groupService := group.NewService(&groupdb.DB{Bun: bunDB}, restaurants, locks, nil, dispatcher, log)
	groupService.Expiry = locks
	groupService.Metrics = m
	groupService.Invites = qr.NewInviteCodec(cfg.QR.Secret, cfg.QR.Size)
	groupService.MinDuration = cfg.Groups.MinDurationMinutes
	groupService.MaxDuration = cfg.Groups.MaxDurationMinutes

	paymentStore := storage.NewBunStore(bunDB)
	paymentService := payment.NewService(paymentStore, groupService, dispatcher, log)
	groupService.Payments = paymentService

	cartService := cart.NewService(&cartdb.DB{Bun: bunDB}, groupService, restaurants, dispatcher, log)
	orderService := order.NewService(&orderdb.DB{Bun: bunDB}, periods, restaurants, votingService, dispatcher, log)
	adminService := admin.NewService(admin.NewDB(bunDB), users, periods, votingService, orderService, log)
	talabatService := talabat.NewService(talabat.NewClient(cfg.Talabat, log), restaurantService, orderService, cfg, log)
	log.Info("TALABAT", fmt.Sprintf("Talabat integration %s", talabatService.Status().Status))

	log.Info("HTTP", "Setting up router and middleware")
	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst, log)
	authLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimit.AuthPerMinute), cfg.RateLimit.AuthPerMinute, log)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestLogger(log, m))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.SecurityHeaders)

	r.Handle("/metrics", m.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := paymentStore.HealthCheck(r.Context()); err != nil {
			utils.WriteError(w, utils.Unavailable("DATABASE_UNAVAILABLE", "Database is not reachable"))
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "OK", map[string]interface{}{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)

		authHandler := &auth_api.Handler{Service: authService, Logger: log}
		authHandler.RegisterPublicRoutes(r, authLimiter.Middleware)

		r.Group(func(r chi.Router) {
			r.Use(authn.Optional)

			(&group_api.Handler{
				Service: groupService,
				Logger:  log,
				SSE:     group_api.NewSSEHandler(groupService, hub, log),
			}).RegisterRoutes(r)
			(&cart_api.Handler{Service: cartService, Logger: log}).RegisterRoutes(r)
			(&payment_api.Handler{Service: paymentService, Logger: log}).RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireUser)
				authHandler.RegisterRoutes(r)
				(&restaurant_api.Handler{Service: restaurantService, Logger: log}).RegisterRoutes(r)
				(&voting_api.Handler{Service: votingService, Logger: log}).RegisterRoutes(r)
				order_api.NewHandler(orderService, log).RegisterRoutes(r)
				admin_api.NewHandler(adminService, log).RegisterRoutes(r)
				talabat_api.NewHandler(talabatService, log).RegisterRoutes(r)
			})
		})
	})
	log.Info("ROUTER", "API routes registered under /api")

	lock.SubscribeGroupExpiry(ctx, redisClient, log, func(groupID string) {
		if _, err := groupService.CloseIfExpired(ctx, groupID); err != nil {
			log.Error("GROUP", fmt.Sprintf("Failed to close expired group %s: %v", groupID, err))
		}
	})

	sweep := sweeper.New(groupService, votingService, cfg.Groups.SweepInterval, log)
	go sweep.Run(ctx)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup()
				authLimiter.Cleanup()
			}
		}
	}()

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", "🚀 Lunch service running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	stopBackground()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Lunch service shutdown complete")
	}
}
