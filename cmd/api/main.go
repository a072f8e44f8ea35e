package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evms-backend/internal/appointments"
	"evms-backend/internal/auth"
	"evms-backend/internal/cache"
	"evms-backend/internal/config"
	"evms-backend/internal/conversations"
	"evms-backend/internal/db"
	"evms-backend/internal/events"
	"evms-backend/internal/lock"
	"evms-backend/internal/middleware"
	"evms-backend/internal/notifications"
	"evms-backend/internal/server"
	"evms-backend/internal/servicepackages"
	"evms-backend/internal/storage"
	"evms-backend/internal/technicians"
	"evms-backend/internal/users"
	"evms-backend/internal/validation"
	"evms-backend/internal/vehicles"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected", slog.String("db", cfg.MongoDB))
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rateWindow := time.Duration(cfg.RateLimitWindowSec) * time.Second
	var (
		cacheStore     cache.Cache        = cache.NewNoop()
		locker         lock.Locker        = lock.NewLocal()
		authLimiter    middleware.Limiter = middleware.NewRateLimiter(cfg.RateLimitAuth, rateWindow)
		bookingLimiter middleware.Limiter = middleware.NewRateLimiter(cfg.RateLimitBooking, rateWindow)
	)
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisCache.Close()
		logger.Info("redis connected")

		cacheStore = redisCache
		locker = lock.NewRedis(redisCache.Client(), "evms:lock:")
		authLimiter = middleware.NewRedisRateLimiter(redisCache.Client(), "evms:rl:auth:", cfg.RateLimitAuth, rateWindow)
		bookingLimiter = middleware.NewRedisRateLimiter(redisCache.Client(), "evms:rl:booking:", cfg.RateLimitBooking, rateWindow)
	}

	var publisher events.Publisher = events.NewNoop()
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, events.NewSaramaConfig(cfg.KafkaClientID))
		if err != nil {
			logger.Error("kafka connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer kafka.Close()
		publisher = kafka
		logger.Info("kafka publisher enabled", slog.String("topic", cfg.KafkaTopic))
	}

	var files storage.ObjectStore = storage.DisabledStore{}
	if cfg.S3Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			logger.Error("s3 configuration failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		files = s3Store
		logger.Info("certificate storage enabled", slog.String("bucket", cfg.S3Bucket))
	}

	var (
		appointmentMailer  appointments.Notifier
		conversationMailer conversations.Notifier
	)
	if mailer := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox); mailer != nil {
		appointmentMailer = mailer
		conversationMailer = mailer
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
	} else {
		logger.Info("brevo mailer disabled")
	}

	var tokens *auth.Manager
	if cfg.JWTSecret != "" {
		tokens = &auth.Manager{
			Secret:    []byte(cfg.JWTSecret),
			AccessTTL: time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			Issuer:    cfg.JWTIssuer,
		}
	} else {
		logger.Warn("JWT_SECRET not set, authenticated routes will answer 503")
	}

	val := validation.New()

	userService := users.NewService(users.NewRepository(cols.Users), tokens, cfg.Timezone)
	packageService := servicepackages.NewService(servicepackages.NewRepository(cols.ServicePackages), cfg.Timezone)
	appointmentRepo := appointments.NewRepository(cols.Appointments)
	vehicleService := vehicles.NewService(vehicles.NewRepository(cols.Vehicles), userService, appointmentRepo, cfg.Timezone)
	technicianService := technicians.NewService(technicians.NewRepository(cols.Technicians, cols.Certificates), userService, files, cfg.Timezone)
	appointmentService := appointments.NewService(appointmentRepo, appointments.Deps{
		Users:    userService,
		Vehicles: vehicleService,
		Packages: packageService,
		Locker:   locker,
		LockTTL:  time.Duration(cfg.AssignLockSeconds) * time.Second,
		Events:   publisher,
		Notifier: appointmentMailer,
		Location: cfg.Timezone,
		Log:      logger,
	})

	hub := conversations.NewHub(cfg.FrontendOrigins, logger)
	conversationService := conversations.NewService(conversations.NewRepository(cols.Conversations, cols.Messages), conversations.Deps{
		Users:    userService,
		Events:   publisher,
		Notifier: conversationMailer,
		Hub:      hub,
		Log:      logger,
	})

	router := server.NewRouter(server.Handlers{
		Users:           users.NewHandler(userService, val, logger),
		Technicians:     technicians.NewHandler(technicianService, val, logger),
		Vehicles:        vehicles.NewHandler(vehicleService, val, logger),
		ServicePackages: servicepackages.NewHandler(packageService, cacheStore, time.Duration(cfg.CacheTTLSeconds)*time.Second, val, logger),
		Appointments:    appointments.NewHandler(appointmentService, val, logger),
		Conversations:   conversations.NewHandler(conversationService, hub, val, logger),
	}, server.Options{
		Tokens:          tokens,
		FrontendOrigins: cfg.FrontendOrigins,
		AuthLimiter:     authLimiter,
		BookingLimiter:  bookingLimiter,
		Log:             logger,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
}
