package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ridelink/internal/config"
	"ridelink/internal/handlers"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/repositories/memory"
	"ridelink/internal/repositories/mongodb"
	"ridelink/internal/services"
	"ridelink/pkg/cache"
	"ridelink/pkg/database"
	"ridelink/pkg/events"
	"ridelink/pkg/logger"
	"ridelink/pkg/push"
	"ridelink/pkg/sms"
	"ridelink/pkg/websocket"
	"ridelink/routes"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type repositories struct {
	rides         interfaces.RideRepository
	bookings      interfaces.BookingRepository
	notifications interfaces.NotificationRepository
	users         interfaces.UserRepository
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
		Output:  "stdout",
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.WithError(err).Fatal("Server exited with error")
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]handlers.Pinger{}

	// Redis backs the unread-count cache and the cross-instance event bus
	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(&cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return err
		}
		defer rc.Close()
		redisCache = rc
		healthChecks["redis"] = rc
	}

	repos, closeStore, err := openStore(ctx, cfg, redisCache, appLogger, healthChecks)
	if err != nil {
		return err
	}
	defer closeStore()

	var broker websocket.Broker
	if redisCache != nil {
		broker = websocket.NewRedisBroker(redisCache, cfg.Redis.EventChannel)
	}
	hub := websocket.NewHub(appLogger, broker)
	if redisCache != nil {
		hub.UsePresence(websocket.NewPresence(redisCache, uuid.NewString(), cfg.Redis.PresenceTTL))
	}

	var lifecycle events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled {
		lifecycle = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.WriteTimeout)
	}
	defer lifecycle.Close()

	pushProvider, err := newPushProvider(ctx, cfg.Push)
	if err != nil {
		return err
	}
	smsProvider, err := newSMSProvider(ctx, cfg.SMS)
	if err != nil {
		return err
	}

	smsFrom := cfg.SMS.DefaultFrom
	if cfg.SMS.Provider == "twilio" && cfg.SMS.Twilio.FromNumber != "" {
		smsFrom = cfg.SMS.Twilio.FromNumber
	}

	// Services
	notificationService := services.NewNotificationService(
		repos.notifications, repos.users, hub, pushProvider, smsProvider, smsFrom, cfg.Notification, appLogger,
	)
	bookingService := services.NewBookingService(repos.bookings, repos.rides, notificationService, hub, lifecycle, appLogger)
	rideService := services.NewRideService(repos.rides, repos.bookings, notificationService, hub, lifecycle, appLogger)
	roomAccess := services.NewRoomAccess(repos.rides, repos.bookings)
	relayService := services.NewRelayService(repos.rides, roomAccess, hub, appLogger)

	// Handlers
	socketHandler := handlers.NewSocketHandler(hub, roomAccess, relayService, notificationService, appLogger)
	wsHandler := websocket.NewHandler(hub, socketHandler, websocket.HandlerConfig{
		ReadBufferSize:    cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:   cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout:  cfg.WebSocket.HandshakeTimeout,
		EnableCompression: cfg.WebSocket.EnableCompression,
		AllowedOrigins:    cfg.WebSocket.AllowedOrigins,
		Client: websocket.ClientConfig{
			WriteWait:      cfg.WebSocket.WriteWait,
			PongWait:       cfg.WebSocket.PongTimeout,
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
			SendBufferSize: cfg.WebSocket.SendBufferSize,
		},
	}, appLogger)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(&routes.Handlers{
		Booking:      handlers.NewBookingHandler(bookingService),
		Ride:         handlers.NewRideHandler(rideService, relayService),
		Notification: handlers.NewNotificationHandler(notificationService),
		Health:       handlers.NewHealthHandler(healthChecks, hub),
		WebSocket:    wsHandler,
	}, routes.Options{
		JWTSecret:      cfg.Security.JWTSecret,
		AllowedOrigins: cfg.Security.CORSAllowedOrigins,
		WebSocketPath:  cfg.WebSocket.Path,
	}, appLogger)

	if len(cfg.Security.TrustedProxies) > 0 {
		if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
			return fmt.Errorf("invalid trusted proxies: %w", err)
		}
	}

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:     router,
		ReadTimeout: cfg.App.RequestTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		appLogger.WithField("addr", server.Addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		hub.Shutdown()
		notificationService.Drain()
		return err
	})

	return g.Wait()
}

// openStore returns the repositories for the configured STORE_DRIVER and a
// func releasing the connection.
func openStore(ctx context.Context, cfg *config.Config, redisCache *cache.RedisCache, appLogger *logger.Logger, healthChecks map[string]handlers.Pinger) (*repositories, func(), error) {
	if cfg.App.StoreDriver == "memory" {
		appLogger.Warn("Using in-memory store, data is lost on restart")
		return &repositories{
			rides:         memory.NewRideRepository(),
			bookings:      memory.NewBookingRepository(),
			notifications: memory.NewNotificationRepository(),
			users:         memory.NewUserRepository(),
		}, func() {}, nil
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	healthChecks["mongodb"] = db

	if cfg.Database.RunMigrations {
		if err := database.NewMigrator(db.Database, appLogger).Up(ctx); err != nil {
			_ = db.Close(context.Background())
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	var unreadCache interfaces.CacheService
	if redisCache != nil {
		unreadCache = redisCache
	}

	closeFn := func() {
		if err := db.Close(context.Background()); err != nil {
			appLogger.WithError(err).Warn("Failed to close mongodb connection")
		}
	}

	return &repositories{
		rides:         mongodb.NewRideRepository(db.Database),
		bookings:      mongodb.NewBookingRepository(db.Database),
		notifications: mongodb.NewNotificationRepository(db.Database, unreadCache, cfg.Notification.UnreadCountTTL),
		users:         mongodb.NewUserRepository(db.Database),
	}, closeFn, nil
}

// newPushProvider returns nil when push is disabled. PUSH_PROVIDER=both routes
// iOS tokens through APNs and everything else through FCM.
func newPushProvider(ctx context.Context, cfg *config.PushConfig) (push.PushProvider, error) {
	if cfg.Provider == "none" || cfg.Provider == "" {
		return nil, nil
	}

	router := &push.Router{}
	if cfg.Provider == "fcm" || cfg.Provider == "both" {
		fcm, err := push.NewFCMProvider(ctx, cfg.FCM.ProjectID, cfg.FCM.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize FCM: %w", err)
		}
		router.FCM = fcm
	}
	if cfg.Provider == "apns" || cfg.Provider == "both" {
		apns, err := push.NewAPNSProvider(cfg.APNS.KeyFile, cfg.APNS.KeyID, cfg.APNS.TeamID, cfg.APNS.BundleID, cfg.APNS.Production)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize APNs: %w", err)
		}
		router.APNS = apns
	}

	return router, nil
}

// newSMSProvider returns nil when SMS is disabled.
func newSMSProvider(ctx context.Context, cfg *config.SMSConfig) (sms.SMSProvider, error) {
	switch cfg.Provider {
	case "twilio":
		return sms.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber), nil
	case "aws":
		provider, err := sms.NewAWSSNSProvider(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SNS: %w", err)
		}
		return provider, nil
	default:
		return nil, nil
	}
}
