package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"saathi/config"
	"saathi/database"
	"saathi/interfaces"
	"saathi/middleware"
	"saathi/repositories"
	"saathi/routes"
	"saathi/services"
	"saathi/websocket"
	"saathi/workers"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize logger
	setupLogger(cfg)

	// Initialize metrics
	services.RegisterMetrics()
	prometheus.MustRegister(middleware.Collectors()...)

	// Initialize storage
	store, tracker, redisClient := setupStorage(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}
	if cfg.SeedDemoData && !cfg.IsProduction() {
		if err := database.RunSeeders(store); err != nil {
			logrus.Error("Failed to seed demo data: ", err)
		}
	}

	// Initialize workers
	var tasks []workers.CleanupTask
	if sweeper, ok := tracker.(interface {
		Sweep(ctx context.Context) (int, error)
	}); ok {
		tasks = append(tasks, workers.CleanupTask{
			Name:        "location_trail_sweep",
			Description: "Drop location trails idle past their TTL",
			Interval:    10 * time.Minute,
			Function:    sweeper.Sweep,
		})
	}
	cleanup := workers.NewCleanupWorker(time.Minute, tasks...)
	cleanup.Start()

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// Initialize outbound gateways
	fcmClient, err := config.InitFirebaseMessaging(context.Background(), cfg)
	if err != nil {
		logrus.Error("Push notifications disabled: ", err)
	}
	geocoder := services.NewNominatimGeocoder(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.GeocodeTimeout, cfg.GeocodeCacheTTL)
	sms := services.NewTwilioSMSGateway(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
	email := services.NewSendGridEmailGateway(cfg.SendGridAPIKey, cfg.SendGridFromName, cfg.SendGridFromEmail)

	// Setup routes
	router, svc := routes.SetupRoutes(routes.Dependencies{
		Config:   cfg,
		Logger:   logrus.StandardLogger(),
		Store:    store,
		Tracker:  tracker,
		Redis:    redisClient,
		Hub:      hub,
		Push:     services.NewFCMGateway(fcmClient),
		SMS:      sms,
		Email:    email,
		Geocoder: geocoder,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in goroutine
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":         cfg.Port,
			"store_driver": cfg.StoreDriver,
		}).Info("Saathi SOS server starting")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Error("Server forced to shutdown: ", err)
	}

	// Let in-flight broadcasts and contact alerts finish before closing
	// the store they write to.
	drained := make(chan struct{})
	go func() {
		svc.Engine.Wait()
		svc.Alerter.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		logrus.Warn("Background work still running at shutdown deadline")
	}

	hub.Shutdown()
	cleanup.Stop()

	if cfg.StoreDriver == config.StoreDriverMongo {
		if err := database.Disconnect(); err != nil {
			logrus.Error("Failed to disconnect from MongoDB: ", err)
		}
	}

	logrus.Info("Server shutdown complete")
}

// setupStorage picks the store driver. The memory driver needs no
// external services and keeps location trails in process.
func setupStorage(cfg *config.Config) (interfaces.Store, interfaces.LocationTracker, *redis.Client) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logrus.Warn("Using in-memory store; data is lost on restart")
		return repositories.NewMemoryStore(),
			services.NewMemoryLocationTracker(cfg.LocationHistoryTTL, cfg.LocationHistoryMax),
			nil

	case config.StoreDriverMongo:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			logrus.Fatal("Failed to connect to database: ", err)
		}
		if err := database.RunMigrations(db); err != nil {
			logrus.Fatal("Failed to run migrations: ", err)
		}

		redisClient := config.InitRedis(cfg)
		return repositories.NewMongoStore(db),
			services.NewRedisLocationTracker(redisClient, cfg.LocationHistoryTTL, cfg.LocationHistoryMax),
			redisClient

	default:
		logrus.Fatalf("Unknown STORE_DRIVER %q", cfg.StoreDriver)
		return nil, nil, nil
	}
}

func setupLogger(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Environment == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}
