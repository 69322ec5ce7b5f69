package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sengupta-aenesh/paktav3-sub002/docs/swagger"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/api"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab/broadcast"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/config"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/db"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/events"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/tasks"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"

	"github.com/joho/godotenv"
)

// 🚀 Main function
// @Summary Main function
// @Description Main function
// @title Pakta Collaboration API
// @version 1.0
// @description Sharing, comments, presence and change-feed API for the Pakta workspace
// @host localhost:8080
// @BasePath /
// @schemes https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {

	logger := logger.New("pakta")

	// check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		logger.Info("No .env file found, skipping environment variable loading")
	} else {
		logger.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := db.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		err := db.Close()
		if err != nil {
			log.Fatalf("Failed to close database connection: %v", err)
		}
	}()

	db_instance := db.GetDB()

	// Shared Redis client for broadcast, presence and rate limiting
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis client: %v", err)
		}
	}()

	bus := broadcast.NewRedisBroadcaster(redisClient)
	presenceStore := broadcast.NewPresenceStore(redisClient, cfg.Collab.PresenceTTL)

	// Collaboration services needed outside the request path
	accessService := collab.NewAccessService(db_instance)
	changeFeed := collab.NewChangeFeed(db_instance, bus)
	shareService := collab.NewShareService(db_instance, accessService, changeFeed)

	// Task client for notification fan-out
	taskClient := tasks.NewTaskClient(cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Warn("Failed to close task client: %v", err)
		}
	}()

	registerNotificationListeners(taskClient, logger)

	// Initialize task handlers
	taskHandler := tasks.NewTaskHandler(db_instance, shareService, presenceStore, cfg.Collab.PresenceTTL)

	// Initialize task server
	taskServer := tasks.NewServer(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		taskHandler,
		logger,
	)

	// Create a context for task server
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	// Start task server
	go func() {
		if err := taskServer.Start(serverCtx); err != nil {
			logger.Error("Task server error", err)
		}
	}()

	// Initialize task scheduler
	taskScheduler := tasks.NewScheduler(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		logger,
	)

	// Start task scheduler
	go func() {
		if err := taskScheduler.Start(); err != nil {
			logger.Error("Task scheduler error", err)
		}
	}()

	// Initialize API server
	apiServer := api.NewServer(cfg, db_instance, bus, presenceStore, redisClient)
	go func() {
		logger.Success("API server started")

		// Swagger documentation
		swagger.SwaggerInfo.Title = "Pakta Collaboration API"
		swagger.SwaggerInfo.Description = "Sharing, comments, presence and change-feed API for the Pakta workspace"
		swagger.SwaggerInfo.Version = "1.0"
		swagger.SwaggerInfo.Host = cfg.Server.PublicURL
		swagger.SwaggerInfo.Schemes = []string{"https"}

		if err := apiServer.Start(); err != nil {
			logger.Error("API server error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop task scheduler
	taskScheduler.Stop()

	// Stop task server
	serverCancel()
	taskServer.Shutdown()

	// Shutdown API server
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown API server", err)
	}

	logger.Info("Servers shutdown gracefully")
}

// registerNotificationListeners bridges entity lifecycle events onto the
// notification queue. Listener failures only cost the notification, never
// the write that emitted the event.
func registerNotificationListeners(taskClient *tasks.TaskClient, logger *logger.Logger) {
	events.On("shares.created", func(data interface{}) {
		share, ok := data.(*models.Share)
		if !ok {
			return
		}
		if err := taskClient.EnqueueNotify(tasks.NotifyPayload{
			Event:        "share.created",
			ResourceType: string(share.ResourceType),
			ResourceID:   share.ResourceID,
			ActorID:      share.SharedBy,
			TargetUserID: share.SharedWith,
			Detail:       string(share.Permission),
		}); err != nil {
			logger.Warn("Failed to enqueue share notification: %v", err)
		}
	})

	events.On("access_requests.created", func(data interface{}) {
		request, ok := data.(*models.AccessRequest)
		if !ok {
			return
		}
		if err := taskClient.EnqueueNotify(tasks.NotifyPayload{
			Event:        "access_request.created",
			ResourceType: string(request.ResourceType),
			ResourceID:   request.ResourceID,
			ActorID:      request.RequestedBy,
			TargetUserID: request.ResourceOwner,
			Detail:       string(request.RequestedPermission),
		}); err != nil {
			logger.Warn("Failed to enqueue access request notification: %v", err)
		}
	})

	events.On("comments.created", func(data interface{}) {
		comment, ok := data.(*models.Comment)
		if !ok {
			return
		}
		if err := taskClient.EnqueueNotify(tasks.NotifyPayload{
			Event:        "comment.created",
			ResourceType: string(comment.ResourceType),
			ResourceID:   comment.ResourceID,
			ActorID:      comment.UserID,
		}); err != nil {
			logger.Warn("Failed to enqueue comment notification: %v", err)
		}
	})
}
