package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "logistics-backend/config"
	"logistics-backend/middleware"
	"logistics-backend/token"
	"logistics-backend/utils"

	// Vehicles
	vehicle_controllers "logistics-backend/vehicles/controllers"
	vehicle_repositories "logistics-backend/vehicles/repositories"
	vehicle_routes "logistics-backend/vehicles/routes"
	vehicle_services "logistics-backend/vehicles/services"

	// WebSocket
	"logistics-backend/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	batchStatusCacheTTL = 24 * time.Hour
	expiredFileTTL      = 7 * 24 * time.Hour
	staleBatchGrace     = time.Hour
)

func main() {
	// Initialize Zap logger
	config.InitLogger()
	defer config.Logger.Sync()

	// Load environment variables; values set by the container take precedence
	if err := config.LoadEnv(".env"); err != nil {
		config.Logger.Warn("No .env file loaded, using process environment", zap.Error(err))
	}

	if err := utils.InitializeDateLocation(config.GetEnvDefault("DB_TIMEZONE", "UTC")); err != nil {
		config.Logger.Fatal("Failed to initialize date location", zap.Error(err))
	}

	ctx := context.Background()
	port := config.GetEnvDefault("PORT", "8080")
	uploadDir := config.GetEnvDefault("UPLOAD_DIR", "./uploads/vehicle_bulk_uploads")
	reportDir := config.GetEnvDefault("REPORT_DIR", "./public/files/vehicle_bulk_upload_reports")
	chunkSize := config.GetEnvInt("BULK_UPLOAD_CHUNK_SIZE", vehicle_services.DefaultChunkSize)
	workers := config.GetEnvInt("BULK_UPLOAD_WORKERS", 4)
	taskTimeout := time.Duration(config.GetEnvInt("BULK_UPLOAD_TIMEOUT_HOURS", int(vehicle_services.DefaultBulkUploadTimeout/time.Hour))) * time.Hour
	frontendOrigin := config.GetEnvDefault("FRONTEND_ORIGIN", "http://localhost:5173")

	// Initialize database and redis
	db := config.ConfigureDatabase()
	redisClient := config.InitRedisServer(ctx)

	asynqRedisOpt := config.AsynqRedisOpt()
	asynqClient := asynq.NewClient(asynqRedisOpt)
	defer asynqClient.Close()

	tokenMaker, err := token.NewPasetoMaker(config.GetEnv("TOKEN_SYMMETRIC_KEY"))
	if err != nil {
		config.Logger.Fatal("Cannot create token maker", zap.Error(err))
	}

	// ------ WebSocket Hub for bulk upload progress ------
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Repositories
	vehicleRepo := vehicle_repositories.NewVehicleRepository(db)
	bulkUploadRepo := vehicle_repositories.NewBulkUploadRepository(db)
	statusCache := vehicle_repositories.NewBatchStatusCache(redisClient, batchStatusCacheTTL)

	// Services
	validator := vehicle_services.NewValidator(vehicleRepo)
	reporter := vehicle_services.NewReportGenerator(reportDir)
	creator := vehicle_services.NewCreator(vehicleRepo, bulkUploadRepo, chunkSize)
	orchestrator := vehicle_services.NewBulkUploadOrchestrator(bulkUploadRepo, validator, reporter, creator, wsHub)

	// ------ Background worker for bulk uploads ------
	worker := asynq.NewServer(asynqRedisOpt, asynq.Config{
		Concurrency: workers,
		Queues:      map[string]int{vehicle_services.BulkUploadQueue: 1},
		Logger:      config.Logger.Sugar(),
	})
	mux := asynq.NewServeMux()
	mux.Handle(vehicle_services.TypeVehicleBulkUpload, vehicle_services.NewBulkUploadTaskHandler(orchestrator))
	if err := worker.Start(mux); err != nil {
		config.Logger.Fatal("Failed to start bulk upload worker", zap.Error(err))
	}
	defer worker.Shutdown()

	app := fiber.New(fiber.Config{
		BodyLimit: vehicle_routes.UploadBodyLimit,
	})

	// Apply CORS middleware from middleware package
	middleware.InitCors(app, frontendOrigin)

	appCtx := &middleware.AppContext{
		PasetoMaker:   tokenMaker,
		Ctx:           ctx,
		RedisClient:   redisClient,
		CookieDomain:  config.GetEnv("COOKIE_DOMAIN"),
		SecureCookies: config.GetEnv("COOKIE_SECURE") == "true",
	}

	// Routes
	vehicleController := &vehicle_controllers.VehicleController{
		BatchRepo:   bulkUploadRepo,
		StatusCache: statusCache,
		Uploads:     utils.NewLocalFileStorage(uploadDir),
		Reports:     utils.NewLocalFileStorage(reportDir),
		Enqueuer:    asynqClient,
		TaskTimeout: taskTimeout,
	}
	vehicle_routes.VehicleRouterInit(app, appCtx, vehicleController)

	// ------ WebSocket Route for progress notifications ------
	wsHandler := websocket.NewWsHandler(wsHub, tokenMaker)
	app.Get("/ws", wsHandler.HandleWebSocket)
	config.Logger.Info("WebSocket endpoint registered at /ws")

	// Background cleanup of expired uploads and error reports
	sweeper := vehicle_services.NewStaleBatchSweeper(bulkUploadRepo, wsHub, taskTimeout+staleBatchGrace)
	cleanup, err := utils.RunScheduledCleanup([]string{uploadDir, reportDir}, expiredFileTTL, utils.CleanupJob{
		Name: "stale_bulk_upload_batches",
		Run: func(ctx context.Context) error {
			n, err := sweeper.Sweep(ctx)
			if n > 0 {
				config.Logger.Info("Stale bulk upload batches closed", zap.Int("count", n))
			}
			return err
		},
	})
	if err != nil {
		config.Logger.Fatal("Failed to schedule cleanup", zap.Error(err))
	}
	defer cleanup.Stop()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		config.Logger.Info("Shutting down server")
		if err := app.Shutdown(); err != nil {
			config.Logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	// Start the application
	config.Logger.Info("Server starting", zap.String("port", port), zap.Int("workers", workers), zap.Int("chunkSize", chunkSize))
	if err := app.Listen(":" + port); err != nil {
		config.Logger.Error("Server failed", zap.String("port", port), zap.Error(err))
	}
}
