package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/knoverse/backend/internal/config"
	"github.com/knoverse/backend/internal/database"
	"github.com/knoverse/backend/internal/handlers"
	"github.com/knoverse/backend/internal/inference"
	"github.com/knoverse/backend/internal/middleware"
	"github.com/knoverse/backend/internal/services"
	"github.com/knoverse/backend/internal/storage"
	"github.com/knoverse/backend/pkg/logger"
	"github.com/knoverse/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	inferenceClient := inference.NewClient(cfg.Inference.BaseURL)
	if !inferenceClient.Configured() {
		logger.Warn("inference_not_configured", map[string]interface{}{
			"hint": "set PY_SERVER_URL to enable chat and file indexing",
		})
	}

	analyticsService := services.NewAnalyticsService(db, storageClient)
	analyticsService.StartExporter(time.Hour)

	authHandler := handlers.NewAuthHandler(db)
	usersHandler := handlers.NewUsersHandler(db)
	teamsHandler := handlers.NewTeamsHandler(db, storageClient, inferenceClient)
	filesHandler := handlers.NewFilesHandler(db, storageClient, inferenceClient)
	chatHandler := handlers.NewChatHandler(db, inferenceClient, analyticsService)
	analyticsHandler := handlers.NewAnalyticsHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/version", handlers.GetVersion)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.UpdatePassword)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.AdminOnly)
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Post("/", usersHandler.Create)
	userRoutes.Post("/:id/reset-password", usersHandler.ResetPassword)
	userRoutes.Put("/:id", usersHandler.Update)
	userRoutes.Delete("/:id", usersHandler.Delete)

	api.Get("/teams", authMiddleware.RequireAuth, teamsHandler.List)
	api.Get("/me/teams", authMiddleware.RequireAuth, teamsHandler.MyTeams)

	teamRoutes := api.Group("/teams", authMiddleware.RequireAuth, middleware.AdminOnly)
	teamRoutes.Get("/count", teamsHandler.Count)
	teamRoutes.Post("/", teamsHandler.Create)
	teamRoutes.Delete("/:id", teamsHandler.Delete)
	teamRoutes.Get("/:id/members", teamsHandler.ListMembers)
	teamRoutes.Post("/:id/members", teamsHandler.AddMember)
	teamRoutes.Delete("/:id/members/:userId", teamsHandler.RemoveMember)

	chatRoutes := api.Group("/chat", authMiddleware.RequireAuth)
	chatRoutes.Post("/messages", chatHandler.SendMessage)
	chatRoutes.Get("/sessions", chatHandler.ListSessions)
	chatRoutes.Get("/history", chatHandler.History)

	fileRoutes := api.Group("/files", authMiddleware.RequireAuth, middleware.AdminOnly)
	fileRoutes.Post("/upload", filesHandler.Upload)
	fileRoutes.Get("/", filesHandler.List)
	fileRoutes.Delete("/:id", filesHandler.Delete)

	analyticsRoutes := api.Group("/analytics", authMiddleware.RequireAuth, middleware.AdminOnly)
	analyticsRoutes.Get("/usage", analyticsHandler.Usage)
	analyticsRoutes.Get("/activity", analyticsHandler.Activity)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":       cfg.Server.Port,
		"address":    listenAddr,
		"body_limit": "100MB",
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
