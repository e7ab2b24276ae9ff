package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloudsync/config"
	"cloudsync/database"
	"cloudsync/handlers"
	"cloudsync/logger"
	"cloudsync/middleware"
	"cloudsync/models"
	"cloudsync/repositories"
	"cloudsync/services"
	"cloudsync/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("starting cloudsync service")

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	logger.SetLevel(cfg.Log.Level)

	if err := database.InitMySQL(&cfg.Database); err != nil {
		log.Fatalf("init mysql failed: %v", err)
	}

	database.DB.AutoMigrate(
		&models.User{},
		&models.HierarchyEntry{},
		&models.File{},
		&models.FileContent{},
		&models.HierarchyHistory{},
		&models.FileContentHistory{},
		&models.UserHistory{},
	)
	log.Println("database migration completed")

	if err := database.InitRedis(&cfg.Redis); err != nil {
		log.Fatalf("init redis failed: %v", err)
	}

	ctx := context.Background()
	store, err := storage.NewS3Storage(ctx, &cfg.Storage)
	if err != nil {
		log.Fatalf("init object storage failed: %v", err)
	}

	repoContainer := repositories.NewGormRepositories(database.DB, database.RedisClient).BuildContainer()
	serviceContainer := services.NewContainer(&repoContainer, store, cfg)
	handlers.SetServices(serviceContainer)

	cleanupInterval := time.Duration(cfg.Sync.CleanupInterval) * time.Second
	serviceContainer.Cleanup.Start(ctx, cleanupInterval)
	log.Println("trash cleanup worker started")

	r := gin.Default()
	r.Use(middleware.RequestLogger())
	setupRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("server listening on http://%s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}

func setupRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/health", handlers.HealthCheck)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.GET("/users/me", handlers.GetProfile)
		protected.PUT("/users/me", handlers.UpdateProfile)

		protected.GET("/hierarchies/tree", handlers.GetTree)
		protected.GET("/hierarchies/trash", handlers.GetTrashTree)
		protected.GET("/hierarchies/lookup", handlers.GetHierarchyByPath)
		protected.GET("/hierarchies/:id", handlers.GetHierarchy)
		protected.POST("/hierarchies", handlers.CreateHierarchy)
		protected.POST("/hierarchies/batch", handlers.BatchImportHierarchies)
		protected.PATCH("/hierarchies/move", handlers.MoveHierarchy)
		protected.DELETE("/hierarchies/:id", handlers.DeleteHierarchy)
		protected.POST("/hierarchies/:id/recover", handlers.RecoverHierarchy)

		protected.POST("/files/:id/upload", handlers.StartUpload)
		protected.POST("/files/:id/upload/complete", handlers.CompleteUpload)
		protected.POST("/files/:id/upload/abort", handlers.AbortUpload)
		protected.POST("/files/:id/conflicts", handlers.DetectConflicts)
		protected.POST("/files/:id/conflicts/resolve", handlers.ResolveConflict)
		protected.GET("/files/:id/download", handlers.DownloadFile)

		protected.GET("/sync/changes", handlers.PollChanges)
	}
}
