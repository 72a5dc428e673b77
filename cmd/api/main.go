package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/slinet/gallerysync/internal/config"
	"github.com/slinet/gallerysync/internal/handler"
	"github.com/slinet/gallerysync/internal/logger"
	"github.com/slinet/gallerysync/internal/middleware"
	"github.com/slinet/gallerysync/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, "api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("configuration loaded",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.API.Port),
	)

	ctx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.NewGateway(ctx, &cfg.Database, log)
	cancelInit()
	if err != nil {
		log.Fatal("failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	if !cfg.API.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.GinZap(log, "/health", "/api/thumb/"))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.API.CORS, cfg.API.CORSOrigin))

	galleryHandler := handler.NewGalleryHandler(st, log)
	listHandler := handler.NewListHandler(st, log)
	categoryHandler := handler.NewCategoryHandler(st, log)
	statsHandler := handler.NewStatsHandler(st, log)
	thumbHandler := handler.NewThumbFileHandler(cfg.Site.ThumbDir, log)

	// /metrics is served by cmd/engine, the process that actually owns the
	// runner/rate-limiter/thumb-worker instruments (spec.md §6 Observability).
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/gallery/:gid/:token", galleryHandler.GetGallery)
		api.GET("/list", listHandler.GetList)
		api.GET("/category/:category", categoryHandler.GetByCategory)
		api.GET("/stats/thumb-queue", statsHandler.GetThumbQueueStats)
		api.GET("/thumb/:gid", thumbHandler.GetThumb)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: router,
	}

	go func() {
		log.Info("starting HTTP server", zap.Int("port", cfg.API.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
