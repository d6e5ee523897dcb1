package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dimitrije/appsync-api/internal/cache"
	"github.com/dimitrije/appsync-api/internal/config"
	"github.com/dimitrije/appsync-api/internal/handlers"
	authmw "github.com/dimitrije/appsync-api/internal/middleware"
	"github.com/dimitrije/appsync-api/internal/services"
	"github.com/dimitrije/appsync-api/internal/storage"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	var pollCache cache.Cache
	if len(cfg.CacheAddrs) > 0 {
		pollCache = cache.NewMemcached(cfg.CacheAddrs...)
	}

	backend, err := storage.Open(ctx, cfg.StorageBackend, cfg, pollCache)
	if err != nil {
		log.Fatalf("Failed to open storage backend %q: %v", cfg.StorageBackend, err)
	}

	sessionService := services.NewSessionService(cfg.JWTSecret, cfg.SessionExpiry)
	verifier := services.NewAssertionVerifier(cfg.JWTSecret)

	authHandler := handlers.NewAuthHandler(cfg, verifier, sessionService, backend)
	syncHandler := handlers.NewSyncHandler(backend, pollCache, cfg.RetryAfter)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	app.Post("/verify", authHandler.Verify)
	app.Get("/__heartbeat__", syncHandler.Heartbeat)

	collections := app.Group("/collections")
	collections.Use(authmw.Auth(sessionService))
	collections.Get("/:user/:collection", syncHandler.GetCollection)
	collections.Post("/:user/:collection", syncHandler.PostCollection)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Printf("Server starting on %s", addr)
		if err := app.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
}
