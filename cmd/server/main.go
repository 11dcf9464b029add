package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/livingcool/kisanmind-sub000/internal/catalog"
	"github.com/livingcool/kisanmind-sub000/internal/config"
	"github.com/livingcool/kisanmind-sub000/internal/guide"
	"github.com/livingcool/kisanmind-sub000/internal/handler"
	"github.com/livingcool/kisanmind-sub000/internal/session"
	"github.com/livingcool/kisanmind-sub000/internal/speech"
	"github.com/livingcool/kisanmind-sub000/internal/vision"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Println("Configuration loaded successfully")
	log.Printf("Server will listen on port: %s", cfg.Port)
	log.Printf("Session idle timeout: %v, cleanup interval: %v", cfg.SessionIdleTimeout, cfg.CleanupInterval)

	// Capture step catalog: built-in unless overridden by file
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("Failed to load catalog from %s: %v", cfg.CatalogPath, err)
		}
		log.Printf("Loaded %d capture steps from %s", cat.Len(), cfg.CatalogPath)
	}

	// Backing-service clients
	speechClient := speech.NewClient(cfg.SpeechBaseURL, cfg.SpeechAPIKey, cat, cfg.SpeechTimeout, cfg.HealthTimeout)
	qualityClient := vision.NewClient(cfg.QualityBaseURL, cfg.QualityAPIKey, cfg.QualityTimeout, cfg.QualityResetTimeout, cfg.HealthTimeout)

	// Session store and orchestrator
	store := session.NewStore(cfg.SessionIdleTimeout, nil)
	orch := guide.New(cat, store, speechClient, qualityClient, cfg.DefaultLanguage)

	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	// Create router
	r := gin.Default()

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Create handler and routes
	h := handler.NewHandler(orch)
	h.Register(r)

	// Background session cleanup
	h.StartSessionCleanup(cfg.CleanupInterval)
	defer h.StopSessionCleanup()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Starting KisanMind guidance server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
