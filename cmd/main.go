package main

import (
	"context"
	"fmt"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/linkcut-io/linkcut/internal/config"
	"github.com/linkcut-io/linkcut/internal/database"
	"github.com/linkcut-io/linkcut/internal/handler"
	"github.com/linkcut-io/linkcut/internal/service"
	"github.com/linkcut-io/linkcut/internal/store"
	"github.com/linkcut-io/linkcut/internal/telemetry"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", err)
	}

	// Приемник телеметрии: внешний, fire-and-forget. Без endpoint работаем
	// с заглушкой.
	var sink telemetry.Sink
	if cfg.Telemetry.Endpoint != "" {
		sink = telemetry.NewHTTPSink(cfg.Telemetry.Endpoint, time.Duration(cfg.Telemetry.TimeoutSeconds)*time.Second)
		log.Printf("Telemetry sink enabled: %s", cfg.Telemetry.Endpoint)
	} else {
		sink = telemetry.NewNopSink()
	}
	defer sink.Close()

	recordStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open record store: %v", err)
	}
	defer recordStore.Close()

	log.Printf("Record store ready (backend: %s)", cfg.Store.Backend)

	urlService := service.NewURLService(recordStore, telemetry.NewLogger(sink, "service"), service.Options{
		BaseURL:                cfg.GetBaseURL(),
		ShortCodeLength:        cfg.App.ShortCodeLength,
		MaxGenerateAttempts:    cfg.App.MaxGenerateAttempts,
		DefaultValidityMinutes: cfg.App.DefaultValidityMinutes,
	})
	urlHandler := handler.NewURLHandler(urlService, telemetry.NewLogger(sink, "handler"))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Middleware
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.GetAllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		statusCode := http.StatusOK

		if err := storeHealth(c.Request.Context(), recordStore); err != nil {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, gin.H{
			"status":  status,
			"backend": cfg.Store.Backend,
		})
	})

	// API routes
	apiV1 := router.Group("/api")
	{
		apiV1.POST("/urls", urlHandler.CreateURL)
		apiV1.GET("/urls", urlHandler.ListURLs)
		apiV1.GET("/urls/:shortCode", urlHandler.GetURL)
	}

	router.GET("/:shortCode", urlHandler.RedirectURL)

	// HTTP Server
	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server starting on %s", cfg.GetServerAddress())
		log.Printf("API endpoints: POST/GET /api/urls")
		log.Printf("Redirect endpoint: GET /{shortCode}")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server gracefully stopped")
}

// openStore выбирает бэкенд хранилища по конфигурации.
func openStore(cfg *config.Config) (store.RecordStore, error) {
	switch cfg.Store.Backend {
	case "memory", "":
		return store.NewMemoryStore(), nil

	case "postgres":
		db, err := database.Connect(
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.DBName)
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(db)

	case "redis":
		return store.NewRedisStore(store.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
		})

	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
	}
}

func storeHealth(ctx context.Context, s store.RecordStore) error {
	if hc, ok := s.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}

	_, err := s.GetAll(ctx)
	return err
}
