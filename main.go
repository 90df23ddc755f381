package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/prodbudget/quote-api/config"
	"github.com/prodbudget/quote-api/handlers"
	"github.com/prodbudget/quote-api/middleware"
	"github.com/prodbudget/quote-api/migration"
	"github.com/prodbudget/quote-api/routes"
	"github.com/prodbudget/quote-api/storage"
	"github.com/prodbudget/quote-api/syncqueue"
	"github.com/prodbudget/quote-api/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	db, err := config.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	log.Println("✅ Database connected successfully")

	if err := config.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	if os.Getenv("RUN_LEGACY_BUDGET_MIGRATION") == "true" {
		if err := migration.MigrateAllBudgets(context.Background(), db); err != nil {
			log.Fatal("Legacy budget migration failed:", err)
		}
	}

	defaults, err := config.DefaultSettings()
	if err != nil {
		log.Fatal("Failed to load default settings:", err)
	}

	queuePath := os.Getenv("SYNC_QUEUE_PATH")
	if queuePath == "" {
		queuePath = "sync-queue.db"
	}
	queue, err := syncqueue.Open(queuePath)
	if err != nil {
		log.Fatal("Failed to open sync queue:", err)
	}
	defer queue.Close()

	unsubscribe := queue.Subscribe(func(ev syncqueue.Event) {
		switch ev.Type {
		case syncqueue.EventFlushed:
			if ev.Pending == 0 {
				utils.LogSyncAction("all pending saves flushed", ev.QuoteID, ev.Pending)
			}
		case syncqueue.EventFlushFailed:
			utils.LogSyncAction("flush failed, will retry", ev.QuoteID, ev.Pending)
		}
	})
	defer unsubscribe()

	pgRepo := storage.NewPostgresBudgetRepository(db)
	repo := storage.NewQueuedRepository(pgRepo, queue)

	wsHandler := handlers.NewWSHandler()

	router := gin.Default()

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}

	corsConfig := cors.Config{
		AllowOrigins:     []string{frontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           86400,
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.RateLimiter())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/ws/quotes/:id", wsHandler.HandleWS)

		protected := v1.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			routes.SetupQuoteRoutes(protected, db, repo, defaults, wsHandler)
			routes.SetupSyncRoutes(protected, queue)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{Addr: ":" + port, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("🚀 Server starting on port %s...", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// Replay saves that queued up while the backend was unreachable.
	g.Go(func() error {
		queue.Run(ctx, 30*time.Second, repo.Apply)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Server error:", err)
	}
	log.Println("👋 Server stopped")
}
