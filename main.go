package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dlow/portfolio-dashboard/config"
	"github.com/dlow/portfolio-dashboard/internal/cache"
	"github.com/dlow/portfolio-dashboard/internal/handlers"
	"github.com/dlow/portfolio-dashboard/internal/middleware"
	"github.com/dlow/portfolio-dashboard/internal/services"
	"github.com/dlow/portfolio-dashboard/internal/yahoo"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize market-data client
	var yfClient *yahoo.Client
	if cfg.YFBaseURL != "" {
		yfClient = yahoo.NewClientWithBaseURL(cfg.YFBaseURL)
	} else {
		yfClient = yahoo.NewClient()
	}

	// Initialize cache
	memCache := cache.NewMemoryCache(time.Duration(cfg.QuoteTTLSeconds) * time.Second)

	// Initialize services
	pricingSvc := services.NewPricingService(memCache, yfClient)
	converter := services.NewCurrencyConverter(pricingSvc, cfg.SGDPerUSD)
	sessionMgr := services.NewSessionManager(pricingSvc, converter)

	// Initialize handlers
	portfolioHandler := handlers.NewPortfolioHandler(sessionMgr)

	// Setup Gin router
	router := gin.Default()

	// Apply global middleware
	router.Use(middleware.ResolveUser())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Analysis session routes
	api := router.Group("/api")
	api.POST("/upload", portfolioHandler.Upload)
	api.GET("/loading-status", portfolioHandler.LoadingStatus)
	api.GET("/summary", portfolioHandler.Summary)
	api.GET("/holdings", portfolioHandler.Holdings)
	api.GET("/holding-detail/:symbol", portfolioHandler.HoldingDetail)
	api.GET("/portfolio-value/:currency", portfolioHandler.PortfolioValue)
	api.GET("/splits-analysis", portfolioHandler.SplitsAnalysis)
	api.POST("/refresh-prices", portfolioHandler.RefreshPrices)
	api.DELETE("/session", portfolioHandler.ClearSession)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 5 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	fmt.Println("Server exited")
}
