package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/n-crespo/theopendissent/backend/internal/router"
	"github.com/n-crespo/theopendissent/backend/pkg/config"
	"github.com/n-crespo/theopendissent/backend/pkg/firebase"

	"github.com/n-crespo/theopendissent/backend/internal/metrics"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	// Initialize Firebase
	ctx := context.Background()
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	// Metrics listener on its own port
	metricsServer, err := metrics.NewServer(":" + cfg.MetricsPort)
	if err != nil {
		log.Fatalf("Failed to start metrics server: %v", err)
	}
	defer metricsServer.Shutdown(ctx)

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and dependencies
	pipeline, err := router.SetupRoutes(e, cfg, db.Postgres, db.Mongo, firebaseApp.AuthClient)
	if err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}
	defer pipeline.Stop()

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
