package router

import (
	"log"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/n-crespo/theopendissent/backend/internal/authgate"
	"github.com/n-crespo/theopendissent/backend/internal/handlers"
	"github.com/n-crespo/theopendissent/backend/internal/interactions"
	"github.com/n-crespo/theopendissent/backend/internal/middleware"
	"github.com/n-crespo/theopendissent/backend/internal/repositories"
	"github.com/n-crespo/theopendissent/backend/internal/store"
	"github.com/n-crespo/theopendissent/backend/internal/triggers"
	"github.com/n-crespo/theopendissent/backend/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes boots the realtime tree, the trigger pipeline, and all
// application routes, injecting dependencies.
func SetupRoutes(e *echo.Echo, cfg *config.Config, pgdb *gorm.DB, mgClient *mongo.Client, firebaseAuthClient *auth.Client) (*triggers.Pipeline, error) {
	// The write journal lives in PostgreSQL; the tree is rebuilt from it at
	// boot.
	if err := pgdb.AutoMigrate(&store.WriteRecord{}); err != nil {
		log.Fatalf("Failed to auto migrate write journal: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed.")

	treeStore := store.New(store.WithJournal(store.NewGormJournal(pgdb)))
	if err := treeStore.Load(); err != nil {
		return nil, err
	}
	log.Println("Realtime tree loaded from journal.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewTreeUserRepository(treeStore)
	postRepo := repositories.NewTreePostRepository(treeStore)
	interactionRepo := repositories.NewTreeInteractionRepository(treeStore)
	notificationRepo := repositories.NewTreeNotificationRepository(treeStore)
	feedRepo := repositories.NewMongoFeedRepository(mgClient.Database("opendissent"))

	// --- Trigger pipeline: denormalized counters, mirrors, cascades ---
	pipeline := triggers.NewPipeline(treeStore)
	triggers.RegisterAll(pipeline, treeStore, feedRepo)
	pipeline.Start(4)

	// Optimistic stance writes: applied in memory immediately, debounced
	// into the tree through the interaction repository.
	interactionStore := interactions.NewStore(interactionRepo)

	// --- Unprotected routes ---
	gate := authgate.New(cfg.AllowedEmails, cfg.EmailDomain)
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo, firebaseAuthClient, gate)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	shareHandler := handlers.NewShareHandler(feedRepo, cfg.AppBaseURL)
	shareHandler.RegisterShareRoutes(e)
	log.Println("Share preview routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// Post, reply and interaction routes
	postHandler := handlers.NewPostHandler(postRepo, interactionRepo, interactionStore)
	postHandler.RegisterPostRoutes(api)
	log.Println("Post routes configured.")

	// Feed routes
	feedHandler := handlers.NewFeedHandler(feedRepo)
	feedHandler.RegisterFeedRoutes(api)
	log.Println("Feed routes configured.")

	// Notification routes
	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	// WebSocket streams
	streamHandler := handlers.NewStreamHandler(postRepo, interactionRepo, userRepo, notificationRepo, interactionStore)
	streamHandler.RegisterStreamRoutes(api)
	log.Println("Stream routes configured.")

	log.Println("All routes configured.")
	return pipeline, nil
}
