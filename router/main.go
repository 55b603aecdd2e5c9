package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/examlens/examlens-api/database"
	"github.com/examlens/examlens-api/handlers"
	auth_handlers "github.com/examlens/examlens-api/handlers/auth"
	evaluation_handlers "github.com/examlens/examlens-api/handlers/evaluation"
	"github.com/examlens/examlens-api/services"
	"github.com/examlens/examlens-api/services/onspace"
	"github.com/examlens/examlens-api/services/spaces"
	"github.com/examlens/examlens-api/utils"
	"github.com/examlens/examlens-api/utils/auth"
	"github.com/examlens/examlens-api/utils/cache"
	"github.com/examlens/examlens-api/utils/middleware"
)

func SetupRoutes(app *fiber.App, store database.Storage) {
	// Get JWT secret from environment
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "examlens-api"
	}

	jwtConfig := auth.JWTConfig{
		Secret:        jwtSecret,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis backs both brute force protection and evaluation job state
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	bruteForceProtection := middleware.NewBruteForceProtection(redisCache)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)

	// Evaluation pipeline collaborators
	aiClient := onspace.NewClient(onspace.Config{
		BaseURL: os.Getenv("ONSPACE_AI_BASE_URL"),
		APIKey:  os.Getenv("ONSPACE_AI_API_KEY"),
		Model:   os.Getenv("ONSPACE_AI_MODEL"),
	})
	if !aiClient.Configured() {
		log.Println("Warning: AI grading service is not configured, evaluations will be rejected")
	}

	storageClient, err := spaces.NewClientFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	ocrClient := services.NewOCRClient()
	progressTracker := services.NewProgressTracker(redisCache)
	evaluationService := services.NewEvaluationService(db, aiClient, ocrClient, storageClient, progressTracker)
	evaluationHandler := evaluation_handlers.NewEvaluationHandler(db, evaluationService, progressTracker, aiClient)

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, store))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	authGroup.Get("/profile", authMiddleware.Required(), authHandler.GetProfile)
	authGroup.Put("/profile", authMiddleware.Required(), authHandler.UpdateProfile)

	// Evaluation routes (protected)
	evaluations := api.Group("/evaluations", authMiddleware.Required())
	evaluations.Get("/subjects", evaluationHandler.GetSubjects)
	evaluations.Post("/", evaluationHandler.CreateEvaluation)
	evaluations.Post("/stream", evaluationHandler.CreateEvaluationStream)
	evaluations.Get("/", evaluationHandler.ListEvaluations)
	evaluations.Get("/:id", evaluationHandler.GetEvaluation)

	// Evaluation job routes (protected)
	jobs := api.Group("/evaluation-jobs", authMiddleware.Required())
	jobs.Get("/active", evaluationHandler.GetMyActiveJob)
	jobs.Get("/:job_id", evaluationHandler.GetJobStatus)
	jobs.Post("/:job_id/cancel", evaluationHandler.CancelJob)
}
