package main

import (
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/recruitflow/recruitflow/internal/auth"
	"github.com/recruitflow/recruitflow/internal/config"
	"github.com/recruitflow/recruitflow/internal/credentials"
	"github.com/recruitflow/recruitflow/internal/database"
	"github.com/recruitflow/recruitflow/internal/dispatch"
	"github.com/recruitflow/recruitflow/internal/handlers"
	"github.com/recruitflow/recruitflow/internal/models"
	"github.com/recruitflow/recruitflow/internal/pipeline"
	"github.com/recruitflow/recruitflow/internal/provider"
	"github.com/recruitflow/recruitflow/internal/repository"
	"github.com/recruitflow/recruitflow/internal/resume"
	"github.com/recruitflow/recruitflow/internal/scoring"
	"github.com/recruitflow/recruitflow/internal/services"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"golang.org/x/oauth2"
)

func main() {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Configuration error: ", err)
	}

	// 2. Database Connection + Migrations
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	jobRepo := repository.NewGormJobRepo(db)
	credRepo := repository.NewGormCredentialRepo(db)
	appRepo := repository.NewGormApplicationRepo(db)
	userRepo := repository.NewGormUserRepo(db)

	// 3. Credential Store + Provider Adapters
	oauthConfigs := map[string]*oauth2.Config{
		models.ProviderGmail:     cfg.GoogleOAuth(),
		models.ProviderMicrosoft: cfg.MicrosoftOAuth(),
	}
	credStore := credentials.NewStore(credRepo, credentials.NewOAuth2Refresher(oauthConfigs))

	registry := provider.NewRegistry()
	registry.Register(models.ProviderGmail, provider.NewGmailProvider(credStore))
	registry.Register(models.ProviderMicrosoft, provider.NewGraphProvider(credStore, nil))

	// 4. Scoring Client (soft-disabled without an API key)
	var model llms.Model
	if cfg.GeminiAPIKey != "" {
		model, err = googleai.New(context.Background(),
			googleai.WithAPIKey(cfg.GeminiAPIKey),
			googleai.WithDefaultModel(cfg.GeminiModel),
		)
		if err != nil {
			log.Fatal("Failed to create Gemini client: ", err)
		}
		log.Println("✅ Gemini scoring client connected.")
	} else {
		log.Println("⚠️  GEMINI_API_KEY not set; resume scoring disabled.")
	}
	scorer := scoring.NewLLMScorer(model)

	// 5. Core Services
	ingest := pipeline.New(jobRepo, appRepo, credStore, registry, resume.NewDocumentExtractor(), scorer)
	dispatcher := dispatch.New(appRepo, userRepo, credStore, registry)
	jobService := services.NewJobService(jobRepo)
	appService := services.NewApplicationService(appRepo)
	oauthManager := auth.NewManager(oauthConfigs, credStore)

	// 6. Handlers
	jobHandler := handlers.NewJobHandler(jobService)
	appHandler := handlers.NewApplicationHandler(appService, ingest, dispatcher)
	authHandler := handlers.NewAuthHandler(oauthManager, credStore)

	// 7. Router & CORS
	r := gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-User-ID"}
	r.Use(cors.New(corsConfig))

	api := r.Group("/api/v1")
	{
		api.GET("/health", handlers.HealthCheck)

		api.GET("/auth/:provider/url", authHandler.ConnectURL)
		api.GET("/auth/callback", authHandler.Callback)
		api.GET("/auth/accounts", authHandler.ListAccounts)

		api.POST("/jobs", jobHandler.CreateJob)
		api.GET("/jobs", jobHandler.ListJobs)
		api.GET("/jobs/:id", jobHandler.GetJob)
		api.PUT("/jobs/:id", jobHandler.UpdateJob)
		api.DELETE("/jobs/:id", jobHandler.DeleteJob)

		api.POST("/applications/fetch", appHandler.FetchEmails)
		api.GET("/applications", appHandler.ListApplications)
		api.GET("/applications/:id", appHandler.GetApplication)
		api.GET("/applications/:id/attachments/:attachmentId", appHandler.DownloadAttachment)
		api.PATCH("/applications/:id/shortlist", appHandler.ToggleShortlist)
		api.POST("/applications/send-shortlisted", appHandler.SendShortlisted)
		api.DELETE("/applications/:id", appHandler.DeleteApplication)
		api.POST("/applications/delete", appHandler.DeleteApplications)
	}

	log.Printf("🚀 Server starting on port %s...", cfg.HTTPPort)
	if err := r.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("Server failed to start: ", err)
	}
}
