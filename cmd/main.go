package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/context-engine/auth"
	"github.com/context-engine/config"
	"github.com/context-engine/handlers"
	"github.com/context-engine/mcp"
	"github.com/context-engine/models"
	"github.com/context-engine/services"
	"github.com/context-engine/services/embedding"
	"github.com/context-engine/services/extraction"
	"github.com/context-engine/services/generation"
	"github.com/context-engine/services/impl"
	"github.com/context-engine/services/manifest"
	"github.com/context-engine/services/reconciler"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	zlog.Logger = logger

	db, err := initDB(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(
		&models.Organization{},
		&models.ApiKey{},
		&models.Component{},
		&models.EmbeddingChunk{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	validator := auth.NewValidator(db, cfg.Auth.APIKeyHashSecret, cfg.Auth.PlatformToken)

	embedder, err := embedding.NewClient(cfg.Embedding, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize embedding client")
	}

	var generator generation.Generator
	if cfg.LLM.APIKey == "" {
		logger.Warn().Msg("no LLM API key configured; the generate phase will be unavailable")
	} else {
		generator, err = generation.NewGenerator(cfg.LLM, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize generation provider")
		}
	}

	workspace, err := extraction.NewWorkspace(cfg.Workspace.Dir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare extraction workspace")
	}
	if err := workspace.Sweep(); err != nil {
		logger.Warn().Err(err).Msg("failed to sweep stale extraction leases")
	}
	engine := extraction.NewEngine(extraction.NewTypedPropsExtractor(), workspace, logger)
	builder := manifest.NewBuilder(cfg.Manifest.DefaultImportPackage)

	componentService := impl.NewComponentService(db)
	organizationService := impl.NewOrganizationService(db, cfg.Auth.APIKeyHashSecret)
	indexService := impl.NewIndexService(db, embedder, logger)
	pipelineService := impl.NewPipelineService(db, componentService, engine, generator, builder, logger)

	cacheService, err := impl.NewCacheService(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("cache unavailable; search results will not be cached")
		cacheService, _ = impl.NewCacheService(nil)
	}

	var searchService services.SearchService = impl.NewSearchService(db, embedder, logger)
	if cfg.Redis.EnableSearchCache {
		ttl := time.Duration(cfg.Redis.SearchCacheTTL) * time.Second
		searchService = impl.NewCachedSearchService(searchService, cacheService, ttl, logger)
	}

	rec := reconciler.New(indexService, cfg.Reconciler, logger)

	sessionStore := mcp.NewStore(time.Duration(cfg.MCP.SessionIdleTimeout)*time.Second, logger)
	serverFactory := mcp.NewServerFactory(componentService, searchService, indexService, serviceVersion, logger)

	componentHandlers := handlers.NewComponentHandlers(componentService, indexService, cacheService)
	pipelineHandlers := handlers.NewPipelineHandlers(pipelineService, cacheService)
	searchHandlers := handlers.NewSearchHandlers(searchService)
	reconciliationHandlers := handlers.NewReconciliationHandlers(indexService, cacheService)
	adminHandlers := handlers.NewAdminHandlers(organizationService)
	gateway := handlers.NewMCPGateway(sessionStore, serverFactory, validator, cfg.MCP.CORSMode, cfg.CORS.AllowedOrigins, logger)

	api := &apiHandlers{
		components:     componentHandlers,
		pipeline:       pipelineHandlers,
		search:         searchHandlers,
		reconciliation: reconciliationHandlers,
		admin:          adminHandlers,
		gateway:        gateway,
	}
	router := setupRouter(cfg, validator, api, logger)

	if cfg.Reconciler.Enabled {
		rec.Start()
	}
	sessionStore.Start()

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.GetServerAddress()).
			Str("version", serviceVersion).
			Str("environment", cfg.Environment).
			Bool("semantic_search", embedder != nil).
			Bool("reconciler", cfg.Reconciler.Enabled).
			Msg("context engine listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}

	if cfg.Reconciler.Enabled {
		rec.Stop()
	}
	sessionStore.Stop()

	logger.Info().Msg("server exited")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.With().Timestamp().Str("service", "context-engine").Logger()
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{
		// Surfaces unique violations as gorm.ErrDuplicatedKey so the
		// services can map them to conflicts.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.MaxLifetime) * time.Second)

	return db, nil
}

// apiHandlers bundles the HTTP surface so setupRouter stays readable.
type apiHandlers struct {
	components     *handlers.ComponentHandlers
	pipeline       *handlers.PipelineHandlers
	search         *handlers.SearchHandlers
	reconciliation *handlers.ReconciliationHandlers
	admin          *handlers.AdminHandlers
	gateway        *handlers.MCPGateway
}

func setupRouter(cfg *config.Config, validator *auth.Validator, api *apiHandlers, logger zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// The MCP gateway writes its own CORS headers because the streamable
	// transport bypasses gin's response handling; everything else goes
	// through the standard middleware.
	corsMiddleware := cors.New(buildCORSConfig(cfg.CORS.AllowedOrigins))
	router.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/mcp") {
			c.Next()
			return
		}
		corsMiddleware(c)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "context-engine",
			"version": serviceVersion,
		})
	})

	router.Any("/mcp", api.gateway.Handle)

	v1 := router.Group("/api/v1")

	admin := v1.Group("/admin", auth.RequireAuth(validator), auth.RequirePlatform())
	{
		admin.POST("/organizations", api.admin.CreateOrganization)
		admin.GET("/organizations", api.admin.ListOrganizations)
		admin.GET("/organizations/:orgId", api.admin.GetOrganization)
		admin.PATCH("/organizations/:orgId", api.admin.UpdateOrganization)
		admin.DELETE("/organizations/:orgId", api.admin.DeleteOrganization)
		admin.POST("/organizations/:orgId/api-keys", api.admin.CreateApiKey)
		admin.GET("/organizations/:orgId/api-keys", api.admin.ListApiKeys)
		admin.DELETE("/organizations/:orgId/api-keys/:keyId", api.admin.RevokeApiKey)
	}

	org := v1.Group("/organizations/:orgId", auth.RequireAuth(validator), auth.RequireOrgAccess())

	components := org.Group("/components")
	{
		components.GET("", auth.RequireScope(models.ScopeComponentRead), api.components.ListComponents)
		components.GET("/:id", auth.RequireScope(models.ScopeComponentRead), api.components.GetComponent)
		components.GET("/slug/:slug", auth.RequireScope(models.ScopeComponentRead), api.components.GetComponentBySlug)
		components.POST("", auth.RequireScope(models.ScopeComponentWrite), api.components.UpsertComponent)
		components.PATCH("/:id", auth.RequireScope(models.ScopeComponentWrite), api.components.UpdateComponent)
		components.DELETE("/:id", auth.RequireScope(models.ScopeComponentDelete), api.components.DeleteComponent)
		components.POST("/:id/index", auth.RequireScope(models.ScopeEmbeddingManage), api.components.IndexComponent)
	}

	processing := org.Group("/processing", auth.RequireScope(models.ScopeComponentWrite))
	{
		processing.POST("/extract", api.pipeline.Extract)
		processing.POST("/generate", api.pipeline.Generate)
		processing.POST("/build", api.pipeline.Build)
	}

	reconciliation := org.Group("/reconciliation", auth.RequireScope(models.ScopeEmbeddingManage))
	{
		reconciliation.GET("/status", api.reconciliation.Status)
		reconciliation.POST("/process-pending", api.reconciliation.ProcessPending)
		reconciliation.POST("/retry-failed", api.reconciliation.RetryFailed)
		reconciliation.POST("/force-reindex/:componentId", api.reconciliation.ForceReindex)
		reconciliation.POST("/migrate-embeddings", api.reconciliation.MigrateEmbeddings)
	}

	org.POST("/search", auth.RequireScope(models.ScopeComponentRead), api.search.Search)
	org.POST("/search/similar", auth.RequireScope(models.ScopeComponentRead), api.search.Similar)
	org.GET("/stats", auth.RequireScope(models.ScopeComponentRead), api.reconciliation.Stats)

	return router
}

func buildCORSConfig(origins []string) cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}

	wildcard := false
	for _, origin := range origins {
		if origin == "*" {
			wildcard = true
		}
	}
	if wildcard {
		// Credentials cannot be combined with a wildcard origin.
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	return corsConfig
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
