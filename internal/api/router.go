// Package api wires together all HTTP routes for the ChemSphere backend.
//
// Route grouping:
//   - /health, /ready and /version are public probes.
//   - /api/v1/auth/signup, /login and the Google sign-in pair are public but
//     sit behind the stricter auth rate limiter.
//   - Everything else under /api/v1 requires a session token, and each route
//     is gated on one action from the central role policy.
package api

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/MiRedo238/Chemsphere-sub000/internal/api/admin"
	"github.com/MiRedo238/Chemsphere-sub000/internal/api/inventory"
	"github.com/MiRedo238/Chemsphere-sub000/internal/audit"
	"github.com/MiRedo238/Chemsphere-sub000/internal/auth"
	"github.com/MiRedo238/Chemsphere-sub000/internal/auth/oidc"
	"github.com/MiRedo238/Chemsphere-sub000/internal/cache"
	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/repositories"
	"github.com/MiRedo238/Chemsphere-sub000/internal/jobs"
	"github.com/MiRedo238/Chemsphere-sub000/internal/middleware"
	"github.com/MiRedo238/Chemsphere-sub000/internal/pubchem"
	"github.com/MiRedo238/Chemsphere-sub000/internal/safego"
	"github.com/MiRedo238/Chemsphere-sub000/internal/services"
	"github.com/MiRedo238/Chemsphere-sub000/internal/storage"

	// Import storage backends to register them
	_ "github.com/MiRedo238/Chemsphere-sub000/internal/storage/azure"
	_ "github.com/MiRedo238/Chemsphere-sub000/internal/storage/gcs"
	_ "github.com/MiRedo238/Chemsphere-sub000/internal/storage/local"
	_ "github.com/MiRedo238/Chemsphere-sub000/internal/storage/s3"
)

// Version is reported by /version and the version subcommand.
const Version = "1.0.0"

// recentAuditLimit bounds the audit trail snapshot kept in the cache.
const recentAuditLimit = 500

// BackgroundServices holds the long-running pieces started by NewRouter.
type BackgroundServices struct {
	notifier     *jobs.ExpirationNotifier
	rateLimiters []middleware.Limiter
	shippers     *audit.MultiShipper
	redis        redis.UniversalClient
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.notifier != nil {
		bg.notifier.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.shippers != nil {
		if err := bg.shippers.Close(); err != nil {
			slog.Warn("failed to close audit shippers", "error", err)
		}
	}
	if bg.redis != nil {
		if err := bg.redis.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewExpirationNotifier builds the digest job over the given database. The
// server starts it in the background; the check-expiration command runs it once.
func NewExpirationNotifier(cfg *config.Config, sqlDB *sql.DB) *jobs.ExpirationNotifier {
	x := db.Wrap(sqlDB)
	var mailer jobs.Mailer
	if m := jobs.NewSMTPMailer(cfg.Notifications.SMTP); m != nil {
		mailer = m
	}
	return jobs.NewExpirationNotifier(
		repositories.NewChemicalRepository(x),
		repositories.NewUserRepository(x),
		mailer,
		&cfg.Notifications,
	)
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, sqlDB *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	bg := &BackgroundServices{}
	ctx := context.Background()

	// Initialize storage backend for export archives
	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	log.Printf("Initialized storage backend: %s", cfg.Storage.DefaultBackend)

	// Initialize repositories
	x := db.Wrap(sqlDB)
	userRepo := repositories.NewUserRepository(x)
	chemicalRepo := repositories.NewChemicalRepository(x)
	equipmentRepo := repositories.NewEquipmentRepository(x)
	usageLogRepo := repositories.NewUsageLogRepository(x)
	auditRepo := repositories.NewAuditRepository(x)

	// Redis is shared by the cache and the distributed rate limiter
	var redisBackend *cache.RedisBackend
	if cfg.Cache.Backend == "redis" || (cfg.Security.RateLimiting.Enabled && cfg.Security.RateLimiting.Backend == "redis") {
		redisBackend, err = cache.NewRedisBackend(ctx, cfg.Cache.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		bg.redis = redisBackend.Client()
		log.Printf("Connected to redis at %s", cfg.Cache.Redis.Addr)
	}

	var backend cache.Backend = cache.NewMemoryBackend()
	if cfg.Cache.Backend == "redis" {
		backend = redisBackend
	}
	store := cache.NewStore(backend, cache.Loaders{
		Chemicals: chemicalRepo.List,
		Equipment: equipmentRepo.List,
		UsageLogs: usageLogRepo.ListUsageLogs,
		AuditLogs: func(ctx context.Context) ([]*models.AuditLog, error) {
			return auditRepo.ListRecent(ctx, recentAuditLimit)
		},
	}, cfg.Cache.TTL)
	log.Printf("Initialized %s cache (ttl %s)", cfg.Cache.Backend, cfg.Cache.TTL)

	// Audit shippers forward committed audit rows and HTTP audit records
	shippers, err := audit.NewMultiShipper(cfg.Audit.Shippers)
	if err != nil {
		log.Fatalf("Failed to initialize audit shippers: %v", err)
	}
	bg.shippers = shippers

	// Initialize services
	inventoryService := services.NewInventoryService(chemicalRepo, equipmentRepo, auditRepo, store, storageBackend, store, shippers)
	usageLogService := services.NewUsageLogService(usageLogRepo, chemicalRepo, equipmentRepo, store, shippers)
	userService := services.NewUserService(userRepo, auditRepo, cfg.Auth, store, shippers)

	// A disabled client answers lookups with pubchem.ErrDisabled
	lookup := pubchem.NewClient(cfg.PubChem)

	var google admin.GoogleSignIn
	if cfg.Auth.Google.Enabled {
		provider, err := oidc.NewProvider(ctx, cfg.Auth.Google)
		if err != nil {
			log.Fatalf("Failed to initialize Google sign-in: %v", err)
		}
		google = provider
		log.Println("Google sign-in enabled")
	}

	// Initialize and start the expiration notifier
	notifier := NewExpirationNotifier(cfg, sqlDB)
	safego.Go("expiration-notifier", func() { notifier.Start(ctx) })
	bg.notifier = notifier

	// Rate limiters
	var generalLimiter, authLimiter middleware.Limiter
	if cfg.Security.RateLimiting.Enabled {
		general := middleware.DefaultRateLimitConfig()
		if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
			general.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
		}
		if cfg.Security.RateLimiting.Burst > 0 {
			general.BurstSize = cfg.Security.RateLimiting.Burst
		}
		if cfg.Security.RateLimiting.Backend == "redis" {
			prefix := cfg.Cache.Redis.KeyPrefix + "ratelimit:"
			generalLimiter = middleware.NewRedisRateLimiter(bg.redis, general, prefix+"api:")
			authLimiter = middleware.NewRedisRateLimiter(bg.redis, middleware.AuthRateLimitConfig(), prefix+"auth:")
		} else {
			generalLimiter = middleware.NewRateLimiter(general)
			authLimiter = middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
		}
		bg.rateLimiters = append(bg.rateLimiters, generalLimiter, authLimiter)
		log.Printf("Rate limiting enabled (%s backend)", cfg.Security.RateLimiting.Backend)
	}
	limit := func(l middleware.Limiter) gin.HandlerFunc {
		if l == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimitMiddleware(l)
	}

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORS))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(sqlDB))

	// Readiness check endpoint (includes storage backend probe)
	router.GET("/ready", readinessHandler(sqlDB, storageBackend))

	// API version
	router.GET("/version", versionHandler())

	authHandlers := admin.NewAuthHandlers(cfg, userService, google)
	userHandlers := admin.NewUserHandlers(userService)
	auditHandlers := admin.NewAuditHandlers(auditRepo)
	maintenanceHandlers := admin.NewMaintenanceHandlers(store, notifier)
	inv := inventory.NewHandlers(store, inventoryService, usageLogService, lookup, cfg.Inventory)

	apiV1 := router.Group("/api/v1")

	// Sign-in endpoints (public, stricter rate limit)
	authGroup := apiV1.Group("/auth")
	authGroup.Use(limit(authLimiter))
	{
		authGroup.POST("/signup", authHandlers.SignupHandler())
		authGroup.POST("/login", authHandlers.LoginHandler())
		authGroup.GET("/google/login", authHandlers.GoogleLoginHandler())
		authGroup.GET("/google/callback", authHandlers.GoogleCallbackHandler())
	}

	// Authenticated endpoints
	authenticatedGroup := apiV1.Group("")
	authenticatedGroup.Use(limit(generalLimiter))
	authenticatedGroup.Use(middleware.AuthMiddleware(userRepo))
	authenticatedGroup.Use(middleware.AuditMiddleware(shippers, cfg.Audit))
	{
		can := middleware.RequirePermission

		authenticatedGroup.POST("/auth/refresh", authHandlers.RefreshHandler())
		authenticatedGroup.GET("/auth/me", authHandlers.MeHandler())

		authenticatedGroup.GET("/dashboard", can(auth.ActionDashboardRead), inv.Dashboard)

		chemicals := authenticatedGroup.Group("/chemicals")
		{
			chemicals.GET("", can(auth.ActionChemicalsRead), inv.ListChemicals)
			chemicals.GET("/lookup", can(auth.ActionChemicalsLookup), inv.LookupChemical)
			chemicals.GET("/export", can(auth.ActionInventoryExport), inv.Export(services.EntityChemicals))
			chemicals.POST("/import", can(auth.ActionInventoryImport), inv.Import(services.EntityChemicals))
			chemicals.GET("/:id", can(auth.ActionChemicalsRead), inv.GetChemical)
			chemicals.POST("", can(auth.ActionChemicalsWrite), inv.CreateChemical)
			chemicals.PUT("/:id", can(auth.ActionChemicalsWrite), inv.UpdateChemical)
			chemicals.DELETE("/:id", can(auth.ActionChemicalsDelete), inv.DeleteChemical)
		}

		equipment := authenticatedGroup.Group("/equipment")
		{
			equipment.GET("", can(auth.ActionEquipmentRead), inv.ListEquipment)
			equipment.GET("/export", can(auth.ActionInventoryExport), inv.Export(services.EntityEquipment))
			equipment.POST("/import", can(auth.ActionInventoryImport), inv.Import(services.EntityEquipment))
			equipment.GET("/:id", can(auth.ActionEquipmentRead), inv.GetEquipment)
			equipment.POST("", can(auth.ActionEquipmentWrite), inv.CreateEquipment)
			equipment.PUT("/:id", can(auth.ActionEquipmentWrite), inv.UpdateEquipment)
			equipment.DELETE("/:id", can(auth.ActionEquipmentDelete), inv.DeleteEquipment)
		}

		usageLogs := authenticatedGroup.Group("/usage-logs")
		{
			usageLogs.GET("", can(auth.ActionUsageLogsRead), inv.ListUsageLogs)
			usageLogs.GET("/export", can(auth.ActionInventoryExport), inv.Export(services.EntityUsageLogs))
			usageLogs.GET("/:id", can(auth.ActionUsageLogsRead), inv.GetUsageLog)
			usageLogs.POST("", can(auth.ActionUsageLogsCreate), inv.RecordUsage)
			usageLogs.PATCH("/:id", can(auth.ActionUsageLogsUpdate), inv.UpdateUsageLog)
			usageLogs.DELETE("/:id", can(auth.ActionUsageLogsDelete), inv.DeleteUsageLog)
		}

		// Export archives
		authenticatedGroup.GET("/exports", can(auth.ActionInventoryExport), inv.ListArchives)
		authenticatedGroup.GET("/exports/files/*path", can(auth.ActionInventoryExport), inv.ServeArchive)

		authenticatedGroup.GET("/audit-logs", can(auth.ActionAuditRead), auditHandlers.ListAuditLogsHandler())

		users := authenticatedGroup.Group("/users")
		{
			users.GET("", can(auth.ActionUsersRead), userHandlers.ListUsersHandler())
			users.PATCH("/:id/status", can(auth.ActionUsersManage), userHandlers.SetStatusHandler())
			users.PATCH("/:id/verify", can(auth.ActionUsersManage), userHandlers.VerifyHandler())
			users.PATCH("/:id/role", can(auth.ActionUsersManageRoles), userHandlers.ChangeRoleHandler())
		}

		adminGroup := authenticatedGroup.Group("/admin")
		{
			adminGroup.POST("/cache/refresh", can(auth.ActionCacheRefresh), maintenanceHandlers.RefreshCacheHandler())
			adminGroup.POST("/jobs/check-expiration", can(auth.ActionJobsRun), maintenanceHandlers.CheckExpirationHandler())
		}
	}

	return router, bg
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks the database and the archive storage backend.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also checks the storage backend so
// that a readiness gate fails when export archiving would error.
func readinessHandler(db *sql.DB, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Probe a known-absent path; Exists exercises credentials and
		// connectivity without creating state.
		if _, err := storageBackend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version information
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}
