package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appdiscount "github.com/bizzytrack/backend/internal/application/discount"
	appfinance "github.com/bizzytrack/backend/internal/application/finance"
	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/bizzytrack/backend/internal/infrastructure/cache"
	"github.com/bizzytrack/backend/internal/infrastructure/config"
	"github.com/bizzytrack/backend/internal/infrastructure/logger"
	"github.com/bizzytrack/backend/internal/infrastructure/persistence"
	"github.com/bizzytrack/backend/internal/interfaces/http/handler"
	"github.com/bizzytrack/backend/internal/interfaces/http/middleware"
	"github.com/bizzytrack/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting BizzyTrack Discount Engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	promotionalStore := persistence.NewGormPromotionalRuleStore(db.DB)
	volumeStore := persistence.NewGormVolumeRuleStore(db.DB)
	earlyPaymentStore := persistence.NewGormEarlyPaymentRuleStore(db.DB)
	categoryStore := persistence.NewGormCategoryRuleStore(db.DB)
	pricingRuleStore := persistence.NewGormPricingRuleStore(db.DB)
	allocationRepo := persistence.NewGormAllocationRepository(db.DB)
	approvalRepo := persistence.NewGormApprovalRepository(db.DB)
	journalEntryRepo := persistence.NewGormJournalEntryRepository(db.DB)
	accountRepo := persistence.NewGormChartOfAccountsRepository(db.DB)
	transactionStore := persistence.NewGormTransactionStore(db.DB)

	// Initialize application services
	discoveryService := appdiscount.NewDiscoveryService(
		promotionalStore,
		volumeStore,
		earlyPaymentStore,
		categoryStore,
		pricingRuleStore,
		log,
	)
	allocationService := appdiscount.NewAllocationService(allocationRepo, transactionStore, log)

	engineOpts := []appdiscount.RuleEngineOption{
		appdiscount.WithApprovalThreshold(decimal.NewFromFloat(cfg.Discount.ApprovalThreshold)),
		appdiscount.WithDefaultAllocationMethod(discount.AllocationMethod(cfg.Discount.DefaultAllocationMethod)),
	}
	var pricingCache *cache.InMemoryPricingCache
	if cfg.Discount.CacheEnabled {
		pricingCache = cache.NewInMemoryPricingCache(
			cache.WithPricingTTL(cfg.Discount.CacheTTL),
			cache.WithPricingLogger(log),
		)
		defer func() {
			_ = pricingCache.Close()
		}()
		engineOpts = append(engineOpts, appdiscount.WithPricingCache(pricingCache))
		log.Info("Pricing result cache enabled", zap.Duration("ttl", cfg.Discount.CacheTTL))
	}
	ruleEngine := appdiscount.NewRuleEngine(discoveryService, allocationService, approvalRepo, log, engineOpts...)

	accountingService := appfinance.NewDiscountAccountingService(journalEntryRepo, accountRepo, allocationRepo, log)

	// Subscribe to rule change notifications so cached pricing results
	// are invalidated across instances
	invalidator, err := cache.NewRedisRuleCacheInvalidator(cfg.Redis, cache.WithInvalidatorLogger(log))
	if err != nil {
		log.Warn("Rule cache invalidation disabled, Redis unavailable", zap.Error(err))
	} else {
		defer func() {
			if err := invalidator.Close(); err != nil {
				log.Error("Error closing rule cache invalidator", zap.Error(err))
			}
		}()
		go func() {
			if err := invalidator.Subscribe(context.Background(), func(msg cache.RuleUpdateMessage) {
				ruleEngine.InvalidateCache(msg.TenantID)
			}); err != nil {
				log.Warn("Rule cache subscription stopped", zap.Error(err))
			}
		}()
		log.Info("Subscribed to rule change notifications")
	}

	// Initialize handlers
	pricingHandler := handler.NewPricingHandler(ruleEngine, discoveryService)
	allocationHandler := handler.NewAllocationHandler(allocationService)
	accountingHandler := handler.NewAccountingHandler(accountingService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. CORS - Handle cross-origin requests
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig()))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Pricing domain (discount discovery, rule engine, approvals)
	pricingRoutes := router.NewDomainGroup("pricing", "/pricing")
	pricingRoutes.POST("/calculate", pricingHandler.CalculateFinalPrice)
	pricingRoutes.POST("/quick-calculate", pricingHandler.QuickCalculate)
	pricingRoutes.POST("/preview", pricingHandler.PreviewDiscounts)
	pricingRoutes.POST("/best-combination", pricingHandler.FindBestCombination)
	pricingRoutes.POST("/conflicts/check", pricingHandler.CheckConflicts)
	pricingRoutes.POST("/promo-codes/validate", pricingHandler.ValidatePromoCode)
	pricingRoutes.POST("/approvals", pricingHandler.SubmitForApproval)
	pricingRoutes.GET("/approvals/pending", pricingHandler.ListPendingApprovals)
	pricingRoutes.POST("/approvals/:id/approve", pricingHandler.ApproveRequest)
	pricingRoutes.POST("/approvals/:id/reject", pricingHandler.RejectRequest)
	pricingRoutes.DELETE("/cache", pricingHandler.InvalidateCache)
	r.Register(pricingRoutes)

	// Allocation domain (discount allocation lifecycle and reporting)
	allocationRoutes := router.NewDomainGroup("allocations", "/allocations")
	allocationRoutes.POST("", allocationHandler.Create)
	allocationRoutes.GET("/unallocated", allocationHandler.GetUnallocatedDiscounts)
	allocationRoutes.GET("/report", allocationHandler.GetReport)
	allocationRoutes.GET("/export", allocationHandler.ExportCSV)
	allocationRoutes.GET("/transactions/:id", allocationHandler.GetByTransaction)
	allocationRoutes.GET("/:id", allocationHandler.GetByID)
	allocationRoutes.POST("/:id/apply", allocationHandler.Apply)
	allocationRoutes.POST("/:id/void", allocationHandler.Void)
	allocationRoutes.GET("/:id/can-void", allocationHandler.CanVoid)
	r.Register(allocationRoutes)

	// Accounting domain (journal entries and reconciliation)
	accountingRoutes := router.NewDomainGroup("accounting", "/accounting")
	accountingRoutes.POST("/journal-entries", accountingHandler.CreateJournalEntry)
	accountingRoutes.POST("/journal-entries/bulk", accountingHandler.CreateBulkJournalEntries)
	accountingRoutes.GET("/journal-entries", accountingHandler.ListJournalEntries)
	accountingRoutes.GET("/journal-entries/export", accountingHandler.ExportJournalEntriesCSV)
	accountingRoutes.POST("/reconcile", accountingHandler.Reconcile)
	accountingRoutes.GET("/reconciliation-report", accountingHandler.GetReconciliationReport)
	accountingRoutes.GET("/unaccounted", accountingHandler.GetUnaccountedDiscounts)
	accountingRoutes.GET("/tax-impact", accountingHandler.EstimateTaxImpact)
	r.Register(accountingRoutes)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
