package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"

	"gstledger/internal/app"
	"gstledger/internal/domain/catalogs/party"
	"gstledger/internal/domain/catalogs/product"
	"gstledger/internal/infrastructure/http/v1/dto"
	"gstledger/internal/infrastructure/http/v1/handlers"
	"gstledger/internal/infrastructure/http/v1/middleware"
	"gstledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Container holds the wired domain services
	Container *app.Container

	// Logger for request logging
	Logger *logger.Logger

	// Pinger backs the readiness check; nil for the in-memory backend
	Pinger handlers.Pinger

	// CORSOrigins lists allowed origins; "*" allows any
	CORSOrigins []string

	// ReportRate limits report generation per client IP, e.g. "60-M"
	ReportRate string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	if cfg.Container == nil {
		return nil, fmt.Errorf("router: container is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	RegisterValidators()

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(corsMiddleware(cfg.CORSOrigins))
	router.Use(middleware.Actor())
	if store := cfg.Container.Backend.Idempotency; store != nil {
		router.Use(middleware.Idempotency(store))
	}
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pinger)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	api := router.Group("/api/v1")
	base := handlers.NewBaseHandler()

	registerCatalogRoutes(api, base, cfg.Container)
	registerDocumentRoutes(api, base, cfg.Container)
	registerStockRoutes(api, base, cfg.Container)
	registerExpenseRoutes(api, base, cfg.Container)
	if err := registerReportRoutes(api, base, cfg); err != nil {
		return nil, err
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Code:    "NOT_FOUND",
			Message: "route not found",
		})
	})

	return router, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			middleware.HeaderIdempotencyKey, middleware.HeaderUserID,
			middleware.HeaderRequestID,
		},
		ExposeHeaders: []string{
			middleware.HeaderRequestID, middleware.HeaderTraceID,
			"Idempotent-Replayed", "Content-Disposition",
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
		},
		MaxAge: 12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cc.AllowAllOrigins = true
		}
	}
	if !cc.AllowAllOrigins {
		cc.AllowOrigins = origins
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	}
	return cors.New(cc)
}

// registerCatalogRoutes registers party and product endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, c *app.Container) {
	partyHandler := handlers.NewCatalogHandler(base, handlers.CatalogHandlerConfig[*party.Party, dto.CreatePartyRequest, dto.UpdatePartyRequest, dto.PartyResponse]{
		Service: c.Parties,
		MapCreateDTO: func(req dto.CreatePartyRequest) *party.Party {
			return req.ToParty()
		},
		MapUpdateDTO: func(req dto.UpdatePartyRequest, existing *party.Party) *party.Party {
			return req.Apply(existing)
		},
		MapToDTO: dto.FromParty,
	})
	RegisterCatalogRoutes(rg.Group("/parties"), partyHandler)

	productHandler := handlers.NewCatalogHandler(base, handlers.CatalogHandlerConfig[*product.Product, dto.CreateProductRequest, dto.UpdateProductRequest, dto.ProductResponse]{
		Service: c.Products,
		MapCreateDTO: func(req dto.CreateProductRequest) *product.Product {
			return req.ToProduct()
		},
		MapUpdateDTO: func(req dto.UpdateProductRequest, existing *product.Product) *product.Product {
			return req.Apply(existing)
		},
		MapToDTO: dto.FromProduct,
	})
	RegisterCatalogRoutes(rg.Group("/products"), productHandler)
}

// registerDocumentRoutes registers invoice/purchase and payment endpoints.
func registerDocumentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, c *app.Container) {
	h := handlers.NewDocumentHandler(base, c.Documents, c.Payments)
	RegisterDocumentRoutes(rg.Group("/documents"), h)

	rg.POST("/payments/:id/reverse", h.ReversePayment)
}

// registerStockRoutes registers stock ledger endpoints.
func registerStockRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, c *app.Container) {
	h := handlers.NewStockHandler(base, c.Stock, c.Products)

	stock := rg.Group("/stock")
	{
		stock.POST("/adjustments", h.Adjust)
		stock.POST("/entries/:id/void", h.Void)
		stock.GET("/:productId/balance", h.Balance)
		stock.GET("/:productId/history", h.History)
	}
}

// registerExpenseRoutes registers expense endpoints.
func registerExpenseRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, c *app.Container) {
	h := handlers.NewExpenseHandler(base, c.Expenses)

	expenses := rg.Group("/expenses")
	{
		expenses.POST("", h.Record)
		expenses.GET("", h.List)
	}
}

// registerReportRoutes registers report endpoints behind a per-IP limiter.
func registerReportRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) error {
	h := handlers.NewReportsHandler(base, cfg.Container.Reports)

	group := rg.Group("/reports")
	if cfg.ReportRate != "" {
		rate, err := limiter.NewRateFromFormatted(cfg.ReportRate)
		if err != nil {
			return fmt.Errorf("report rate %q: %w", cfg.ReportRate, err)
		}
		group.Use(middleware.RateLimit(limiter.New(limitermemory.NewStore(), rate)))
	}
	group.GET("/:type", h.Generate)
	return nil
}
