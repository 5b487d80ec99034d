// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
)

// CatalogRouteHandler defines the interface for catalog handlers.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
}

// DocumentRouteHandler defines the interface for document handlers.
type DocumentRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Edit(c *gin.Context)
	Post(c *gin.Context)
	Cancel(c *gin.Context)
	Amend(c *gin.Context)
}

// DocumentPaymentHandler is an optional interface for documents that carry
// a payment balance.
type DocumentPaymentHandler interface {
	ApplyPayment(c *gin.Context)
	ListPayments(c *gin.Context)
	Outstanding(c *gin.Context)
}

// RegisterCatalogRoutes registers the CRUD routes for a catalog.
//
// Usage:
//
//	handler := handlers.NewCatalogHandler(base, handlers.CatalogHandlerConfig[...]{...})
//	RegisterCatalogRoutes(api.Group("/parties"), handler)
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
}

// RegisterDocumentRoutes registers the lifecycle routes for a document.
// If the handler also implements DocumentPaymentHandler, the payment routes
// are registered too.
func RegisterDocumentRoutes(group *gin.RouterGroup, handler DocumentRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Edit)
	group.POST("/:id/post", handler.Post)
	group.POST("/:id/cancel", handler.Cancel)
	group.POST("/:id/amend", handler.Amend)

	if ph, ok := handler.(DocumentPaymentHandler); ok {
		group.POST("/:id/payments", ph.ApplyPayment)
		group.GET("/:id/payments", ph.ListPayments)
		group.GET("/:id/outstanding", ph.Outstanding)
	}
}
