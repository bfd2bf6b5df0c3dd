package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/arc-market/arc-indexer/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Asset endpoints (public read access)
		v1.GET("/assets", handler.ListAssets)
		v1.GET("/assets/:contract/:token", handler.GetAsset)
		v1.GET("/assets/:contract/:token/sales", handler.ListAssetSales)

		// Listing endpoints (storefront writes, require authentication)
		v1.POST("/listings/provisional", middleware.Auth(authCfg), handler.CreateProvisionalListing)
		v1.POST("/listings/:id/deactivate", middleware.Auth(authCfg), handler.DeactivateListing)
	}
}
