package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arc-market/arc-indexer/internal/adapter"
	"github.com/arc-market/arc-indexer/internal/api/rest/dto"
	"github.com/arc-market/arc-indexer/internal/domain"
	"github.com/arc-market/arc-indexer/internal/store"
	"github.com/arc-market/arc-indexer/internal/store/schema"
)

// Handler defines the interface for REST API handlers
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// ListAssets retrieves assets with optional filters
	// GET /api/v1/assets?owner=<address>&contract_address=<address>&token_number=<number>&limit=<limit>&offset=<offset>
	ListAssets(c *gin.Context)

	// GetAsset retrieves a single asset with its listing state and sale history
	// GET /api/v1/assets/:contract/:token
	GetAsset(c *gin.Context)

	// ListAssetSales retrieves the sale history of an asset, newest first
	// GET /api/v1/assets/:contract/:token/sales
	ListAssetSales(c *gin.Context)

	// CreateProvisionalListing writes an optimistic listing row ahead of
	// on-chain confirmation (requires authentication)
	// POST /api/v1/listings/provisional
	CreateProvisionalListing(c *gin.Context)

	// DeactivateListing withdraws a provisional listing (requires authentication)
	// POST /api/v1/listings/:id/deactivate
	DeactivateListing(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	store store.Store
	clock adapter.Clock
}

// NewHandler creates a new REST API handler over the cache store
func NewHandler(s store.Store, clock adapter.Clock) Handler {
	return &handler{
		store: s,
		clock: clock,
	}
}

// ListAssets retrieves assets with optional filters
func (h *handler) ListAssets(c *gin.Context) {
	queryParams, err := ParseListAssetsQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	assets, err := h.store.ListAssets(c.Request.Context(), store.AssetFilter{
		OwnerAddress:    queryParams.Owner,
		ContractAddress: queryParams.ContractAddress,
		TokenNumber:     queryParams.TokenNumber,
		Limit:           queryParams.Limit,
		Offset:          queryParams.Offset,
	})
	if err != nil {
		respondInternalError(c, err, "Failed to list assets")
		return
	}

	response := dto.ListAssetsResponse{
		Assets: make([]dto.Asset, 0, len(assets)),
		Limit:  queryParams.Limit,
		Offset: queryParams.Offset,
	}
	for _, asset := range assets {
		response.Assets = append(response.Assets, dto.FromAsset(asset))
	}

	c.JSON(http.StatusOK, response)
}

// GetAsset retrieves a single asset with its listing state and sale history
func (h *handler) GetAsset(c *gin.Context) {
	contract := domain.NormalizeAddress(c.Param("contract"))
	tokenNumber := c.Param("token")
	if contract == "" || tokenNumber == "" {
		respondBadRequest(c, "Contract address and token number are required")
		return
	}

	asset, err := h.store.GetAsset(c.Request.Context(), contract, tokenNumber)
	if err != nil {
		respondInternalError(c, err, "Failed to get asset")
		return
	}
	if asset == nil {
		respondNotFound(c, "Asset not found")
		return
	}

	sales, err := h.store.ListSalesByAsset(c.Request.Context(), asset.ID)
	if err != nil {
		respondInternalError(c, err, "Failed to get sale history")
		return
	}

	assetDTO := dto.FromAsset(asset)
	assetDTO.Sales = dto.FromSales(sales)

	c.JSON(http.StatusOK, assetDTO)
}

// ListAssetSales retrieves the sale history of an asset, newest first
func (h *handler) ListAssetSales(c *gin.Context) {
	contract := domain.NormalizeAddress(c.Param("contract"))
	tokenNumber := c.Param("token")
	if contract == "" || tokenNumber == "" {
		respondBadRequest(c, "Contract address and token number are required")
		return
	}

	asset, err := h.store.GetAsset(c.Request.Context(), contract, tokenNumber)
	if err != nil {
		respondInternalError(c, err, "Failed to get asset")
		return
	}
	if asset == nil {
		respondNotFound(c, "Asset not found")
		return
	}

	sales, err := h.store.ListSalesByAsset(c.Request.Context(), asset.ID)
	if err != nil {
		respondInternalError(c, err, "Failed to get sale history")
		return
	}

	c.JSON(http.StatusOK, dto.ListSalesResponse{Sales: dto.FromSales(sales)})
}

// CreateProvisionalListing writes an optimistic listing row ahead of
// on-chain confirmation. The row carries no ledger id; the confirming
// ListingCreated event supersedes it.
func (h *handler) CreateProvisionalListing(c *gin.Context) {
	var req dto.CreateProvisionalListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	priceWei, err := domain.ParseUnits(req.Price)
	if err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid price: %v", err))
		return
	}
	if priceWei.Sign() <= 0 {
		respondValidationError(c, "Price must be positive")
		return
	}

	contract := domain.NormalizeAddress(req.ContractAddress)
	seller := domain.NormalizeAddress(req.SellerAddress)

	asset, err := h.store.GetAsset(c.Request.Context(), contract, req.TokenNumber)
	if err != nil {
		respondInternalError(c, err, "Failed to get asset")
		return
	}
	if asset == nil {
		respondNotFound(c, "Asset not found")
		return
	}

	active, err := h.store.GetActiveListing(c.Request.Context(), asset.ID)
	if err != nil {
		respondInternalError(c, err, "Failed to check listing state")
		return
	}
	if active != nil {
		respondConflict(c, "Asset already has an active listing")
		return
	}

	listing := &schema.Listing{
		Source:        schema.ListingSourceProvisional,
		AssetID:       asset.ID,
		SellerAddress: seller,
		Price:         domain.FormatUnits(priceWei),
		Active:        true,
	}
	if err := h.store.CreateListing(c.Request.Context(), listing); err != nil {
		respondInternalError(c, err, "Failed to create listing")
		return
	}

	c.JSON(http.StatusCreated, dto.FromListing(listing))
}

// DeactivateListing withdraws a provisional listing. Confirmed listings are
// closed by their on-chain cancellation, never through the API.
func (h *handler) DeactivateListing(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid listing id")
		return
	}

	listing, err := h.store.GetListingByID(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to get listing")
		return
	}
	if listing == nil {
		respondNotFound(c, "Listing not found")
		return
	}
	if !listing.Provisional() {
		respondBadRequest(c, "Confirmed listings can only be cancelled on chain")
		return
	}
	if !listing.Active {
		respondConflict(c, "Listing is not active")
		return
	}

	if err := h.store.DeactivateListing(c.Request.Context(), id, h.clock.Now()); err != nil {
		respondInternalError(c, err, "Failed to deactivate listing")
		return
	}

	updated, err := h.store.GetListingByID(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to get listing")
		return
	}

	c.JSON(http.StatusOK, dto.FromListing(updated))
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "arc-indexer-api",
	})
}
