package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/arc-market/arc-indexer/internal/domain"
)

const MAX_PAGE_SIZE = 100

// ListAssetsQueryParams holds query parameters for GET /assets
type ListAssetsQueryParams struct {
	// Filters
	Owner           string `form:"owner"`
	ContractAddress string `form:"contract_address"`
	TokenNumber     string `form:"token_number"`

	// Pagination
	Limit  int `form:"limit,default=20"`
	Offset int `form:"offset,default=0"`
}

// ParseListAssetsQuery parses query parameters for GET /assets
func ParseListAssetsQuery(c *gin.Context) (*ListAssetsQueryParams, error) {
	var params ListAssetsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	// Normalize addresses
	params.Owner = domain.NormalizeAddress(params.Owner)
	params.ContractAddress = domain.NormalizeAddress(params.ContractAddress)

	// Cap limits
	if params.Limit > MAX_PAGE_SIZE {
		params.Limit = MAX_PAGE_SIZE
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	return &params, nil
}
