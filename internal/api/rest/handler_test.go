package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-market/arc-indexer/internal/api/middleware"
	"github.com/arc-market/arc-indexer/internal/api/rest"
	"github.com/arc-market/arc-indexer/internal/api/rest/dto"
	"github.com/arc-market/arc-indexer/internal/logger"
	"github.com/arc-market/arc-indexer/internal/mocks"
	"github.com/arc-market/arc-indexer/internal/store"
	"github.com/arc-market/arc-indexer/internal/store/schema"
)

const (
	testNFTContract = "0x1111111111111111111111111111111111111111"
	testAPIKey      = "test-api-key"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestRouter(t *testing.T) (*gin.Engine, *store.MemStore) {
	ctrl := gomock.NewController(t)
	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)).AnyTimes()

	s := store.NewMemStore()
	router := gin.New()
	rest.SetupRoutes(router, rest.NewHandler(s, clock), middleware.AuthConfig{
		APIKeys: []string{testAPIKey},
	})
	return router, s
}

func seedAsset(t *testing.T, s *store.MemStore, tokenNumber, owner string) *schema.Asset {
	t.Helper()
	asset := &schema.Asset{
		ContractAddress: testNFTContract,
		TokenNumber:     tokenNumber,
		OwnerAddress:    owner,
		CreatorAddress:  owner,
		Name:            "NFT #" + tokenNumber,
		MintedAt:        time.Now(),
	}
	created, err := s.CreateAssetIfAbsent(context.Background(), asset)
	require.NoError(t, err)
	require.True(t, created)
	return asset
}

func doRequest(router *gin.Engine, method, path string, body interface{}, apiKey string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+apiKey)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestListAssetsFiltersByOwner(t *testing.T) {
	router, s := newTestRouter(t)
	seedAsset(t, s, "1", "0xaa")
	seedAsset(t, s, "2", "0xbb")
	seedAsset(t, s, "3", "0xcc")

	w := doRequest(router, http.MethodGet, "/api/v1/assets?owner=0xAA", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListAssetsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Assets, 1)
	assert.Equal(t, "1", resp.Assets[0].TokenNumber)
}

func TestListAssetsPagination(t *testing.T) {
	router, s := newTestRouter(t)
	for _, token := range []string{"1", "2", "3"} {
		seedAsset(t, s, token, "0xaa")
	}

	w := doRequest(router, http.MethodGet, "/api/v1/assets?limit=2&offset=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListAssetsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Assets, 1)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, 2, resp.Offset)
}

func TestGetAssetWithSales(t *testing.T) {
	router, s := newTestRouter(t)
	ctx := context.Background()
	asset := seedAsset(t, s, "7", "0xbob")

	_, err := s.CreateSaleIfAbsent(ctx, &schema.Sale{
		AssetID: asset.ID, ListingID: 1, LedgerListingID: 5,
		BuyerAddress: "0xbob", SellerAddress: "0xalice",
		Price: "1.5", TxHash: "0xdead", Timestamp: time.Now(),
	})
	require.NoError(t, err)

	w := doRequest(router, http.MethodGet, "/api/v1/assets/"+testNFTContract+"/7", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Asset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "7", resp.TokenNumber)
	assert.Equal(t, "0xbob", resp.OwnerAddress)
	require.Len(t, resp.Sales, 1)
	assert.Equal(t, "0xdead", resp.Sales[0].TxHash)
}

func TestListAssetSales(t *testing.T) {
	router, s := newTestRouter(t)
	ctx := context.Background()
	asset := seedAsset(t, s, "7", "0xbob")

	_, err := s.CreateSaleIfAbsent(ctx, &schema.Sale{
		AssetID: asset.ID, ListingID: 1, LedgerListingID: 5,
		BuyerAddress: "0xbob", SellerAddress: "0xalice",
		Price: "1.5", TxHash: "0xdead", Timestamp: time.Now(),
	})
	require.NoError(t, err)

	w := doRequest(router, http.MethodGet, "/api/v1/assets/"+testNFTContract+"/7/sales", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListSalesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Sales, 1)
	assert.Equal(t, "0xbob", resp.Sales[0].BuyerAddress)

	w = doRequest(router, http.MethodGet, "/api/v1/assets/"+testNFTContract+"/404/sales", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAssetNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/assets/"+testNFTContract+"/404", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProvisionalListing(t *testing.T) {
	router, s := newTestRouter(t)
	asset := seedAsset(t, s, "7", "0xalice")

	w := doRequest(router, http.MethodPost, "/api/v1/listings/provisional", dto.CreateProvisionalListingRequest{
		ContractAddress: testNFTContract,
		TokenNumber:     "7",
		SellerAddress:   "0xAlice",
		Price:           "1.5",
	}, testAPIKey)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.Listing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(schema.ListingSourceProvisional), resp.Source)
	assert.Nil(t, resp.LedgerID)
	assert.True(t, resp.Active)
	assert.Equal(t, "1.5", resp.Price)
	assert.Equal(t, "0xalice", resp.SellerAddress)

	active, err := s.GetActiveListing(context.Background(), asset.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.True(t, active.Provisional())
}

func TestCreateProvisionalListingRequiresAuth(t *testing.T) {
	router, s := newTestRouter(t)
	seedAsset(t, s, "7", "0xalice")

	w := doRequest(router, http.MethodPost, "/api/v1/listings/provisional", dto.CreateProvisionalListingRequest{
		ContractAddress: testNFTContract,
		TokenNumber:     "7",
		SellerAddress:   "0xalice",
		Price:           "1.5",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateProvisionalListingUnknownAsset(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/listings/provisional", dto.CreateProvisionalListingRequest{
		ContractAddress: testNFTContract,
		TokenNumber:     "404",
		SellerAddress:   "0xalice",
		Price:           "1.5",
	}, testAPIKey)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProvisionalListingConflict(t *testing.T) {
	router, s := newTestRouter(t)
	asset := seedAsset(t, s, "7", "0xalice")

	id := int64(1)
	require.NoError(t, s.UpsertConfirmedListing(context.Background(), &schema.Listing{
		LedgerID: &id, Source: schema.ListingSourceConfirmed,
		AssetID: asset.ID, SellerAddress: "0xalice",
		Price: "1.0", Active: true, BlockNumber: 10,
	}))

	w := doRequest(router, http.MethodPost, "/api/v1/listings/provisional", dto.CreateProvisionalListingRequest{
		ContractAddress: testNFTContract,
		TokenNumber:     "7",
		SellerAddress:   "0xalice",
		Price:           "1.5",
	}, testAPIKey)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateProvisionalListingRejectsBadPrice(t *testing.T) {
	router, s := newTestRouter(t)
	seedAsset(t, s, "7", "0xalice")

	for _, price := range []string{"", "abc", "-1.0", "0"} {
		w := doRequest(router, http.MethodPost, "/api/v1/listings/provisional", map[string]string{
			"contract_address": testNFTContract,
			"token_number":     "7",
			"seller_address":   "0xalice",
			"price":            price,
		}, testAPIKey)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "price %q", price)
	}
}

func TestDeactivateListing(t *testing.T) {
	router, s := newTestRouter(t)
	asset := seedAsset(t, s, "7", "0xalice")

	listing := &schema.Listing{
		Source: schema.ListingSourceProvisional,
		AssetID: asset.ID, SellerAddress: "0xalice",
		Price: "1.5", Active: true,
	}
	require.NoError(t, s.CreateListing(context.Background(), listing))

	w := doRequest(router, http.MethodPost,
		"/api/v1/listings/"+strconv.FormatUint(listing.ID, 10)+"/deactivate", nil, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Listing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Active)

	active, err := s.GetActiveListing(context.Background(), asset.ID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestDeactivateConfirmedListingRejected(t *testing.T) {
	router, s := newTestRouter(t)
	asset := seedAsset(t, s, "7", "0xalice")

	id := int64(1)
	listing := &schema.Listing{
		LedgerID: &id, Source: schema.ListingSourceConfirmed,
		AssetID: asset.ID, SellerAddress: "0xalice",
		Price: "1.0", Active: true, BlockNumber: 10,
	}
	require.NoError(t, s.UpsertConfirmedListing(context.Background(), listing))

	w := doRequest(router, http.MethodPost,
		"/api/v1/listings/"+strconv.FormatUint(listing.ID, 10)+"/deactivate", nil, testAPIKey)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeactivateListingNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/listings/999/deactivate", nil, testAPIKey)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
