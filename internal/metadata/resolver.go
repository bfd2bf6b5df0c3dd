package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gowebpki/jcs"
	"go.uber.org/zap"

	"github.com/arc-market/arc-indexer/internal/adapter"
	"github.com/arc-market/arc-indexer/internal/logger"
	"github.com/arc-market/arc-indexer/internal/uri"
)

// Attribute is a single trait of a token metadata document
type Attribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

// Document is a normalized token metadata document. Fields may be empty;
// the projector substitutes defaults for anything missing.
type Document struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
	// Raw is the document as fetched, before normalization
	Raw map[string]interface{} `json:"raw"`
}

// CanonicalHash returns the hex-encoded sha256 of the JCS-canonicalized raw
// document. Used to detect metadata changes across reconciliation passes.
func (d *Document) CanonicalHash() (string, error) {
	rawJSON, err := json.Marshal(d.Raw)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	canonical, err := jcs.Transform(rawJSON)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize metadata: %w", err)
	}

	hash := sha256.Sum256(canonical)
	return hex.EncodeToString(hash[:]), nil
}

// RoyaltyBps extracts the royalty basis points from the Royalty attribute.
// The attribute value is a percentage, either numeric or a string.
func (d *Document) RoyaltyBps() int {
	for _, attr := range d.Attributes {
		if attr.TraitType != "Royalty" {
			continue
		}

		switch v := attr.Value.(type) {
		case float64:
			return int(v * 100)
		case string:
			if pct, err := strconv.ParseFloat(v, 64); err == nil {
				return int(pct * 100)
			}
		}
	}
	return 0
}

// Resolver fetches off-chain metadata documents referenced by on-chain pointers
//
//go:generate mockgen -source=resolver.go -destination=../mocks/metadata_resolver.go -package=mocks -mock_names=Resolver=MockMetadataResolver
type Resolver interface {
	// Resolve fetches and normalizes the document the URI points at.
	// It never fails: any rewrite or fetch problem yields nil (NullMetadata)
	// and the caller falls back to defaults. Re-resolution is the caller's
	// decision on a later reconciliation pass.
	Resolve(ctx context.Context, metadataURI string) *Document
}

type resolver struct {
	httpClient adapter.HTTPClient
	uriRes     *uri.Resolver
	json       adapter.JSON
}

// NewResolver creates a metadata resolver fetching through the given gateway resolver
func NewResolver(httpClient adapter.HTTPClient, uriRes *uri.Resolver, jsonAdapter adapter.JSON) Resolver {
	return &resolver{
		httpClient: httpClient,
		uriRes:     uriRes,
		json:       jsonAdapter,
	}
}

func (r *resolver) Resolve(ctx context.Context, metadataURI string) *Document {
	urls, err := r.uriRes.Candidates(metadataURI)
	if err != nil {
		logger.WarnCtx(ctx, "unresolvable metadata uri", zap.String("uri", metadataURI), zap.Error(err))
		return nil
	}

	// Content-addressed URIs resolve to one URL per gateway; the first
	// gateway that answers wins
	var raw map[string]interface{}
	for _, url := range urls {
		if err = r.httpClient.Get(ctx, url, &raw); err == nil {
			return r.normalize(ctx, raw)
		}
		logger.WarnCtx(ctx, "failed to fetch metadata", zap.String("url", url), zap.Error(err))
	}
	return nil
}

// normalize maps a raw document onto the fields the cache keeps, following
// the OpenSea metadata standard field names
func (r *resolver) normalize(ctx context.Context, raw map[string]interface{}) *Document {
	doc := &Document{Raw: raw}

	if name, ok := raw["name"].(string); ok {
		doc.Name = name
	}
	if desc, ok := raw["description"].(string); ok {
		doc.Description = desc
	}
	if image, ok := raw["image"].(string); ok {
		// Image pointers are content-addressed as often as not; rewrite
		// them to the gateway so the storefront can render directly
		if url, err := r.uriRes.Resolve(image); err == nil {
			doc.Image = url
		} else {
			doc.Image = image
		}
	}

	if attrs, ok := raw["attributes"]; ok {
		encoded, err := r.json.Marshal(attrs)
		if err == nil {
			err = r.json.Unmarshal(encoded, &doc.Attributes)
		}
		if err != nil {
			logger.WarnCtx(ctx, "failed to parse metadata attributes", zap.Error(err))
		}
	}

	return doc
}
