package uri

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultIPFSGateway is used when no gateway is configured
const DefaultIPFSGateway = "https://gateway.pinata.cloud"

// DefaultArweaveGateway serves ar:// transaction pointers
const DefaultArweaveGateway = "https://arweave.net"

// bareCIDPattern matches CIDv0 (Qm...) and CIDv1 (bafy...) identifiers
// appearing without any scheme
var bareCIDPattern = regexp.MustCompile(`^(Qm[1-9A-HJ-NP-Za-km-z]{44,}|bafy[a-z2-7]{20,})(/.*)?$`)

// Resolver rewrites content-addressed URIs to fetchable gateway URLs
type Resolver struct {
	gateways []string
}

// NewResolver creates a resolver over the given IPFS gateway base URLs
// (e.g. "https://gateway.pinata.cloud"), tried in order. No gateways falls
// back to DefaultIPFSGateway.
func NewResolver(gateways ...string) *Resolver {
	trimmed := make([]string, 0, len(gateways))
	for _, g := range gateways {
		if g = strings.TrimSuffix(strings.TrimSpace(g), "/"); g != "" {
			trimmed = append(trimmed, g)
		}
	}
	if len(trimmed) == 0 {
		trimmed = []string{DefaultIPFSGateway}
	}
	return &Resolver{gateways: trimmed}
}

// Resolve converts a URI into a URL that can be fetched over HTTP, using
// the first configured gateway for content-addressed forms.
// Recognized forms, in priority order:
//   - http(s) URLs pass through unchanged
//   - data: URIs pass through unchanged
//   - ipfs://CID[/path] is rewritten to the configured gateway
//   - ar://TXID is rewritten to the Arweave gateway
//   - a bare CID is rewritten to the configured gateway
//
// Anything else is rejected.
func (r *Resolver) Resolve(uri string) (string, error) {
	urls, err := r.Candidates(uri)
	if err != nil {
		return "", err
	}
	return urls[0], nil
}

// Candidates returns every fetchable URL for the URI, one per configured
// gateway for content-addressed forms. Callers try them in order and take
// the first that answers.
func (r *Resolver) Candidates(uri string) ([]string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("empty uri")
	}

	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return []string{uri}, nil
	}

	// Inline documents need no fetching at all
	if strings.HasPrefix(uri, "data:") {
		return []string{uri}, nil
	}

	if cid, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		cid = strings.TrimPrefix(cid, "ipfs/")
		if cid == "" {
			return nil, fmt.Errorf("empty ipfs cid in %q", uri)
		}
		return r.ipfsURLs(cid), nil
	}

	if txID, ok := strings.CutPrefix(uri, "ar://"); ok {
		if txID == "" {
			return nil, fmt.Errorf("empty arweave tx id in %q", uri)
		}
		return []string{fmt.Sprintf("%s/%s", DefaultArweaveGateway, txID)}, nil
	}

	if bareCIDPattern.MatchString(uri) {
		return r.ipfsURLs(uri), nil
	}

	return nil, fmt.Errorf("unsupported uri scheme: %q", uri)
}

func (r *Resolver) ipfsURLs(cid string) []string {
	urls := make([]string, 0, len(r.gateways))
	for _, gw := range r.gateways {
		urls = append(urls, fmt.Sprintf("%s/ipfs/%s", gw, cid))
	}
	return urls
}

// Gateways returns the configured gateway base URLs
func (r *Resolver) Gateways() []string {
	return r.gateways
}
