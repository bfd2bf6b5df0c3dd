package uri_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-market/arc-indexer/internal/uri"
)

const testCIDv0 = "QmYwAPJzv5CZsnAzt8auVZRn1pfejXuVErDdZQhYqFkqFB"

func TestResolve_HTTPPassthrough(t *testing.T) {
	r := uri.NewResolver("https://gateway.example.com")

	got, err := r.Resolve("https://example.com/metadata/1.json")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/metadata/1.json", got)
}

func TestResolve_IPFSScheme(t *testing.T) {
	r := uri.NewResolver("https://gateway.example.com")

	got, err := r.Resolve("ipfs://" + testCIDv0)
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example.com/ipfs/"+testCIDv0, got)
}

func TestResolve_IPFSSchemeWithPath(t *testing.T) {
	r := uri.NewResolver("https://gateway.example.com/")

	got, err := r.Resolve("ipfs://" + testCIDv0 + "/metadata.json")
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example.com/ipfs/"+testCIDv0+"/metadata.json", got)
}

func TestResolve_BareCID(t *testing.T) {
	r := uri.NewResolver("https://gateway.example.com")

	got, err := r.Resolve(testCIDv0)
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example.com/ipfs/"+testCIDv0, got)
}

func TestResolve_DefaultGateway(t *testing.T) {
	r := uri.NewResolver("")

	got, err := r.Resolve("ipfs://" + testCIDv0)
	require.NoError(t, err)
	assert.Equal(t, uri.DefaultIPFSGateway+"/ipfs/"+testCIDv0, got)
}

func TestResolve_ArweaveScheme(t *testing.T) {
	r := uri.NewResolver("https://gateway.example.com")

	got, err := r.Resolve("ar://abc123TX")
	require.NoError(t, err)
	assert.Equal(t, uri.DefaultArweaveGateway+"/abc123TX", got)
}

func TestResolve_DataURIPassthrough(t *testing.T) {
	r := uri.NewResolver("https://gateway.example.com")

	in := `data:application/json;base64,eyJuYW1lIjoiTkZUIn0=`
	got, err := r.Resolve(in)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestCandidates_OnePerGateway(t *testing.T) {
	r := uri.NewResolver("https://gateway.example.com", "https://backup.example.com/")

	urls, err := r.Candidates("ipfs://" + testCIDv0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://gateway.example.com/ipfs/" + testCIDv0,
		"https://backup.example.com/ipfs/" + testCIDv0,
	}, urls)

	// Plain URLs yield a single candidate regardless of gateway count
	urls, err = r.Candidates("https://example.com/1.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/1.json"}, urls)
}

func TestResolve_Unsupported(t *testing.T) {
	r := uri.NewResolver("https://gateway.example.com")

	for _, in := range []string{"", "ftp://example.com/x", "not-a-cid", "ipfs://", "ar://"} {
		_, err := r.Resolve(in)
		assert.Error(t, err, "input %q", in)
	}
}
