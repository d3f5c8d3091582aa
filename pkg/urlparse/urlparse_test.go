package urlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

func TestParse_Components(t *testing.T) {
	parsed, err := Parse("https://user:pw@Example.com/products/shoes?utm_source=news#top", false)
	require.NoError(t, err)

	assert.True(t, parsed.IsValid)
	assert.Equal(t, "https", parsed.Scheme)
	assert.Equal(t, "user:pw@Example.com", parsed.Netloc)
	assert.Equal(t, "example.com", parsed.Hostname)
	assert.Equal(t, "443", parsed.Port)
	assert.Equal(t, "/products/shoes", parsed.Path)
	assert.Equal(t, "utm_source=news", parsed.Query)
	assert.Equal(t, "top", parsed.Fragment)
	assert.Equal(t, HostHash("https", "example.com", "443"), parsed.HostHash)
	assert.Equal(t, PathHash("https", "example.com", "443", "/products/shoes"), parsed.PathHash)
}

func TestParse_DefaultPorts(t *testing.T) {
	httpURL, err := Parse("http://example.com/", false)
	require.NoError(t, err)
	assert.Equal(t, "80", httpURL.Port)

	explicit, err := Parse("https://example.com:8443/", false)
	require.NoError(t, err)
	assert.Equal(t, "8443", explicit.Port)

	noScheme, err := Parse("/relative/path?q=1", false)
	require.NoError(t, err)
	assert.Equal(t, "", noScheme.Port)
	assert.Equal(t, "q=1", noScheme.Query)
}

func TestParse_HashesIgnoreQueryAndFragment(t *testing.T) {
	urls := []string{
		"https://example.com/x",
		"https://example.com/x?utm_source=a",
		"https://example.com/x?q=b#frag",
		"https://example.com:443/x#other",
	}

	first, err := Parse(urls[0], false)
	require.NoError(t, err)

	for _, raw := range urls[1:] {
		t.Run(raw, func(t *testing.T) {
			parsed, err := Parse(raw, false)
			require.NoError(t, err)
			assert.Equal(t, first.HostHash, parsed.HostHash)
			assert.Equal(t, first.PathHash, parsed.PathHash)
		})
	}

	other, err := Parse("https://example.com/y", false)
	require.NoError(t, err)
	assert.Equal(t, first.HostHash, other.HostHash)
	assert.NotEqual(t, first.PathHash, other.PathHash)
}

func TestParse_KnownDigest(t *testing.T) {
	assert.Len(t, HostHash("https", "example.com", "443"), 40)
	assert.Equal(t, sha1Hex("https://example.com:443"), HostHash("https", "example.com", "443"))
	assert.Equal(t, sha1Hex("https://example.com:443/a"), PathHash("https", "example.com", "443", "/a"))
}

func TestParse_Invalid(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"http://[::1",
		"http://exa mple.com/",
		"%zz",
	}

	for _, raw := range cases {
		t.Run(raw, func(t *testing.T) {
			parsed, err := Parse(raw, false)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMalformedInput))
			assert.Equal(t, ParsedURL{RawURL: raw}, parsed)
			assert.False(t, Validate(raw))
		})
	}
}

// A URL that passes the structural parse but fails afterwards returns the
// zero-value record, never the partially populated one.
func TestParse_FailureAfterStructuralParseReturnsZeroValue(t *testing.T) {
	raw := "https://example.com:99999999/path"
	require.True(t, Validate(raw))

	parsed, err := Parse(raw, false)
	require.Error(t, err)
	assert.Equal(t, ParsedURL{RawURL: raw}, parsed)
}

func TestParse_Lowercase(t *testing.T) {
	parsed, err := Parse("HTTPS://Example.COM/Some/Path?Q=Shoes", true)
	require.NoError(t, err)
	assert.Equal(t, "https", parsed.Scheme)
	assert.Equal(t, "/some/path", parsed.Path)
	assert.Equal(t, "q=shoes", parsed.Query)
	assert.Equal(t, "https://example.com/some/path?q=shoes", parsed.RawURL)
}
