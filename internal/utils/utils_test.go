package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/utils"
)

func TestNewURLTools_Normalizes(t *testing.T) {
	t.Parallel()
	u, err := utils.NewURLTools("HTTPS://WWW.Example.COM:443/Path#frag")
	require.NoError(t, err)

	assert.Equal(t, "https", u.URL.Scheme)
	assert.Equal(t, "www.example.com", u.URL.Host)
	assert.Equal(t, "/Path", u.URL.Path)
	assert.Empty(t, u.URL.Fragment)
}

func TestNewURLTools_KeepsNonDefaultPort(t *testing.T) {
	t.Parallel()
	u, err := utils.NewURLTools("http://127.0.0.1:8080/")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", u.URL.Host)
	assert.Equal(t, "127.0.0.1", u.Hostname())
}

func TestNewURLTools_RejectsMissingHost(t *testing.T) {
	t.Parallel()
	_, err := utils.NewURLTools("/relative/path")
	assert.Error(t, err)
}

func TestHostMatches(t *testing.T) {
	t.Parallel()
	cases := []struct {
		host, target string
		want         bool
	}{
		{"example.com", "example.com", true},
		{"EXAMPLE.com", "example.com", true},
		{".example.com", "example.com", true},
		{"www.example.com", "example.com", true},
		{"a.b.example.com", "example.com", true},
		{"notexample.com", "example.com", false},
		{"example.com.evil.net", "example.com", false},
		{"example.com", "www.example.com", false},
		{"", "example.com", false},
		{"bücher.de", "xn--bcher-kva.de", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, utils.HostMatches(tc.host, tc.target), "%s vs %s", tc.host, tc.target)
	}
}

func TestBelongsTo(t *testing.T) {
	t.Parallel()
	u, err := utils.NewURLTools("https://shop.example.com/cart")
	require.NoError(t, err)
	assert.True(t, u.BelongsTo("shop.example.com"))
	assert.True(t, u.BelongsTo("img.shop.example.com"))
	assert.False(t, u.BelongsTo("example.com"))
	assert.False(t, u.BelongsTo("notshop.example.com"))
	assert.False(t, u.BelongsTo(""))
}

func TestHostOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "www.google-analytics.com", utils.HostOf("https://WWW.google-analytics.com/collect?v=1"))
	assert.Equal(t, "", utils.HostOf("data:text/plain,hi"))
	assert.Equal(t, "", utils.HostOf("::not a url"))
}
