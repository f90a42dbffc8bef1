package utils

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// URLTools wraps a parsed URL with a normalised host.
type URLTools struct {
	URL *url.URL
}

func NewURLTools(raw string) (*URLTools, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse url %s: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("couldn't parse url %s: missing host", raw)
	}

	urlTools := &URLTools{
		URL: u,
	}
	urlTools.normalize()

	return urlTools, nil
}

func (u *URLTools) normalize() {
	u.URL.Fragment = ""
	u.URL.Scheme = strings.ToLower(u.URL.Scheme)

	host := NormalizeHost(u.URL.Hostname())
	if port := u.URL.Port(); port != "" &&
		!(u.URL.Scheme == "http" && port == "80") &&
		!(u.URL.Scheme == "https" && port == "443") {
		u.URL.Host = host + ":" + port
	} else {
		u.URL.Host = host
	}
}

// Hostname returns the normalised host without port.
func (u *URLTools) Hostname() string {
	return u.URL.Hostname()
}

// BelongsTo reports whether host equals u's host or is a proper subdomain of it.
func (u *URLTools) BelongsTo(host string) bool {
	return HostMatches(host, u.Hostname())
}

// NormalizeHost lower-cases host, strips a leading dot and a trailing root
// dot, and converts IDNs to punycode. Invalid IDNs are returned lower-cased.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, ".")
	host = strings.TrimSuffix(host, ".")
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	return host
}

// HostMatches reports whether host equals target or is a proper subdomain of
// it. "notexample.com" does not match "example.com".
func HostMatches(host, target string) bool {
	host = NormalizeHost(host)
	target = NormalizeHost(target)
	if host == "" || target == "" {
		return false
	}
	return host == target || strings.HasSuffix(host, "."+target)
}

// HostOf returns the normalised host of raw, or "" when raw has none.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return NormalizeHost(u.Hostname())
}
