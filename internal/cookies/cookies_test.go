package cookies_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/cookies"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/testutil"
)

func TestCategorize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		want model.CookieCategory
	}{
		{"_ga", model.CookieAnalytics},
		{"_ga_X1Y2Z3", model.CookieAnalytics},
		{"_gid", model.CookieAnalytics},
		{"_hjSessionUser_123", model.CookieAnalytics},
		{"AMP_amplitude_id", model.CookieAnalytics},
		{"mp_abc_mixpanel", model.CookieAnalytics},
		{"ajs_anonymous_id", model.CookieAnalytics},
		{"_pk_id.1.abcd", model.CookieAnalytics},
		{"_fbp", model.CookieAdvertising},
		{"_gcl_au", model.CookieAdvertising},
		{"fr", model.CookieAdvertising},
		{"IDE", model.CookieAdvertising},
		{"test_cookie", model.CookieAdvertising},
		{"MUID", model.CookieAdvertising},
		{"_uetsid", model.CookieAdvertising},
		{"_ttp", model.CookieAdvertising},
		{"session_id", model.CookieOther},
		{"frontend_lang", model.CookieOther},
		{"csrftoken", model.CookieOther},
	}
	for _, tc := range cases {
		got := cookies.Categorize(tc.name)
		assert.Equal(t, tc.want, got, tc.name)
		assert.Equal(t, tc.want != model.CookieOther, cookies.IsRisky(got), tc.name)
	}
}

func TestScore(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 100, cookies.Score(0, 0))
	assert.Equal(t, 80, cookies.Score(3, 2))
	assert.Equal(t, 100, cookies.Score(4, 0))
	assert.Equal(t, 0, cookies.Score(12, 11))
}

func TestObserver_Collect(t *testing.T) {
	t.Parallel()
	expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	page := &testutil.FakePage{
		RequestURLs: []string{
			"https://shop.example.com/",
			"https://cdn.shop.example.com/app.js",
			"https://www.google-analytics.com/g/collect",
			"https://www.google-analytics.com/g/collect?v=2",
			"https://connect.facebook.net/en_US/fbevents.js",
			"https://notexample.com/pixel.gif",
			"data:image/png;base64,AAAA",
		},
		Jar: []browser.Cookie{
			{Name: "_ga", Domain: ".shop.example.com", Expires: expiry},
			{Name: "_fbp", Domain: ".example.com", Expires: expiry},
			{Name: "session_id", Domain: "shop.example.com", Session: true, HTTPOnly: true, Secure: true, SameSite: "Lax"},
			{Name: "IDE", Domain: ".doubleclick.net", Expires: expiry},
		},
		Document: `<html><body><div id="onetrust-banner-sdk">We use cookies</div><main>hi</main></body></html>`,
	}

	obs := cookies.NewObserver(cookies.DefaultConfig(), &testutil.DummyLogger{})
	sess, err := obs.Attach(page, "https://shop.example.com/")
	require.NoError(t, err)
	require.NoError(t, page.Navigate(context.Background(), "https://shop.example.com/"))

	res, err := sess.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com/", res.URL)
	assert.False(t, res.Timestamp.IsZero())
	assert.Equal(t, 4, res.Summary.TotalCookies)
	assert.Equal(t, res.Summary.TotalCookies, res.Summary.PreConsentCookies)
	assert.Equal(t, 3, res.Summary.RiskyCookies)
	assert.Equal(t, 70, res.ComplianceScore)
	assert.Equal(t, []string{"connect.facebook.net", "notexample.com", "www.google-analytics.com"}, res.Summary.ThirdPartyDomains)
	assert.Equal(t, 3, res.Summary.ThirdPartyHosts)
	assert.True(t, res.Banner)
	assert.Equal(t, []string{"#onetrust-banner-sdk"}, res.Summary.BannerSelectors)

	byName := map[string]model.CookieRecord{}
	for _, c := range res.Cookies {
		byName[c.Name] = c
	}
	assert.True(t, byName["_ga"].FirstParty)
	assert.Equal(t, "2026-01-02T03:04:05Z", byName["_ga"].Expires)
	assert.False(t, byName["_fbp"].FirstParty, "parent domain is not first-party")
	assert.Equal(t, model.SessionExpiry, byName["session_id"].Expires)
	assert.False(t, byName["session_id"].Risky)
	assert.True(t, byName["session_id"].HTTPOnly)
	assert.Equal(t, "Lax", byName["session_id"].SameSite)
	assert.False(t, byName["IDE"].FirstParty)
	assert.Equal(t, model.CookieAdvertising, byName["IDE"].Category)
}

func TestObserver_FirstPartyUsesNormalisedTargetHost(t *testing.T) {
	t.Parallel()
	page := &testutil.FakePage{
		RequestURLs: []string{
			"https://SHOP.example.com:8443/api",
			"https://static.shop.example.com/app.js",
			"https://example.com/parent.js",
		},
		Jar: []browser.Cookie{
			{Name: "cart", Domain: "SHOP.EXAMPLE.COM", Session: true},
			{Name: "edge", Domain: ".static.shop.example.com", Session: true},
		},
		Document: `<html><body><p>shop</p></body></html>`,
	}

	obs := cookies.NewObserver(cookies.DefaultConfig(), &testutil.DummyLogger{})
	sess, err := obs.Attach(page, "https://Shop.Example.com:8443/")
	require.NoError(t, err)
	require.NoError(t, page.Navigate(context.Background(), "https://Shop.Example.com:8443/"))

	res, err := sess.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, res.Summary.ThirdPartyDomains)
	for _, c := range res.Cookies {
		assert.True(t, c.FirstParty, c.Name)
	}
}

func TestObserver_NoCookies(t *testing.T) {
	t.Parallel()
	page := &testutil.FakePage{Document: `<html><body><p>plain</p></body></html>`}
	sess, err := cookies.NewObserver(cookies.DefaultConfig(), nil).Attach(page, "https://example.com")
	require.NoError(t, err)

	res, err := sess.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, res.ComplianceScore)
	assert.False(t, res.Banner)
	assert.NotNil(t, res.Cookies)
	assert.NotNil(t, res.Summary.ThirdPartyDomains)
}

func TestObserver_AttachRejectsHostlessTarget(t *testing.T) {
	t.Parallel()
	_, err := cookies.NewObserver(cookies.DefaultConfig(), nil).Attach(&testutil.FakePage{}, "https://")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

type cookieErrPage struct{ testutil.FakePage }

func (p *cookieErrPage) Cookies(context.Context) ([]browser.Cookie, error) {
	return nil, errors.New("target closed")
}

func TestObserver_CookieReadFailure(t *testing.T) {
	t.Parallel()
	sess, err := cookies.NewObserver(cookies.DefaultConfig(), nil).Attach(&cookieErrPage{}, "https://example.com")
	require.NoError(t, err)
	_, err = sess.Collect(context.Background())
	assert.ErrorIs(t, err, model.ErrAuditError)
}

func TestMatchSelectors(t *testing.T) {
	t.Parallel()
	html := `<html><body>
	  <div id="CybotCookiebotDialog"></div>
	  <section class="cookie-banner visible"></section>
	</body></html>`

	got, err := cookies.MatchSelectors(html, []string{"#CybotCookiebotDialog", ".cookie-banner", "#didomi-host", "[[bad"})
	require.NoError(t, err)
	assert.Equal(t, []string{"#CybotCookiebotDialog", ".cookie-banner"}, got)

	got, err = cookies.MatchSelectors(html, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
