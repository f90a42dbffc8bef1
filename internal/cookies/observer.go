// Package cookies observes the cookies and third-party requests of a page
// visit and derives a consent-compliance heuristic.
package cookies

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/utils"
)

type Observer struct {
	cfg    Config
	logger logging.Logger
}

func NewObserver(cfg Config, logger logging.Logger) *Observer {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Observer{cfg: cfg, logger: logger.With(logging.Field{Key: "component", Value: "cookie-observer"})}
}

// Session is one observed visit. It is created before navigation and read
// once the page has settled.
type Session struct {
	obs    *Observer
	page   browser.Page
	target string
	site   *utils.URLTools

	mu         sync.Mutex
	thirdParty map[string]struct{}
}

// Attach starts recording requests of page. It must be called before the
// page navigates to target.
func (o *Observer) Attach(page browser.Page, target string) (*Session, error) {
	u, err := utils.NewURLTools(target)
	if err != nil {
		return nil, model.NewScanError(model.ErrInvalidInput, "validating", err)
	}
	s := &Session{
		obs:        o,
		page:       page,
		target:     target,
		site:       u,
		thirdParty: make(map[string]struct{}),
	}
	page.OnRequest(s.record)
	return s, nil
}

func (s *Session) record(rawURL string) {
	host := utils.HostOf(rawURL)
	// data:, blob: and about: requests have no host.
	if host == "" || s.site.BelongsTo(host) {
		return
	}
	s.mu.Lock()
	s.thirdParty[host] = struct{}{}
	s.mu.Unlock()
}

// ThirdPartyHosts returns the distinct third-party hosts seen so far, sorted.
func (s *Session) ThirdPartyHosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.thirdParty))
	for h := range s.thirdParty {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Collect reads the browsing context's cookies, looks for a consent banner
// and builds the result. Banner detection is best effort.
func (s *Session) Collect(ctx context.Context) (model.CookieComplianceResult, error) {
	raw, err := s.page.Cookies(ctx)
	if err != nil {
		return model.CookieComplianceResult{}, model.NewScanError(model.ErrAuditError, "auditing", fmt.Errorf("read cookies: %w", err))
	}

	records := make([]model.CookieRecord, 0, len(raw))
	risky := 0
	for _, c := range raw {
		rec := s.recordOf(c)
		if rec.Risky {
			risky++
		}
		records = append(records, rec)
	}

	matched, err := s.detectBanner(ctx)
	if err != nil {
		s.obs.logger.Warn("banner detection failed", logging.Field{Key: "url", Value: s.target}, logging.Err(err))
	}

	hosts := s.ThirdPartyHosts()
	return model.CookieComplianceResult{
		URL:             s.target,
		Timestamp:       time.Now().UTC(),
		ComplianceScore: Score(len(records), risky),
		Summary: model.CookieSummary{
			TotalCookies: len(records),
			// No consent interaction is simulated, so every cookie counts.
			PreConsentCookies: len(records),
			RiskyCookies:      risky,
			ThirdPartyHosts:   len(hosts),
			ThirdPartyDomains: hosts,
			BannerSelectors:   matched,
		},
		Cookies: records,
		Banner:  len(matched) > 0,
	}, nil
}

func (s *Session) recordOf(c browser.Cookie) model.CookieRecord {
	cat := Categorize(c.Name)
	expires := model.SessionExpiry
	if !c.Session && !c.Expires.IsZero() {
		expires = c.Expires.UTC().Format(time.RFC3339)
	}
	return model.CookieRecord{
		Name:       c.Name,
		Domain:     c.Domain,
		Expires:    expires,
		Category:   cat,
		FirstParty: s.site.BelongsTo(c.Domain),
		Risky:      IsRisky(cat),
		Secure:     c.Secure,
		HTTPOnly:   c.HTTPOnly,
		SameSite:   c.SameSite,
	}
}

// detectBanner returns the configured selectors present in the rendered DOM.
func (s *Session) detectBanner(ctx context.Context) ([]string, error) {
	html, err := s.page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return MatchSelectors(html, s.obs.cfg.BannerSelectors)
}

// MatchSelectors returns the selectors that match at least one element of
// html. Selectors that fail to parse never match.
func MatchSelectors(html string, selectors []string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	var matched []string
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			matched = append(matched, sel)
		}
	}
	return matched, nil
}
