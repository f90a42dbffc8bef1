package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var httpURLPattern = regexp.MustCompile(`(?i)^https?://`)

// ScanRequest represents a request to audit a single page.
type ScanRequest struct {
	// URL is the page to audit. It must start with http:// or https://.
	URL string `json:"url" example:"https://example.com"`

	// Country is an optional jurisdiction hint. It is passed through and not
	// validated against the compliance table.
	Country string `json:"country,omitempty" example:"United States"`
}

// Validate rejects URLs that do not carry an http(s) scheme and a host.
func (r ScanRequest) Validate() error {
	u := strings.TrimSpace(r.URL)
	if u == "" {
		return NewScanError(ErrInvalidInput, "validating", fmt.Errorf("url is required"))
	}
	if !httpURLPattern.MatchString(u) {
		return NewScanError(ErrInvalidInput, "validating", fmt.Errorf("url must start with http:// or https://"))
	}
	if parsed, err := url.Parse(u); err != nil || parsed.Hostname() == "" {
		return NewScanError(ErrInvalidInput, "validating", fmt.Errorf("url must include a host"))
	}
	return nil
}

// Impact is the severity tag attached by the engine.
type Impact string

const (
	ImpactCritical Impact = "critical"
	ImpactSerious  Impact = "serious"
	ImpactModerate Impact = "moderate"
	ImpactMinor    Impact = "minor"
)

// Impacts lists severities from most to least severe.
var Impacts = []Impact{ImpactCritical, ImpactSerious, ImpactModerate, ImpactMinor}

// NodeResult describes one offending element.
type NodeResult struct {
	HTML           string   `json:"html"`
	Target         []string `json:"target"`
	FailureSummary string   `json:"failureSummary,omitempty"`
}

// RuleResult is a single violation or incomplete record.
type RuleResult struct {
	ID          string       `json:"id"`
	Impact      Impact       `json:"impact,omitempty"`
	Description string       `json:"description"`
	Help        string       `json:"help"`
	HelpURL     string       `json:"helpUrl,omitempty"`
	Tags        []string     `json:"tags"`
	Nodes       []NodeResult `json:"nodes"`
}

// ChecklistStatus is the outcome for one WCAG success criterion.
type ChecklistStatus string

const (
	ChecklistPass        ChecklistStatus = "Pass"
	ChecklistFail        ChecklistStatus = "Fail"
	ChecklistNeedsReview ChecklistStatus = "Needs Review"
)

// ChecklistItem is one mapped WCAG success criterion.
type ChecklistItem struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Level  string          `json:"level"`
	Status ChecklistStatus `json:"status"`
}

// ComplianceInfo is the legal standard that applies in a country.
type ComplianceInfo struct {
	Country     string `json:"country"`
	Standard    string `json:"standard"`
	Description string `json:"description"`
}

// NormalizedScanResult is the response of an accessibility scan. Violations,
// Passes and Incomplete are always present, even for malformed engine output.
type NormalizedScanResult struct {
	URL           string          `json:"url"`
	Timestamp     time.Time       `json:"timestamp"`
	Violations    []RuleResult    `json:"violations"`
	Passes        int             `json:"passes"`
	Incomplete    int             `json:"incomplete"`
	Score         int             `json:"score"`
	ImpactSummary map[Impact]int  `json:"impactSummary"`
	Checklist     []ChecklistItem `json:"checklist,omitempty"`
	Compliance    *ComplianceInfo `json:"compliance,omitempty"`
	Raw           json.RawMessage `json:"raw"`
}

// CookieCategory is a coarse classification derived from the cookie name.
type CookieCategory string

const (
	CookieAnalytics   CookieCategory = "Analytics"
	CookieAdvertising CookieCategory = "Advertising"
	CookieOther       CookieCategory = "Other"
)

// SessionExpiry marks cookies without an expiry date.
const SessionExpiry = "session"

// CookieRecord is one cookie observed during the visit.
type CookieRecord struct {
	Name       string         `json:"name"`
	Domain     string         `json:"domain"`
	Expires    string         `json:"expires"`
	Category   CookieCategory `json:"category"`
	FirstParty bool           `json:"firstParty"`
	Risky      bool           `json:"risky"`
	Secure     bool           `json:"secure"`
	HTTPOnly   bool           `json:"httpOnly"`
	SameSite   string         `json:"sameSite,omitempty"`
}

// CookieSummary aggregates the observation.
//
// PreConsentCookies equals TotalCookies: no consent interaction is simulated,
// so every cookie seen is counted as set before consent.
type CookieSummary struct {
	TotalCookies      int      `json:"totalCookies"`
	PreConsentCookies int      `json:"preConsentCookies"`
	RiskyCookies      int      `json:"riskyCookies"`
	ThirdPartyHosts   int      `json:"thirdPartyHosts"`
	ThirdPartyDomains []string `json:"thirdPartyDomains"`
	BannerSelectors   []string `json:"bannerSelectors,omitempty"`
}

// CookieComplianceResult is the response of a cookie-compliance scan.
type CookieComplianceResult struct {
	URL             string         `json:"url"`
	Timestamp       time.Time      `json:"timestamp"`
	ComplianceScore int            `json:"complianceScore"`
	Summary         CookieSummary  `json:"summary"`
	Cookies         []CookieRecord `json:"cookies"`
	Banner          bool           `json:"banner"`
}
