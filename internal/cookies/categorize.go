package cookies

import (
	"strings"

	"github.com/raysh454/a11yscan/internal/model"
)

type matchKind int

const (
	prefix matchKind = iota
	exact
	contains
)

type rule struct {
	pattern  string
	kind     matchKind
	category model.CookieCategory
}

// rules are checked in order against the lower-cased cookie name.
var rules = []rule{
	{"_ga", prefix, model.CookieAnalytics},
	{"_gid", prefix, model.CookieAnalytics},
	{"_gat", prefix, model.CookieAnalytics},
	{"_hj", prefix, model.CookieAnalytics},
	{"amplitude", contains, model.CookieAnalytics},
	{"mp_", prefix, model.CookieAnalytics},
	{"ajs_", prefix, model.CookieAnalytics},
	{"_pk_", prefix, model.CookieAnalytics},

	{"_fbp", prefix, model.CookieAdvertising},
	{"_gcl", prefix, model.CookieAdvertising},
	{"fr", exact, model.CookieAdvertising},
	{"ide", exact, model.CookieAdvertising},
	{"test_cookie", exact, model.CookieAdvertising},
	{"_uet", prefix, model.CookieAdvertising},
	{"muid", exact, model.CookieAdvertising},
	{"_ttp", prefix, model.CookieAdvertising},
}

func (r rule) matches(name string) bool {
	switch r.kind {
	case exact:
		return name == r.pattern
	case contains:
		return strings.Contains(name, r.pattern)
	default:
		return strings.HasPrefix(name, r.pattern)
	}
}

// Categorize classifies a cookie by its name.
func Categorize(name string) model.CookieCategory {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, r := range rules {
		if r.matches(n) {
			return r.category
		}
	}
	return model.CookieOther
}

// IsRisky reports whether a category tracks the visitor.
func IsRisky(c model.CookieCategory) bool {
	return c == model.CookieAnalytics || c == model.CookieAdvertising
}

// Score is 100 without cookies, otherwise 100 minus 10 per risky cookie,
// floored at 0.
func Score(total, risky int) int {
	if total == 0 {
		return 100
	}
	return max(0, 100-10*risky)
}
