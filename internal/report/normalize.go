// Package report turns raw engine output into the stable scan response.
package report

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/raysh454/a11yscan/internal/model"
)

// Normalize maps raw axe-core output onto NormalizedScanResult. It never
// fails: absent or mistyped fields become empty lists and zero counts.
func Normalize(raw json.RawMessage, url string, ts time.Time) model.NormalizedScanResult {
	res := model.NormalizedScanResult{
		URL:           url,
		Timestamp:     ts.UTC(),
		Violations:    []model.RuleResult{},
		ImpactSummary: emptyImpactSummary(),
		Raw:           preserve(raw),
	}
	if !gjson.ValidBytes(raw) {
		return res
	}

	doc := gjson.ParseBytes(raw)
	for _, v := range arrayOf(doc.Get("violations")) {
		if !v.IsObject() {
			continue
		}
		rule := ruleResult(v)
		res.Violations = append(res.Violations, rule)
		if rule.Impact != "" {
			res.ImpactSummary[rule.Impact]++
		}
	}
	res.Passes = len(arrayOf(doc.Get("passes")))
	res.Incomplete = len(arrayOf(doc.Get("incomplete")))
	res.Score = Score(len(res.Violations), res.Passes, res.Incomplete)
	return res
}

// Score is the share of passing rules, 0-100. No rules at all scores 0.
func Score(violations, passes, incomplete int) int {
	total := violations + passes + incomplete
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(passes) / float64(total) * 100))
}

func ruleResult(v gjson.Result) model.RuleResult {
	r := model.RuleResult{
		ID:          v.Get("id").String(),
		Impact:      impactOf(v.Get("impact")),
		Description: v.Get("description").String(),
		Help:        v.Get("help").String(),
		HelpURL:     v.Get("helpUrl").String(),
		Tags:        []string{},
		Nodes:       []model.NodeResult{},
	}
	for _, t := range arrayOf(v.Get("tags")) {
		if t.Type == gjson.String {
			r.Tags = append(r.Tags, t.String())
		}
	}
	for _, n := range arrayOf(v.Get("nodes")) {
		if !n.IsObject() {
			continue
		}
		r.Nodes = append(r.Nodes, model.NodeResult{
			HTML:           n.Get("html").String(),
			Target:         targetOf(n.Get("target")),
			FailureSummary: n.Get("failureSummary").String(),
		})
	}
	return r
}

// targetOf flattens axe selectors. Elements inside iframes or shadow roots
// come as nested arrays, joined here with " >>> ".
func targetOf(t gjson.Result) []string {
	out := []string{}
	for _, sel := range arrayOf(t) {
		if sel.IsArray() {
			parts := make([]string, 0, len(sel.Array()))
			for _, p := range sel.Array() {
				parts = append(parts, p.String())
			}
			out = append(out, strings.Join(parts, " >>> "))
			continue
		}
		out = append(out, sel.String())
	}
	return out
}

func impactOf(v gjson.Result) model.Impact {
	imp := model.Impact(strings.ToLower(v.String()))
	for _, known := range model.Impacts {
		if imp == known {
			return imp
		}
	}
	return ""
}

func arrayOf(v gjson.Result) []gjson.Result {
	if !v.IsArray() {
		return nil
	}
	return v.Array()
}

func emptyImpactSummary() map[model.Impact]int {
	m := make(map[model.Impact]int, len(model.Impacts))
	for _, imp := range model.Impacts {
		m[imp] = 0
	}
	return m
}

// preserve keeps raw verbatim when it is JSON; anything else is carried as a
// JSON string so the response stays encodable.
func preserve(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(raw) {
		return raw
	}
	b, _ := json.Marshal(string(raw))
	return b
}
