// Package checklist maps an axe-core result onto WCAG success criteria.
package checklist

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/raysh454/a11yscan/internal/model"
)

// Tag is the axe-core tag for a criterion id: "1.4.3" becomes "wcag143".
func Tag(id string) string {
	return "wcag" + strings.ReplaceAll(id, ".", "")
}

// Map classifies every criterion against raw. A criterion fails when any
// violation carries its tag, passes when only passes carry it, and needs
// review otherwise.
func Map(raw json.RawMessage) []model.ChecklistItem {
	var failed, passed map[string]bool
	if gjson.ValidBytes(raw) {
		doc := gjson.ParseBytes(raw)
		failed = tagSet(doc.Get("violations"))
		passed = tagSet(doc.Get("passes"))
	}

	items := make([]model.ChecklistItem, 0, len(wcag20))
	for _, c := range wcag20 {
		tag := Tag(c.ID)
		status := model.ChecklistNeedsReview
		switch {
		case failed[tag]:
			status = model.ChecklistFail
		case passed[tag]:
			status = model.ChecklistPass
		}
		items = append(items, model.ChecklistItem{ID: c.ID, Name: c.Name, Level: c.Level, Status: status})
	}
	return items
}

func tagSet(rules gjson.Result) map[string]bool {
	set := map[string]bool{}
	if !rules.IsArray() {
		return set
	}
	rules.ForEach(func(_, rule gjson.Result) bool {
		rule.Get("tags").ForEach(func(_, tag gjson.Result) bool {
			if tag.Type == gjson.String {
				set[tag.String()] = true
			}
			return true
		})
		return true
	})
	return set
}
