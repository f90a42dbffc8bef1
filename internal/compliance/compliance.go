// Package compliance looks up the accessibility law that applies in a
// country. The table is static and embedded in the binary.
package compliance

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/raysh454/a11yscan/internal/model"
)

//go:embed countries.json
var countriesJSON []byte

type entry struct {
	Standard    string `json:"standard"`
	Description string `json:"description"`
}

// Table maps country names (with spaces) to their standard.
type Table struct {
	byName map[string]entry
	// byKey is keyed by the lower-cased name for lookups.
	byKey map[string]string
}

// Default parses the embedded table. It panics only if the embedded file is
// malformed, which the tests rule out.
func Default() *Table {
	t, err := Parse(countriesJSON)
	if err != nil {
		panic(fmt.Sprintf("compliance: embedded table: %v", err))
	}
	return t
}

// Parse builds a table from JSON shaped like {"Country": {"standard", "description"}}.
func Parse(b []byte) (*Table, error) {
	var m map[string]entry
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	t := &Table{byName: m, byKey: make(map[string]string, len(m))}
	for name := range m {
		t.byKey[key(name)] = name
	}
	return t, nil
}

// Lookup accepts "United States" as well as the URL form "United-States".
func (t *Table) Lookup(country string) (model.ComplianceInfo, bool) {
	name, ok := t.byKey[key(country)]
	if !ok {
		return model.ComplianceInfo{}, false
	}
	e := t.byName[name]
	return model.ComplianceInfo{Country: name, Standard: e.Standard, Description: e.Description}, true
}

// List returns every entry sorted by country name.
func (t *Table) List() []model.ComplianceInfo {
	out := make([]model.ComplianceInfo, 0, len(t.byName))
	for name, e := range t.byName {
		out = append(out, model.ComplianceInfo{Country: name, Standard: e.Standard, Description: e.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

func key(country string) string {
	s := strings.ReplaceAll(strings.TrimSpace(country), "-", " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
