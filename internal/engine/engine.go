// Package engine injects an accessibility rules engine into a page and runs
// it. Engines only talk to the page through browser.Page, so they can be
// swapped without touching the scanner.
package engine

import (
	"context"
	"encoding/json"

	"github.com/raysh454/a11yscan/internal/browser"
)

// Engine audits the document loaded in a page.
type Engine interface {
	Name() string

	// Prepare runs before navigation. It may change page settings (such as
	// CSP bypass) that only take effect for the next document.
	Prepare(ctx context.Context, page browser.Page) error

	// Audit returns the engine's native result unmodified.
	Audit(ctx context.Context, page browser.Page) (json.RawMessage, error)
}
