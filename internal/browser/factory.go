package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
)

// ScanContext is one request's private browsing session: a fresh browser
// context with exactly one page. It is never shared between requests.
type ScanContext struct {
	ID        string
	Page      Page
	CreatedAt time.Time

	logger    logging.Logger
	closeOnce sync.Once
}

// Factory carves ScanContexts out of the shared browser.
type Factory struct {
	logger logging.Logger
}

func NewFactory(logger logging.Logger) *Factory {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Factory{logger: logger.With(logging.Field{Key: "component", Value: "context-factory"})}
}

// NewContext fails only when the browser itself is unusable.
func (f *Factory) NewContext(ctx context.Context, b Browser) (*ScanContext, error) {
	if b == nil {
		return nil, model.NewScanError(model.ErrBrowserUnavailable, "acquiring", errors.New("no browser handle"))
	}
	p, err := b.NewPage(ctx)
	if err != nil {
		return nil, model.NewScanError(model.ErrBrowserUnavailable, "acquiring", err)
	}

	id := uuid.New().String()
	sc := &ScanContext{
		ID:        id,
		Page:      p,
		CreatedAt: time.Now().UTC(),
		logger:    f.logger.With(logging.Field{Key: "context_id", Value: id}),
	}
	sc.logger.Debug("scan context created")
	return sc, nil
}

// Close releases the page and its browsing context. It is idempotent and
// never fails: release errors are logged, not returned, so they cannot
// mask the scan's own outcome.
func (sc *ScanContext) Close() {
	if sc == nil {
		return
	}
	sc.closeOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				sc.logger.Warn("releasing scan context panicked",
					logging.Err(model.NewScanError(model.ErrReleaseError, "releasing", fmt.Errorf("%v", r))))
			}
		}()
		if sc.Page == nil {
			return
		}
		if err := sc.Page.Close(); err != nil {
			sc.logger.Warn("releasing scan context",
				logging.Err(model.NewScanError(model.ErrReleaseError, "releasing", err)))
			return
		}
		sc.logger.Debug("scan context released",
			logging.Field{Key: "lifetime", Value: time.Since(sc.CreatedAt).String()})
	})
}
