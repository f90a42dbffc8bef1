package model_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raysh454/a11yscan/internal/model"
)

func TestScanError_MatchesKindAndCause(t *testing.T) {
	t.Parallel()
	err := model.NewScanError(model.ErrNavigationTimeout, "navigating", context.DeadlineExceeded)

	assert.ErrorIs(t, err, model.ErrNavigationTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, model.ErrAuditError)
	assert.Equal(t, "navigation timeout: context deadline exceeded", err.Error())
}

func TestNewScanError_KeepsFirstClassification(t *testing.T) {
	t.Parallel()
	inner := model.NewScanError(model.ErrInjectionFailed, "auditing", errors.New("axe missing"))
	outer := model.NewScanError(model.ErrAuditError, "auditing", inner)

	assert.Same(t, inner, outer)
	assert.ErrorIs(t, outer, model.ErrInjectionFailed)
	assert.NotErrorIs(t, outer, model.ErrAuditError)
}

func TestScanError_NilCause(t *testing.T) {
	t.Parallel()
	err := &model.ScanError{Kind: model.ErrBrowserUnavailable}
	assert.Equal(t, "browser unavailable", err.Error())
	assert.ErrorIs(t, err, model.ErrBrowserUnavailable)
}

func TestIsClientError(t *testing.T) {
	t.Parallel()
	assert.True(t, model.IsClientError(model.NewScanError(model.ErrInvalidInput, "validating", nil)))
	assert.False(t, model.IsClientError(model.NewScanError(model.ErrAuditError, "auditing", nil)))
}
