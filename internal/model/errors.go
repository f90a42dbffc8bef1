package model

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is against any error returned by the
// scanner; the wrapped cause stays reachable as well.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrBrowserUnavailable = errors.New("browser unavailable")
	ErrNavigationTimeout  = errors.New("navigation timeout")
	ErrNavigationFailed   = errors.New("navigation failed")
	ErrInjectionFailed    = errors.New("accessibility engine injection failed")
	ErrAuditError         = errors.New("accessibility audit failed")
	ErrCaptureFailed      = errors.New("screenshot failed")
	ErrReleaseError       = errors.New("release failed")
)

// ScanError tags a failure with its kind and the stage it happened in.
type ScanError struct {
	Kind  error
	Stage string
	Err   error
}

// NewScanError wraps err with kind. If err already carries a ScanError, it is
// returned unchanged so the first classification wins.
func NewScanError(kind error, stage string, err error) error {
	var se *ScanError
	if errors.As(err, &se) {
		return err
	}
	return &ScanError{Kind: kind, Stage: stage, Err: err}
}

func (e *ScanError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ScanError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsClientError reports whether err should be surfaced as a 4xx.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
