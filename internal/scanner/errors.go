package scanner

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderNotConfigured is returned when the provider credential is missing.
	ErrProviderNotConfigured = errors.New("job search provider is not configured")
	// ErrInvalidTimeRange is returned for a time range outside the accepted set.
	ErrInvalidTimeRange = errors.New("invalid time range")
	// ErrUpstreamTimeout is returned when a provider call exceeds its deadline.
	ErrUpstreamTimeout = errors.New("job search provider timed out")
	// ErrEmptyTitle is returned when an analysis is requested without a job title.
	ErrEmptyTitle = errors.New("job title is required")
)

// UpstreamStatusError reports a non-success HTTP status from the provider.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("job search provider returned status %d", e.StatusCode)
}

// ProviderQueryError wraps the failure of a single expanded query.
type ProviderQueryError struct {
	Query string
	Err   error
}

func (e *ProviderQueryError) Error() string {
	return fmt.Sprintf("query %q failed: %v", e.Query, e.Err)
}

func (e *ProviderQueryError) Unwrap() error {
	return e.Err
}
