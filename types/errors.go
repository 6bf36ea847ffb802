package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnprocessable marks a document that cannot be read at all (zero
// pages, corrupt structure, encrypted with no extractable text). A batch
// import skips such documents and continues.
var ErrUnprocessable = errors.New("document is unprocessable")

// ErrStoreUnavailable is reported by the vector search path when the
// store cannot serve the query. The aggregator degrades to keyword
// search instead of failing the query.
var ErrStoreUnavailable = errors.New("retrieval store unavailable")

// UnprocessableDocumentError wraps ErrUnprocessable with the offending
// path and cause.
type UnprocessableDocumentError struct {
	Path  string
	Cause error
}

func (e *UnprocessableDocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unprocessable document %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("unprocessable document %s", e.Path)
}

func (e *UnprocessableDocumentError) Unwrap() error { return ErrUnprocessable }

// IsUnprocessable reports whether err means the document should be
// skipped rather than retried.
func IsUnprocessable(err error) bool {
	return errors.Is(err, ErrUnprocessable)
}

// ProviderAttempt records the outcome of one model in the fallback chain.
type ProviderAttempt struct {
	Model string
	Err   error
}

// ProviderExhaustedError is returned when every model in the fallback
// chain failed. It carries the attempted models in order with their last
// errors; queries fail outright on it.
type ProviderExhaustedError struct {
	Attempts []ProviderAttempt
}

func (e *ProviderExhaustedError) Error() string {
	models := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		models[i] = a.Model
	}
	last := "no attempts"
	if n := len(e.Attempts); n > 0 {
		last = fmt.Sprintf("last error: %v", e.Attempts[n-1].Err)
	}
	return fmt.Sprintf("all models failed [%s], %s", strings.Join(models, ", "), last)
}

// Models returns the attempted model identifiers in order.
func (e *ProviderExhaustedError) Models() []string {
	models := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		models[i] = a.Model
	}
	return models
}

// ProviderError classifies one LLM provider failure. Transient errors
// (timeouts, rate limits, 5xx) are retried; anything else abandons the
// current model immediately.
type ProviderError struct {
	Model      string
	StatusCode int
	Message    string
	Transient  bool
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (model=%s, status=%d): %s", e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error (model=%s): %s", e.Model, e.Message)
}

// IsTransient reports whether err should be retried against the same
// model. Plain network errors without a classification count as
// transient.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
