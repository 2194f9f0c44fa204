// Package resilience defines the ingestion error taxonomy and bounded retry.
package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/satyamrathirar/popularity-vision/internal/model"
)

// TransientError wraps a failure that is safe to retry (timeout, 5xx,
// temporary network failure).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransient wraps an error as transient with an optional HTTP status code.
func NewTransient(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// QuotaExceededError means the source's API quota is spent. The source must
// not be called again for the remainder of the run; the run itself continues.
type QuotaExceededError struct {
	Source string
	Err    error
}

func (e *QuotaExceededError) Error() string { return e.Err.Error() }
func (e *QuotaExceededError) Unwrap() error { return e.Err }

// NewQuotaExceeded marks a source as exhausted for the current run.
func NewQuotaExceeded(source string, err error) *QuotaExceededError {
	return &QuotaExceededError{Source: source, Err: err}
}

// PermanentItemError means a single item is malformed or unsupported. The
// item is skipped; the sequence continues.
type PermanentItemError struct {
	Err error
}

func (e *PermanentItemError) Error() string { return e.Err.Error() }
func (e *PermanentItemError) Unwrap() error { return e.Err }

// NewPermanentItem marks a single item as unprocessable.
func NewPermanentItem(err error) *PermanentItemError {
	return &PermanentItemError{Err: err}
}

// StoreUnavailableError means the record store cannot be reached. It is
// fatal to the whole run.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string { return e.Err.Error() }
func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// NewStoreUnavailable marks a store connectivity failure.
func NewStoreUnavailable(err error) *StoreUnavailableError {
	return &StoreUnavailableError{Err: err}
}

// IsTransient reports whether err (or anything in its chain) is retryable:
// an explicit TransientError, a network timeout, or a connection-level
// failure matching common transient patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsQuotaExceeded reports whether err marks an exhausted source quota.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}

// IsPermanentItem reports whether err marks a single unprocessable item.
func IsPermanentItem(err error) bool {
	var pe *PermanentItemError
	return errors.As(err, &pe)
}

// IsStoreUnavailable reports whether err marks a store connectivity failure.
func IsStoreUnavailable(err error) bool {
	var se *StoreUnavailableError
	return errors.As(err, &se)
}

// IsTransientHTTPStatus reports whether an HTTP status code indicates a
// transient server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// Kind maps an error to its run-report category.
func Kind(err error) model.ErrorKind {
	switch {
	case IsStoreUnavailable(err):
		return model.ErrorKindStoreUnavailable
	case IsQuotaExceeded(err):
		return model.ErrorKindQuotaExceeded
	case IsPermanentItem(err):
		return model.ErrorKindPermanentItem
	case errors.Is(err, context.DeadlineExceeded):
		return model.ErrorKindTimeout
	default:
		return model.ErrorKindTransient
	}
}
