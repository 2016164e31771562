package aggregation

import (
	"errors"
	"fmt"

	"finlink/internal/domain/credential"
	"finlink/internal/domain/user"
	"finlink/internal/infrastructure/plaid"
)

var (
	ErrInvalidInput  = credential.ErrInvalidInput
	ErrUserNotLinked = errors.New("user has no linked credentials")
	ErrNotFound      = user.ErrUserNotFound
)

// ProviderError reports a failed provider call. The provider's error
// classification is preserved when it sent one.
type ProviderError struct {
	Op         string
	StatusCode int
	Type       string
	Code       string
	Message    string
	RequestID  string
	Err        error
}

func newProviderError(op string, err error) *ProviderError {
	pe := &ProviderError{Op: op, Err: err, Message: err.Error()}
	if apiErr, ok := plaid.AsError(err); ok {
		pe.StatusCode = apiErr.StatusCode
		pe.Type = apiErr.ErrorType
		pe.Code = apiErr.ErrorCode
		pe.Message = apiErr.ErrorMessage
		pe.RequestID = apiErr.RequestID
	}
	return pe
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider %s failed: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("provider %s failed: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// PartialFailureError is returned by a report when some, but not all,
// credentials failed.
type PartialFailureError struct {
	Failed int
	Total  int
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d of %d credentials failed", e.Failed, e.Total)
}
