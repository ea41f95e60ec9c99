package utils

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrOutputInvalid        = errors.New("ai output failed validation")
	ErrAuthorization        = errors.New("authorization error")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrTransactionFailure   = errors.New("transaction failure")
	ErrDataAccessFailure    = errors.New("data access failure")
	ErrAIUnavailable        = errors.New("ai provider temporarily unavailable")
	ErrAIRejected           = errors.New("ai provider rejected request")
	ErrAIFailure            = errors.New("ai provider failure")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotFound             = errors.New("record not found")
)

// Authorization reasons.
const (
	ReasonFeatureNotInPlan  = "FEATURE_NOT_IN_PLAN"
	ReasonActiveSeriesLimit = "ACTIVE_SERIES_LIMIT"
)

// errorCodes is ordered like errorMappings; the first match wins when a
// chain wraps more than one sentinel.
var errorCodes = []struct {
	kind error
	code string
}{
	{ErrValidation, "VALIDATION_ERROR"},
	{ErrOutputInvalid, "AI_OUTPUT_INVALID"},
	{ErrAuthorization, "AUTHORIZATION_ERROR"},
	{ErrInsufficientResource, "INSUFFICIENT_RESOURCE"},
	{ErrUserNotFound, "USER_NOT_FOUND"},
	{ErrNotFound, "NOT_FOUND"},
	{ErrAIUnavailable, "AI_PROVIDER_UNAVAILABLE"},
	{ErrAIRejected, "AI_PROVIDER_REJECTED"},
	{ErrAIFailure, "AI_PROVIDER_FAILURE"},
	{ErrTransactionFailure, "TRANSACTION_FAILURE"},
	{ErrDataAccessFailure, "DATA_ACCESS_FAILURE"},
}

func codeFor(err error) (string, bool) {
	for _, c := range errorCodes {
		if errors.Is(err, c.kind) {
			return c.code, true
		}
	}
	return "", false
}

// CodedError carries a stable kind, a machine-readable reason and structured
// metadata across layer boundaries. Kind is always one of the sentinels above.
type CodedError struct {
	Kind   error
	Reason string
	Meta   map[string]any
	Cause  error
}

func (e *CodedError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *CodedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Code returns the stable discriminator for the error kind.
func (e *CodedError) Code() string {
	code, _ := codeFor(e.Kind)
	return code
}

// CodeOf returns the stable code of the first known kind found in err's chain.
func CodeOf(err error) string {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code()
	}
	if code, ok := codeFor(err); ok {
		return code
	}
	return "INTERNAL_ERROR"
}

func NewValidationError(reason string, violations ...string) error {
	e := &CodedError{Kind: ErrValidation, Reason: reason}
	if len(violations) > 0 {
		e.Meta = map[string]any{"violations": violations}
	}
	return e
}

func NewOutputInvalidError(violations []string) error {
	return &CodedError{
		Kind:   ErrOutputInvalid,
		Reason: strings.Join(violations, "; "),
		Meta:   map[string]any{"violations": violations},
	}
}

func NewFeatureDeniedError(planID, feature string) error {
	return &CodedError{
		Kind:   ErrAuthorization,
		Reason: ReasonFeatureNotInPlan,
		Meta:   map[string]any{"plan": planID, "feature": feature},
	}
}

func NewLimitReachedError(used, max int) error {
	return &CodedError{
		Kind:   ErrAuthorization,
		Reason: ReasonActiveSeriesLimit,
		Meta:   map[string]any{"used": used, "max": max},
	}
}

func NewInsufficientResourceError(required, available int64) error {
	return &CodedError{
		Kind:   ErrInsufficientResource,
		Reason: fmt.Sprintf("required %d, available %d", required, available),
		Meta:   map[string]any{"required": required, "available": available},
	}
}

func NewTransactionFailure(op string, cause error) error {
	return &CodedError{Kind: ErrTransactionFailure, Reason: op, Meta: map[string]any{"operation": op}, Cause: cause}
}

func NewDataAccessFailure(op string, cause error) error {
	return &CodedError{Kind: ErrDataAccessFailure, Reason: op, Meta: map[string]any{"operation": op}, Cause: cause}
}

func NewAIError(kind error, stage string, cause error) error {
	return &CodedError{Kind: kind, Reason: stage, Meta: map[string]any{"stage": stage}, Cause: cause}
}
