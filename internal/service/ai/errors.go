package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies a provider failure.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureDailyQuota  FailureKind = "daily_quota"
	FailureRateLimited FailureKind = "rate_limited"
	FailureQuota       FailureKind = "quota"
	FailureBadRequest  FailureKind = "bad_request"
	FailureUnavailable FailureKind = "unavailable"
	FailureUnknown     FailureKind = "unknown"
)

// ProviderError carries a provider failure together with its classification.
type ProviderError struct {
	Kind FailureKind
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider error (%s)", e.Kind)
	}
	return fmt.Sprintf("provider error (%s): %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// newProviderError wraps err with the kind its text classifies to.
func newProviderError(err error) *ProviderError {
	return &ProviderError{Kind: classifyText(err.Error()), Err: err}
}

var markers = []struct {
	kind    FailureKind
	needles []string
}{
	{FailureDailyQuota, []string{"perday", "per day", "per_day", "daily"}},
	{FailureRateLimited, []string{"perminute", "per minute", "per_minute", "per-minute", "per min", "(rpm)", "(tpm)", "rate_limit_error"}},
	{FailureQuota, []string{"429", "quota", "resource_exhausted", "resource exhausted", "too many requests", "rate limit"}},
	{FailureBadRequest, []string{"400", "invalid_argument", "invalid argument", "bad request"}},
	{FailureUnavailable, []string{"500", "502", "503", "504", "unavailable", "internal error", "overloaded", "deadline exceeded"}},
}

// Classify maps an error onto a FailureKind. A *ProviderError with a kind
// keeps it; everything else is classified by its text.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var perr *ProviderError
	if errors.As(err, &perr) && perr.Kind != FailureNone {
		return perr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureUnavailable
	}
	return classifyText(err.Error())
}

func classifyText(msg string) FailureKind {
	lower := strings.ToLower(msg)
	for _, m := range markers {
		for _, needle := range m.needles {
			if strings.Contains(lower, needle) {
				return m.kind
			}
		}
	}
	return FailureUnknown
}
