package generate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind is the failure taxonomy for generation calls. It drives both the
// retry decision and the recovery advice shown to the user.
type Kind string

const (
	KindContextTooLarge   Kind = "context_too_large"
	KindRateLimited       Kind = "rate_limited"
	KindInvalidCredential Kind = "invalid_credential"
	KindSafetyBlocked     Kind = "safety_blocked"
	KindModelUnavailable  Kind = "model_unavailable"
	KindNetwork           Kind = "network"
	KindUnknown           Kind = "unknown"
)

// RecoveryAction is a suggested next step for a user-visible failure.
type RecoveryAction string

const (
	ActionNewConversation RecoveryAction = "start_new_conversation"
	ActionWaitAndRetry    RecoveryAction = "wait_and_retry"
	ActionRetryNow        RecoveryAction = "retry_now"
	ActionCheckConfig     RecoveryAction = "check_configuration"
)

// Error is a classified generation failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrSafetyBlocked marks a response refused on safety grounds, either via
// an explicit finish signal or an entirely empty stream.
var ErrSafetyBlocked = errors.New("response blocked by safety policy")

var patternSets = []struct {
	kind     Kind
	patterns []string
}{
	{KindContextTooLarge, []string{
		"context length", "context_length_exceeded", "token limit",
		"too many tokens", "input too long", "prompt is too long",
		"request payload size exceeds",
	}},
	{KindRateLimited, []string{
		"rate limit", "ratelimit", "quota", "resource exhausted",
		"resource_exhausted", "too many requests",
	}},
	{KindInvalidCredential, []string{
		"api key", "api_key", "unauthorized", "unauthenticated",
		"invalid credential", "permission denied", "forbidden",
	}},
	{KindSafetyBlocked, []string{
		"safety", "blocked by", "prohibited content",
	}},
	{KindModelUnavailable, []string{
		"model is overloaded", "overloaded", "unavailable",
		"model not found", "internal server error",
	}},
	{KindNetwork, []string{
		"connection refused", "connection reset", "timeout",
		"deadline exceeded", "no such host", "broken pipe",
		"unexpected eof", "tls handshake", "network",
	}},
}

var statusCodeRe = regexp.MustCompile(`\b([1-5]\d{2})\b`)

// Classify maps an error onto the taxonomy: text patterns first, then any
// HTTP-like status code found in the message. Unknown errors classify as
// retryable by default, which keeps transient blips survivable.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrSafetyBlocked) {
		return KindSafetyBlocked
	}

	msg := strings.ToLower(err.Error())
	for _, set := range patternSets {
		for _, p := range set.patterns {
			if strings.Contains(msg, p) {
				return set.kind
			}
		}
	}

	if m := statusCodeRe.FindStringSubmatch(msg); m != nil {
		switch m[1] {
		case "400", "413":
			return KindContextTooLarge
		case "401", "403":
			return KindInvalidCredential
		case "429":
			return KindRateLimited
		case "500", "502", "503", "504":
			return KindModelUnavailable
		}
	}

	return KindUnknown
}

// IsRetryable reports whether another attempt can plausibly succeed.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindRateLimited, KindModelUnavailable, KindNetwork, KindUnknown:
		return true
	default:
		return false
	}
}

// Advice returns the short user-facing explanation plus recovery actions
// for a failure kind.
func Advice(kind Kind) (string, []RecoveryAction) {
	switch kind {
	case KindContextTooLarge:
		return "The conversation has grown too large for the model.",
			[]RecoveryAction{ActionNewConversation}
	case KindRateLimited:
		return "The service is rate limiting requests.",
			[]RecoveryAction{ActionWaitAndRetry}
	case KindInvalidCredential:
		return "The API credential was rejected.",
			[]RecoveryAction{ActionCheckConfig}
	case KindSafetyBlocked:
		return "The response was blocked by the safety policy.",
			[]RecoveryAction{ActionNewConversation, ActionRetryNow}
	case KindModelUnavailable:
		return "The model is temporarily unavailable.",
			[]RecoveryAction{ActionWaitAndRetry, ActionRetryNow}
	case KindNetwork:
		return "A network failure interrupted the request.",
			[]RecoveryAction{ActionRetryNow}
	default:
		return "The request failed unexpectedly.",
			[]RecoveryAction{ActionRetryNow, ActionCheckConfig}
	}
}
