package generate

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"context length text", errors.New("this model's maximum context length is 32768 tokens"), KindContextTooLarge},
		{"rate limit text", errors.New("rate limit exceeded, slow down"), KindRateLimited},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED: quota exceeded"), KindRateLimited},
		{"bad api key", errors.New("invalid API key provided"), KindInvalidCredential},
		{"permission denied", errors.New("permission denied for model"), KindInvalidCredential},
		{"safety", errors.New("candidate blocked by safety settings"), KindSafetyBlocked},
		{"sentinel safety", fmt.Errorf("turn failed: %w", ErrSafetyBlocked), KindSafetyBlocked},
		{"overloaded", errors.New("the model is overloaded, try again later"), KindModelUnavailable},
		{"network", errors.New("dial tcp: connection refused"), KindNetwork},
		{"deadline", errors.New("context deadline exceeded"), KindNetwork},
		{"status 429 fallback", errors.New("http 429"), KindRateLimited},
		{"status 503 fallback", errors.New("server returned 503"), KindModelUnavailable},
		{"status 401 fallback", errors.New("got 401 from upstream"), KindInvalidCredential},
		{"status 413 fallback", errors.New("request failed with 413"), KindContextTooLarge},
		{"unclassified", errors.New("something odd happened"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []Kind{KindRateLimited, KindModelUnavailable, KindNetwork, KindUnknown}
	for _, k := range retryable {
		if !IsRetryable(k) {
			t.Errorf("%v should be retryable", k)
		}
	}

	fatal := []Kind{KindContextTooLarge, KindInvalidCredential, KindSafetyBlocked}
	for _, k := range fatal {
		if IsRetryable(k) {
			t.Errorf("%v should not be retryable", k)
		}
	}
}

func TestAdvice_AlwaysHasActions(t *testing.T) {
	kinds := []Kind{
		KindContextTooLarge, KindRateLimited, KindInvalidCredential,
		KindSafetyBlocked, KindModelUnavailable, KindNetwork, KindUnknown,
	}
	for _, k := range kinds {
		msg, actions := Advice(k)
		if msg == "" {
			t.Errorf("%v has no explanation", k)
		}
		if len(actions) == 0 {
			t.Errorf("%v has no recovery actions", k)
		}
	}
}

func TestErrorWrapping(t *testing.T) {
	inner := errors.New("http 429")
	err := &Error{Kind: Classify(inner), Err: inner}
	if !errors.Is(err, inner) {
		t.Error("Unwrap must expose the inner error")
	}
	if err.Kind != KindRateLimited {
		t.Errorf("kind = %v, want rate_limited", err.Kind)
	}
}
