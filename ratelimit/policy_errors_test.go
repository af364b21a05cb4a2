package ratelimit

import (
	"testing"
	"time"

	"github.com/goliatone/go-social/core"
)

func TestThrottledError_ToServiceError(t *testing.T) {
	err := ThrottledError{
		Platform:   core.PlatformLinkedIn,
		Bucket:     "api.linkedin.com",
		RetryAfter: 3 * time.Second,
	}

	mapped := err.ToServiceError()
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.TextCode != core.SocialErrorRateLimited {
		t.Fatalf("expected %q text code, got %q", core.SocialErrorRateLimited, mapped.TextCode)
	}
	if mapped.Code != 429 {
		t.Fatalf("expected status code 429, got %d", mapped.Code)
	}
	if mapped.Metadata["retry_after_ms"] != int64(3000) {
		t.Fatalf("expected retry_after_ms metadata, got %+v", mapped.Metadata)
	}
}
