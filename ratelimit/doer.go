package ratelimit

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/goliatone/go-social/core"
)

const defaultClientTimeout = 30 * time.Second

// Doer wraps an HTTP client with an AdaptivePolicy. Requests to a throttled
// bucket are answered locally with a 429 so adapters classify them the same
// way as a platform-issued rate limit.
type Doer struct {
	platform core.Platform
	next     core.HTTPDoer
	policy   *AdaptivePolicy
}

func NewDoer(platform core.Platform, next core.HTTPDoer, policy *AdaptivePolicy) *Doer {
	if next == nil {
		next = &http.Client{Timeout: defaultClientTimeout}
	}
	if policy == nil {
		policy = NewAdaptivePolicy(NewMemoryStateStore())
	}
	return &Doer{platform: platform, next: next, policy: policy}
}

func (d *Doer) Policy() *AdaptivePolicy {
	if d == nil {
		return nil
	}
	return d.policy
}

func (d *Doer) Do(req *http.Request) (*http.Response, error) {
	key := Key{Platform: d.platform}
	if req.URL != nil {
		key.Bucket = req.URL.Host
	}
	ctx := req.Context()

	if err := d.policy.BeforeCall(ctx, key); err != nil {
		var throttled ThrottledError
		if errors.As(err, &throttled) {
			return throttledResponse(req, throttled), nil
		}
		return nil, err
	}

	res, err := d.next.Do(req)
	if err != nil {
		return nil, err
	}
	if err := d.policy.AfterCall(ctx, key, ResponseMeta{StatusCode: res.StatusCode, Headers: res.Header}); err != nil {
		res.Body.Close()
		return nil, err
	}
	return res, nil
}

func throttledResponse(req *http.Request, throttled ThrottledError) *http.Response {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"message": throttled.Error(),
			"code":    core.SocialErrorRateLimited,
		},
	})
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Retry-After", strconv.Itoa(int(math.Ceil(throttled.RetryAfter.Seconds()))))
	return &http.Response{
		Status:        "429 Too Many Requests",
		StatusCode:    http.StatusTooManyRequests,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

var _ core.HTTPDoer = (*Doer)(nil)
