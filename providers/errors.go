package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/transport"
)

// ClassifyError folds every failure an adapter can see into one
// *core.ExternalAPIError. A non-nil response means the network answered; a nil
// response with an error is a pure network failure.
func ClassifyError(platform core.Platform, context string, res *transport.Response, err error) *core.ExternalAPIError {
	var existing *core.ExternalAPIError
	if errors.As(err, &existing) {
		if existing.Platform == "" {
			existing.Platform = platform
		}
		return existing
	}

	classified := &core.ExternalAPIError{
		Platform: platform,
		Context:  strings.TrimSpace(context),
		Cause:    err,
	}
	if res != nil {
		classified.StatusCode = res.StatusCode
		classified.Message = responseMessage(res.Body)
		if classified.Message == "" && err != nil {
			classified.Message = err.Error()
		}
		return classified
	}
	if err != nil {
		classified.Network = transport.IsNetworkError(err)
		classified.Message = err.Error()
	}
	if classified.Message == "" {
		classified.Message = "unknown failure"
	}
	return classified
}

// CheckResponse returns a classified error for non-2xx responses.
func CheckResponse(platform core.Platform, context string, res transport.Response) error {
	if res.OK() {
		return nil
	}
	return ClassifyError(platform, context, &res, fmt.Errorf("unexpected status %d", res.StatusCode))
}

// responseMessage extracts a human message from the error bodies the supported
// networks return.
func responseMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		if len(trimmed) > 200 {
			trimmed = trimmed[:200]
		}
		return trimmed
	}
	if nested, ok := decoded["error"].(map[string]any); ok {
		for _, key := range []string{"message", "error_user_msg", "code"} {
			if value := readAnyString(nested[key]); value != "" && value != "ok" {
				return value
			}
		}
	}
	for _, key := range []string{"error_description", "detail", "message", "title", "error"} {
		if value, ok := decoded[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	if list, ok := decoded["errors"].([]any); ok && len(list) > 0 {
		if first, ok := list[0].(map[string]any); ok {
			for _, key := range []string{"message", "detail"} {
				if value := readAnyString(first[key]); value != "" {
					return value
				}
			}
		}
	}
	return ""
}

// Unsupported reports an operation a network does not offer.
func Unsupported(platform core.Platform, operation string) error {
	return fmt.Errorf("%w: %s %s", core.ErrOperationNotSupported, platform, operation)
}
