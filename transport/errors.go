package transport

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-social/core"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category, metadata))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category, metadata))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// IsNetworkError reports whether err is a transport failure that happened
// before any HTTP response was received.
func IsNetworkError(err error) bool {
	var rich *goerrors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.TextCode == core.SocialErrorNetworkFailure
}

func transportTextCode(category goerrors.Category, metadata map[string]any) string {
	if network, _ := metadata["network"].(bool); network {
		return core.SocialErrorNetworkFailure
	}
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.SocialErrorBadInput
	case goerrors.CategoryExternal:
		return core.SocialErrorExternalAPIFailed
	default:
		return core.SocialErrorInternal
	}
}
