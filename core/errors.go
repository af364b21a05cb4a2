package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SocialErrorBadInput            = "SOCIAL_BAD_INPUT"
	SocialErrorEncryptionFailed    = "SOCIAL_ENCRYPTION_FAILED"
	SocialErrorConfiguration       = "SOCIAL_CONFIGURATION_ERROR"
	SocialErrorExternalAPIFailed   = "SOCIAL_EXTERNAL_API_FAILED"
	SocialErrorNetworkFailure      = "SOCIAL_NETWORK_FAILURE"
	SocialErrorUnauthorized        = "SOCIAL_UNAUTHORIZED"
	SocialErrorForbidden           = "SOCIAL_FORBIDDEN"
	SocialErrorRateLimited         = "SOCIAL_RATE_LIMITED"
	SocialErrorValidationFailed    = "SOCIAL_VALIDATION_FAILED"
	SocialErrorAccountNotFound     = "SOCIAL_ACCOUNT_NOT_FOUND"
	SocialErrorPlatformUnavailable = "SOCIAL_PLATFORM_UNAVAILABLE"
	SocialErrorInternal            = "SOCIAL_INTERNAL_ERROR"
)

type EncryptionErrorKind string

const (
	EncryptionErrorConfig    EncryptionErrorKind = "config"
	EncryptionErrorIntegrity EncryptionErrorKind = "integrity"
	EncryptionErrorEncode    EncryptionErrorKind = "encode"
)

// EncryptionError reports a key-derivation or envelope-integrity failure. It
// never carries plaintext.
type EncryptionError struct {
	Kind    EncryptionErrorKind
	Message string
	Cause   error
}

func NewEncryptionError(kind EncryptionErrorKind, message string, cause error) *EncryptionError {
	return &EncryptionError{Kind: kind, Message: strings.TrimSpace(message), Cause: cause}
}

func (e *EncryptionError) Error() string {
	if e == nil {
		return "encryption error"
	}
	msg := "encryption error"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *EncryptionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *EncryptionError) ToServiceError() *goerrors.Error {
	textCode := SocialErrorEncryptionFailed
	if e != nil && e.Kind == EncryptionErrorConfig {
		textCode = SocialErrorConfiguration
	}
	return goerrors.New(e.Error(), goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(textCode)
}

// ExternalAPIError is the only error shape that leaves an adapter. StatusCode
// is zero when the failure happened before any HTTP response was received.
type ExternalAPIError struct {
	Platform   Platform
	Context    string
	StatusCode int
	Network    bool
	Message    string
	Cause      error
}

func (e *ExternalAPIError) Error() string {
	if e == nil {
		return "external api error"
	}
	var b strings.Builder
	b.WriteString("external api error")
	if e.Platform != "" {
		b.WriteString(" [" + string(e.Platform) + "]")
	}
	if e.Context != "" {
		b.WriteString(" " + e.Context)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Network {
		b.WriteString(" (network)")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

func (e *ExternalAPIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *ExternalAPIError) ToServiceError() *goerrors.Error {
	category, code, textCode := goerrors.CategoryExternal, http.StatusBadGateway, SocialErrorExternalAPIFailed
	if e != nil {
		switch {
		case e.Network:
			textCode = SocialErrorNetworkFailure
		case e.StatusCode == http.StatusUnauthorized:
			category, code, textCode = goerrors.CategoryAuth, http.StatusUnauthorized, SocialErrorUnauthorized
		case e.StatusCode == http.StatusForbidden:
			category, code, textCode = goerrors.CategoryAuthz, http.StatusForbidden, SocialErrorForbidden
		case e.StatusCode == http.StatusTooManyRequests:
			category, code, textCode = goerrors.CategoryRateLimit, http.StatusTooManyRequests, SocialErrorRateLimited
		}
	}
	err := goerrors.New(e.Error(), category).
		WithCode(code).
		WithTextCode(textCode)
	if e != nil {
		err.WithMetadata(map[string]any{
			"platform":    string(e.Platform),
			"context":     e.Context,
			"status_code": e.StatusCode,
		})
	}
	return err
}

// ValidationError is a pre-flight content or media rule violation.
type ValidationError struct {
	Platform Platform
	Field    string
	Message  string
}

func NewValidationError(platform Platform, field string, format string, args ...any) *ValidationError {
	return &ValidationError{Platform: platform, Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation error"
	}
	if e.Platform == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error [%s]: %s", e.Platform, e.Message)
}

func (e *ValidationError) ToServiceError() *goerrors.Error {
	field, message := "", ""
	if e != nil {
		field, message = e.Field, e.Message
	}
	return goerrors.NewValidation(e.Error(), goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(SocialErrorValidationFailed)
}

type serviceErrorer interface {
	ToServiceError() *goerrors.Error
}

// MapError converts any error into the go-errors envelope used at API edges.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var typed serviceErrorer
	if errors.As(err, &typed) {
		return typed.ToServiceError()
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return newSocialError(err.Error(), goerrors.CategoryNotFound, SocialErrorAccountNotFound)
	case errors.Is(err, ErrUnknownPlatform), errors.Is(err, ErrMissingRequiredField), errors.Is(err, ErrWorkspaceIDRequired):
		return newSocialError(err.Error(), goerrors.CategoryBadInput, SocialErrorBadInput)
	case errors.Is(err, ErrSchedulingUnsupported), errors.Is(err, ErrCarouselUnsupported), errors.Is(err, ErrOperationNotSupported),
		errors.Is(err, ErrPlatformUnavailable):
		return newSocialError(err.Error(), goerrors.CategoryOperation, SocialErrorPlatformUnavailable)
	}
	return ensureErrorEnvelope(goerrors.MapToError(err, goerrors.DefaultErrorMappers()))
}

func newSocialError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(goerrors.New(message, category).WithTextCode(textCode))
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatusForCategory(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SocialErrorBadInput
	case goerrors.CategoryNotFound:
		return SocialErrorAccountNotFound
	case goerrors.CategoryAuth:
		return SocialErrorUnauthorized
	case goerrors.CategoryAuthz:
		return SocialErrorForbidden
	case goerrors.CategoryRateLimit:
		return SocialErrorRateLimited
	case goerrors.CategoryExternal:
		return SocialErrorExternalAPIFailed
	case goerrors.CategoryOperation:
		return SocialErrorPlatformUnavailable
	default:
		return SocialErrorInternal
	}
}

func httpStatusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
