package query

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-social/core"
)

func TestListAccountsMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ListAccountsMessage{}).Validate()

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.SocialErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.SocialErrorBadInput, rich.TextCode)
	}
}

func TestResolveMetaCapabilityQuery_NilReaderReturnsRichError(t *testing.T) {
	var q *ResolveMetaCapabilityQuery
	_, err := q.Query(context.Background(), ResolveMetaCapabilityMessage{WorkspaceID: "ws_1"})

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.SocialErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.SocialErrorInternal, rich.TextCode)
	}
}
