package query

import (
	"strings"

	"github.com/goliatone/go-social/core"
)

const (
	TypeResolveMetaCapability = "social.query.meta_capability.resolve"
	TypeListAccounts          = "social.query.accounts.list"
	TypeListPublishAttempts   = "social.query.publish_attempts.list"
)

type ResolveMetaCapabilityMessage struct {
	WorkspaceID         string
	PreferredBusinessID string
}

func (ResolveMetaCapabilityMessage) Type() string { return TypeResolveMetaCapability }

func (m ResolveMetaCapabilityMessage) Validate() error {
	return validateWorkspace(m.WorkspaceID)
}

type ListAccountsMessage struct {
	WorkspaceID string
}

func (ListAccountsMessage) Type() string { return TypeListAccounts }

func (m ListAccountsMessage) Validate() error {
	return validateWorkspace(m.WorkspaceID)
}

type ListPublishAttemptsMessage struct {
	Filter core.PublishAttemptFilter
}

func (ListPublishAttemptsMessage) Type() string { return TypeListPublishAttempts }

func (m ListPublishAttemptsMessage) Validate() error {
	if err := validateWorkspace(m.Filter.WorkspaceID); err != nil {
		return err
	}
	if m.Filter.Platform != "" {
		if _, err := core.ParsePlatform(string(m.Filter.Platform)); err != nil {
			return queryWrapValidation(err, "query: invalid platform filter")
		}
	}
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}

func validateWorkspace(workspaceID string) error {
	if strings.TrimSpace(workspaceID) == "" {
		return queryValidationError("workspace_id", "workspace id is required")
	}
	return nil
}
