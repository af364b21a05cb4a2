package command

import (
	"strings"

	"github.com/goliatone/go-social/core"
)

const (
	TypePublishPost       = "social.command.post.publish"
	TypeConnectAccount    = "social.command.account.connect"
	TypeRefreshAccount    = "social.command.account.refresh"
	TypeDisconnectAccount = "social.command.account.disconnect"
)

type PublishPostMessage struct {
	Post core.Post
}

func (PublishPostMessage) Type() string { return TypePublishPost }

func (m PublishPostMessage) Validate() error {
	if strings.TrimSpace(m.Post.WorkspaceID) == "" {
		return commandValidationError("post.workspace_id", "workspace id is required")
	}
	if len(m.Post.Platforms) == 0 {
		return commandValidationError("post.platforms", "at least one platform is required")
	}
	for _, platform := range m.Post.Platforms {
		if _, err := core.ParsePlatform(string(platform)); err != nil {
			return commandWrapValidation(err, "post.platforms")
		}
	}
	return nil
}

// ConnectAccountMessage completes an OAuth authorization for one workspace.
// CodeVerifier echoes the value issued with the authorization URL.
type ConnectAccountMessage struct {
	WorkspaceID  string
	Platform     core.Platform
	Code         string
	CodeVerifier string
}

func (ConnectAccountMessage) Type() string { return TypeConnectAccount }

func (m ConnectAccountMessage) Validate() error {
	if err := validateKey(m.WorkspaceID, m.Platform); err != nil {
		return err
	}
	if strings.TrimSpace(m.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	return nil
}

type RefreshAccountMessage struct {
	Key core.AccountKey
}

func (RefreshAccountMessage) Type() string { return TypeRefreshAccount }

func (m RefreshAccountMessage) Validate() error {
	return validateKey(m.Key.WorkspaceID, m.Key.Platform)
}

type DisconnectAccountMessage struct {
	Key core.AccountKey
}

func (DisconnectAccountMessage) Type() string { return TypeDisconnectAccount }

func (m DisconnectAccountMessage) Validate() error {
	return validateKey(m.Key.WorkspaceID, m.Key.Platform)
}

func validateKey(workspaceID string, platform core.Platform) error {
	if strings.TrimSpace(workspaceID) == "" {
		return commandValidationError("workspace_id", "workspace id is required")
	}
	if _, err := core.ParsePlatform(string(platform)); err != nil {
		return commandWrapValidation(err, "platform")
	}
	return nil
}
