package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-social/accounts"
	"github.com/goliatone/go-social/core"
)

type MutatingService interface {
	Publish(ctx context.Context, post core.Post) (map[core.Platform]core.PublishResult, error)
	ConnectAccount(ctx context.Context, req accounts.ConnectRequest) (core.StoredAccountRecord, error)
	RefreshAccount(ctx context.Context, key core.AccountKey) (core.StoredAccountRecord, error)
	DisconnectAccount(ctx context.Context, key core.AccountKey) error
}

// PublishPostResult carries per-platform outcomes. A platform failure is
// reported here, not as a command error.
type PublishPostResult struct {
	Results map[core.Platform]core.PublishResult
	Summary core.PublishSummary
}

type PublishPostCommand struct {
	service MutatingService
}

func NewPublishPostCommand(service MutatingService) *PublishPostCommand {
	return &PublishPostCommand{service: service}
}

func (c *PublishPostCommand) Execute(ctx context.Context, msg PublishPostMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: publish service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	results, err := c.service.Publish(ctx, msg.Post)
	if err != nil {
		return err
	}
	storeResult(ctx, PublishPostResult{Results: results, Summary: core.Summarize(results)})
	return nil
}

type ConnectAccountCommand struct {
	service MutatingService
}

func NewConnectAccountCommand(service MutatingService) *ConnectAccountCommand {
	return &ConnectAccountCommand{service: service}
}

func (c *ConnectAccountCommand) Execute(ctx context.Context, msg ConnectAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.ConnectAccount(ctx, accounts.ConnectRequest{
		WorkspaceID:  msg.WorkspaceID,
		Platform:     msg.Platform,
		Code:         msg.Code,
		CodeVerifier: msg.CodeVerifier,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshAccountCommand struct {
	service MutatingService
}

func NewRefreshAccountCommand(service MutatingService) *RefreshAccountCommand {
	return &RefreshAccountCommand{service: service}
}

func (c *RefreshAccountCommand) Execute(ctx context.Context, msg RefreshAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.RefreshAccount(ctx, msg.Key)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectAccountCommand struct {
	service MutatingService
}

func NewDisconnectAccountCommand(service MutatingService) *DisconnectAccountCommand {
	return &DisconnectAccountCommand{service: service}
}

func (c *DisconnectAccountCommand) Execute(ctx context.Context, msg DisconnectAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.DisconnectAccount(ctx, msg.Key)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
