package query

import (
	"context"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/identity"
)

type MetaCapabilityReader interface {
	ResolveMetaCapability(ctx context.Context, workspaceID string, opts identity.ResolveOptions) (identity.Capability, error)
}

type AccountReader interface {
	ListAccounts(ctx context.Context, workspaceID string) ([]core.StoredAccountRecord, error)
}

type PublishAttemptReader interface {
	ListPublishAttempts(ctx context.Context, filter core.PublishAttemptFilter) ([]core.PublishAttempt, error)
}

type ResolveMetaCapabilityQuery struct {
	reader MetaCapabilityReader
}

func NewResolveMetaCapabilityQuery(reader MetaCapabilityReader) *ResolveMetaCapabilityQuery {
	return &ResolveMetaCapabilityQuery{reader: reader}
}

// Query never fails for a workspace without Meta accounts; the capability
// carries the reason instead.
func (q *ResolveMetaCapabilityQuery) Query(ctx context.Context, msg ResolveMetaCapabilityMessage) (identity.Capability, error) {
	if q == nil || q.reader == nil {
		return identity.Capability{}, queryDependencyError("query: meta capability reader is required")
	}
	if err := msg.Validate(); err != nil {
		return identity.Capability{}, err
	}
	return q.reader.ResolveMetaCapability(ctx, msg.WorkspaceID, identity.ResolveOptions{
		PreferredBusinessID: msg.PreferredBusinessID,
	})
}

type ListAccountsQuery struct {
	reader AccountReader
}

func NewListAccountsQuery(reader AccountReader) *ListAccountsQuery {
	return &ListAccountsQuery{reader: reader}
}

func (q *ListAccountsQuery) Query(ctx context.Context, msg ListAccountsMessage) ([]core.StoredAccountRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: account reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.ListAccounts(ctx, msg.WorkspaceID)
}

type ListPublishAttemptsQuery struct {
	reader PublishAttemptReader
}

func NewListPublishAttemptsQuery(reader PublishAttemptReader) *ListPublishAttemptsQuery {
	return &ListPublishAttemptsQuery{reader: reader}
}

func (q *ListPublishAttemptsQuery) Query(ctx context.Context, msg ListPublishAttemptsMessage) ([]core.PublishAttempt, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: publish attempt reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.ListPublishAttempts(ctx, msg.Filter)
}
