package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/identity"
)

var (
	_ gocmd.Querier[ResolveMetaCapabilityMessage, identity.Capability] = (*ResolveMetaCapabilityQuery)(nil)
	_ gocmd.Querier[ListAccountsMessage, []core.StoredAccountRecord]   = (*ListAccountsQuery)(nil)
	_ gocmd.Querier[ListPublishAttemptsMessage, []core.PublishAttempt] = (*ListPublishAttemptsQuery)(nil)
)
