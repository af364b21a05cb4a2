package sqlstore

import "github.com/goliatone/go-social/core"

var (
	_ core.CredentialStore = (*AccountStore)(nil)
	_ core.CredentialStore = (*CachedAccountStore)(nil)
	_ core.PublishLog      = (*PublishAttemptStore)(nil)
)
