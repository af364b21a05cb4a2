package social

import (
	"github.com/goliatone/go-social/accounts"
	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/identity"
)

type Config = core.Config
type DatabaseConfig = core.DatabaseConfig
type OAuthSettings = core.OAuthSettings

type Platform = core.Platform
type Post = core.Post
type PublishResult = core.PublishResult
type PublishAttempt = core.PublishAttempt
type PublishAttemptFilter = core.PublishAttemptFilter
type AccountKey = core.AccountKey
type StoredAccountRecord = core.StoredAccountRecord

type ConnectRequest = accounts.ConnectRequest
type Authorization = accounts.Authorization

type MetaCapability = identity.Capability
type ResolveOptions = identity.ResolveOptions

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Setup builds a Service from defaults plus environment variables; explicit
// options still win.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	withEnv := append([]Option{WithConfigProvider(core.NewCfgxConfigProvider(core.NewEnvConfigLoader()))}, opts...)
	return NewService(cfg, withEnv...)
}
