package social

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-social/accounts"
	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/identity"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/publish"
	"github.com/goliatone/go-social/security"
)

// Service wires the credential vault, account lifecycle, adapter factory,
// Meta identity resolver and publish orchestrator around one configuration.
type Service struct {
	config         core.Config
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder

	store     core.CredentialStore
	cipher    core.CredentialCipher
	vault     *accounts.Vault
	accounts  *accounts.Manager
	adapters  providers.Resolver
	factory   *AdapterFactory
	resolver  *identity.MetaIdentityResolver
	publisher *publish.Orchestrator
	log       core.PublishLog
}

type serviceBuilder struct {
	runtimeConfig   core.Config
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metrics         core.MetricsRecorder
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver
	store           core.CredentialStore
	cipher          core.CredentialCipher
	adapters        providers.Resolver
	httpClient      core.HTTPDoer
	jobs            core.JobEnqueuer
	log             core.PublishLog
	repository      any
}

type Option func(*serviceBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metrics = metrics
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithCredentialStore(store core.CredentialStore) Option {
	return func(b *serviceBuilder) {
		b.store = store
	}
}

func WithCredentialCipher(cipher core.CredentialCipher) Option {
	return func(b *serviceBuilder) {
		b.cipher = cipher
	}
}

// WithAdapters replaces the config-driven AdapterFactory.
func WithAdapters(adapters providers.Resolver) Option {
	return func(b *serviceBuilder) {
		b.adapters = adapters
	}
}

func WithHTTPClient(client core.HTTPDoer) Option {
	return func(b *serviceBuilder) {
		b.httpClient = client
	}
}

func WithJobEnqueuer(jobs core.JobEnqueuer) Option {
	return func(b *serviceBuilder) {
		b.jobs = jobs
	}
}

func WithPublishLog(log core.PublishLog) Option {
	return func(b *serviceBuilder) {
		b.log = log
	}
}

// WithRepositoryFactory takes stores from a factory exposing
// AccountStore() and, optionally, PublishAttemptStore().
func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repository = factory
	}
}

func NewService(cfg core.Config, opts ...Option) (*Service, error) {
	builder := serviceBuilder{runtimeConfig: cfg}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("social", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("social"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	metrics := core.EnsureMetrics(builder.metrics)

	if builder.configProvider == nil {
		builder.configProvider = core.NewCfgxConfigProvider(nil)
	}
	finalConfig, err := core.LoadConfig(context.Background(), builder.configProvider, builder.optionsResolver, builder.runtimeConfig)
	if err != nil {
		return nil, core.MapError(err)
	}

	store := builder.store
	log := builder.log
	if builder.repository != nil {
		if factory, ok := builder.repository.(interface{ AccountStore() core.CredentialStore }); ok && store == nil {
			store = factory.AccountStore()
		}
		if factory, ok := builder.repository.(interface{ PublishAttemptStore() core.PublishLog }); ok && log == nil {
			log = factory.PublishAttemptStore()
		}
	}
	if store == nil {
		store = accounts.NewMemoryStore()
	}
	cipher := builder.cipher
	if cipher == nil {
		cipher = security.NewTenantCipher(finalConfig.MasterSecret)
	}

	vault, err := accounts.NewVault(store, cipher)
	if err != nil {
		return nil, err
	}

	factory := NewAdapterFactory(finalConfig,
		WithAdapterHTTPClient(builder.httpClient),
		WithAdapterLogger(logger),
	)
	adapters := builder.adapters
	if adapters == nil {
		adapters = factory
	}

	manager, err := accounts.NewManager(vault, adapters,
		accounts.WithLogger(logger),
		accounts.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}

	resolver, err := identity.NewMetaIdentityResolver(vault, factory.GraphClient(),
		identity.WithLogger(logger),
		identity.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}

	publishOpts := []publish.Option{
		publish.WithParallelism(finalConfig.Publish.Parallelism),
		publish.WithMetaResolver(resolver),
		publish.WithLogger(logger),
		publish.WithMetrics(metrics),
	}
	if builder.jobs != nil {
		publishOpts = append(publishOpts, publish.WithJobEnqueuer(builder.jobs))
	}
	if log != nil {
		publishOpts = append(publishOpts, publish.WithPublishLog(log))
	}
	publisher, err := publish.New(adapters, vault, publishOpts...)
	if err != nil {
		return nil, err
	}

	return &Service{
		config:         finalConfig,
		logger:         logger,
		loggerProvider: provider,
		metrics:        metrics,
		store:          store,
		cipher:         cipher,
		vault:          vault,
		accounts:       manager,
		adapters:       adapters,
		factory:        factory,
		resolver:       resolver,
		publisher:      publisher,
		log:            log,
	}, nil
}

func (s *Service) Config() core.Config {
	if s == nil {
		return core.Config{}
	}
	return s.config
}

func (s *Service) Logger() core.Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) Accounts() *accounts.Manager {
	if s == nil {
		return nil
	}
	return s.accounts
}

func (s *Service) Adapters() providers.Resolver {
	if s == nil {
		return nil
	}
	return s.adapters
}

func (s *Service) MetaResolver() *identity.MetaIdentityResolver {
	if s == nil {
		return nil
	}
	return s.resolver
}

func (s *Service) Publisher() *publish.Orchestrator {
	if s == nil {
		return nil
	}
	return s.publisher
}

// Publish fans the post out. Results are keyed by platform; the error is
// set only when the post itself is unusable.
func (s *Service) Publish(ctx context.Context, post core.Post) (map[core.Platform]core.PublishResult, error) {
	if s == nil || s.publisher == nil {
		return nil, fmt.Errorf("social: service is not configured")
	}
	return s.publisher.Publish(ctx, post)
}

func (s *Service) BeginAuthorization(platform core.Platform, state string) (accounts.Authorization, error) {
	if s == nil || s.accounts == nil {
		return accounts.Authorization{}, fmt.Errorf("social: service is not configured")
	}
	return s.accounts.BeginAuthorization(platform, state)
}

func (s *Service) ConnectAccount(ctx context.Context, req accounts.ConnectRequest) (core.StoredAccountRecord, error) {
	if s == nil || s.accounts == nil {
		return core.StoredAccountRecord{}, fmt.Errorf("social: service is not configured")
	}
	return s.accounts.Connect(ctx, req)
}

func (s *Service) RefreshAccount(ctx context.Context, key core.AccountKey) (core.StoredAccountRecord, error) {
	if s == nil || s.accounts == nil {
		return core.StoredAccountRecord{}, fmt.Errorf("social: service is not configured")
	}
	return s.accounts.Refresh(ctx, key)
}

func (s *Service) DisconnectAccount(ctx context.Context, key core.AccountKey) error {
	if s == nil || s.accounts == nil {
		return fmt.Errorf("social: service is not configured")
	}
	return s.accounts.Disconnect(ctx, key)
}

func (s *Service) ListAccounts(ctx context.Context, workspaceID string) ([]core.StoredAccountRecord, error) {
	if s == nil || s.accounts == nil {
		return nil, fmt.Errorf("social: service is not configured")
	}
	return s.accounts.List(ctx, workspaceID)
}

func (s *Service) ResolveMetaCapability(ctx context.Context, workspaceID string, opts identity.ResolveOptions) (identity.Capability, error) {
	if s == nil || s.resolver == nil {
		return identity.Capability{}, fmt.Errorf("social: service is not configured")
	}
	return s.resolver.ResolveWithOptions(ctx, workspaceID, opts)
}

func (s *Service) ListPublishAttempts(ctx context.Context, filter core.PublishAttemptFilter) ([]core.PublishAttempt, error) {
	if s == nil {
		return nil, fmt.Errorf("social: service is not configured")
	}
	if s.log == nil {
		return []core.PublishAttempt{}, nil
	}
	return s.log.List(ctx, filter)
}
