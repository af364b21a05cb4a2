package sqlstore

import (
	"fmt"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-social/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db       *bun.DB
	cacheTTL time.Duration

	accountStore        *AccountStore
	cachedAccountStore  *CachedAccountStore
	publishAttemptStore *PublishAttemptStore
}

type FactoryOption func(*RepositoryFactory)

// WithAccountCache enables the read-through account cache. A zero ttl keeps
// reads on the database.
func WithAccountCache(ttl time.Duration) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cacheTTL = ttl
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.accountStore != nil && f.publishAttemptStore != nil {
		return nil
	}
	return f.initStores()
}

// AccountStore returns the credential store, cached when the factory was
// built WithAccountCache.
func (f *RepositoryFactory) AccountStore() core.CredentialStore {
	if f == nil {
		return nil
	}
	if f.cachedAccountStore != nil {
		return f.cachedAccountStore
	}
	if f.accountStore == nil {
		return nil
	}
	return f.accountStore
}

func (f *RepositoryFactory) PublishAttemptStore() core.PublishLog {
	if f == nil || f.publishAttemptStore == nil {
		return nil
	}
	return f.publishAttemptStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	accountStore, err := NewAccountStore(f.db)
	if err != nil {
		return err
	}
	f.accountStore = accountStore

	if f.cacheTTL > 0 {
		config := repositorycache.DefaultConfig()
		config.TTL = f.cacheTTL
		cacheService, err := repositorycache.NewCacheService(config)
		if err != nil {
			return fmt.Errorf("sqlstore: account cache: %w", err)
		}
		cached, err := NewCachedAccountStore(accountStore, cacheService)
		if err != nil {
			return err
		}
		f.cachedAccountStore = cached
	}

	publishAttemptStore, err := NewPublishAttemptStore(f.db)
	if err != nil {
		return err
	}
	f.publishAttemptStore = publishAttemptStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
