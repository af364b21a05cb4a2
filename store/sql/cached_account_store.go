package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-social/core"
)

const accountCacheKeyPrefix = "go-social::account::v1"

// CachedAccountStore is a read-through cache over a CredentialStore. Writes go
// to the base store first and then invalidate the cached entry.
type CachedAccountStore struct {
	base  core.CredentialStore
	cache repositorycache.CacheService
}

func NewCachedAccountStore(base core.CredentialStore, cacheService repositorycache.CacheService) (*CachedAccountStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base account store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: account cache service is required")
	}
	return &CachedAccountStore{base: base, cache: cacheService}, nil
}

// AccountCacheKey returns go-social::account::v1::<workspace>::<platform> with
// each segment URL-path escaped.
func AccountCacheKey(key core.AccountKey) (string, error) {
	normalized := normalizeAccountKey(key)
	if err := normalized.Validate(); err != nil {
		return "", err
	}
	return strings.Join([]string{
		accountCacheKeyPrefix,
		url.PathEscape(normalized.WorkspaceID),
		url.PathEscape(string(normalized.Platform)),
	}, "::"), nil
}

func (s *CachedAccountStore) Get(ctx context.Context, key core.AccountKey) (core.StoredAccountRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.StoredAccountRecord{}, core.ErrCredentialStoreMissing
	}
	normalized := normalizeAccountKey(key)
	cacheKey, err := AccountCacheKey(normalized)
	if err != nil {
		return core.StoredAccountRecord{}, err
	}
	record, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.StoredAccountRecord, error) {
		return s.base.Get(ctx, normalized)
	})
	if err != nil {
		return core.StoredAccountRecord{}, err
	}
	return cloneAccountRecord(record), nil
}

func (s *CachedAccountStore) Put(ctx context.Context, record core.StoredAccountRecord) (core.StoredAccountRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.StoredAccountRecord{}, core.ErrCredentialStoreMissing
	}
	saved, err := s.base.Put(ctx, record)
	if err != nil {
		return core.StoredAccountRecord{}, err
	}
	if err := s.invalidate(ctx, core.AccountKey{WorkspaceID: saved.WorkspaceID, Platform: saved.Platform}); err != nil {
		return core.StoredAccountRecord{}, err
	}
	return saved, nil
}

func (s *CachedAccountStore) Delete(ctx context.Context, key core.AccountKey) error {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ErrCredentialStoreMissing
	}
	if err := s.base.Delete(ctx, key); err != nil {
		return err
	}
	return s.invalidate(ctx, key)
}

func (s *CachedAccountStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]core.StoredAccountRecord, error) {
	if s == nil || s.base == nil {
		return nil, core.ErrCredentialStoreMissing
	}
	return s.base.ListByWorkspace(ctx, workspaceID)
}

func (s *CachedAccountStore) invalidate(ctx context.Context, key core.AccountKey) error {
	cacheKey, err := AccountCacheKey(key)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneAccountRecord(record core.StoredAccountRecord) core.StoredAccountRecord {
	cloned := record
	cloned.ExpiresAt = copyTimePointer(record.ExpiresAt)
	return cloned
}
