package accounts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/google/uuid"
)

// MemoryStore is a process-local CredentialStore keyed by workspace and
// platform.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]core.StoredAccountRecord
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: map[string]core.StoredAccountRecord{},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Get(_ context.Context, key core.AccountKey) (core.StoredAccountRecord, error) {
	if s == nil {
		return core.StoredAccountRecord{}, core.ErrCredentialStoreMissing
	}
	if err := key.Validate(); err != nil {
		return core.StoredAccountRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.items[key.String()]
	if !ok {
		return core.StoredAccountRecord{}, fmt.Errorf("%w: %s", core.ErrAccountNotFound, key)
	}
	return record, nil
}

func (s *MemoryStore) Put(_ context.Context, record core.StoredAccountRecord) (core.StoredAccountRecord, error) {
	if s == nil {
		return core.StoredAccountRecord{}, core.ErrCredentialStoreMissing
	}
	key := core.AccountKey{WorkspaceID: strings.TrimSpace(record.WorkspaceID), Platform: record.Platform}
	if err := key.Validate(); err != nil {
		return core.StoredAccountRecord{}, err
	}
	record.WorkspaceID = key.WorkspaceID
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key.String()]; ok {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	} else {
		record.ID = uuid.NewString()
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.items[key.String()] = record
	return record, nil
}

func (s *MemoryStore) Delete(_ context.Context, key core.AccountKey) error {
	if s == nil {
		return core.ErrCredentialStoreMissing
	}
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key.String()]; !ok {
		return fmt.Errorf("%w: %s", core.ErrAccountNotFound, key)
	}
	delete(s.items, key.String())
	return nil
}

func (s *MemoryStore) ListByWorkspace(_ context.Context, workspaceID string) ([]core.StoredAccountRecord, error) {
	if s == nil {
		return nil, core.ErrCredentialStoreMissing
	}
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, core.ErrWorkspaceIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.StoredAccountRecord{}
	for _, record := range s.items {
		if record.WorkspaceID == workspaceID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Platform < out[j].Platform
	})
	return out, nil
}

var _ core.CredentialStore = (*MemoryStore)(nil)
