package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-social/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStore persists StoredAccountRecord rows, one per workspace and
// platform. Only the encrypted envelope and non-secret lookup columns are
// stored.
type AccountStore struct {
	db   *bun.DB
	repo repository.Repository[*accountRecord]
	now  func() time.Time
}

func NewAccountStore(db *bun.DB) (*AccountStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*accountRecord](db, accountHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid account repository wiring: %w", err)
		}
	}
	return &AccountStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *AccountStore) Get(ctx context.Context, key core.AccountKey) (core.StoredAccountRecord, error) {
	if s == nil || s.db == nil {
		return core.StoredAccountRecord{}, core.ErrCredentialStoreMissing
	}
	key = normalizeAccountKey(key)
	if err := key.Validate(); err != nil {
		return core.StoredAccountRecord{}, err
	}
	record, err := findAccount(ctx, s.db, key)
	if err != nil {
		return core.StoredAccountRecord{}, err
	}
	if record == nil {
		return core.StoredAccountRecord{}, fmt.Errorf("%w: %s", core.ErrAccountNotFound, key)
	}
	return record.toDomain(), nil
}

// Put inserts or replaces the record for (workspace, platform). The row id and
// created_at survive a reconnect.
func (s *AccountStore) Put(ctx context.Context, in core.StoredAccountRecord) (core.StoredAccountRecord, error) {
	if s == nil || s.db == nil {
		return core.StoredAccountRecord{}, core.ErrCredentialStoreMissing
	}
	key := normalizeAccountKey(core.AccountKey{WorkspaceID: in.WorkspaceID, Platform: in.Platform})
	if err := key.Validate(); err != nil {
		return core.StoredAccountRecord{}, err
	}
	if strings.TrimSpace(in.EncryptedCredentials) == "" {
		return core.StoredAccountRecord{}, core.NewValidationError(key.Platform, "encryptedCredentials", "encrypted credentials are required")
	}
	now := s.now()

	var saved *accountRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findAccount(ctx, tx, key)
		if err != nil {
			return err
		}
		created := false
		if record == nil {
			created = true
			record = &accountRecord{
				ID:          uuid.NewString(),
				WorkspaceID: key.WorkspaceID,
				Platform:    string(key.Platform),
				CreatedAt:   now,
			}
		}
		record.EncryptedCredentials = in.EncryptedCredentials
		record.CredentialsHash = strings.TrimSpace(in.CredentialsHash)
		record.PageID = strings.TrimSpace(in.PageID)
		record.AccountID = strings.TrimSpace(in.AccountID)
		record.Username = strings.TrimSpace(in.Username)
		record.ExpiresAt = copyTimePointer(in.ExpiresAt)
		record.UpdatedAt = now
		saved = record

		if created {
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			return insertErr
		}
		_, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return updateErr
	})
	if err != nil {
		return core.StoredAccountRecord{}, err
	}
	return saved.toDomain(), nil
}

func (s *AccountStore) Delete(ctx context.Context, key core.AccountKey) error {
	if s == nil || s.db == nil {
		return core.ErrCredentialStoreMissing
	}
	key = normalizeAccountKey(key)
	if err := key.Validate(); err != nil {
		return err
	}
	res, err := s.db.NewDelete().
		Model((*accountRecord)(nil)).
		Where("workspace_id = ?", key.WorkspaceID).
		Where("platform = ?", string(key.Platform)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrAccountNotFound, key)
	}
	return nil
}

func (s *AccountStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]core.StoredAccountRecord, error) {
	if s == nil || s.repo == nil {
		return nil, core.ErrCredentialStoreMissing
	}
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, core.ErrWorkspaceIDRequired
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("workspace_id", "=", workspaceID),
		repository.OrderBy("platform ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.StoredAccountRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func findAccount(ctx context.Context, db bun.IDB, key core.AccountKey) (*accountRecord, error) {
	record := &accountRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.workspace_id = ?", key.WorkspaceID).
		Where("?TableAlias.platform = ?", string(key.Platform)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *accountRecord) toDomain() core.StoredAccountRecord {
	if r == nil {
		return core.StoredAccountRecord{}
	}
	return core.StoredAccountRecord{
		ID:                   r.ID,
		WorkspaceID:          r.WorkspaceID,
		Platform:             core.Platform(r.Platform),
		EncryptedCredentials: r.EncryptedCredentials,
		CredentialsHash:      r.CredentialsHash,
		PageID:               r.PageID,
		AccountID:            r.AccountID,
		Username:             r.Username,
		ExpiresAt:            copyTimePointer(r.ExpiresAt),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func normalizeAccountKey(key core.AccountKey) core.AccountKey {
	return core.AccountKey{
		WorkspaceID: strings.TrimSpace(key.WorkspaceID),
		Platform:    core.Platform(strings.TrimSpace(strings.ToLower(string(key.Platform)))),
	}
}

func copyTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
