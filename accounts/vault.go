package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-social/core"
)

// Vault pairs the credential store with the tenant cipher so callers only
// ever handle plaintext PlatformCredentials.
type Vault struct {
	store  core.CredentialStore
	cipher core.CredentialCipher
}

func NewVault(store core.CredentialStore, cipher core.CredentialCipher) (*Vault, error) {
	if store == nil {
		return nil, core.ErrCredentialStoreMissing
	}
	if cipher == nil {
		return nil, fmt.Errorf("accounts: credential cipher is required")
	}
	return &Vault{store: store, cipher: cipher}, nil
}

// Load reads and decrypts the record for key. A missing record surfaces as
// core.ErrAccountNotFound and a bad envelope as *core.EncryptionError.
func (v *Vault) Load(ctx context.Context, key core.AccountKey) (core.PlatformCredentials, core.StoredAccountRecord, error) {
	if err := key.Validate(); err != nil {
		return core.PlatformCredentials{}, core.StoredAccountRecord{}, err
	}
	record, err := v.store.Get(ctx, key)
	if err != nil {
		return core.PlatformCredentials{}, core.StoredAccountRecord{}, err
	}
	credentials, err := v.cipher.Decrypt(record.EncryptedCredentials, key.WorkspaceID)
	if err != nil {
		return core.PlatformCredentials{}, record, err
	}
	if credentials.Platform == "" {
		credentials.Platform = key.Platform
	}
	return credentials, record, nil
}

// Save encrypts credentials for the workspace and upserts the single record
// held for (workspaceID, credentials.Platform).
func (v *Vault) Save(ctx context.Context, workspaceID string, credentials core.PlatformCredentials) (core.StoredAccountRecord, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return core.StoredAccountRecord{}, core.ErrWorkspaceIDRequired
	}
	credentials = credentials.Normalize()
	if err := credentials.Validate(); err != nil {
		return core.StoredAccountRecord{}, err
	}
	encrypted, err := v.cipher.Encrypt(credentials, workspaceID)
	if err != nil {
		return core.StoredAccountRecord{}, err
	}
	hash, err := v.cipher.Hash(credentials)
	if err != nil {
		return core.StoredAccountRecord{}, err
	}
	return v.store.Put(ctx, core.StoredAccountRecord{
		WorkspaceID:          workspaceID,
		Platform:             credentials.Platform,
		EncryptedCredentials: encrypted,
		CredentialsHash:      hash,
		PageID:               credentials.PageID,
		AccountID:            indexedAccountID(credentials),
		Username:             credentials.Username,
		ExpiresAt:            credentials.ExpiresAt,
	})
}

func (v *Vault) Delete(ctx context.Context, key core.AccountKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return v.store.Delete(ctx, key)
}

func (v *Vault) List(ctx context.Context, workspaceID string) ([]core.StoredAccountRecord, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, core.ErrWorkspaceIDRequired
	}
	return v.store.ListByWorkspace(ctx, workspaceID)
}

func indexedAccountID(credentials core.PlatformCredentials) string {
	if credentials.AdAccountID != "" {
		return credentials.AdAccountID
	}
	return credentials.UserID
}
