package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type accountRecord struct {
	bun.BaseModel `bun:"table:social_accounts,alias:sa"`

	ID                   string     `bun:"id,pk"`
	WorkspaceID          string     `bun:"workspace_id,notnull"`
	Platform             string     `bun:"platform,notnull"`
	EncryptedCredentials string     `bun:"encrypted_credentials,notnull"`
	CredentialsHash      string     `bun:"credentials_hash,notnull"`
	PageID               string     `bun:"page_id"`
	AccountID            string     `bun:"account_id"`
	Username             string     `bun:"username"`
	ExpiresAt            *time.Time `bun:"expires_at,nullzero"`
	CreatedAt            time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt            time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type publishAttemptRecord struct {
	bun.BaseModel `bun:"table:social_publish_attempts,alias:spa"`

	ID          string    `bun:"id,pk"`
	WorkspaceID string    `bun:"workspace_id,notnull"`
	PostID      string    `bun:"post_id,notnull"`
	Platform    string    `bun:"platform,notnull"`
	Success     bool      `bun:"success,notnull"`
	Scheduled   bool      `bun:"scheduled,notnull"`
	ExternalID  string    `bun:"external_id"`
	URL         string    `bun:"url"`
	Error       string    `bun:"error"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
