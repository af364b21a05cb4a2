package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-social/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type PublishAttemptStore struct {
	db   *bun.DB
	repo repository.Repository[*publishAttemptRecord]
}

func NewPublishAttemptStore(db *bun.DB) (*PublishAttemptStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*publishAttemptRecord](db, publishAttemptHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid publish attempt repository wiring: %w", err)
		}
	}
	return &PublishAttemptStore{db: db, repo: repo}, nil
}

func (s *PublishAttemptStore) Record(ctx context.Context, attempt core.PublishAttempt) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: publish attempt store is not configured")
	}
	workspaceID := strings.TrimSpace(attempt.WorkspaceID)
	if workspaceID == "" {
		return core.ErrWorkspaceIDRequired
	}
	if strings.TrimSpace(string(attempt.Platform)) == "" {
		return fmt.Errorf("sqlstore: publish attempt platform is required")
	}
	id := strings.TrimSpace(attempt.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := attempt.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.repo.Create(ctx, &publishAttemptRecord{
		ID:          id,
		WorkspaceID: workspaceID,
		PostID:      strings.TrimSpace(attempt.PostID),
		Platform:    string(attempt.Platform),
		Success:     attempt.Success,
		Scheduled:   attempt.Scheduled,
		ExternalID:  strings.TrimSpace(attempt.ExternalID),
		URL:         strings.TrimSpace(attempt.URL),
		Error:       attempt.Error,
		CreatedAt:   createdAt,
	})
	return err
}

// List returns attempts newest first. Page is 1-based; PerPage defaults to 25.
func (s *PublishAttemptStore) List(ctx context.Context, filter core.PublishAttemptFilter) ([]core.PublishAttempt, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: publish attempt store is not configured")
	}
	workspaceID := strings.TrimSpace(filter.WorkspaceID)
	if workspaceID == "" {
		return nil, core.ErrWorkspaceIDRequired
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 25
	}

	selectors := []repository.SelectCriteria{
		repository.SelectBy("workspace_id", "=", workspaceID),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, (page-1)*perPage),
	}
	if postID := strings.TrimSpace(filter.PostID); postID != "" {
		selectors = append(selectors, repository.SelectBy("post_id", "=", postID))
	}
	if platform := strings.TrimSpace(string(filter.Platform)); platform != "" {
		selectors = append(selectors, repository.SelectBy("platform", "=", platform))
	}

	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.PublishAttempt, 0, len(records))
	for _, record := range records {
		out = append(out, core.PublishAttempt{
			ID:          record.ID,
			WorkspaceID: record.WorkspaceID,
			PostID:      record.PostID,
			Platform:    core.Platform(record.Platform),
			Success:     record.Success,
			Scheduled:   record.Scheduled,
			ExternalID:  record.ExternalID,
			URL:         record.URL,
			Error:       record.Error,
			CreatedAt:   record.CreatedAt,
		})
	}
	return out, nil
}
