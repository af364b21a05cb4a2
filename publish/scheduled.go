package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
)

const (
	ScheduledJobID         = "social.publish.scheduled"
	ScheduledJobScriptPath = "social/publish/scheduled"
)

// NewScheduledJob encodes a deferred publication. The idempotency key is
// stable per (workspace, post, platform) and a re-enqueue is deduplicated. An
// empty post id is rejected.
func NewScheduledJob(workspaceID string, postID string, target core.PublishTarget) (*core.JobExecutionMessage, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, core.ErrWorkspaceIDRequired
	}
	if target.ScheduledAt == nil {
		return nil, core.NewValidationError(target.Platform, "scheduledAt", "scheduled time is required")
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, core.NewValidationError(target.Platform, "postId", "post id is required for deferred publication")
	}
	params := map[string]any{
		"workspace_id": workspaceID,
		"post_id":      postID,
		"platform":     string(target.Platform),
		"content":      target.Content,
		"media_url":    target.MediaURL,
		"media_type":   string(target.MediaType),
		"post_type":    string(target.PostType),
		"run_at":       target.ScheduledAt.UTC().Format(time.RFC3339),
	}
	if len(target.CarouselURLs) > 0 {
		urls := make([]any, 0, len(target.CarouselURLs))
		for _, u := range target.CarouselURLs {
			urls = append(urls, u)
		}
		params["carousel_urls"] = urls
	}
	return &core.JobExecutionMessage{
		JobID:          ScheduledJobID,
		ScriptPath:     ScheduledJobScriptPath,
		Parameters:     params,
		IdempotencyKey: strings.Join([]string{workspaceID, postID, string(target.Platform)}, ":"),
		DedupPolicy:    "drop",
	}, nil
}

// ScheduledJob is a decoded deferred publication.
type ScheduledJob struct {
	WorkspaceID string
	PostID      string
	RunAt       time.Time
	Target      core.PublishTarget
}

func DecodeScheduledJob(msg *core.JobExecutionMessage) (ScheduledJob, error) {
	if msg == nil {
		return ScheduledJob{}, fmt.Errorf("publish: job message is required")
	}
	if msg.JobID != ScheduledJobID {
		return ScheduledJob{}, fmt.Errorf("publish: unexpected job id %q", msg.JobID)
	}
	params := msg.Parameters
	platform, err := core.ParsePlatform(stringParam(params, "platform"))
	if err != nil {
		return ScheduledJob{}, err
	}
	runAt, err := time.Parse(time.RFC3339, stringParam(params, "run_at"))
	if err != nil {
		return ScheduledJob{}, fmt.Errorf("publish: invalid run_at: %w", err)
	}
	job := ScheduledJob{
		WorkspaceID: stringParam(params, "workspace_id"),
		PostID:      stringParam(params, "post_id"),
		RunAt:       runAt.UTC(),
		Target: core.PublishTarget{
			Platform:  platform,
			Content:   stringParam(params, "content"),
			MediaURL:  stringParam(params, "media_url"),
			MediaType: core.MediaType(stringParam(params, "media_type")),
			PostType:  core.PostType(stringParam(params, "post_type")),
		},
	}
	if job.WorkspaceID == "" {
		return ScheduledJob{}, core.ErrWorkspaceIDRequired
	}
	switch urls := params["carousel_urls"].(type) {
	case []string:
		job.Target.CarouselURLs = append([]string(nil), urls...)
	case []any:
		for _, raw := range urls {
			if value, ok := raw.(string); ok && strings.TrimSpace(value) != "" {
				job.Target.CarouselURLs = append(job.Target.CarouselURLs, value)
			}
		}
	}
	return job, nil
}

func stringParam(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return strings.TrimSpace(value)
}

// Worker drains deferred publications. A delivery that is not yet due is
// requeued with a delay; a failed publication is dead-lettered, never retried.
type Worker struct {
	orchestrator *Orchestrator
	dequeuer     core.JobDequeuer
	now          func() time.Time
}

func NewWorker(orchestrator *Orchestrator, dequeuer core.JobDequeuer) (*Worker, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("publish: orchestrator is required")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("publish: job dequeuer is required")
	}
	return &Worker{orchestrator: orchestrator, dequeuer: dequeuer, now: orchestrator.now}, nil
}

// RunOnce handles one delivery. The result is zero when the delivery was
// deferred.
func (w *Worker) RunOnce(ctx context.Context) (core.PublishResult, error) {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return core.PublishResult{}, err
	}
	if delivery == nil {
		return core.PublishResult{}, nil
	}
	job, err := DecodeScheduledJob(delivery.Message())
	if err != nil {
		nackErr := delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: err.Error()})
		return core.PublishResult{}, errors.Join(err, nackErr)
	}

	if wait := job.RunAt.Sub(w.now()); wait > 0 {
		return core.PublishResult{}, delivery.Nack(ctx, core.JobNackOptions{Delay: wait, Requeue: true, Reason: "not due"})
	}

	result := w.orchestrator.Dispatch(ctx, job.WorkspaceID, job.PostID, job.Target)
	if result.Success {
		return result, delivery.Ack(ctx)
	}
	return result, delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: result.Error})
}
