package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/identity"
	"github.com/goliatone/go-social/providers"
)

// CredentialLoader returns decrypted credentials for one workspace platform.
type CredentialLoader interface {
	Load(ctx context.Context, key core.AccountKey) (core.PlatformCredentials, core.StoredAccountRecord, error)
}

type MetaResolver interface {
	Resolve(ctx context.Context, workspaceID string) (identity.Capability, error)
}

type Option func(*Orchestrator)

// WithParallelism bounds how many platforms are dispatched at once. Values
// below 2 keep dispatch sequential.
func WithParallelism(limit int) Option {
	return func(o *Orchestrator) {
		o.parallelism = limit
	}
}

func WithMetaResolver(resolver MetaResolver) Option {
	return func(o *Orchestrator) {
		o.meta = resolver
	}
}

// WithJobEnqueuer enables deferred publication for platforms that cannot
// schedule natively.
func WithJobEnqueuer(enqueuer core.JobEnqueuer) Option {
	return func(o *Orchestrator) {
		o.jobs = enqueuer
	}
}

// WithPublishLog records every dispatched attempt. Log failures are reported
// through the logger and never change the result.
func WithPublishLog(log core.PublishLog) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

func WithLogger(logger core.Logger) Option {
	return func(o *Orchestrator) {
		o.observer = core.NewObserver(o.observer.Prefix, logger, o.observer.Metrics)
	}
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(o *Orchestrator) {
		o.observer = core.NewObserver(o.observer.Prefix, o.observer.Logger, metrics)
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator fans one post out to its target platforms. Every platform
// attempt is isolated and yields exactly one result; nothing is retried.
type Orchestrator struct {
	adapters    providers.Resolver
	credentials CredentialLoader
	meta        MetaResolver
	jobs        core.JobEnqueuer
	log         core.PublishLog
	parallelism int
	observer    core.Observer
	now         func() time.Time
}

func New(adapters providers.Resolver, credentials CredentialLoader, opts ...Option) (*Orchestrator, error) {
	if adapters == nil {
		return nil, fmt.Errorf("publish: adapter resolver is required")
	}
	if credentials == nil {
		return nil, core.ErrCredentialStoreMissing
	}
	orchestrator := &Orchestrator{
		adapters:    adapters,
		credentials: credentials,
		parallelism: 1,
		observer:    core.NewObserver("social.publish", nil, nil),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(orchestrator)
		}
	}
	return orchestrator, nil
}

// Publish returns one result per distinct requested platform, keyed by
// platform. An error is returned only when the post itself is unusable.
func (o *Orchestrator) Publish(ctx context.Context, post core.Post) (map[core.Platform]core.PublishResult, error) {
	workspaceID := strings.TrimSpace(post.WorkspaceID)
	if workspaceID == "" {
		return nil, core.ErrWorkspaceIDRequired
	}
	platforms := uniquePlatforms(post.Platforms)
	if len(platforms) == 0 {
		return nil, core.NewValidationError("", "platforms", "at least one platform is required")
	}

	job := &publishJob{orchestrator: o, post: post, workspaceID: workspaceID}
	results := make(map[core.Platform]core.PublishResult, len(platforms))
	var mu sync.Mutex
	record := func(result core.PublishResult) {
		mu.Lock()
		results[result.Platform] = result
		mu.Unlock()
	}

	if o.parallelism < 2 || len(platforms) == 1 {
		for _, platform := range platforms {
			record(job.run(ctx, platform))
		}
		return results, nil
	}

	sem := make(chan struct{}, o.parallelism)
	var wg sync.WaitGroup
	for _, platform := range platforms {
		wg.Add(1)
		sem <- struct{}{}
		go func(platform core.Platform) {
			defer wg.Done()
			defer func() { <-sem }()
			record(job.run(ctx, platform))
		}(platform)
	}
	wg.Wait()
	return results, nil
}

// Dispatch publishes a single resolved target. Scheduled job execution uses it
// with ScheduledAt cleared.
func (o *Orchestrator) Dispatch(ctx context.Context, workspaceID string, postID string, target core.PublishTarget) core.PublishResult {
	job := &publishJob{
		orchestrator: o,
		post:         core.Post{ID: postID, WorkspaceID: workspaceID},
		workspaceID:  strings.TrimSpace(workspaceID),
	}
	return job.dispatch(ctx, target)
}

// publishJob holds state shared by the platforms of one Publish call. The
// Meta identity is resolved at most once per job.
type publishJob struct {
	orchestrator *Orchestrator
	post         core.Post
	workspaceID  string

	metaOnce       sync.Once
	metaCapability identity.Capability
	metaErr        error
}

func (j *publishJob) run(ctx context.Context, platform core.Platform) core.PublishResult {
	return j.dispatch(ctx, BuildTarget(j.post, platform))
}

func (j *publishJob) dispatch(ctx context.Context, target core.PublishTarget) (result core.PublishResult) {
	o := j.orchestrator
	startedAt := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			result = failure(target.Platform, fmt.Errorf("publish: %s adapter panicked: %v", target.Platform, recovered))
		}
		var err error
		if !result.Success {
			err = errors.New(result.Error)
		}
		o.observer.Operation(ctx, startedAt, "dispatch", err, map[string]any{
			"workspace_id": j.workspaceID,
			"platform":     string(target.Platform),
			"post_id":      j.post.ID,
			"media_type":   string(target.MediaType),
			"scheduled":    result.Scheduled,
		})
		j.record(ctx, result)
	}()

	if _, err := core.ParsePlatform(string(target.Platform)); err != nil {
		return failure(target.Platform, err)
	}
	adapter, ok := o.adapters.Adapter(target.Platform)
	if !ok || adapter == nil {
		return failure(target.Platform, fmt.Errorf("%w: %s", core.ErrPlatformUnavailable, target.Platform))
	}
	if err := Validate(target); err != nil {
		return failure(target.Platform, err)
	}
	credentials, err := j.credentials(ctx, target.Platform)
	if err != nil {
		return failure(target.Platform, err)
	}

	if target.ScheduledAt != nil && target.ScheduledAt.After(o.now()) {
		return j.schedule(ctx, adapter, credentials, target)
	}
	if target.MediaType == core.MediaTypeCarousel {
		poster, ok := adapter.(providers.CarouselPoster)
		if !ok {
			return failure(target.Platform, fmt.Errorf("%w: %s", core.ErrCarouselUnsupported, target.Platform))
		}
		res, err := poster.PostCarousel(ctx, credentials, providers.CarouselRequest{
			Content:   target.Content,
			MediaURLs: append([]string(nil), target.CarouselURLs...),
			PostType:  target.PostType,
		})
		return fromAdapter(target.Platform, res, err)
	}
	res, err := adapter.PostContent(ctx, credentials, postRequest(target))
	return fromAdapter(target.Platform, res, err)
}

func (j *publishJob) record(ctx context.Context, result core.PublishResult) {
	o := j.orchestrator
	if o.log == nil || j.workspaceID == "" {
		return
	}
	attempt := core.NewPublishAttempt(j.workspaceID, j.post.ID, result, o.now())
	if err := o.log.Record(ctx, attempt); err != nil {
		o.observer.Log(ctx, "warn", "publish attempt not recorded", map[string]any{
			"workspace_id": j.workspaceID,
			"platform":     string(result.Platform),
			"error":        err.Error(),
		})
	}
}

func (j *publishJob) schedule(ctx context.Context, adapter providers.PlatformAdapter, credentials core.PlatformCredentials, target core.PublishTarget) core.PublishResult {
	o := j.orchestrator
	at := target.ScheduledAt.UTC()
	if adapter.Metadata().SupportsScheduling && target.MediaType != core.MediaTypeCarousel {
		res, err := adapter.SchedulePost(ctx, credentials, postRequest(target), at)
		result := fromAdapter(target.Platform, res, err)
		result.Scheduled = result.Success
		return result
	}
	if o.jobs == nil {
		return failure(target.Platform, fmt.Errorf("%w: %s", core.ErrSchedulingUnsupported, target.Platform))
	}
	msg, err := NewScheduledJob(j.workspaceID, j.post.ID, target)
	if err != nil {
		return failure(target.Platform, err)
	}
	if err := o.jobs.Enqueue(ctx, msg); err != nil {
		return failure(target.Platform, fmt.Errorf("publish: enqueue scheduled post: %w", err))
	}
	return core.PublishResult{Platform: target.Platform, Success: true, Scheduled: true}
}

// credentials loads the platform record. Meta platforms are completed from
// the resolved Meta identity. A sibling record only stands in for a missing or
// expired one when it addresses the same Graph node, and a failed resolution
// never blocks a platform whose own record is usable.
func (j *publishJob) credentials(ctx context.Context, platform core.Platform) (core.PlatformCredentials, error) {
	o := j.orchestrator
	key := core.AccountKey{WorkspaceID: j.workspaceID, Platform: platform}
	credentials, _, err := o.credentials.Load(ctx, key)
	found := err == nil
	if err != nil && !errors.Is(err, core.ErrAccountNotFound) {
		return core.PlatformCredentials{}, fmt.Errorf("%w: %s credentials: %w", core.ErrPlatformUnavailable, platform, err)
	}
	if found && credentials.Expired(o.now()) {
		found = false
	}

	if !platform.IsMeta() || o.meta == nil {
		if !found {
			return core.PlatformCredentials{}, fmt.Errorf("%w: %s", core.ErrAccountNotFound, key)
		}
		return credentials, nil
	}

	capability, err := j.metaIdentity(ctx)
	if err != nil {
		if !found {
			return core.PlatformCredentials{}, fmt.Errorf("%w: meta identity: %w", core.ErrPlatformUnavailable, err)
		}
		o.observer.Log(ctx, "warn", "meta identity unavailable, using platform record", map[string]any{
			"workspace_id": j.workspaceID,
			"platform":     string(platform),
			"error":        err.Error(),
		})
		credentials.Platform = platform
		return credentials, nil
	}
	if !found {
		projected, ok := projectCapability(capability, platform)
		if !ok {
			return core.PlatformCredentials{}, fmt.Errorf("%w: %s", core.ErrAccountNotFound, key)
		}
		return projected, nil
	}
	if credentials.AdAccountID == "" && capability.AdAccountID != "" {
		credentials.AdAccountID = capability.AdAccountID
		credentials.AdAccountName = capability.AdAccountName
		credentials.Currency = capability.Currency
		credentials.Timezone = capability.Timezone
	}
	if credentials.PageID == "" && capability.PageID != "" {
		credentials.PageID = capability.PageID
		credentials.PageName = capability.PageName
	}
	credentials.Platform = platform
	return credentials, nil
}

// projectCapability builds credentials for platform from a sibling Meta
// record. Facebook needs a page to post to. Instagram publishes to its own
// business account node, which no sibling record carries.
func projectCapability(capability identity.Capability, platform core.Platform) (core.PlatformCredentials, bool) {
	if !capability.Connected() {
		return core.PlatformCredentials{}, false
	}
	switch platform {
	case core.PlatformFacebook:
		if strings.TrimSpace(capability.PageID) == "" {
			return core.PlatformCredentials{}, false
		}
	case core.PlatformInstagram:
		return core.PlatformCredentials{}, false
	}
	return capability.Credentials(platform), true
}

func (j *publishJob) metaIdentity(ctx context.Context) (identity.Capability, error) {
	j.metaOnce.Do(func() {
		j.metaCapability, j.metaErr = j.orchestrator.meta.Resolve(ctx, j.workspaceID)
	})
	return j.metaCapability, j.metaErr
}

func postRequest(target core.PublishTarget) providers.PostRequest {
	return providers.PostRequest{
		Content:   target.Content,
		MediaURL:  target.MediaURL,
		MediaType: target.MediaType,
		PostType:  target.PostType,
	}
}

func fromAdapter(platform core.Platform, res providers.Result, err error) core.PublishResult {
	if err != nil {
		return failure(platform, err)
	}
	if !res.Success {
		message := strings.TrimSpace(res.Error)
		if message == "" {
			message = fmt.Sprintf("publish: %s reported failure", platform)
		}
		return core.PublishResult{Platform: platform, Error: message}
	}
	return core.PublishResult{Platform: platform, Success: true, PostID: res.ID, URL: res.URL}
}

func failure(platform core.Platform, err error) core.PublishResult {
	return core.PublishResult{Platform: platform, Error: err.Error()}
}

func uniquePlatforms(input []core.Platform) []core.Platform {
	seen := make(map[core.Platform]struct{}, len(input))
	out := make([]core.Platform, 0, len(input))
	for _, raw := range input {
		platform := core.Platform(strings.TrimSpace(strings.ToLower(string(raw))))
		if parsed, err := core.ParsePlatform(string(platform)); err == nil {
			platform = parsed
		}
		if platform == "" {
			continue
		}
		if _, ok := seen[platform]; ok {
			continue
		}
		seen[platform] = struct{}{}
		out = append(out, platform)
	}
	return out
}
