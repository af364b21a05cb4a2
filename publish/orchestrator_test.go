package publish

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-social/accounts"
	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/identity"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/security"
)

type stubAdapter struct {
	meta providers.Metadata

	mu          sync.Mutex
	posts       []providers.PostRequest
	credentials []core.PlatformCredentials
	scheduled   []time.Time
	result      providers.Result
	err         error
	panicWith   string
}

func newStub(platform core.Platform) *stubAdapter {
	return &stubAdapter{
		meta:   providers.Metadata{Platform: platform},
		result: providers.Succeeded(string(platform)+"_post", "https://"+string(platform)+".example/p/1"),
	}
}

func (s *stubAdapter) Metadata() providers.Metadata { return s.meta }

func (s *stubAdapter) AuthorizationURL(string) (string, error) { return "", nil }

func (s *stubAdapter) ExchangeCode(context.Context, string) (providers.TokenSet, error) {
	return providers.TokenSet{}, nil
}

func (s *stubAdapter) RefreshAccessToken(context.Context, string) (providers.TokenSet, error) {
	return providers.TokenSet{}, nil
}

func (s *stubAdapter) UserProfile(context.Context, core.PlatformCredentials) (providers.Profile, error) {
	return providers.Profile{}, nil
}

func (s *stubAdapter) PostContent(_ context.Context, credentials core.PlatformCredentials, req providers.PostRequest) (providers.Result, error) {
	if s.panicWith != "" {
		panic(s.panicWith)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, req)
	s.credentials = append(s.credentials, credentials)
	if s.err != nil {
		return providers.Failed(s.err), s.err
	}
	return s.result, nil
}

func (s *stubAdapter) UploadMedia(context.Context, core.PlatformCredentials, providers.MediaUpload) (providers.Result, error) {
	return providers.Result{}, nil
}

func (s *stubAdapter) SchedulePost(_ context.Context, credentials core.PlatformCredentials, req providers.PostRequest, at time.Time) (providers.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, req)
	s.scheduled = append(s.scheduled, at)
	return providers.Succeeded("scheduled_1", ""), nil
}

func (s *stubAdapter) VerifyCredentials(context.Context, core.PlatformCredentials) (bool, error) {
	return true, nil
}

func (s *stubAdapter) PostMetrics(context.Context, core.PlatformCredentials, string) (providers.PostMetrics, error) {
	return providers.PostMetrics{}, nil
}

func (s *stubAdapter) postCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

type carouselStub struct {
	*stubAdapter
	carousels []providers.CarouselRequest
}

func (c *carouselStub) PostCarousel(_ context.Context, _ core.PlatformCredentials, req providers.CarouselRequest) (providers.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carousels = append(c.carousels, req)
	return providers.Succeeded("carousel_1", "https://carousel.example/1"), nil
}

type adapterSet map[core.Platform]providers.PlatformAdapter

func (s adapterSet) Adapter(platform core.Platform) (providers.PlatformAdapter, bool) {
	adapter, ok := s[platform]
	return adapter, ok
}

type harness struct {
	vault *accounts.Vault
	store *accounts.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := accounts.NewMemoryStore()
	vault, err := accounts.NewVault(store, security.NewTenantCipher("master-secret"))
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	return &harness{vault: vault, store: store}
}

func (h *harness) connect(t *testing.T, credentials core.PlatformCredentials) {
	t.Helper()
	if _, err := h.vault.Save(context.Background(), "ws_1", credentials); err != nil {
		t.Fatalf("save %s: %v", credentials.Platform, err)
	}
}

func (h *harness) connectAll(t *testing.T, platforms ...core.Platform) {
	t.Helper()
	for _, platform := range platforms {
		h.connect(t, core.PlatformCredentials{
			Platform:    platform,
			AccessToken: string(platform) + "-token",
			UserID:      string(platform) + "-user",
			PageID:      "page_1",
		})
	}
}

func TestPublish_PartialFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	h.connectAll(t, core.PlatformTwitter, core.PlatformLinkedIn, core.PlatformFacebook)

	twitter := newStub(core.PlatformTwitter)
	linkedin := newStub(core.PlatformLinkedIn)
	linkedin.err = &core.ExternalAPIError{Platform: core.PlatformLinkedIn, Context: "create post", StatusCode: 500}
	facebook := newStub(core.PlatformFacebook)

	orchestrator, err := New(adapterSet{
		core.PlatformTwitter:  twitter,
		core.PlatformLinkedIn: linkedin,
		core.PlatformFacebook: facebook,
	}, h.vault)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	results, err := orchestrator.Publish(context.Background(), core.Post{
		ID:          "post_1",
		WorkspaceID: "ws_1",
		Topic:       "Quarterly update",
		Platforms:   []core.Platform{core.PlatformTwitter, core.PlatformLinkedIn, core.PlatformFacebook},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[core.PlatformLinkedIn].Success || !strings.Contains(results[core.PlatformLinkedIn].Error, "status 500") {
		t.Fatalf("expected linkedin failure, got %+v", results[core.PlatformLinkedIn])
	}
	for _, platform := range []core.Platform{core.PlatformTwitter, core.PlatformFacebook} {
		result := results[platform]
		if !result.Success || result.PostID != string(platform)+"_post" || result.URL == "" {
			t.Fatalf("expected %s success, got %+v", platform, result)
		}
	}
	summary := core.Summarize(results)
	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestPublish_PanicBecomesFailure(t *testing.T) {
	h := newHarness(t)
	h.connectAll(t, core.PlatformTwitter, core.PlatformLinkedIn)

	twitter := newStub(core.PlatformTwitter)
	twitter.panicWith = "boom"
	linkedin := newStub(core.PlatformLinkedIn)

	orchestrator, err := New(adapterSet{core.PlatformTwitter: twitter, core.PlatformLinkedIn: linkedin}, h.vault)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	results, err := orchestrator.Publish(context.Background(), core.Post{
		WorkspaceID: "ws_1",
		Topic:       "hello",
		Platforms:   []core.Platform{core.PlatformTwitter, core.PlatformLinkedIn},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if results[core.PlatformTwitter].Success || !strings.Contains(results[core.PlatformTwitter].Error, "boom") {
		t.Fatalf("expected recovered panic, got %+v", results[core.PlatformTwitter])
	}
	if !results[core.PlatformLinkedIn].Success {
		t.Fatalf("expected linkedin unaffected, got %+v", results[core.PlatformLinkedIn])
	}
}

func TestPublish_TwitterCharacterBoundary(t *testing.T) {
	h := newHarness(t)
	h.connectAll(t, core.PlatformTwitter)
	twitter := newStub(core.PlatformTwitter)
	orchestrator, err := New(adapterSet{core.PlatformTwitter: twitter}, h.vault)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	ctx := context.Background()

	exact := strings.Repeat("é", 280)
	results, err := orchestrator.Publish(ctx, core.Post{WorkspaceID: "ws_1", Topic: exact, Platforms: []core.Platform{core.PlatformTwitter}})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !results[core.PlatformTwitter].Success {
		t.Fatalf("expected 280 characters to pass, got %+v", results[core.PlatformTwitter])
	}

	results, err = orchestrator.Publish(ctx, core.Post{WorkspaceID: "ws_1", Topic: exact + "x", Platforms: []core.Platform{core.PlatformTwitter}})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	result := results[core.PlatformTwitter]
	if result.Success || !strings.Contains(result.Error, "twitter") || !strings.Contains(result.Error, "280") {
		t.Fatalf("expected limit violation naming twitter, got %+v", result)
	}
	if twitter.postCount() != 1 {
		t.Fatalf("expected validation to fail before dispatch, got %d posts", twitter.postCount())
	}
}

func TestPublish_LaunchDayExample(t *testing.T) {
	h := newHarness(t)
	h.connectAll(t, core.PlatformTwitter, core.PlatformInstagram)
	twitter := newStub(core.PlatformTwitter)
	instagram := newStub(core.PlatformInstagram)

	orchestrator, err := New(adapterSet{core.PlatformTwitter: twitter, core.PlatformInstagram: instagram}, h.vault)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	results, err := orchestrator.Publish(context.Background(), core.Post{
		ID:          "post_launch",
		WorkspaceID: "ws_1",
		Topic:       "Launch day",
		Platforms:   []core.Platform{core.PlatformTwitter, core.PlatformInstagram},
		PlatformContent: map[core.Platform]any{
			core.PlatformTwitter:   "🚀 We launched!",
			core.PlatformInstagram: map[string]any{"description": "Big day for us"},
		},
		ImageURLs: []string{"https://cdn.example/launch.png"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(results) != 2 || !results[core.PlatformTwitter].Success || !results[core.PlatformInstagram].Success {
		t.Fatalf("expected two successful results, got %+v", results)
	}
	if got := instagram.posts[0]; got.Content != "Big day for us" || got.MediaURL != "https://cdn.example/launch.png" || got.MediaType != core.MediaTypeImage {
		t.Fatalf("unexpected instagram request %+v", got)
	}
	if got := twitter.posts[0]; got.Content != "🚀 We launched!" {
		t.Fatalf("unexpected twitter request %+v", got)
	}
	if instagram.credentials[0].AccessToken != "instagram-token" {
		t.Fatalf("expected decrypted instagram credentials")
	}
}

func TestPublish_CarouselRouting(t *testing.T) {
	h := newHarness(t)
	h.connectAll(t, core.PlatformFacebook, core.PlatformLinkedIn)
	facebook := &carouselStub{stubAdapter: newStub(core.PlatformFacebook)}
	linkedin := newStub(core.PlatformLinkedIn)

	orchestrator, err := New(adapterSet{core.PlatformFacebook: facebook, core.PlatformLinkedIn: linkedin}, h.vault)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	results, err := orchestrator.Publish(context.Background(), core.Post{
		WorkspaceID: "ws_1",
		Topic:       "Gallery",
		Platforms:   []core.Platform{core.PlatformFacebook, core.PlatformLinkedIn},
		ImageURLs:   []string{"https://cdn.example/1.png", "https://cdn.example/2.png", "https://cdn.example/3.png"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !results[core.PlatformFacebook].Success || results[core.PlatformFacebook].PostID != "carousel_1" {
		t.Fatalf("expected facebook carousel, got %+v", results[core.PlatformFacebook])
	}
	if len(facebook.carousels) != 1 || len(facebook.carousels[0].MediaURLs) != 3 || facebook.postCount() != 0 {
		t.Fatalf("expected carousel path only, got %+v", facebook.carousels)
	}
	result := results[core.PlatformLinkedIn]
	if result.Success || !strings.Contains(result.Error, core.ErrCarouselUnsupported.Error()) {
		t.Fatalf("expected carousel unsupported, got %+v", result)
	}
}

func TestPublish_UnavailablePlatformAndMissingAccount(t *testing.T) {
	h := newHarness(t)
	orchestrator, err := New(adapterSet{core.PlatformLinkedIn: newStub(core.PlatformLinkedIn)}, h.vault)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	results, err := orchestrator.Publish(context.Background(), core.Post{
		WorkspaceID: "ws_1",
		Topic:       "hello",
		Platforms:   []core.Platform{core.PlatformTikTok, core.PlatformLinkedIn, "myspace", core.PlatformLinkedIn},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected one result per distinct platform, got %d", len(results))
	}
	if !strings.Contains(results[core.PlatformTikTok].Error, "platform unavailable") {
		t.Fatalf("expected tiktok unavailable, got %+v", results[core.PlatformTikTok])
	}
	if !strings.Contains(results[core.PlatformLinkedIn].Error, "account not found") {
		t.Fatalf("expected missing linkedin account, got %+v", results[core.PlatformLinkedIn])
	}
	if !strings.Contains(results["myspace"].Error, "unknown platform") {
		t.Fatalf("expected unknown platform, got %+v", results["myspace"])
	}

	if _, err := orchestrator.Publish(context.Background(), core.Post{Platforms: []core.Platform{core.PlatformTwitter}}); !errors.Is(err, core.ErrWorkspaceIDRequired) {
		t.Fatalf("expected workspace error, got %v", err)
	}
}

func TestPublish_EncryptionFailureOnlyAffectsThatPlatform(t *testing.T) {
	h := newHarness(t)
	h.connectAll(t, core.PlatformTwitter, core.PlatformLinkedIn)
	ctx := context.Background()

	record, err := h.store.Get(ctx, core.AccountKey{WorkspaceID: "ws_1", Platform: core.PlatformTwitter})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	record.EncryptedCredentials = "bm90LWFuLWVudmVsb3Bl"
	if _, err := h.store.Put(ctx, record); err != nil {
		t.Fatalf("put: %v", err)
	}

	orchestrator, err := New(adapterSet{
		core.PlatformTwitter:  newStub(core.PlatformTwitter),
		core.PlatformLinkedIn: newStub(core.PlatformLinkedIn),
	}, h.vault)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	results, err := orchestrator.Publish(ctx, core.Post{
		WorkspaceID: "ws_1",
		Topic:       "hello",
		Platforms:   []core.Platform{core.PlatformTwitter, core.PlatformLinkedIn},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if results[core.PlatformTwitter].Success || !strings.Contains(results[core.PlatformTwitter].Error, "encryption error") {
		t.Fatalf("expected twitter encryption failure, got %+v", results[core.PlatformTwitter])
	}
	if !results[core.PlatformLinkedIn].Success {
		t.Fatalf("expected linkedin success, got %+v", results[core.PlatformLinkedIn])
	}
}

type countingResolver struct {
	calls      atomic.Int32
	capability identity.Capability
}

func (r *countingResolver) Resolve(context.Context, string) (identity.Capability, error) {
	r.calls.Add(1)
	return r.capability, nil
}

func TestPublish_MetaPlatformsUseResolvedIdentity(t *testing.T) {
	h := newHarness(t)
	h.connect(t, core.PlatformCredentials{Platform: core.PlatformInstagram, AccessToken: "ig-token", UserID: "ig_1"})
	resolver := &countingResolver{capability: identity.Capability{
		HasAdsAccess: true,
		Source:       core.PlatformMetaAds,
		AccessToken:  "ads-token",
		PageID:       "page_9",
		AdAccountID:  "777",
	}}
	facebook := newStub(core.PlatformFacebook)
	instagram := newStub(core.PlatformInstagram)

	orchestrator, err := New(adapterSet{core.PlatformFacebook: facebook, core.PlatformInstagram: instagram}, h.vault,
		WithMetaResolver(resolver),
		WithParallelism(2),
	)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	results, err := orchestrator.Publish(context.Background(), core.Post{
		WorkspaceID: "ws_1",
		Topic:       "Meta day",
		Platforms:   []core.Platform{core.PlatformFacebook, core.PlatformInstagram},
		ImageURLs:   []string{"https://cdn.example/a.png"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !results[core.PlatformFacebook].Success || !results[core.PlatformInstagram].Success {
		t.Fatalf("expected both meta platforms to publish, got %+v", results)
	}
	if resolver.calls.Load() != 1 {
		t.Fatalf("expected a single identity resolution, got %d", resolver.calls.Load())
	}
	if got := facebook.credentials[0]; got.AccessToken != "ads-token" || got.PageID != "page_9" || got.Platform != core.PlatformFacebook {
		t.Fatalf("expected facebook to use resolved identity, got %+v", got)
	}
	if got := instagram.credentials[0]; got.AccessToken != "ig-token" || got.AdAccountID != "777" || got.PageID != "page_9" {
		t.Fatalf("expected instagram record completed by identity, got %+v", got)
	}
}

func TestPublish_CorruptSiblingMetaRecordDoesNotBlockOwnRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t, core.PlatformCredentials{Platform: core.PlatformFacebook, AccessToken: "fb-token", UserID: "fb_user", PageID: "page_1"})
	h.connect(t, core.PlatformCredentials{Platform: core.PlatformMetaAds, AccessToken: "ads-token", UserID: "ads_user"})
	record, err := h.store.Get(ctx, core.AccountKey{WorkspaceID: "ws_1", Platform: core.PlatformMetaAds})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	record.EncryptedCredentials = "bm90LWFuLWVudmVsb3Bl"
	if _, err := h.store.Put(ctx, record); err != nil {
		t.Fatalf("put: %v", err)
	}

	resolver, err := identity.NewMetaIdentityResolver(h.vault, nil)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	facebook := newStub(core.PlatformFacebook)
	orchestrator, err := New(adapterSet{core.PlatformFacebook: facebook}, h.vault, WithMetaResolver(resolver))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	results, err := orchestrator.Publish(ctx, core.Post{
		WorkspaceID: "ws_1",
		Topic:       "page update",
		Platforms:   []core.Platform{core.PlatformFacebook},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !results[core.PlatformFacebook].Success {
		t.Fatalf("expected facebook to publish with its own record, got %+v", results[core.PlatformFacebook])
	}
	if got := facebook.credentials[0]; got.AccessToken != "fb-token" || got.PageID != "page_1" {
		t.Fatalf("expected facebook own credentials, got %+v", got)
	}
}

func TestPublish_PagePostWithoutGraphClient(t *testing.T) {
	h := newHarness(t)
	h.connect(t, core.PlatformCredentials{Platform: core.PlatformFacebook, AccessToken: "fb-token", UserID: "fb_user", PageID: "page_1"})
	resolver, err := identity.NewMetaIdentityResolver(h.vault, nil)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	orchestrator, err := New(adapterSet{core.PlatformFacebook: newStub(core.PlatformFacebook)}, h.vault, WithMetaResolver(resolver))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	results, err := orchestrator.Publish(context.Background(), core.Post{
		WorkspaceID: "ws_1",
		Topic:       "no ads here",
		Platforms:   []core.Platform{core.PlatformFacebook},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !results[core.PlatformFacebook].Success {
		t.Fatalf("expected page post without ads capability, got %+v", results[core.PlatformFacebook])
	}
}

func TestPublish_InstagramNeverUsesSiblingIdentity(t *testing.T) {
	h := newHarness(t)
	resolver := &countingResolver{capability: identity.Capability{
		Source:      core.PlatformFacebook,
		AccessToken: "fb-token",
		UserID:      "fb_user",
		PageID:      "page_1",
	}}
	instagram := newStub(core.PlatformInstagram)
	facebook := newStub(core.PlatformFacebook)
	orchestrator, err := New(adapterSet{core.PlatformInstagram: instagram, core.PlatformFacebook: facebook}, h.vault, WithMetaResolver(resolver))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	results, err := orchestrator.Publish(context.Background(), core.Post{
		WorkspaceID: "ws_1",
		Topic:       "photo",
		Platforms:   []core.Platform{core.PlatformInstagram, core.PlatformFacebook},
		ImageURLs:   []string{"https://cdn.example/a.png"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if results[core.PlatformInstagram].Success || !strings.Contains(results[core.PlatformInstagram].Error, "account not found") {
		t.Fatalf("expected instagram account not found, got %+v", results[core.PlatformInstagram])
	}
	if instagram.postCount() != 0 {
		t.Fatalf("expected no instagram dispatch")
	}
	if !results[core.PlatformFacebook].Success {
		t.Fatalf("expected facebook through its page, got %+v", results[core.PlatformFacebook])
	}

	resolver.capability.PageID = ""
	results, err = orchestrator.Publish(context.Background(), core.Post{
		WorkspaceID: "ws_1",
		Topic:       "text",
		Platforms:   []core.Platform{core.PlatformFacebook},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if results[core.PlatformFacebook].Success {
		t.Fatalf("expected facebook without a page to fail, got %+v", results[core.PlatformFacebook])
	}
}

func TestPublish_ParallelResultsKeyedByPlatform(t *testing.T) {
	h := newHarness(t)
	platforms := []core.Platform{core.PlatformTwitter, core.PlatformLinkedIn, core.PlatformFacebook}
	h.connectAll(t, platforms...)
	adapters := adapterSet{}
	for _, platform := range platforms {
		adapters[platform] = newStub(platform)
	}
	orchestrator, err := New(adapters, h.vault, WithParallelism(3))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	results, err := orchestrator.Publish(context.Background(), core.Post{WorkspaceID: "ws_1", Topic: "t", Platforms: platforms})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	for _, platform := range platforms {
		if results[platform].Platform != platform || results[platform].PostID != string(platform)+"_post" {
			t.Fatalf("result for %s mismatched: %+v", platform, results[platform])
		}
	}
}

type recordingLog struct {
	mu       sync.Mutex
	attempts []core.PublishAttempt
	err      error
}

func (l *recordingLog) Record(_ context.Context, attempt core.PublishAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.attempts = append(l.attempts, attempt)
	return nil
}

func (l *recordingLog) List(context.Context, core.PublishAttemptFilter) ([]core.PublishAttempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.PublishAttempt(nil), l.attempts...), nil
}

func TestPublish_RecordsEveryAttempt(t *testing.T) {
	h := newHarness(t)
	h.connectAll(t, core.PlatformTwitter)
	log := &recordingLog{}

	orchestrator, err := New(adapterSet{core.PlatformTwitter: newStub(core.PlatformTwitter)}, h.vault, WithPublishLog(log))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if _, err := orchestrator.Publish(context.Background(), core.Post{
		ID:          "post_5",
		WorkspaceID: "ws_1",
		Topic:       "Logged",
		Platforms:   []core.Platform{core.PlatformTwitter, core.PlatformTikTok},
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	attempts, _ := log.List(context.Background(), core.PublishAttemptFilter{WorkspaceID: "ws_1"})
	if len(attempts) != 2 {
		t.Fatalf("expected 2 recorded attempts, got %d", len(attempts))
	}
	byPlatform := map[core.Platform]core.PublishAttempt{}
	for _, attempt := range attempts {
		if attempt.PostID != "post_5" || attempt.WorkspaceID != "ws_1" {
			t.Fatalf("unexpected attempt %+v", attempt)
		}
		byPlatform[attempt.Platform] = attempt
	}
	if !byPlatform[core.PlatformTwitter].Success || byPlatform[core.PlatformTwitter].ExternalID == "" {
		t.Fatalf("expected successful twitter attempt, got %+v", byPlatform[core.PlatformTwitter])
	}
	if byPlatform[core.PlatformTikTok].Success || byPlatform[core.PlatformTikTok].Error == "" {
		t.Fatalf("expected failed tiktok attempt, got %+v", byPlatform[core.PlatformTikTok])
	}
}

func TestPublish_FailingLogDoesNotChangeResult(t *testing.T) {
	h := newHarness(t)
	h.connectAll(t, core.PlatformTwitter)
	orchestrator, err := New(adapterSet{core.PlatformTwitter: newStub(core.PlatformTwitter)}, h.vault,
		WithPublishLog(&recordingLog{err: errors.New("db down")}),
	)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	results, err := orchestrator.Publish(context.Background(), core.Post{
		WorkspaceID: "ws_1",
		Topic:       "Still ships",
		Platforms:   []core.Platform{core.PlatformTwitter},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !results[core.PlatformTwitter].Success {
		t.Fatalf("expected success despite log failure, got %+v", results[core.PlatformTwitter])
	}
}
