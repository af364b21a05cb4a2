package social_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	social "github.com/goliatone/go-social"
	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	sqlstore "github.com/goliatone/go-social/store/sql"
)

type fakeAdapter struct {
	platform core.Platform

	mu    sync.Mutex
	posts []providers.PostRequest
}

func (a *fakeAdapter) Metadata() providers.Metadata {
	return providers.Metadata{Platform: a.platform, CharacterLimit: 280}
}

func (a *fakeAdapter) AuthorizationURL(state string) (string, error) {
	return "https://auth.example/" + string(a.platform) + "?state=" + state, nil
}

func (a *fakeAdapter) ExchangeCode(_ context.Context, code string) (providers.TokenSet, error) {
	return providers.TokenSet{AccessToken: "token-" + code, RefreshToken: "refresh-" + code}, nil
}

func (a *fakeAdapter) RefreshAccessToken(_ context.Context, refreshToken string) (providers.TokenSet, error) {
	return providers.TokenSet{AccessToken: "renewed-" + refreshToken}, nil
}

func (a *fakeAdapter) UserProfile(context.Context, core.PlatformCredentials) (providers.Profile, error) {
	return providers.Profile{ID: "user_1", Username: "acme"}, nil
}

func (a *fakeAdapter) PostContent(_ context.Context, credentials core.PlatformCredentials, req providers.PostRequest) (providers.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if credentials.AccessToken == "" {
		return providers.Result{}, fmt.Errorf("missing token")
	}
	a.posts = append(a.posts, req)
	return providers.Succeeded(fmt.Sprintf("%s_%d", a.platform, len(a.posts)), ""), nil
}

func (a *fakeAdapter) UploadMedia(context.Context, core.PlatformCredentials, providers.MediaUpload) (providers.Result, error) {
	return providers.Result{}, nil
}

func (a *fakeAdapter) SchedulePost(context.Context, core.PlatformCredentials, providers.PostRequest, time.Time) (providers.Result, error) {
	return providers.Result{}, fmt.Errorf("unsupported")
}

func (a *fakeAdapter) VerifyCredentials(context.Context, core.PlatformCredentials) (bool, error) {
	return true, nil
}

func (a *fakeAdapter) PostMetrics(context.Context, core.PlatformCredentials, string) (providers.PostMetrics, error) {
	return providers.PostMetrics{}, nil
}

type fakeResolver map[core.Platform]providers.PlatformAdapter

func (r fakeResolver) Adapter(platform core.Platform) (providers.PlatformAdapter, bool) {
	adapter, ok := r[platform]
	return adapter, ok
}

func TestService_ConnectPublishAndDisconnect(t *testing.T) {
	ctx := context.Background()
	twitter := &fakeAdapter{platform: core.PlatformTwitter}
	svc, err := social.NewService(social.Config{MasterSecret: "master-secret"},
		social.WithAdapters(fakeResolver{core.PlatformTwitter: twitter}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	auth, err := svc.BeginAuthorization(core.PlatformTwitter, "st_1")
	if err != nil || auth.URL == "" || auth.State != "st_1" {
		t.Fatalf("begin authorization: %+v %v", auth, err)
	}
	record, err := svc.ConnectAccount(ctx, social.ConnectRequest{
		WorkspaceID: "ws_1",
		Platform:    core.PlatformTwitter,
		Code:        "abc",
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if record.Username != "acme" || record.EncryptedCredentials == "" {
		t.Fatalf("unexpected record %+v", record)
	}

	results, err := svc.Publish(ctx, core.Post{
		ID:          "post_1",
		WorkspaceID: "ws_1",
		Topic:       "hello world",
		Platforms:   []core.Platform{core.PlatformTwitter, core.PlatformLinkedIn},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !results[core.PlatformTwitter].Success {
		t.Fatalf("expected twitter success, got %+v", results[core.PlatformTwitter])
	}
	if results[core.PlatformLinkedIn].Success || results[core.PlatformLinkedIn].Error == "" {
		t.Fatalf("expected linkedin failure, got %+v", results[core.PlatformLinkedIn])
	}

	listed, err := svc.ListAccounts(ctx, "ws_1")
	if err != nil || len(listed) != 1 {
		t.Fatalf("list accounts: %+v %v", listed, err)
	}
	if err := svc.DisconnectAccount(ctx, core.AccountKey{WorkspaceID: "ws_1", Platform: core.PlatformTwitter}); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	listed, err = svc.ListAccounts(ctx, "ws_1")
	if err != nil || len(listed) != 0 {
		t.Fatalf("expected no accounts after disconnect: %+v %v", listed, err)
	}
}

func TestService_MetaCapabilityWithoutAccountsReportsReason(t *testing.T) {
	svc, err := social.NewService(social.Config{MasterSecret: "master-secret"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	capability, err := svc.ResolveMetaCapability(context.Background(), "ws_1", social.ResolveOptions{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if capability.HasAdsAccess || capability.Reason == "" {
		t.Fatalf("expected no ads access with a reason, got %+v", capability)
	}
}

func TestService_RecordsPublishAttemptsInSQLStore(t *testing.T) {
	ctx := context.Background()
	client, err := sqlstore.Open(ctx, core.DatabaseConfig{
		Driver: sqlstore.DriverSQLite,
		DSN:    fmt.Sprintf("file:social-service-%d?mode=memory&cache=shared", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = client.Close() }()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithAccountCache(time.Minute))
	if err != nil {
		t.Fatalf("repository factory: %v", err)
	}
	linkedin := &fakeAdapter{platform: core.PlatformLinkedIn}
	svc, err := social.NewService(social.Config{MasterSecret: "master-secret"},
		social.WithRepositoryFactory(factory),
		social.WithAdapters(fakeResolver{core.PlatformLinkedIn: linkedin}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.ConnectAccount(ctx, social.ConnectRequest{WorkspaceID: "ws_1", Platform: core.PlatformLinkedIn, Code: "c1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := svc.Publish(ctx, core.Post{
		ID:          "post_7",
		WorkspaceID: "ws_1",
		Topic:       "quarterly update",
		Platforms:   []core.Platform{core.PlatformLinkedIn},
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	attempts, err := svc.ListPublishAttempts(ctx, core.PublishAttemptFilter{WorkspaceID: "ws_1", PostID: "post_7"})
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 1 || !attempts[0].Success || attempts[0].Platform != core.PlatformLinkedIn {
		t.Fatalf("unexpected attempts %+v", attempts)
	}

	refreshed, err := svc.RefreshAccount(ctx, core.AccountKey{WorkspaceID: "ws_1", Platform: core.PlatformLinkedIn})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.ID == "" {
		t.Fatalf("expected persisted record id")
	}
}

func TestNewService_RejectsInvalidConfig(t *testing.T) {
	_, err := social.NewService(social.Config{
		Database: core.DatabaseConfig{Driver: "mysql", DSN: "x"},
	})
	if err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
