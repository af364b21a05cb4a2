package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-social/accounts"
	"github.com/goliatone/go-social/core"
	meta "github.com/goliatone/go-social/providers/meta/common"
	"github.com/goliatone/go-social/security"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type graphFake struct {
	t      *testing.T
	mu     sync.Mutex
	paths  []string
	tokens []string
	routes map[string]string
	status map[string]int
}

func (g *graphFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if r.URL.Query().Get("appsecret_proof") != meta.AppSecretProof(token, "app-secret") {
		g.t.Errorf("missing or invalid appsecret_proof for %s", r.URL.Path)
	}
	if r.Method != http.MethodGet {
		g.t.Errorf("expected GET, got %s", r.Method)
	}
	path := strings.TrimPrefix(r.URL.Path, "/v23.0/")
	g.mu.Lock()
	g.paths = append(g.paths, path)
	g.tokens = append(g.tokens, token)
	g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status, ok := g.status[path]; ok {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"message":"graph unavailable"}}`))
		return
	}
	body, ok := g.routes[path]
	if !ok {
		body = `{"data":[]}`
	}
	_, _ = w.Write([]byte(body))
}

func (g *graphFake) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.paths...)
}

type fixture struct {
	vault    *accounts.Vault
	store    *accounts.MemoryStore
	graph    *graphFake
	resolver *MetaIdentityResolver
}

func newFixture(t *testing.T, routes map[string]string) *fixture {
	t.Helper()
	fake := &graphFake{t: t, routes: routes, status: map[string]int{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	graph, err := meta.NewGraphClient(meta.GraphConfig{
		BaseURL:    server.URL,
		AppSecret:  "app-secret",
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("graph client: %v", err)
	}
	store := accounts.NewMemoryStore()
	vault, err := accounts.NewVault(store, security.NewTenantCipher("master-secret"))
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	resolver, err := NewMetaIdentityResolver(vault, graph, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	return &fixture{vault: vault, store: store, graph: fake, resolver: resolver}
}

func (f *fixture) save(t *testing.T, credentials core.PlatformCredentials) {
	t.Helper()
	if _, err := f.vault.Save(context.Background(), "ws_1", credentials); err != nil {
		t.Fatalf("save %s: %v", credentials.Platform, err)
	}
}

func at(offset time.Duration) *time.Time {
	value := fixedNow.Add(offset)
	return &value
}

func TestResolve_PrefersFirstValidRecordWithoutDiscovery(t *testing.T) {
	f := newFixture(t, nil)
	f.save(t, core.PlatformCredentials{
		Platform:    core.PlatformMetaAds,
		AccessToken: "ads-token",
		AdAccountID: "111",
		ExpiresAt:   at(-time.Hour),
	})
	f.save(t, core.PlatformCredentials{
		Platform:      core.PlatformFacebook,
		AccessToken:   "fb-token",
		PageID:        "page_1",
		PageName:      "Launch Page",
		AdAccountID:   "act_222",
		AdAccountName: "Facebook Ads",
		ExpiresAt:     at(30 * 24 * time.Hour),
	})
	f.save(t, core.PlatformCredentials{
		Platform:    core.PlatformInstagram,
		AccessToken: "ig-token",
		UserID:      "ig_1",
	})

	capability, err := f.resolver.Resolve(context.Background(), "ws_1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if capability.Source != core.PlatformFacebook {
		t.Fatalf("expected facebook source, got %q", capability.Source)
	}
	if !capability.HasAdsAccess || capability.AdAccountID != "222" || capability.AdAccountName != "Facebook Ads" {
		t.Fatalf("unexpected capability %+v", capability)
	}
	if capability.AccessToken != "fb-token" || capability.PageID != "page_1" {
		t.Fatalf("expected facebook identity, got %+v", capability)
	}
	if capability.ExpiresSoon || capability.Discovered {
		t.Fatalf("unexpected flags %+v", capability)
	}
	if calls := f.graph.calls(); len(calls) != 0 {
		t.Fatalf("expected no discovery calls, got %v", calls)
	}
}

func TestResolve_DiscoversAndPersistsAdAccount(t *testing.T) {
	f := newFixture(t, map[string]string{
		"me/businesses":           `{"data":[{"id":"biz_1","name":"Empty Co"},{"id":"biz_2","name":"Launch Co"}]}`,
		"biz_1/owned_ad_accounts": `{"data":[]}`,
		"biz_2/owned_ad_accounts": `{"data":[{"id":"act_555","account_id":"555","name":"Launch Ads","currency":"EUR","timezone_name":"Europe/Berlin","account_status":1}]}`,
	})
	f.save(t, core.PlatformCredentials{
		Platform:    core.PlatformInstagram,
		AccessToken: "ig-token",
		UserID:      "ig_1",
		ExpiresAt:   at(3 * 24 * time.Hour),
	})
	ctx := context.Background()

	capability, err := f.resolver.Resolve(ctx, "ws_1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !capability.HasAdsAccess || !capability.Discovered {
		t.Fatalf("expected discovered ads access, got %+v", capability)
	}
	if capability.AdAccountID != "555" || capability.BusinessID != "biz_2" || capability.Currency != "EUR" || capability.Timezone != "Europe/Berlin" {
		t.Fatalf("unexpected discovered account %+v", capability)
	}
	if capability.Source != core.PlatformInstagram || !capability.ExpiresSoon {
		t.Fatalf("expected instagram source expiring soon, got %+v", capability)
	}

	stored, record, err := f.vault.Load(ctx, core.AccountKey{WorkspaceID: "ws_1", Platform: core.PlatformInstagram})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.AdAccountID != "555" || stored.AdAccountName != "Launch Ads" || stored.AccessToken != "ig-token" {
		t.Fatalf("expected merged credentials, got %+v", stored)
	}
	if record.AccountID != "555" {
		t.Fatalf("expected indexed account id, got %q", record.AccountID)
	}

	before := len(f.graph.calls())
	again, err := f.resolver.Resolve(ctx, "ws_1")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.AdAccountID != "555" || again.Discovered {
		t.Fatalf("expected cached ad account, got %+v", again)
	}
	if after := len(f.graph.calls()); after != before {
		t.Fatalf("expected no graph calls on cached resolution, got %d new", after-before)
	}
}

func TestResolve_PreferredBusinessFirst(t *testing.T) {
	f := newFixture(t, map[string]string{
		"me/businesses":           `{"data":[{"id":"biz_1","name":"First"},{"id":"biz_2","name":"Second"}]}`,
		"biz_1/owned_ad_accounts": `{"data":[{"id":"act_1","account_id":"1","name":"First Ads"}]}`,
		"biz_2/owned_ad_accounts": `{"data":[{"id":"act_2","account_id":"2","name":"Second Ads"}]}`,
	})
	f.save(t, core.PlatformCredentials{Platform: core.PlatformMetaAds, AccessToken: "ads-token"})

	capability, err := f.resolver.ResolveWithOptions(context.Background(), "ws_1", ResolveOptions{PreferredBusinessID: "biz_2"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if capability.AdAccountID != "2" || capability.BusinessName != "Second" {
		t.Fatalf("expected preferred business account, got %+v", capability)
	}
	calls := f.graph.calls()
	if len(calls) != 2 || calls[1] != "biz_2/owned_ad_accounts" {
		t.Fatalf("expected preferred business queried first, got %v", calls)
	}
}

func TestResolve_FallsBackToPageBusiness(t *testing.T) {
	f := newFixture(t, map[string]string{
		"me/businesses":           `{"data":[]}`,
		"page_1":                  `{"id":"page_1","business":{"id":"biz_9","name":"Page Co"}}`,
		"biz_9/owned_ad_accounts": `{"data":[{"id":"act_999","name":"Page Ads","currency":"USD"}]}`,
	})
	f.save(t, core.PlatformCredentials{
		Platform:        core.PlatformFacebook,
		AccessToken:     "page-token",
		UserAccessToken: "user-token",
		PageID:          "page_1",
	})

	capability, err := f.resolver.Resolve(context.Background(), "ws_1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !capability.HasAdsAccess || capability.AdAccountID != "999" || capability.BusinessID != "biz_9" {
		t.Fatalf("expected page business fallback, got %+v", capability)
	}
	f.graph.mu.Lock()
	tokens := append([]string(nil), f.graph.tokens...)
	f.graph.mu.Unlock()
	if tokens[0] != "user-token" || tokens[1] != "page-token" {
		t.Fatalf("expected user token for businesses and page token for page lookup, got %v", tokens)
	}
}

func TestResolve_NoCapabilityReasons(t *testing.T) {
	ctx := context.Background()

	t.Run("no platform connected", func(t *testing.T) {
		f := newFixture(t, nil)
		capability, err := f.resolver.Resolve(ctx, "ws_1")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if capability.HasAdsAccess || capability.Reason != ReasonNoPlatformConnected || capability.Connected() {
			t.Fatalf("unexpected capability %+v", capability)
		}
	})

	t.Run("all records expired", func(t *testing.T) {
		f := newFixture(t, nil)
		f.save(t, core.PlatformCredentials{Platform: core.PlatformMetaAds, AccessToken: "a", ExpiresAt: at(-time.Minute)})
		f.save(t, core.PlatformCredentials{Platform: core.PlatformInstagram, AccessToken: "b", UserID: "ig", ExpiresAt: at(-time.Minute)})
		capability, err := f.resolver.Resolve(ctx, "ws_1")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if capability.Reason != ReasonNoPlatformConnected {
			t.Fatalf("expected no platform connected, got %+v", capability)
		}
	})

	t.Run("no business found", func(t *testing.T) {
		f := newFixture(t, map[string]string{"me/businesses": `{"data":[]}`})
		f.save(t, core.PlatformCredentials{Platform: core.PlatformMetaAds, AccessToken: "a"})
		capability, err := f.resolver.Resolve(ctx, "ws_1")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if capability.HasAdsAccess || capability.Reason != ReasonNoBusinessFound {
			t.Fatalf("expected no business found, got %+v", capability)
		}
	})

	t.Run("no owned ad account keeps page identity", func(t *testing.T) {
		f := newFixture(t, map[string]string{
			"me/businesses":           `{"data":[{"id":"biz_1","name":"Co"}]}`,
			"biz_1/owned_ad_accounts": `{"data":[]}`,
			"page_1":                  `{"id":"page_1"}`,
		})
		f.save(t, core.PlatformCredentials{Platform: core.PlatformFacebook, AccessToken: "page-token", PageID: "page_1", PageName: "Launch"})
		capability, err := f.resolver.Resolve(ctx, "ws_1")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if capability.HasAdsAccess || capability.Reason != ReasonNoOwnedAdAccount {
			t.Fatalf("expected no owned ad account, got %+v", capability)
		}
		if capability.PageID != "page_1" || capability.PageName != "Launch" || capability.AccessToken != "page-token" {
			t.Fatalf("expected page identity to remain usable, got %+v", capability)
		}
	})
}

func TestResolve_DiscoveryFailureDegrades(t *testing.T) {
	f := newFixture(t, nil)
	f.graph.status["me/businesses"] = http.StatusInternalServerError
	f.save(t, core.PlatformCredentials{Platform: core.PlatformMetaAds, AccessToken: "a"})

	capability, err := f.resolver.Resolve(context.Background(), "ws_1")
	if err != nil {
		t.Fatalf("expected degraded capability, got error %v", err)
	}
	if capability.HasAdsAccess || capability.Reason != ReasonNoBusinessFound || capability.DiscoveryError == "" {
		t.Fatalf("unexpected capability %+v", capability)
	}
}

func TestResolve_IntegrityFailureIsReturned(t *testing.T) {
	f := newFixture(t, nil)
	f.save(t, core.PlatformCredentials{Platform: core.PlatformMetaAds, AccessToken: "a"})
	ctx := context.Background()

	record, err := f.store.Get(ctx, core.AccountKey{WorkspaceID: "ws_1", Platform: core.PlatformMetaAds})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	record.WorkspaceID = "ws_other"
	if _, err := f.store.Put(ctx, record); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, err = f.resolver.Resolve(ctx, "ws_other")
	var encErr *core.EncryptionError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected encryption error, got %v", err)
	}
}

func TestResolve_DiscoveryRequiresGraphClient(t *testing.T) {
	store := accounts.NewMemoryStore()
	vault, err := accounts.NewVault(store, security.NewTenantCipher("master-secret"))
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if _, err := vault.Save(context.Background(), "ws_1", core.PlatformCredentials{Platform: core.PlatformMetaAds, AccessToken: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	resolver, err := NewMetaIdentityResolver(vault, nil)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), "ws_1"); !errors.Is(err, meta.ErrAppSecretRequired) {
		t.Fatalf("expected app secret error, got %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), " "); !errors.Is(err, core.ErrWorkspaceIDRequired) {
		t.Fatalf("expected workspace error, got %v", err)
	}
}

func TestCapability_Credentials(t *testing.T) {
	capability := Capability{Source: core.PlatformMetaAds, AccessToken: "tok", PageID: "p", AdAccountID: "9"}
	creds := capability.Credentials(core.PlatformFacebook)
	if creds.Platform != core.PlatformFacebook || creds.AccessToken != "tok" || creds.PageID != "p" || creds.AdAccountID != "9" {
		t.Fatalf("unexpected projection %+v", creds)
	}
}
