package common

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
)

func expectedProof(token string, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestAppSecretProof(t *testing.T) {
	if got := AppSecretProof("token-1", "app-secret"); got != expectedProof("token-1", "app-secret") {
		t.Fatalf("unexpected proof %q", got)
	}
}

func TestGraphClient_SignsEveryRequestWithPinnedVersion(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		query := r.URL.Query()
		if query.Get("access_token") != "tok" || query.Get("appsecret_proof") != expectedProof("tok", "app-secret") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"missing proof"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost:
			_, _ = w.Write([]byte(`{"id":"post_1"}`))
		case query.Get("after") == "":
			_, _ = w.Write([]byte(`{"data":[{"id":"b1"},{"id":"b2"}],"paging":{"cursors":{"after":"c1"},"next":"https://graph.example/next"}}`))
		default:
			_, _ = w.Write([]byte(`{"data":[{"id":"b3"}],"paging":{"cursors":{"after":"c2"}}}`))
		}
	}))
	defer server.Close()

	graph, err := NewGraphClient(GraphConfig{BaseURL: server.URL, Version: "v23.0", AppSecret: "app-secret", HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new graph client: %v", err)
	}

	type item struct {
		ID string `json:"id"`
	}
	items, err := List[item](context.Background(), graph, "me/businesses", "tok", url.Values{"fields": {"id"}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 || items[2].ID != "b3" {
		t.Fatalf("expected three paginated items, got %#v", items)
	}

	var created item
	if err := graph.Post(context.Background(), "page_1/feed", "tok", url.Values{"message": {"hi"}}, &created); err != nil {
		t.Fatalf("post: %v", err)
	}
	if created.ID != "post_1" {
		t.Fatalf("unexpected post id %q", created.ID)
	}
	for _, path := range paths {
		if !strings.Contains(path, "/v23.0/") {
			t.Fatalf("expected pinned version in %q", path)
		}
	}
}

func TestNewGraphClient_RequiresAppSecret(t *testing.T) {
	if _, err := NewGraphClient(GraphConfig{}); !errors.Is(err, ErrAppSecretRequired) {
		t.Fatalf("expected app secret error, got %v", err)
	}
}

func TestGraphClient_ErrorsAreClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Error validating access token","type":"OAuthException","code":190}}`))
	}))
	defer server.Close()

	graph, err := NewGraphClient(GraphConfig{Platform: core.PlatformFacebook, BaseURL: server.URL, AppSecret: "s", HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new graph client: %v", err)
	}
	err = graph.Get(context.Background(), "me", "tok", nil, &struct{}{})
	var apiErr *core.ExternalAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected external api error, got %v", err)
	}
	if apiErr.Platform != core.PlatformFacebook || apiErr.Message != "Error validating access token" {
		t.Fatalf("unexpected classification %#v", apiErr)
	}
	if strings.Contains(apiErr.Error(), "tok") && strings.Contains(apiErr.Error(), "access_token=") {
		t.Fatalf("error leaks token: %s", apiErr.Error())
	}
}

func TestGraphClient_NetworkFailureDoesNotLeakToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	address := server.URL
	server.Close()

	graph, err := NewGraphClient(GraphConfig{Platform: core.PlatformMetaAds, BaseURL: address, AppSecret: "app-secret"})
	if err != nil {
		t.Fatalf("new graph client: %v", err)
	}
	err = graph.Get(context.Background(), "me/businesses", "SUPERSECRETTOKEN", nil, &struct{}{})
	var apiErr *core.ExternalAPIError
	if !errors.As(err, &apiErr) || !apiErr.Network {
		t.Fatalf("expected network external api error, got %v", err)
	}
	proof := expectedProof("SUPERSECRETTOKEN", "app-secret")
	for _, text := range []string{err.Error(), apiErr.Message} {
		if strings.Contains(text, "SUPERSECRETTOKEN") || strings.Contains(text, proof) {
			t.Fatalf("error leaks credentials: %s", text)
		}
	}
}

func TestAdapter_ExchangeCodeUpgradesToLongLivedToken(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"access_token":"short","expires_in":3600}`))
			return
		}
		if r.URL.Query().Get("grant_type") != "fb_exchange_token" || r.URL.Query().Get("fb_exchange_token") != "short" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"long","token_type":"bearer","expires_in":5184000}`))
	}))
	defer server.Close()

	adapter, err := NewAdapter(providers.Metadata{Platform: core.PlatformFacebook}, AuthConfig{
		ClientID:     "app",
		ClientSecret: "secret",
		RedirectURI:  "https://app.example/callback",
		GraphBaseURL: server.URL,
		HTTPClient:   server.Client(),
	}, []string{"pages_show_list"})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	adapter.SetClock(func() time.Time { return now })

	tokens, err := adapter.ExchangeCode(context.Background(), "code")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if tokens.AccessToken != "long" {
		t.Fatalf("expected long-lived token, got %q", tokens.AccessToken)
	}
	if tokens.ExpiresAt == nil || !tokens.ExpiresAt.Equal(now.Add(60*24*time.Hour)) {
		t.Fatalf("unexpected expiry %v", tokens.ExpiresAt)
	}

	authURL, err := adapter.AuthorizationURL("state")
	if err != nil {
		t.Fatalf("authorization url: %v", err)
	}
	if !strings.HasPrefix(authURL, OAuthAuthURL(core.DefaultGraphAPIVersion)) || !strings.Contains(authURL, "scope=pages_show_list") {
		t.Fatalf("unexpected auth url %q", authURL)
	}
}
