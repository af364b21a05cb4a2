package meta_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/providers/meta/ads"
	"github.com/goliatone/go-social/providers/meta/common"
	"github.com/goliatone/go-social/providers/meta/facebook"
	"github.com/goliatone/go-social/providers/meta/instagram"
)

type graphCall struct {
	method string
	path   string
	form   map[string]string
}

type fakeGraph struct {
	t       *testing.T
	mu      sync.Mutex
	calls   []graphCall
	handler func(call graphCall) (int, string)
}

func (f *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		f.t.Errorf("parse form: %v", err)
	}
	token := r.URL.Query().Get("access_token")
	if r.URL.Query().Get("appsecret_proof") != common.AppSecretProof(token, "app-secret") {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid appsecret_proof"}}`))
		return
	}
	call := graphCall{method: r.Method, path: strings.TrimPrefix(r.URL.Path, "/v23.0/"), form: map[string]string{}}
	for key := range r.PostForm {
		call.form[key] = r.PostForm.Get(key)
	}
	for key := range r.URL.Query() {
		if key != "access_token" && key != "appsecret_proof" {
			call.form[key] = r.URL.Query().Get(key)
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	status, body := f.handler(call)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newGraphServer(t *testing.T, handler func(call graphCall) (int, string)) (*fakeGraph, *httptest.Server) {
	fake := &fakeGraph{t: t, handler: handler}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return fake, server
}

func authConfig(server *httptest.Server) common.AuthConfig {
	return common.AuthConfig{
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		RedirectURI:  "https://app.example/callback",
		GraphBaseURL: server.URL,
		HTTPClient:   server.Client(),
	}
}

func TestFacebookAdapter_PostTextPhotoAndCarousel(t *testing.T) {
	photoCount := 0
	fake, server := newGraphServer(t, func(call graphCall) (int, string) {
		switch call.path {
		case "page_1/feed":
			return http.StatusOK, `{"id":"page_1_post_9"}`
		case "page_1/photos":
			photoCount++
			if call.form["published"] == "false" {
				return http.StatusOK, `{"id":"photo_` + string(rune('0'+photoCount)) + `"}`
			}
			return http.StatusOK, `{"id":"photo_x","post_id":"page_1_post_photo"}`
		}
		return http.StatusNotFound, `{"error":{"message":"unknown path"}}`
	})
	adapter, err := facebook.New(authConfig(server))
	if err != nil {
		t.Fatalf("new facebook adapter: %v", err)
	}
	creds := core.PlatformCredentials{Platform: core.PlatformFacebook, AccessToken: "page-token", PageID: "page_1"}

	result, err := adapter.PostContent(context.Background(), creds, providers.PostRequest{Content: "hello"})
	if err != nil || !result.Success || result.ID != "page_1_post_9" {
		t.Fatalf("text post: %#v %v", result, err)
	}
	if result.URL != "https://www.facebook.com/page_1_post_9" {
		t.Fatalf("unexpected url %q", result.URL)
	}

	result, err = adapter.PostContent(context.Background(), creds, providers.PostRequest{Content: "pic", MediaURL: "https://cdn.example/a.jpg", MediaType: core.MediaTypeImage})
	if err != nil || result.ID != "page_1_post_photo" {
		t.Fatalf("photo post: %#v %v", result, err)
	}

	result, err = adapter.PostCarousel(context.Background(), creds, providers.CarouselRequest{
		Content:   "album",
		MediaURLs: []string{"https://cdn.example/1.jpg", "https://cdn.example/2.jpg"},
	})
	if err != nil || !result.Success {
		t.Fatalf("carousel: %#v %v", result, err)
	}
	last := fake.calls[len(fake.calls)-1]
	if last.path != "page_1/feed" || last.form["attached_media[0]"] != `{"media_fbid":"photo_2"}` || last.form["attached_media[1]"] != `{"media_fbid":"photo_3"}` {
		t.Fatalf("unexpected carousel feed call %#v", last)
	}
}

func TestFacebookAdapter_RequiresPageAndClassifiesErrors(t *testing.T) {
	_, server := newGraphServer(t, func(graphCall) (int, string) {
		return http.StatusForbidden, `{"error":{"message":"(#200) The user hasn't authorized the application"}}`
	})
	adapter, err := facebook.New(authConfig(server))
	if err != nil {
		t.Fatalf("new facebook adapter: %v", err)
	}

	_, err = adapter.PostContent(context.Background(), core.PlatformCredentials{AccessToken: "tok"}, providers.PostRequest{Content: "x"})
	var validation *core.ValidationError
	if !errors.As(err, &validation) || validation.Field != "pageId" {
		t.Fatalf("expected page id validation error, got %v", err)
	}

	result, err := adapter.PostContent(context.Background(), core.PlatformCredentials{AccessToken: "tok", PageID: "page_1"}, providers.PostRequest{Content: "x"})
	var apiErr *core.ExternalAPIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden || apiErr.Platform != core.PlatformFacebook {
		t.Fatalf("expected classified 403, got %v", err)
	}
	if result.Success || result.Error == "" {
		t.Fatalf("expected failed result, got %#v", result)
	}
}

func TestFacebookAdapter_CarouselCap(t *testing.T) {
	_, server := newGraphServer(t, func(graphCall) (int, string) { return http.StatusOK, `{"id":"x"}` })
	adapter, err := facebook.New(authConfig(server))
	if err != nil {
		t.Fatalf("new facebook adapter: %v", err)
	}
	urls := make([]string, facebook.MaxCarouselItems+1)
	for i := range urls {
		urls[i] = "https://cdn.example/img.jpg"
	}
	_, err = adapter.PostCarousel(context.Background(), core.PlatformCredentials{AccessToken: "t", PageID: "p"}, providers.CarouselRequest{MediaURLs: urls})
	var validation *core.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected carousel cap validation error, got %v", err)
	}
}

func TestInstagramAdapter_ContainerPollingAndPublish(t *testing.T) {
	statusPolls := 0
	fake, server := newGraphServer(t, func(call graphCall) (int, string) {
		switch {
		case call.path == "ig_1/media" && call.method == http.MethodPost:
			return http.StatusOK, `{"id":"container_1"}`
		case call.path == "container_1":
			statusPolls++
			if statusPolls < 3 {
				return http.StatusOK, `{"status_code":"IN_PROGRESS"}`
			}
			return http.StatusOK, `{"status_code":"FINISHED"}`
		case call.path == "ig_1/media_publish":
			if call.form["creation_id"] != "container_1" {
				return http.StatusBadRequest, `{"error":{"message":"bad creation id"}}`
			}
			return http.StatusOK, `{"id":"media_7"}`
		case call.path == "media_7":
			return http.StatusOK, `{"permalink":"https://www.instagram.com/p/abc/"}`
		}
		return http.StatusNotFound, `{"error":{"message":"unknown"}}`
	})
	adapter, err := instagram.New(instagram.Config{AuthConfig: authConfig(server)})
	if err != nil {
		t.Fatalf("new instagram adapter: %v", err)
	}
	sleeps := 0
	adapter.SetSleeper(func(context.Context, time.Duration) error {
		sleeps++
		return nil
	})
	creds := core.PlatformCredentials{Platform: core.PlatformInstagram, AccessToken: "tok", UserID: "ig_1"}

	result, err := adapter.PostContent(context.Background(), creds, providers.PostRequest{
		Content:   "caption",
		MediaURL:  "https://cdn.example/reel.mp4",
		MediaType: core.MediaTypeVideo,
		PostType:  core.PostTypeReel,
	})
	if err != nil || !result.Success {
		t.Fatalf("post content: %#v %v", result, err)
	}
	if result.ID != "media_7" || result.URL != "https://www.instagram.com/p/abc/" {
		t.Fatalf("unexpected result %#v", result)
	}
	if sleeps != 2 {
		t.Fatalf("expected two poll delays, got %d", sleeps)
	}
	create := fake.calls[0]
	if create.form["media_type"] != "REELS" || create.form["video_url"] == "" || create.form["caption"] != "caption" {
		t.Fatalf("unexpected container request %#v", create.form)
	}
}

func TestInstagramAdapter_RejectsTextOnlyAndFailedContainers(t *testing.T) {
	_, server := newGraphServer(t, func(call graphCall) (int, string) {
		if call.path == "ig_1/media" {
			return http.StatusOK, `{"id":"container_1"}`
		}
		return http.StatusOK, `{"status_code":"ERROR","status":"unsupported aspect ratio"}`
	})
	adapter, err := instagram.New(instagram.Config{AuthConfig: authConfig(server), MaxPollAttempts: 2})
	if err != nil {
		t.Fatalf("new instagram adapter: %v", err)
	}
	adapter.SetSleeper(func(context.Context, time.Duration) error { return nil })
	creds := core.PlatformCredentials{AccessToken: "tok", UserID: "ig_1"}

	_, err = adapter.PostContent(context.Background(), creds, providers.PostRequest{Content: "text only"})
	var validation *core.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error for text-only post, got %v", err)
	}

	_, err = adapter.PostContent(context.Background(), creds, providers.PostRequest{MediaURL: "https://cdn.example/a.jpg", MediaType: core.MediaTypeImage})
	var apiErr *core.ExternalAPIError
	if !errors.As(err, &apiErr) || !strings.Contains(apiErr.Message, "unsupported aspect ratio") {
		t.Fatalf("expected container error, got %v", err)
	}
}

func TestAdsAdapter_PublishingUnsupported(t *testing.T) {
	_, server := newGraphServer(t, func(call graphCall) (int, string) {
		return http.StatusOK, `{"id":"user_1","name":"Ads Owner"}`
	})
	adapter, err := ads.New(authConfig(server))
	if err != nil {
		t.Fatalf("new ads adapter: %v", err)
	}
	_, err = adapter.PostContent(context.Background(), core.PlatformCredentials{AccessToken: "tok"}, providers.PostRequest{Content: "x"})
	if !errors.Is(err, core.ErrOperationNotSupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	ok, err := adapter.VerifyCredentials(context.Background(), core.PlatformCredentials{AccessToken: "tok"})
	if err != nil || !ok {
		t.Fatalf("expected credentials to verify, got %v %v", ok, err)
	}
	profile, err := adapter.UserProfile(context.Background(), core.PlatformCredentials{AccessToken: "tok"})
	if err != nil || profile.ID != "user_1" {
		t.Fatalf("unexpected profile %#v %v", profile, err)
	}
	if adapter.Metadata().Platform != core.PlatformMetaAds {
		t.Fatalf("unexpected metadata %#v", adapter.Metadata())
	}
}

func TestMetaAdapters_RequireAppSecret(t *testing.T) {
	if _, err := facebook.New(common.AuthConfig{ClientID: "app"}); !errors.Is(err, common.ErrAppSecretRequired) {
		t.Fatalf("expected app secret error, got %v", err)
	}
}
