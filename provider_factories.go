package social

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/providers/linkedin"
	meta "github.com/goliatone/go-social/providers/meta/common"
	"github.com/goliatone/go-social/providers/meta/ads"
	"github.com/goliatone/go-social/providers/meta/facebook"
	"github.com/goliatone/go-social/providers/meta/instagram"
	"github.com/goliatone/go-social/providers/tiktok"
	"github.com/goliatone/go-social/providers/twitter"
	"github.com/goliatone/go-social/providers/youtube"
	"github.com/goliatone/go-social/ratelimit"
)

func TwitterAdapter(cfg twitter.Config) (providers.PlatformAdapter, error) {
	return twitter.New(cfg)
}

func LinkedInAdapter(cfg linkedin.Config) (providers.PlatformAdapter, error) {
	return linkedin.New(cfg)
}

func FacebookAdapter(cfg facebook.Config) (providers.PlatformAdapter, error) {
	return facebook.New(cfg)
}

func InstagramAdapter(cfg instagram.Config) (providers.PlatformAdapter, error) {
	return instagram.New(cfg)
}

func TikTokAdapter(cfg tiktok.Config) (providers.PlatformAdapter, error) {
	return tiktok.New(cfg)
}

func YouTubeAdapter(cfg youtube.Config) (providers.PlatformAdapter, error) {
	return youtube.New(cfg)
}

func MetaAdsAdapter(cfg ads.Config) (providers.PlatformAdapter, error) {
	return ads.New(cfg)
}

type AdapterFactoryOption func(*AdapterFactory)

// WithAdapterHTTPClient replaces the HTTP client every built adapter uses.
func WithAdapterHTTPClient(client core.HTTPDoer) AdapterFactoryOption {
	return func(f *AdapterFactory) {
		f.httpClient = client
	}
}

// WithAdapterRateLimit shares one throttle policy across every built adapter.
// A nil policy disables local throttling.
func WithAdapterRateLimit(policy *ratelimit.AdaptivePolicy) AdapterFactoryOption {
	return func(f *AdapterFactory) {
		f.rateLimit = policy
		f.rateLimitOff = policy == nil
	}
}

func WithAdapterLogger(logger core.Logger) AdapterFactoryOption {
	return func(f *AdapterFactory) {
		f.observer = core.NewObserver(f.observer.Prefix, logger, f.observer.Metrics)
	}
}

// AdapterFactory builds platform adapters from OAuth settings. A platform
// with incomplete settings is unavailable: Adapter reports (nil, false) and
// never an error. Built adapters are reused.
type AdapterFactory struct {
	cfg        core.Config
	httpClient core.HTTPDoer
	observer   core.Observer

	rateLimit    *ratelimit.AdaptivePolicy
	rateLimitOff bool

	mu       sync.Mutex
	adapters map[core.Platform]providers.PlatformAdapter
}

func NewAdapterFactory(cfg core.Config, opts ...AdapterFactoryOption) *AdapterFactory {
	factory := &AdapterFactory{
		cfg:      cfg,
		observer: core.NewObserver("social.adapters", nil, nil),
		adapters: map[core.Platform]providers.PlatformAdapter{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	if factory.rateLimit == nil && !factory.rateLimitOff {
		factory.rateLimit = ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	}
	return factory
}

// NewAdapterFactoryFromEnv loads OAuth settings from the process environment.
func NewAdapterFactoryFromEnv(ctx context.Context, opts ...AdapterFactoryOption) (*AdapterFactory, error) {
	cfg, err := core.LoadConfig(ctx, core.NewCfgxConfigProvider(core.NewEnvConfigLoader()), nil, core.Config{})
	if err != nil {
		return nil, fmt.Errorf("social: load adapter config: %w", err)
	}
	return NewAdapterFactory(cfg, opts...), nil
}

func (f *AdapterFactory) Adapter(platform core.Platform) (providers.PlatformAdapter, bool) {
	if f == nil {
		return nil, false
	}
	parsed, err := core.ParsePlatform(string(platform))
	if err != nil {
		return nil, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if adapter, ok := f.adapters[parsed]; ok {
		return adapter, true
	}
	settings := f.cfg.OAuth(parsed)
	if !settings.Complete() {
		f.observer.Log(context.Background(), "debug", "platform unavailable", map[string]any{
			"platform": string(parsed),
			"reason":   "incomplete oauth settings",
		})
		return nil, false
	}
	adapter, err := f.build(parsed, settings)
	if err != nil {
		f.observer.Log(context.Background(), "warn", "platform adapter build failed", map[string]any{
			"platform": string(parsed),
			"error":    err.Error(),
		})
		return nil, false
	}
	f.adapters[parsed] = adapter
	return adapter, true
}

// Available lists the platforms whose adapters can be built.
func (f *AdapterFactory) Available() []core.Platform {
	out := []core.Platform{}
	for _, platform := range core.Platforms() {
		if _, ok := f.Adapter(platform); ok {
			out = append(out, platform)
		}
	}
	return out
}

func (f *AdapterFactory) build(platform core.Platform, settings core.OAuthSettings) (providers.PlatformAdapter, error) {
	client := f.client(platform)
	switch platform {
	case core.PlatformTwitter:
		return TwitterAdapter(twitter.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			RedirectURI:  settings.RedirectURI,
			AuthURL:      settings.AuthURL,
			TokenURL:     settings.TokenURL,
			Scopes:       settings.Scopes,
			HTTPClient:   client,
		})
	case core.PlatformLinkedIn:
		return LinkedInAdapter(linkedin.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			RedirectURI:  settings.RedirectURI,
			AuthURL:      settings.AuthURL,
			TokenURL:     settings.TokenURL,
			Scopes:       settings.Scopes,
			HTTPClient:   client,
		})
	case core.PlatformTikTok:
		return TikTokAdapter(tiktok.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			RedirectURI:  settings.RedirectURI,
			AuthURL:      settings.AuthURL,
			TokenURL:     settings.TokenURL,
			Scopes:       settings.Scopes,
			HTTPClient:   client,
		})
	case core.PlatformYouTube:
		return YouTubeAdapter(youtube.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			RedirectURI:  settings.RedirectURI,
			AuthURL:      settings.AuthURL,
			TokenURL:     settings.TokenURL,
			Scopes:       settings.Scopes,
			HTTPClient:   client,
		})
	case core.PlatformFacebook:
		return FacebookAdapter(f.metaAuth(settings, client))
	case core.PlatformInstagram:
		return InstagramAdapter(instagram.Config{AuthConfig: f.metaAuth(settings, client)})
	case core.PlatformMetaAds:
		return MetaAdsAdapter(f.metaAuth(settings, client))
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrPlatformUnavailable, platform)
	}
}

func (f *AdapterFactory) metaAuth(settings core.OAuthSettings, client core.HTTPDoer) meta.AuthConfig {
	return meta.AuthConfig{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		RedirectURI:  settings.RedirectURI,
		AuthURL:      settings.AuthURL,
		TokenURL:     settings.TokenURL,
		Scopes:       settings.Scopes,
		GraphVersion: f.cfg.GraphAPIVersion(),
		HTTPClient:   client,
	}
}

// GraphClient returns a signed Graph API client for identity discovery, or
// nil when no Meta app secret is configured.
func (f *AdapterFactory) GraphClient() *meta.GraphClient {
	if f == nil {
		return nil
	}
	client, err := meta.NewGraphClient(meta.GraphConfig{
		Platform:   core.PlatformMetaAds,
		Version:    f.cfg.GraphAPIVersion(),
		AppSecret:  f.metaAppSecret(),
		HTTPClient: f.client(core.PlatformMetaAds),
	})
	if err != nil {
		return nil
	}
	return client
}

// metaAppSecret prefers the shared Meta app secret and falls back to a
// platform-level client secret.
func (f *AdapterFactory) metaAppSecret() string {
	if secret := strings.TrimSpace(f.cfg.Meta.AppSecret); secret != "" {
		return secret
	}
	for _, platform := range []core.Platform{core.PlatformFacebook, core.PlatformInstagram, core.PlatformMetaAds} {
		if secret := strings.TrimSpace(f.cfg.OAuth(platform).ClientSecret); secret != "" {
			return secret
		}
	}
	return ""
}

// client wraps the configured HTTP client with the platform throttle.
func (f *AdapterFactory) client(platform core.Platform) core.HTTPDoer {
	if f.rateLimit == nil {
		return f.httpClient
	}
	return ratelimit.NewDoer(platform, f.httpClient, f.rateLimit)
}

var _ providers.Resolver = (*AdapterFactory)(nil)
