package common

import (
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
)

const (
	DefaultGraphBaseURL = "https://graph.facebook.com"
	DefaultDialogURL    = "https://www.facebook.com"
)

// AuthConfig is the OAuth configuration shared by facebook, instagram and
// meta_ads. AppSecret signs every Graph request.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	GraphVersion string
	GraphBaseURL string
	TokenTTL     time.Duration
	HTTPClient   core.HTTPDoer
}

func OAuthAuthURL(version string) string {
	return DefaultDialogURL + "/" + graphVersion(version) + "/dialog/oauth"
}

func OAuthTokenURL(baseURL string, version string) string {
	return graphBase(baseURL) + "/" + graphVersion(version) + "/oauth/access_token"
}

// ResolveOAuth2Config fills Meta defaults for any unset endpoint or scope.
func ResolveOAuth2Config(platform core.Platform, cfg AuthConfig, fallbackScopes []string) providers.OAuth2Config {
	authURL := strings.TrimSpace(cfg.AuthURL)
	if authURL == "" {
		authURL = OAuthAuthURL(cfg.GraphVersion)
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = OAuthTokenURL(cfg.GraphBaseURL, cfg.GraphVersion)
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = fallbackScopes
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 60 * 24 * time.Hour
	}
	return providers.OAuth2Config{
		Platform:           platform,
		AuthURL:            authURL,
		TokenURL:           tokenURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		RedirectURI:        cfg.RedirectURI,
		Scopes:             append([]string(nil), scopes...),
		ScopeSeparator:     ",",
		ClientSecretInBody: true,
		TokenTTL:           ttl,
		HTTPClient:         cfg.HTTPClient,
	}
}

func (c AuthConfig) Graph(platform core.Platform) GraphConfig {
	return GraphConfig{
		Platform:   platform,
		BaseURL:    c.GraphBaseURL,
		Version:    c.GraphVersion,
		AppSecret:  c.ClientSecret,
		HTTPClient: c.HTTPClient,
	}
}

func graphVersion(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return core.DefaultGraphAPIVersion
	}
	return version
}

func graphBase(baseURL string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return DefaultGraphBaseURL
	}
	return baseURL
}
