package common

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/transport"
)

// Adapter is the shared base of the Meta family adapters.
type Adapter struct {
	*providers.BaseAdapter
	Graph *GraphClient
	auth  AuthConfig
	now   func() time.Time
}

func NewAdapter(meta providers.Metadata, cfg AuthConfig, fallbackScopes []string) (*Adapter, error) {
	base, err := providers.NewBaseAdapter(meta, ResolveOAuth2Config(meta.Platform, cfg, fallbackScopes))
	if err != nil {
		return nil, err
	}
	graph, err := NewGraphClient(cfg.Graph(meta.Platform))
	if err != nil {
		return nil, err
	}
	return &Adapter{
		BaseAdapter: base,
		Graph:       graph,
		auth:        cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// ExchangeCode trades the code for a short-lived token and then upgrades it to
// a long-lived one. The short-lived token is returned when the upgrade fails.
func (a *Adapter) ExchangeCode(ctx context.Context, code string) (providers.TokenSet, error) {
	tokens, err := a.BaseAdapter.ExchangeCode(ctx, code)
	if err != nil {
		return providers.TokenSet{}, err
	}
	if upgraded, upgradeErr := a.exchangeLongLived(ctx, tokens.AccessToken); upgradeErr == nil {
		upgraded.Scopes = tokens.Scopes
		return upgraded, nil
	}
	return tokens, nil
}

// RefreshAccessToken re-extends a long-lived token. Meta has no refresh token
// grant; the current access token is passed as the refresh token.
func (a *Adapter) RefreshAccessToken(ctx context.Context, refreshToken string) (providers.TokenSet, error) {
	return a.exchangeLongLived(ctx, refreshToken)
}

func (a *Adapter) exchangeLongLived(ctx context.Context, token string) (providers.TokenSet, error) {
	if token == "" {
		return providers.TokenSet{}, core.NewValidationError(a.Platform(), "accessToken", "access token is required")
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	_, err := a.API.Call(ctx, "exchange long-lived token", transport.Request{
		Method: http.MethodGet,
		URL:    a.OAuth.Config().TokenURL,
		Query: url.Values{
			"grant_type":        {"fb_exchange_token"},
			"client_id":         {a.auth.ClientID},
			"client_secret":     {a.auth.ClientSecret},
			"fb_exchange_token": {token},
		},
	}, nil, &payload)
	if err != nil {
		return providers.TokenSet{}, err
	}
	if payload.AccessToken == "" {
		return providers.TokenSet{}, providers.ClassifyError(a.Platform(), "exchange long-lived token", nil, errors.New("response missing access token"))
	}
	tokens := providers.TokenSet{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.AccessToken,
		TokenType:    "bearer",
	}
	if payload.ExpiresIn > 0 {
		expires := a.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
		tokens.ExpiresAt = &expires
	}
	return tokens, nil
}

// VerifyCredentials reports false for a rejected token and an error only when
// Meta could not be reached or answered unexpectedly.
func (a *Adapter) VerifyCredentials(ctx context.Context, credentials core.PlatformCredentials) (bool, error) {
	if err := providers.RequireToken(a.Platform(), credentials); err != nil {
		return false, nil
	}
	var me struct {
		ID string `json:"id"`
	}
	err := a.Graph.Get(ctx, "me", credentials.AccessToken, url.Values{"fields": {"id"}}, &me)
	if err == nil {
		return me.ID != "", nil
	}
	var apiErr *core.ExternalAPIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusBadRequest) {
		return false, nil
	}
	return false, err
}

type GraphUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (a *Adapter) Me(ctx context.Context, accessToken string) (GraphUser, error) {
	var me GraphUser
	err := a.Graph.Get(ctx, "me", accessToken, url.Values{"fields": {"id,name"}}, &me)
	return me, err
}

// SetClock overrides the adapter clock. Intended for tests.
func (a *Adapter) SetClock(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}
