package common

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/transport"
)

var ErrAppSecretRequired = errors.New("meta: app secret is required to sign graph requests")

const maxGraphPages = 10

type GraphConfig struct {
	Platform   core.Platform
	BaseURL    string
	Version    string
	AppSecret  string
	HTTPClient core.HTTPDoer
}

// GraphClient calls a pinned Graph API version. Every request carries
// access_token and appsecret_proof query parameters.
type GraphClient struct {
	baseURL   string
	version   string
	appSecret string
	api       *providers.APIClient
}

func NewGraphClient(cfg GraphConfig) (*GraphClient, error) {
	secret := strings.TrimSpace(cfg.AppSecret)
	if secret == "" {
		return nil, ErrAppSecretRequired
	}
	platform := cfg.Platform
	if platform == "" {
		platform = core.PlatformMetaAds
	}
	return &GraphClient{
		baseURL:   graphBase(cfg.BaseURL),
		version:   graphVersion(cfg.Version),
		appSecret: secret,
		api:       providers.NewAPIClient(platform, cfg.HTTPClient),
	}, nil
}

// AppSecretProof is hex(HMAC-SHA256(key=appSecret, message=accessToken)).
func AppSecretProof(accessToken string, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *GraphClient) Version() string {
	return g.version
}

func (g *GraphClient) Endpoint(path string) string {
	return g.baseURL + "/" + g.version + "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
}

func (g *GraphClient) Get(ctx context.Context, path string, accessToken string, params url.Values, target any) error {
	_, err := g.api.Call(ctx, "graph get "+redactPath(path), transport.Request{
		Method: http.MethodGet,
		URL:    g.Endpoint(path),
		Query:  g.signed(accessToken, params),
	}, nil, target)
	return err
}

func (g *GraphClient) Post(ctx context.Context, path string, accessToken string, form url.Values, target any) error {
	_, err := g.api.CallForm(ctx, "graph post "+redactPath(path), transport.Request{
		Method: http.MethodPost,
		URL:    g.Endpoint(path),
		Query:  g.signed(accessToken, nil),
	}, form, target)
	return err
}

type page[T any] struct {
	Data   []T `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

// List follows cursor pagination of a Graph edge, bounded to a fixed number of
// pages.
func List[T any](ctx context.Context, g *GraphClient, path string, accessToken string, params url.Values) ([]T, error) {
	query := url.Values{}
	for key, values := range params {
		query[key] = append([]string(nil), values...)
	}
	out := []T{}
	for pageIndex := 0; pageIndex < maxGraphPages; pageIndex++ {
		var current page[T]
		if err := g.Get(ctx, path, accessToken, query, &current); err != nil {
			return nil, err
		}
		out = append(out, current.Data...)
		if current.Paging.Next == "" || current.Paging.Cursors.After == "" {
			break
		}
		query.Set("after", current.Paging.Cursors.After)
	}
	return out, nil
}

func (g *GraphClient) signed(accessToken string, params url.Values) url.Values {
	query := url.Values{}
	for key, values := range params {
		query[key] = append([]string(nil), values...)
	}
	accessToken = strings.TrimSpace(accessToken)
	query.Set("access_token", accessToken)
	query.Set("appsecret_proof", AppSecretProof(accessToken, g.appSecret))
	return query
}

func redactPath(path string) string {
	if index := strings.Index(path, "?"); index >= 0 {
		return path[:index]
	}
	return path
}
