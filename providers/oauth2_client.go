package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/transport"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
)

type OAuth2Config struct {
	Platform           core.Platform
	AuthURL            string
	TokenURL           string
	ClientID           string
	ClientSecret       string
	RedirectURI        string
	Scopes             []string
	ScopeSeparator     string
	ClientIDParam      string
	ClientSecretInBody bool
	AuthParams         map[string]string
	TokenParams        map[string]string
	TokenTTL           time.Duration
	Now                func() time.Time
	HTTPClient         core.HTTPDoer
}

// OAuth2Client implements the authorization-code and refresh-token grants
// shared by every network.
type OAuth2Client struct {
	cfg  OAuth2Config
	rest *transport.RESTAdapter
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func NewOAuth2Client(cfg OAuth2Config) (*OAuth2Client, error) {
	if cfg.Platform == "" {
		return nil, fmt.Errorf("providers: platform is required")
	}
	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.RedirectURI = strings.TrimSpace(cfg.RedirectURI)
	if cfg.AuthURL == "" {
		return nil, fmt.Errorf("providers: auth url is required for %q", cfg.Platform)
	}
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("providers: token url is required for %q", cfg.Platform)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("providers: client id is required for %q", cfg.Platform)
	}
	cfg.Scopes = normalizeScopes(cfg.Scopes)
	if cfg.ScopeSeparator == "" {
		cfg.ScopeSeparator = " "
	}
	if strings.TrimSpace(cfg.ClientIDParam) == "" {
		cfg.ClientIDParam = "client_id"
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}
	rest := transport.NewRESTAdapter(cfg.HTTPClient)
	rest.MaxResponseBodyBytes = maxTokenResponseBodyBytes
	return &OAuth2Client{cfg: cfg, rest: rest}, nil
}

func (c *OAuth2Client) Config() OAuth2Config {
	if c == nil {
		return OAuth2Config{}
	}
	cfg := c.cfg
	cfg.ClientSecret = ""
	cfg.Scopes = append([]string(nil), c.cfg.Scopes...)
	return cfg
}

func (c *OAuth2Client) AuthorizationURL(state string) (string, error) {
	return c.AuthorizationURLWith(state, nil)
}

// AuthorizationURLWith adds per-flow parameters, such as a PKCE challenge, to
// the configured ones.
func (c *OAuth2Client) AuthorizationURLWith(state string, params map[string]string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("providers: oauth2 client is nil")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return "", core.NewValidationError(c.cfg.Platform, "state", "oauth state is required")
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set(c.cfg.ClientIDParam, c.cfg.ClientID)
	if c.cfg.RedirectURI != "" {
		values.Set("redirect_uri", c.cfg.RedirectURI)
	}
	if len(c.cfg.Scopes) > 0 {
		values.Set("scope", strings.Join(c.cfg.Scopes, c.cfg.ScopeSeparator))
	}
	values.Set("state", state)
	for key, value := range c.cfg.AuthParams {
		values.Set(key, value)
	}
	for key, value := range params {
		values.Set(key, value)
	}

	authURL := c.cfg.AuthURL
	if strings.Contains(authURL, "?") {
		return authURL + "&" + values.Encode(), nil
	}
	return authURL + "?" + values.Encode(), nil
}

func (c *OAuth2Client) Exchange(ctx context.Context, code string) (TokenSet, error) {
	return c.ExchangeWith(ctx, code, nil)
}

// ExchangeWith adds per-flow form fields, such as a PKCE code_verifier, to
// the token request.
func (c *OAuth2Client) ExchangeWith(ctx context.Context, code string, params map[string]string) (TokenSet, error) {
	if c == nil {
		return TokenSet{}, fmt.Errorf("providers: oauth2 client is nil")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return TokenSet{}, core.NewValidationError(c.cfg.Platform, "code", "authorization code is required")
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if c.cfg.RedirectURI != "" {
		form.Set("redirect_uri", c.cfg.RedirectURI)
	}
	for key, value := range params {
		form.Set(key, value)
	}
	return c.fetchToken(ctx, "exchange code", form, "")
}

func (c *OAuth2Client) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	if c == nil {
		return TokenSet{}, fmt.Errorf("providers: oauth2 client is nil")
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenSet{}, core.NewValidationError(c.cfg.Platform, "refreshToken", "refresh token is required")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.fetchToken(ctx, "refresh token", form, refreshToken)
}

func (c *OAuth2Client) fetchToken(ctx context.Context, operation string, form url.Values, previousRefresh string) (TokenSet, error) {
	form.Set(c.cfg.ClientIDParam, c.cfg.ClientID)
	if c.cfg.ClientSecretInBody && c.cfg.ClientSecret != "" {
		form.Set("client_secret", c.cfg.ClientSecret)
	}
	for key, value := range c.cfg.TokenParams {
		form.Set(key, value)
	}

	headers := map[string]string{}
	if !c.cfg.ClientSecretInBody && c.cfg.ClientSecret != "" {
		credentials := url.QueryEscape(c.cfg.ClientID) + ":" + url.QueryEscape(c.cfg.ClientSecret)
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
	}

	res, err := c.rest.Form(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     c.cfg.TokenURL,
		Headers: headers,
		Timeout: defaultTokenRequestTimeout,
	}, form)
	if err != nil {
		return TokenSet{}, ClassifyError(c.cfg.Platform, operation, nil, err)
	}

	payload, parseErr := parseTokenPayload(res.Body, res.Headers.Get("Content-Type"))
	if !res.OK() {
		return TokenSet{}, ClassifyError(c.cfg.Platform, operation, &res, fmt.Errorf("token endpoint status %d", res.StatusCode))
	}
	if parseErr != nil {
		return TokenSet{}, ClassifyError(c.cfg.Platform, operation, &res, fmt.Errorf("decode token response: %w", parseErr))
	}
	if payload.ErrorCode != "" {
		return TokenSet{}, ClassifyError(c.cfg.Platform, operation, &res, fmt.Errorf("token endpoint error: %s", describeTokenError(payload)))
	}
	if payload.AccessToken == "" {
		return TokenSet{}, ClassifyError(c.cfg.Platform, operation, &res, fmt.Errorf("token response missing access token"))
	}

	refresh := payload.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	scopes := normalizeScopes(parseScopeList(payload.Scope))
	if len(scopes) == 0 {
		scopes = append([]string(nil), c.cfg.Scopes...)
	}
	return TokenSet{
		AccessToken:  payload.AccessToken,
		RefreshToken: refresh,
		TokenType:    normalizeTokenType(payload.TokenType),
		Scopes:       scopes,
		ExpiresAt:    c.resolveExpiresAt(c.cfg.Now().UTC(), payload.ExpiresIn),
	}, nil
}

func describeTokenError(payload tokenEndpointPayload) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	// tiktok nests the token under data
	if data, ok := decoded["data"].(map[string]any); ok && decoded["access_token"] == nil {
		decoded = data
	}
	payload := tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}
	switch typed := decoded["error"].(type) {
	case string:
		payload.ErrorCode = strings.TrimSpace(typed)
	case map[string]any:
		payload.ErrorCode = readAnyString(typed["code"])
		if payload.ErrorDescription == "" {
			payload.ErrorDescription = readAnyString(typed["message"])
		}
	}
	return payload, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func (c *OAuth2Client) resolveExpiresAt(now time.Time, expiresIn int64) *time.Time {
	ttl := c.cfg.TokenTTL
	if expiresIn > 0 {
		ttl = time.Duration(expiresIn) * time.Second
	}
	if ttl <= 0 {
		return nil
	}
	expiresAt := now.Add(ttl)
	return &expiresAt
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

func parseScopeList(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return []string{}
	}
	return strings.Fields(strings.ReplaceAll(trimmed, ",", " "))
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed
		}
		if parsed, err := typed.Float64(); err == nil {
			return int64(parsed)
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

// normalizeScopes trims and de-duplicates while keeping caller order, since
// some networks are order sensitive in consent screens.
func normalizeScopes(input []string) []string {
	if len(input) == 0 {
		return []string{}
	}
	values := make([]string, 0, len(input))
	seen := map[string]struct{}{}
	for _, value := range input {
		normalized := strings.TrimSpace(value)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		values = append(values, normalized)
	}
	return values
}
