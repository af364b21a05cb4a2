package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
)

// ConnectRequest carries an OAuth callback. CodeVerifier is the value
// returned by BeginAuthorization for the same state and is required by
// platforms that use PKCE.
type ConnectRequest struct {
	WorkspaceID  string
	Platform     core.Platform
	Code         string
	CodeVerifier string
}

// Authorization is the start of one OAuth flow. The caller keeps
// CodeVerifier next to State until the callback arrives.
type Authorization struct {
	URL          string
	State        string
	CodeVerifier string
}

type Option func(*Manager)

func WithLogger(logger core.Logger) Option {
	return func(m *Manager) {
		m.observer = core.NewObserver(m.observer.Prefix, logger, m.observer.Metrics)
	}
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(m *Manager) {
		m.observer = core.NewObserver(m.observer.Prefix, m.observer.Logger, metrics)
	}
}

// Manager runs the credential lifecycle: created on OAuth callback, refreshed
// on expiry, superseded on reconnect and removed on disconnect.
type Manager struct {
	vault    *Vault
	adapters providers.Resolver
	observer core.Observer
}

func NewManager(vault *Vault, adapters providers.Resolver, opts ...Option) (*Manager, error) {
	if vault == nil {
		return nil, core.ErrCredentialStoreMissing
	}
	if adapters == nil {
		return nil, fmt.Errorf("accounts: adapter resolver is required")
	}
	manager := &Manager{
		vault:    vault,
		adapters: adapters,
		observer: core.NewObserver("social.accounts", nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	return manager, nil
}

func (m *Manager) Vault() *Vault {
	return m.vault
}

// BeginAuthorization builds the consent URL for state. PKCE platforms get a
// fresh code verifier for every call.
func (m *Manager) BeginAuthorization(platform core.Platform, state string) (Authorization, error) {
	adapter, err := m.adapter(platform)
	if err != nil {
		return Authorization{}, err
	}
	pkce, ok := adapter.(providers.PKCEAuthorizer)
	if !ok {
		consent, err := adapter.AuthorizationURL(state)
		if err != nil {
			return Authorization{}, err
		}
		return Authorization{URL: consent, State: state}, nil
	}
	verifier, err := providers.NewCodeVerifier()
	if err != nil {
		return Authorization{}, err
	}
	consent, err := pkce.AuthorizationURLWithVerifier(state, verifier)
	if err != nil {
		return Authorization{}, err
	}
	return Authorization{URL: consent, State: state, CodeVerifier: verifier}, nil
}

// Connect completes an OAuth callback. Reconnecting replaces the existing
// record for the same workspace and platform.
func (m *Manager) Connect(ctx context.Context, req ConnectRequest) (record core.StoredAccountRecord, err error) {
	startedAt := time.Now()
	defer func() {
		m.observer.Operation(ctx, startedAt, "connect", err, fields(req.WorkspaceID, req.Platform))
	}()

	key := core.AccountKey{WorkspaceID: req.WorkspaceID, Platform: req.Platform}
	if err = key.Validate(); err != nil {
		return core.StoredAccountRecord{}, err
	}
	if strings.TrimSpace(req.Code) == "" {
		return core.StoredAccountRecord{}, core.NewValidationError(req.Platform, "code", "authorization code is required")
	}
	adapter, err := m.adapter(req.Platform)
	if err != nil {
		return core.StoredAccountRecord{}, err
	}
	tokens, err := exchange(ctx, adapter, req)
	if err != nil {
		return core.StoredAccountRecord{}, err
	}
	credentials := core.PlatformCredentials{
		Platform:     req.Platform,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	}
	profile, err := adapter.UserProfile(ctx, credentials)
	if err != nil {
		return core.StoredAccountRecord{}, err
	}
	credentials = applyProfile(credentials, profile)
	return m.vault.Save(ctx, req.WorkspaceID, credentials)
}

func exchange(ctx context.Context, adapter providers.PlatformAdapter, req ConnectRequest) (providers.TokenSet, error) {
	code := strings.TrimSpace(req.Code)
	pkce, ok := adapter.(providers.PKCEAuthorizer)
	if !ok {
		return adapter.ExchangeCode(ctx, code)
	}
	verifier := strings.TrimSpace(req.CodeVerifier)
	if verifier == "" {
		return providers.TokenSet{}, core.NewValidationError(req.Platform, "codeVerifier", "code verifier is required")
	}
	return pkce.ExchangeCodeWithVerifier(ctx, code, verifier)
}

// Refresh renews the stored access token. Meta platforms have no refresh
// grant, so their long-lived user token is re-extended instead.
func (m *Manager) Refresh(ctx context.Context, key core.AccountKey) (record core.StoredAccountRecord, err error) {
	startedAt := time.Now()
	defer func() {
		m.observer.Operation(ctx, startedAt, "refresh", err, fields(key.WorkspaceID, key.Platform))
	}()

	adapter, err := m.adapter(key.Platform)
	if err != nil {
		return core.StoredAccountRecord{}, err
	}
	credentials, _, err := m.vault.Load(ctx, key)
	if err != nil {
		return core.StoredAccountRecord{}, err
	}

	refreshToken := credentials.RefreshToken
	if key.Platform.IsMeta() {
		refreshToken = credentials.UserAccessToken
		if refreshToken == "" {
			refreshToken = credentials.AccessToken
		}
	}
	if strings.TrimSpace(refreshToken) == "" {
		return core.StoredAccountRecord{}, fmt.Errorf("%w: %s has no refresh token", core.ErrMissingRequiredField, key.Platform)
	}

	tokens, err := adapter.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		return core.StoredAccountRecord{}, err
	}
	switch {
	case key.Platform.IsMeta() && credentials.UserAccessToken != "":
		credentials.UserAccessToken = tokens.AccessToken
	default:
		credentials.AccessToken = tokens.AccessToken
	}
	if tokens.RefreshToken != "" && !key.Platform.IsMeta() {
		credentials.RefreshToken = tokens.RefreshToken
	}
	credentials.ExpiresAt = tokens.ExpiresAt
	return m.vault.Save(ctx, key.WorkspaceID, credentials)
}

func (m *Manager) Disconnect(ctx context.Context, key core.AccountKey) (err error) {
	startedAt := time.Now()
	defer func() {
		m.observer.Operation(ctx, startedAt, "disconnect", err, fields(key.WorkspaceID, key.Platform))
	}()
	return m.vault.Delete(ctx, key)
}

// Verify asks the network whether the stored token is still accepted.
func (m *Manager) Verify(ctx context.Context, key core.AccountKey) (bool, error) {
	adapter, err := m.adapter(key.Platform)
	if err != nil {
		return false, err
	}
	credentials, _, err := m.vault.Load(ctx, key)
	if err != nil {
		return false, err
	}
	return adapter.VerifyCredentials(ctx, credentials)
}

func (m *Manager) List(ctx context.Context, workspaceID string) ([]core.StoredAccountRecord, error) {
	return m.vault.List(ctx, workspaceID)
}

func (m *Manager) adapter(platform core.Platform) (providers.PlatformAdapter, error) {
	adapter, ok := m.adapters.Adapter(platform)
	if !ok || adapter == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrPlatformUnavailable, platform)
	}
	return adapter, nil
}

// applyProfile copies the account identity onto the credentials. Page-based
// networks post with the page token and keep the user token for refreshes.
func applyProfile(credentials core.PlatformCredentials, profile providers.Profile) core.PlatformCredentials {
	credentials.UserID = profile.ID
	credentials.Username = profile.Username
	if credentials.Username == "" {
		credentials.Username = profile.Name
	}
	if profile.PageID != "" {
		credentials.PageID = profile.PageID
		credentials.PageName = profile.PageName
	}
	if profile.PageAccessToken != "" {
		credentials.UserAccessToken = credentials.AccessToken
		credentials.AccessToken = profile.PageAccessToken
	}
	return credentials
}

func fields(workspaceID string, platform core.Platform) map[string]any {
	return map[string]any{
		"workspace_id": strings.TrimSpace(workspaceID),
		"platform":     string(platform),
	}
}
