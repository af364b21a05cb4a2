package identity

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
	meta "github.com/goliatone/go-social/providers/meta/common"
)

// ExpiryWarningWindow marks a credential as expiring soon.
const ExpiryWarningWindow = 7 * 24 * time.Hour

type Reason string

const (
	ReasonNone                Reason = ""
	ReasonNoPlatformConnected Reason = "no_platform_connected"
	ReasonNoBusinessFound     Reason = "no_business_found"
	ReasonNoOwnedAdAccount    Reason = "no_owned_ad_account"
)

// Capability is the resolved Meta identity for one workspace. Reason is only
// set when HasAdsAccess is false. Source names the platform record that
// supplied the token.
type Capability struct {
	HasAdsAccess   bool
	Reason         Reason
	Source         core.Platform
	AccessToken    string
	UserID         string
	Username       string
	PageID         string
	PageName       string
	BusinessID     string
	BusinessName   string
	AdAccountID    string
	AdAccountName  string
	Currency       string
	Timezone       string
	ExpiresAt      *time.Time
	ExpiresSoon    bool
	Discovered     bool
	DiscoveryError string
}

// Connected reports whether any usable Meta credential was found.
func (c Capability) Connected() bool {
	return c.Source != "" && c.AccessToken != ""
}

// Credentials projects the capability onto a credential record for platform.
func (c Capability) Credentials(platform core.Platform) core.PlatformCredentials {
	return core.PlatformCredentials{
		Platform:      platform,
		AccessToken:   c.AccessToken,
		UserID:        c.UserID,
		Username:      c.Username,
		ExpiresAt:     c.ExpiresAt,
		AdAccountID:   c.AdAccountID,
		AdAccountName: c.AdAccountName,
		PageID:        c.PageID,
		PageName:      c.PageName,
		Currency:      c.Currency,
		Timezone:      c.Timezone,
	}
}

type CredentialVault interface {
	Load(ctx context.Context, key core.AccountKey) (core.PlatformCredentials, core.StoredAccountRecord, error)
	Save(ctx context.Context, workspaceID string, credentials core.PlatformCredentials) (core.StoredAccountRecord, error)
}

type ResolveOptions struct {
	PreferredBusinessID string
}

type Option func(*MetaIdentityResolver)

func WithClock(now func() time.Time) Option {
	return func(r *MetaIdentityResolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(r *MetaIdentityResolver) {
		r.observer = core.NewObserver(r.observer.Prefix, logger, r.observer.Metrics)
	}
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(r *MetaIdentityResolver) {
		r.observer = core.NewObserver(r.observer.Prefix, r.observer.Logger, metrics)
	}
}

// MetaIdentityResolver reconciles the meta_ads, facebook and instagram records
// of a workspace into one usable identity. Concurrent resolutions for the same
// workspace may both run discovery; the persisted value is the same.
type MetaIdentityResolver struct {
	vault    CredentialVault
	graph    *meta.GraphClient
	now      func() time.Time
	observer core.Observer
}

// NewMetaIdentityResolver accepts a nil graph client. Resolution then still
// works from cached ad accounts and fails only when discovery is required.
func NewMetaIdentityResolver(vault CredentialVault, graph *meta.GraphClient, opts ...Option) (*MetaIdentityResolver, error) {
	if vault == nil {
		return nil, core.ErrCredentialStoreMissing
	}
	resolver := &MetaIdentityResolver{
		vault:    vault,
		graph:    graph,
		now:      time.Now,
		observer: core.NewObserver("social.identity", nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(resolver)
		}
	}
	return resolver, nil
}

func (r *MetaIdentityResolver) Resolve(ctx context.Context, workspaceID string) (Capability, error) {
	return r.ResolveWithOptions(ctx, workspaceID, ResolveOptions{})
}

func (r *MetaIdentityResolver) ResolveWithOptions(ctx context.Context, workspaceID string, opts ResolveOptions) (capability Capability, err error) {
	startedAt := time.Now()
	defer func() {
		r.observer.Operation(ctx, startedAt, "resolve_meta_identity", err, map[string]any{
			"workspace_id":   workspaceID,
			"source":         string(capability.Source),
			"has_ads_access": capability.HasAdsAccess,
			"reason":         string(capability.Reason),
			"discovered":     capability.Discovered,
		})
	}()

	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return Capability{}, core.ErrWorkspaceIDRequired
	}

	base, source, err := r.baseCredential(ctx, workspaceID)
	if err != nil {
		return Capability{}, err
	}
	if source == "" {
		return Capability{Reason: ReasonNoPlatformConnected}, nil
	}

	now := r.now()
	capability = Capability{
		Source:        source,
		AccessToken:   base.AccessToken,
		UserID:        base.UserID,
		Username:      base.Username,
		PageID:        base.PageID,
		PageName:      base.PageName,
		AdAccountID:   base.AdAccountID,
		AdAccountName: base.AdAccountName,
		Currency:      base.Currency,
		Timezone:      base.Timezone,
		ExpiresAt:     base.ExpiresAt,
		ExpiresSoon:   base.ExpiresWithin(now, ExpiryWarningWindow),
	}
	if capability.AdAccountID != "" {
		capability.HasAdsAccess = true
		return capability, nil
	}

	if r.graph == nil {
		return Capability{}, meta.ErrAppSecretRequired
	}
	account, reason, discoveryErr := r.discover(ctx, base, opts)
	if discoveryErr != nil {
		capability.DiscoveryError = discoveryErr.Error()
		r.observer.Log(ctx, "warn", "meta ad account discovery failed", map[string]any{
			"workspace_id": workspaceID,
			"source":       string(source),
			"error":        discoveryErr.Error(),
		})
	}
	if reason != ReasonNone {
		capability.Reason = reason
		return capability, nil
	}

	capability.HasAdsAccess = true
	capability.Discovered = true
	capability.BusinessID = account.BusinessID
	capability.BusinessName = account.BusinessName
	capability.AdAccountID = account.AdAccountID
	capability.AdAccountName = account.AdAccountName
	capability.Currency = account.Currency
	capability.Timezone = account.Timezone

	if err := r.persist(ctx, workspaceID, base, account); err != nil {
		var encErr *core.EncryptionError
		if errors.As(err, &encErr) {
			return Capability{}, err
		}
		r.observer.Log(ctx, "warn", "meta ad account persist failed", map[string]any{
			"workspace_id": workspaceID,
			"source":       string(source),
			"error":        err.Error(),
		})
	}
	return capability, nil
}

// baseCredential returns the first non-expired record with an access token in
// priority order. Integrity failures abort; missing records are skipped.
func (r *MetaIdentityResolver) baseCredential(ctx context.Context, workspaceID string) (core.PlatformCredentials, core.Platform, error) {
	now := r.now()
	for _, platform := range core.MetaPlatforms() {
		credentials, _, err := r.vault.Load(ctx, core.AccountKey{WorkspaceID: workspaceID, Platform: platform})
		if errors.Is(err, core.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return core.PlatformCredentials{}, "", err
		}
		if strings.TrimSpace(credentials.AccessToken) == "" {
			continue
		}
		if credentials.Expired(now) {
			r.observer.Log(ctx, "debug", "skipping expired meta credential", map[string]any{
				"workspace_id": workspaceID,
				"platform":     string(platform),
			})
			continue
		}
		credentials.Platform = platform
		return credentials, platform, nil
	}
	return core.PlatformCredentials{}, "", nil
}

type business struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type adAccount struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	Name          string `json:"name"`
	Currency      string `json:"currency"`
	TimezoneName  string `json:"timezone_name"`
	AccountStatus int    `json:"account_status"`
}

const adAccountFields = "id,account_id,name,currency,timezone_name,account_status"

// discover walks business portfolios and their owned ad accounts, then falls
// back to the business linked to the page. Personal ad accounts are never
// considered.
func (r *MetaIdentityResolver) discover(ctx context.Context, base core.PlatformCredentials, opts ResolveOptions) (core.AdAccountIdentity, Reason, error) {
	userToken := base.UserAccessToken
	if userToken == "" {
		userToken = base.AccessToken
	}

	businessesSeen := false
	var firstErr error

	businesses, err := meta.List[business](ctx, r.graph, "me/businesses", userToken, url.Values{"fields": {"id,name"}})
	if err != nil {
		firstErr = err
	}
	for _, candidate := range orderBusinesses(businesses, opts.PreferredBusinessID) {
		businessesSeen = true
		account, found, err := r.ownedAdAccount(ctx, candidate, userToken)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if found {
			return account, ReasonNone, nil
		}
	}

	if base.PageID != "" {
		linked, err := r.pageBusiness(ctx, base)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if linked.ID != "" {
			businessesSeen = true
			account, found, err := r.ownedAdAccount(ctx, linked, base.AccessToken)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if found {
				return account, ReasonNone, nil
			}
		}
	}

	if businessesSeen {
		return core.AdAccountIdentity{}, ReasonNoOwnedAdAccount, firstErr
	}
	return core.AdAccountIdentity{}, ReasonNoBusinessFound, firstErr
}

func (r *MetaIdentityResolver) ownedAdAccount(ctx context.Context, owner business, token string) (core.AdAccountIdentity, bool, error) {
	accounts, err := meta.List[adAccount](ctx, r.graph, owner.ID+"/owned_ad_accounts", token, url.Values{"fields": {adAccountFields}})
	if err != nil {
		return core.AdAccountIdentity{}, false, err
	}
	if len(accounts) == 0 {
		return core.AdAccountIdentity{}, false, nil
	}
	chosen := accounts[0]
	for _, account := range accounts {
		if account.AccountStatus == 1 {
			chosen = account
			break
		}
	}
	id := chosen.AccountID
	if id == "" {
		id = chosen.ID
	}
	return core.AdAccountIdentity{
		BusinessID:    owner.ID,
		BusinessName:  owner.Name,
		AdAccountID:   core.NormalizeAdAccountID(id),
		AdAccountName: strings.TrimSpace(chosen.Name),
		Currency:      strings.TrimSpace(chosen.Currency),
		Timezone:      strings.TrimSpace(chosen.TimezoneName),
	}, true, nil
}

func (r *MetaIdentityResolver) pageBusiness(ctx context.Context, base core.PlatformCredentials) (business, error) {
	var page struct {
		ID       string   `json:"id"`
		Business business `json:"business"`
	}
	err := r.graph.Get(ctx, base.PageID, base.AccessToken, url.Values{"fields": {"id,business{id,name}"}}, &page)
	if err != nil {
		return business{}, err
	}
	return page.Business, nil
}

// persist merges the discovered account into the source record so later
// resolutions skip discovery.
func (r *MetaIdentityResolver) persist(ctx context.Context, workspaceID string, base core.PlatformCredentials, account core.AdAccountIdentity) error {
	current, _, err := r.vault.Load(ctx, core.AccountKey{WorkspaceID: workspaceID, Platform: base.Platform})
	if err != nil {
		return err
	}
	current.Platform = base.Platform
	_, err = r.vault.Save(ctx, workspaceID, current.WithAdAccount(account))
	return err
}

func orderBusinesses(businesses []business, preferredID string) []business {
	preferredID = strings.TrimSpace(preferredID)
	if preferredID == "" {
		return businesses
	}
	ordered := make([]business, 0, len(businesses))
	for _, candidate := range businesses {
		if candidate.ID == preferredID {
			ordered = append(ordered, candidate)
		}
	}
	for _, candidate := range businesses {
		if candidate.ID != preferredID {
			ordered = append(ordered, candidate)
		}
	}
	return ordered
}
