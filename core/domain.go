package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownPlatform        = errors.New("core: unknown platform")
	ErrAccountNotFound        = errors.New("core: account not found")
	ErrSchedulingUnsupported  = errors.New("core: scheduling not supported")
	ErrCarouselUnsupported    = errors.New("core: carousel not supported")
	ErrOperationNotSupported  = errors.New("core: operation not supported")
	ErrMissingRequiredField   = errors.New("core: missing required credential field")
	ErrWorkspaceIDRequired    = errors.New("core: workspace id is required")
	ErrCredentialStoreMissing = errors.New("core: credential store is not configured")
	ErrPlatformUnavailable    = errors.New("core: platform unavailable")
)

type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformMetaAds   Platform = "meta_ads"
)

// Platforms lists every platform an adapter can be built for, in a stable order.
func Platforms() []Platform {
	return []Platform{
		PlatformTwitter,
		PlatformLinkedIn,
		PlatformFacebook,
		PlatformInstagram,
		PlatformTikTok,
		PlatformYouTube,
		PlatformMetaAds,
	}
}

// MetaPlatforms is the Meta credential pool in resolution priority order.
func MetaPlatforms() []Platform {
	return []Platform{PlatformMetaAds, PlatformFacebook, PlatformInstagram}
}

func ParsePlatform(value string) (Platform, error) {
	normalized := Platform(strings.TrimSpace(strings.ToLower(value)))
	switch normalized {
	case "x":
		return PlatformTwitter, nil
	case "meta", "meta-ads", "metaads":
		return PlatformMetaAds, nil
	}
	for _, platform := range Platforms() {
		if platform == normalized {
			return platform, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, value)
}

func (p Platform) String() string {
	return string(p)
}

func (p Platform) IsMeta() bool {
	switch p {
	case PlatformFacebook, PlatformInstagram, PlatformMetaAds:
		return true
	default:
		return false
	}
}

type MediaType string

const (
	MediaTypeNone     MediaType = ""
	MediaTypeImage    MediaType = "image"
	MediaTypeVideo    MediaType = "video"
	MediaTypeCarousel MediaType = "carousel"
)

type PostType string

const (
	PostTypeText      PostType = "text"
	PostTypeImage     PostType = "image"
	PostTypeReel      PostType = "reel"
	PostTypeVideo     PostType = "video"
	PostTypeShort     PostType = "short"
	PostTypeCarousel  PostType = "carousel"
	PostTypeSlideshow PostType = "slideshow"
)

// EncryptedBlob is the tenant-bound output of the credential cipher.
type EncryptedBlob struct {
	Ciphertext []byte
	IV         []byte
	AuthTag    []byte
}

type PlatformCredentials struct {
	Platform        Platform   `json:"platform"`
	AccessToken     string     `json:"accessToken"`
	RefreshToken    string     `json:"refreshToken,omitempty"`
	UserAccessToken string     `json:"userAccessToken,omitempty"`
	UserID          string     `json:"userId"`
	Username        string     `json:"username"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	AdAccountID     string     `json:"adAccountId,omitempty"`
	AdAccountName   string     `json:"adAccountName,omitempty"`
	PageID          string     `json:"pageId,omitempty"`
	PageName        string     `json:"pageName,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	Timezone        string     `json:"timezone,omitempty"`
}

func (c PlatformCredentials) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

func (c PlatformCredentials) ExpiresWithin(now time.Time, window time.Duration) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now.Add(window))
}

// WithAdAccount merges a discovered ad account into the credential.
func (c PlatformCredentials) WithAdAccount(identity AdAccountIdentity) PlatformCredentials {
	c.AdAccountID = strings.TrimSpace(identity.AdAccountID)
	c.AdAccountName = strings.TrimSpace(identity.AdAccountName)
	c.Currency = strings.TrimSpace(identity.Currency)
	c.Timezone = strings.TrimSpace(identity.Timezone)
	return c
}

// StoredAccountRecord is one credential row per (workspace, platform). The
// plaintext PageID and AccountID columns are indexable without decryption.
type StoredAccountRecord struct {
	ID                   string
	WorkspaceID          string
	Platform             Platform
	EncryptedCredentials string
	CredentialsHash      string
	PageID               string
	AccountID            string
	Username             string
	ExpiresAt            *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type AccountKey struct {
	WorkspaceID string
	Platform    Platform
}

func (k AccountKey) Validate() error {
	if strings.TrimSpace(k.WorkspaceID) == "" {
		return ErrWorkspaceIDRequired
	}
	if _, err := ParsePlatform(string(k.Platform)); err != nil {
		return err
	}
	return nil
}

func (k AccountKey) String() string {
	return strings.TrimSpace(k.WorkspaceID) + ":" + string(k.Platform)
}

type PublishTarget struct {
	Platform     Platform
	Content      string
	MediaURL     string
	MediaType    MediaType
	CarouselURLs []string
	PostType     PostType
	ScheduledAt  *time.Time
}

func (t PublishTarget) HasMedia() bool {
	return strings.TrimSpace(t.MediaURL) != "" || len(t.CarouselURLs) > 0
}

// PublishResult is the outcome for one platform. Scheduled is set when the
// post was accepted for later publication rather than published now.
type PublishResult struct {
	Platform  Platform
	Success   bool
	Scheduled bool
	PostID    string
	URL       string
	Error     string
}

type AdAccountIdentity struct {
	BusinessID    string
	BusinessName  string
	AdAccountID   string
	AdAccountName string
	Currency      string
	Timezone      string
}

// Post is the orchestrator input. PlatformContent values may be plain strings or
// structured objects carrying description, content, title or caption keys.
type Post struct {
	ID                string
	WorkspaceID       string
	Topic             string
	Platforms         []Platform
	PlatformContent   map[Platform]any
	ImageURLs         []string
	GeneratedVideoURL string
	PostType          PostType
	ScheduledAt       *time.Time
}

type PublishSummary struct {
	Requested int
	Succeeded int
	Failed    int
}

func Summarize(results map[Platform]PublishResult) PublishSummary {
	summary := PublishSummary{Requested: len(results)}
	for _, result := range results {
		if result.Success {
			summary.Succeeded++
			continue
		}
		summary.Failed++
	}
	return summary
}

// PublishAttempt is the audit entry written for every dispatched platform.
type PublishAttempt struct {
	ID          string
	WorkspaceID string
	PostID      string
	Platform    Platform
	Success     bool
	Scheduled   bool
	ExternalID  string
	URL         string
	Error       string
	CreatedAt   time.Time
}

func NewPublishAttempt(workspaceID string, postID string, result PublishResult, at time.Time) PublishAttempt {
	return PublishAttempt{
		WorkspaceID: strings.TrimSpace(workspaceID),
		PostID:      strings.TrimSpace(postID),
		Platform:    result.Platform,
		Success:     result.Success,
		Scheduled:   result.Scheduled,
		ExternalID:  result.PostID,
		URL:         result.URL,
		Error:       result.Error,
		CreatedAt:   at.UTC(),
	}
}

type PublishAttemptFilter struct {
	WorkspaceID string
	PostID      string
	Platform    Platform
	Page        int
	PerPage     int
}
