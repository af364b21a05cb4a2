package providers

import (
	"context"
	"time"

	"github.com/goliatone/go-social/core"
)

// Metadata is the static description of a platform adapter.
type Metadata struct {
	Platform           core.Platform
	CharacterLimit     int
	SupportsScheduling bool
	SupportedMedia     []core.MediaType
	MaxCarouselItems   int
	RequiresVideo      bool
}

func (m Metadata) SupportsMedia(mediaType core.MediaType) bool {
	for _, supported := range m.SupportedMedia {
		if supported == mediaType {
			return true
		}
	}
	return false
}

type TokenSet struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scopes       []string
	ExpiresAt    *time.Time
}

// Profile is the account identity returned after authorization. PageID and
// PageAccessToken are only populated by page-based networks.
type Profile struct {
	ID              string
	Username        string
	Name            string
	PageID          string
	PageName        string
	PageAccessToken string
}

type PostRequest struct {
	Content   string
	MediaURL  string
	MediaType core.MediaType
	MediaIDs  []string
	PostType  core.PostType
}

type CarouselRequest struct {
	Content   string
	MediaURLs []string
	PostType  core.PostType
}

type MediaUpload struct {
	URL       string
	MediaType core.MediaType
}

// Result is the uniform outcome of post, upload and carousel operations.
type Result struct {
	Success bool
	ID      string
	URL     string
	Error   string
}

func Succeeded(id string, url string) Result {
	return Result{Success: true, ID: id, URL: url}
}

func Failed(err error) Result {
	if err == nil {
		return Result{}
	}
	return Result{Error: err.Error()}
}

type PostMetrics struct {
	PostID      string
	Impressions int64
	Views       int64
	Likes       int64
	Comments    int64
	Shares      int64
}

// PlatformAdapter normalizes one network's OAuth and posting contract. Every
// error returned by a network call is a *core.ExternalAPIError; pre-flight
// rule violations are *core.ValidationError.
type PlatformAdapter interface {
	Metadata() Metadata
	AuthorizationURL(state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (TokenSet, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (TokenSet, error)
	UserProfile(ctx context.Context, credentials core.PlatformCredentials) (Profile, error)
	PostContent(ctx context.Context, credentials core.PlatformCredentials, req PostRequest) (Result, error)
	UploadMedia(ctx context.Context, credentials core.PlatformCredentials, upload MediaUpload) (Result, error)
	SchedulePost(ctx context.Context, credentials core.PlatformCredentials, req PostRequest, at time.Time) (Result, error)
	VerifyCredentials(ctx context.Context, credentials core.PlatformCredentials) (bool, error)
	PostMetrics(ctx context.Context, credentials core.PlatformCredentials, postID string) (PostMetrics, error)
}

// CarouselPoster is implemented by adapters that publish several media items
// as one post.
type CarouselPoster interface {
	PostCarousel(ctx context.Context, credentials core.PlatformCredentials, req CarouselRequest) (Result, error)
}

// Resolver returns the configured adapter for a platform. A false result means
// the platform is unavailable, never that an error occurred.
type Resolver interface {
	Adapter(platform core.Platform) (PlatformAdapter, bool)
}
