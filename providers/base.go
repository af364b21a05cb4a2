package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-social/core"
)

// BaseAdapter carries the parts every network shares. Per-network adapters
// embed it and add the posting operations.
type BaseAdapter struct {
	Meta  Metadata
	OAuth *OAuth2Client
	API   *APIClient
}

func NewBaseAdapter(meta Metadata, oauth OAuth2Config) (*BaseAdapter, error) {
	oauth.Platform = meta.Platform
	client, err := NewOAuth2Client(oauth)
	if err != nil {
		return nil, err
	}
	return &BaseAdapter{
		Meta:  meta,
		OAuth: client,
		API:   NewAPIClient(meta.Platform, oauth.HTTPClient),
	}, nil
}

func (b *BaseAdapter) Metadata() Metadata {
	meta := b.Meta
	meta.SupportedMedia = append([]core.MediaType(nil), b.Meta.SupportedMedia...)
	return meta
}

func (b *BaseAdapter) Platform() core.Platform {
	return b.Meta.Platform
}

func (b *BaseAdapter) AuthorizationURL(state string) (string, error) {
	return b.OAuth.AuthorizationURL(state)
}

func (b *BaseAdapter) ExchangeCode(ctx context.Context, code string) (TokenSet, error) {
	return b.OAuth.Exchange(ctx, code)
}

func (b *BaseAdapter) RefreshAccessToken(ctx context.Context, refreshToken string) (TokenSet, error) {
	return b.OAuth.Refresh(ctx, refreshToken)
}

// SchedulePost is overridden by networks with native scheduling.
func (b *BaseAdapter) SchedulePost(context.Context, core.PlatformCredentials, PostRequest, time.Time) (Result, error) {
	err := fmt.Errorf("%w: %s", core.ErrSchedulingUnsupported, b.Meta.Platform)
	return Failed(err), err
}

// CheckCarousel enforces the adapter's carousel cap before any upload starts.
func (b *BaseAdapter) CheckCarousel(req CarouselRequest) error {
	if len(req.MediaURLs) < 2 {
		return core.NewValidationError(b.Meta.Platform, "carouselUrls", "carousel requires at least 2 items, got %d", len(req.MediaURLs))
	}
	if b.Meta.MaxCarouselItems > 0 && len(req.MediaURLs) > b.Meta.MaxCarouselItems {
		return core.NewValidationError(b.Meta.Platform, "carouselUrls", "carousel allows at most %d items, got %d", b.Meta.MaxCarouselItems, len(req.MediaURLs))
	}
	return nil
}
