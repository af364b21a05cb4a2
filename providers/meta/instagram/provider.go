package instagram

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	meta "github.com/goliatone/go-social/providers/meta/common"
)

const (
	CharacterLimit   = 2200
	MaxCarouselItems = 10

	DefaultPollInterval    = 3 * time.Second
	DefaultMaxPollAttempts = 20
)

const (
	ScopeInstagramBasic          = "instagram_basic"
	ScopeInstagramContentPublish = "instagram_content_publish"
	ScopeInstagramManageInsights = "instagram_manage_insights"
	ScopePagesShowList           = "pages_show_list"
)

type Config struct {
	meta.AuthConfig
	PollInterval    time.Duration
	MaxPollAttempts int
}

type Adapter struct {
	*meta.Adapter
	poll providers.PollConfig
}

func DefaultScopes() []string {
	return []string{
		ScopeInstagramBasic,
		ScopeInstagramContentPublish,
		ScopeInstagramManageInsights,
		ScopePagesShowList,
	}
}

func New(cfg Config) (*Adapter, error) {
	base, err := meta.NewAdapter(providers.Metadata{
		Platform:         core.PlatformInstagram,
		CharacterLimit:   CharacterLimit,
		SupportedMedia:   []core.MediaType{core.MediaTypeImage, core.MediaTypeVideo, core.MediaTypeCarousel},
		MaxCarouselItems: MaxCarouselItems,
	}, cfg.AuthConfig, DefaultScopes())
	if err != nil {
		return nil, err
	}
	adapter := &Adapter{
		Adapter: base,
		poll: providers.PollConfig{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.MaxPollAttempts,
			Sleep:       providers.SleepContext,
		},
	}
	if adapter.poll.Interval <= 0 {
		adapter.poll.Interval = DefaultPollInterval
	}
	if adapter.poll.MaxAttempts <= 0 {
		adapter.poll.MaxAttempts = DefaultMaxPollAttempts
	}
	return adapter, nil
}

type linkedPage struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	AccessToken     string `json:"access_token"`
	BusinessAccount *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"instagram_business_account"`
}

// UserProfile resolves the Instagram business account linked to one of the
// user's pages.
func (a *Adapter) UserProfile(ctx context.Context, credentials core.PlatformCredentials) (providers.Profile, error) {
	token := credentials.UserAccessToken
	if token == "" {
		token = credentials.AccessToken
	}
	pages, err := meta.List[linkedPage](ctx, a.Graph, "me/accounts", token, url.Values{
		"fields": {"id,name,access_token,instagram_business_account{id,username}"},
	})
	if err != nil {
		return providers.Profile{}, err
	}
	for _, page := range pages {
		if page.BusinessAccount == nil || page.BusinessAccount.ID == "" {
			continue
		}
		return providers.Profile{
			ID:              page.BusinessAccount.ID,
			Username:        page.BusinessAccount.Username,
			Name:            page.BusinessAccount.Username,
			PageID:          page.ID,
			PageName:        page.Name,
			PageAccessToken: page.AccessToken,
		}, nil
	}
	return providers.Profile{}, providers.ClassifyError(core.PlatformInstagram, "user profile", nil, errors.New("no instagram business account linked to any page"))
}

type containerResponse struct {
	ID string `json:"id"`
}

// PostContent creates a media container, waits for it to finish processing and
// publishes it. Instagram has no text-only posts.
func (a *Adapter) PostContent(ctx context.Context, credentials core.PlatformCredentials, req providers.PostRequest) (providers.Result, error) {
	if err := requireAccount(credentials); err != nil {
		return providers.Failed(err), err
	}
	if strings.TrimSpace(req.MediaURL) == "" {
		err := core.NewValidationError(core.PlatformInstagram, "mediaUrl", "instagram posts require an image or video")
		return providers.Failed(err), err
	}
	container, err := a.createContainer(ctx, credentials, req.MediaURL, req.MediaType, req.PostType, req.Content, false)
	if err != nil {
		return providers.Failed(err), err
	}
	return a.publishContainer(ctx, credentials, container)
}

// UploadMedia creates an unpublished media container and returns its id.
func (a *Adapter) UploadMedia(ctx context.Context, credentials core.PlatformCredentials, upload providers.MediaUpload) (providers.Result, error) {
	if err := requireAccount(credentials); err != nil {
		return providers.Failed(err), err
	}
	container, err := a.createContainer(ctx, credentials, upload.URL, upload.MediaType, "", "", false)
	if err != nil {
		return providers.Failed(err), err
	}
	return providers.Succeeded(container, ""), nil
}

// PostCarousel creates one child container per item, a parent CAROUSEL
// container referencing them in order, and publishes the parent.
func (a *Adapter) PostCarousel(ctx context.Context, credentials core.PlatformCredentials, req providers.CarouselRequest) (providers.Result, error) {
	if err := requireAccount(credentials); err != nil {
		return providers.Failed(err), err
	}
	if err := a.CheckCarousel(req); err != nil {
		return providers.Failed(err), err
	}
	children := make([]string, 0, len(req.MediaURLs))
	for _, mediaURL := range req.MediaURLs {
		child, err := a.createContainer(ctx, credentials, mediaURL, mediaTypeFromURL(mediaURL), "", "", true)
		if err != nil {
			return providers.Failed(err), err
		}
		if err := a.waitForContainer(ctx, credentials, child); err != nil {
			return providers.Failed(err), err
		}
		children = append(children, child)
	}

	var parent containerResponse
	err := a.Graph.Post(ctx, credentials.UserID+"/media", credentials.AccessToken, url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
		"caption":    {req.Content},
	}, &parent)
	if err != nil {
		return providers.Failed(err), err
	}
	return a.publishContainer(ctx, credentials, parent.ID)
}

func (a *Adapter) createContainer(
	ctx context.Context,
	credentials core.PlatformCredentials,
	mediaURL string,
	mediaType core.MediaType,
	postType core.PostType,
	caption string,
	carouselItem bool,
) (string, error) {
	form := url.Values{}
	if mediaType == core.MediaTypeVideo {
		form.Set("video_url", mediaURL)
		if carouselItem {
			form.Set("media_type", "VIDEO")
		} else {
			form.Set("media_type", "REELS")
		}
	} else {
		form.Set("image_url", mediaURL)
	}
	if postType == core.PostTypeReel && mediaType == core.MediaTypeVideo {
		form.Set("share_to_feed", "true")
	}
	if carouselItem {
		form.Set("is_carousel_item", "true")
	} else if caption != "" {
		form.Set("caption", caption)
	}
	var created containerResponse
	if err := a.Graph.Post(ctx, credentials.UserID+"/media", credentials.AccessToken, form, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", providers.ClassifyError(core.PlatformInstagram, "create container", nil, errors.New("container id missing from response"))
	}
	return created.ID, nil
}

func (a *Adapter) publishContainer(ctx context.Context, credentials core.PlatformCredentials, container string) (providers.Result, error) {
	if err := a.waitForContainer(ctx, credentials, container); err != nil {
		return providers.Failed(err), err
	}
	var published containerResponse
	err := a.Graph.Post(ctx, credentials.UserID+"/media_publish", credentials.AccessToken, url.Values{
		"creation_id": {container},
	}, &published)
	if err != nil {
		return providers.Failed(err), err
	}
	return providers.Succeeded(published.ID, a.permalink(ctx, credentials, published.ID)), nil
}

// waitForContainer polls the container status until FINISHED, failing on
// ERROR or EXPIRED and after a bounded number of attempts.
func (a *Adapter) waitForContainer(ctx context.Context, credentials core.PlatformCredentials, container string) error {
	err := providers.Poll(ctx, a.poll, func(ctx context.Context, _ int) (bool, error) {
		var status struct {
			StatusCode string `json:"status_code"`
			Status     string `json:"status"`
		}
		if err := a.Graph.Get(ctx, container, credentials.AccessToken, url.Values{"fields": {"status_code,status"}}, &status); err != nil {
			return false, err
		}
		switch strings.ToUpper(status.StatusCode) {
		case "FINISHED", "PUBLISHED":
			return true, nil
		case "ERROR", "EXPIRED":
			return false, providers.ClassifyError(core.PlatformInstagram, "container status", nil, errors.New("container "+strings.ToLower(status.StatusCode)+": "+status.Status))
		}
		return false, nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, providers.ErrPollExhausted) {
		return providers.ClassifyError(core.PlatformInstagram, "container status", nil, errors.New("container did not finish processing in time"))
	}
	return providers.ClassifyError(core.PlatformInstagram, "container status", nil, err)
}

func (a *Adapter) permalink(ctx context.Context, credentials core.PlatformCredentials, mediaID string) string {
	var payload struct {
		Permalink string `json:"permalink"`
	}
	if err := a.Graph.Get(ctx, mediaID, credentials.AccessToken, url.Values{"fields": {"permalink"}}, &payload); err != nil {
		return ""
	}
	return payload.Permalink
}

func (a *Adapter) PostMetrics(ctx context.Context, credentials core.PlatformCredentials, postID string) (providers.PostMetrics, error) {
	var payload struct {
		LikeCount     int64 `json:"like_count"`
		CommentsCount int64 `json:"comments_count"`
	}
	if err := a.Graph.Get(ctx, postID, credentials.AccessToken, url.Values{"fields": {"like_count,comments_count"}}, &payload); err != nil {
		return providers.PostMetrics{}, err
	}
	return providers.PostMetrics{PostID: postID, Likes: payload.LikeCount, Comments: payload.CommentsCount}, nil
}

// SetSleeper replaces the poll delay. Intended for tests.
func (a *Adapter) SetSleeper(sleep providers.Sleeper) {
	if sleep != nil {
		a.poll.Sleep = sleep
	}
}

func requireAccount(credentials core.PlatformCredentials) error {
	if err := providers.RequireToken(core.PlatformInstagram, credentials); err != nil {
		return err
	}
	if strings.TrimSpace(credentials.UserID) == "" {
		return core.NewValidationError(core.PlatformInstagram, "userId", "instagram business account id is required")
	}
	return nil
}

func mediaTypeFromURL(mediaURL string) core.MediaType {
	path := strings.ToLower(mediaURL)
	if index := strings.IndexAny(path, "?#"); index >= 0 {
		path = path[:index]
	}
	for _, ext := range []string{".mp4", ".mov", ".m4v", ".webm"} {
		if strings.HasSuffix(path, ext) {
			return core.MediaTypeVideo
		}
	}
	return core.MediaTypeImage
}

var (
	_ providers.PlatformAdapter = (*Adapter)(nil)
	_ providers.CarouselPoster  = (*Adapter)(nil)
)
