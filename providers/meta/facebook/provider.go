package facebook

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	meta "github.com/goliatone/go-social/providers/meta/common"
)

const (
	CharacterLimit   = 63206
	MaxCarouselItems = 10

	minScheduleLead = 10 * time.Minute
	maxScheduleLead = 75 * 24 * time.Hour
)

const (
	ScopePagesShowList       = "pages_show_list"
	ScopePagesReadEngagement = "pages_read_engagement"
	ScopePagesManagePosts    = "pages_manage_posts"
	ScopeBusinessManagement  = "business_management"
)

type Config = meta.AuthConfig

type Adapter struct {
	*meta.Adapter
}

func DefaultScopes() []string {
	return []string{
		ScopePagesShowList,
		ScopePagesReadEngagement,
		ScopePagesManagePosts,
		ScopeBusinessManagement,
	}
}

func New(cfg Config) (*Adapter, error) {
	base, err := meta.NewAdapter(providers.Metadata{
		Platform:           core.PlatformFacebook,
		CharacterLimit:     CharacterLimit,
		SupportsScheduling: true,
		SupportedMedia:     []core.MediaType{core.MediaTypeImage, core.MediaTypeVideo, core.MediaTypeCarousel},
		MaxCarouselItems:   MaxCarouselItems,
	}, cfg, DefaultScopes())
	if err != nil {
		return nil, err
	}
	return &Adapter{Adapter: base}, nil
}

type pageAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

// UserProfile returns the user and the first page they manage, including the
// page access token used for posting.
func (a *Adapter) UserProfile(ctx context.Context, credentials core.PlatformCredentials) (providers.Profile, error) {
	userToken := credentials.UserAccessToken
	if userToken == "" {
		userToken = credentials.AccessToken
	}
	me, err := a.Me(ctx, userToken)
	if err != nil {
		return providers.Profile{}, err
	}
	profile := providers.Profile{ID: me.ID, Username: me.Name, Name: me.Name}

	pages, err := meta.List[pageAccount](ctx, a.Graph, "me/accounts", userToken, url.Values{"fields": {"id,name,access_token"}})
	if err != nil {
		return providers.Profile{}, err
	}
	for _, page := range pages {
		if credentials.PageID != "" && page.ID != credentials.PageID {
			continue
		}
		profile.PageID = page.ID
		profile.PageName = page.Name
		profile.PageAccessToken = page.AccessToken
		break
	}
	return profile, nil
}

type createResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

func (r createResponse) postID() string {
	if r.PostID != "" {
		return r.PostID
	}
	return r.ID
}

func (a *Adapter) PostContent(ctx context.Context, credentials core.PlatformCredentials, req providers.PostRequest) (providers.Result, error) {
	return a.publish(ctx, credentials, req, url.Values{})
}

func (a *Adapter) SchedulePost(ctx context.Context, credentials core.PlatformCredentials, req providers.PostRequest, at time.Time) (providers.Result, error) {
	lead := time.Until(at)
	if lead < minScheduleLead || lead > maxScheduleLead {
		err := core.NewValidationError(core.PlatformFacebook, "scheduledAt", "scheduled time must be between %s and %s ahead", minScheduleLead, maxScheduleLead)
		return providers.Failed(err), err
	}
	return a.publish(ctx, credentials, req, url.Values{
		"published":              {"false"},
		"scheduled_publish_time": {strconv.FormatInt(at.Unix(), 10)},
	})
}

func (a *Adapter) publish(ctx context.Context, credentials core.PlatformCredentials, req providers.PostRequest, extra url.Values) (providers.Result, error) {
	if err := a.requirePage(credentials); err != nil {
		return providers.Failed(err), err
	}
	form := url.Values{}
	for key, values := range extra {
		form[key] = values
	}

	edge := "feed"
	switch {
	case len(req.MediaIDs) > 0:
		for index, id := range req.MediaIDs {
			form.Set(fmt.Sprintf("attached_media[%d]", index), fmt.Sprintf(`{"media_fbid":"%s"}`, id))
		}
		form.Set("message", req.Content)
	case req.MediaURL != "" && req.MediaType == core.MediaTypeVideo:
		edge = "videos"
		form.Set("file_url", req.MediaURL)
		form.Set("description", req.Content)
	case req.MediaURL != "":
		edge = "photos"
		form.Set("url", req.MediaURL)
		form.Set("caption", req.Content)
	default:
		if strings.TrimSpace(req.Content) == "" {
			err := core.NewValidationError(core.PlatformFacebook, "content", "text post requires content")
			return providers.Failed(err), err
		}
		form.Set("message", req.Content)
	}

	var created createResponse
	if err := a.Graph.Post(ctx, credentials.PageID+"/"+edge, credentials.AccessToken, form, &created); err != nil {
		return providers.Failed(err), err
	}
	id := created.postID()
	return providers.Succeeded(id, postURL(id)), nil
}

// UploadMedia stores an unpublished photo whose id can be attached to a feed
// post.
func (a *Adapter) UploadMedia(ctx context.Context, credentials core.PlatformCredentials, upload providers.MediaUpload) (providers.Result, error) {
	if err := a.requirePage(credentials); err != nil {
		return providers.Failed(err), err
	}
	if upload.MediaType == core.MediaTypeVideo {
		err := core.NewValidationError(core.PlatformFacebook, "mediaType", "unpublished uploads support images only")
		return providers.Failed(err), err
	}
	var created createResponse
	err := a.Graph.Post(ctx, credentials.PageID+"/photos", credentials.AccessToken, url.Values{
		"url":       {upload.URL},
		"published": {"false"},
	}, &created)
	if err != nil {
		return providers.Failed(err), err
	}
	return providers.Succeeded(created.ID, ""), nil
}

// PostCarousel uploads each image unpublished, then attaches them to one feed
// post in order.
func (a *Adapter) PostCarousel(ctx context.Context, credentials core.PlatformCredentials, req providers.CarouselRequest) (providers.Result, error) {
	if err := a.CheckCarousel(req); err != nil {
		return providers.Failed(err), err
	}
	ids := make([]string, 0, len(req.MediaURLs))
	for _, mediaURL := range req.MediaURLs {
		uploaded, err := a.UploadMedia(ctx, credentials, providers.MediaUpload{URL: mediaURL, MediaType: core.MediaTypeImage})
		if err != nil {
			return uploaded, err
		}
		ids = append(ids, uploaded.ID)
	}
	return a.PostContent(ctx, credentials, providers.PostRequest{Content: req.Content, MediaIDs: ids})
}

func (a *Adapter) PostMetrics(ctx context.Context, credentials core.PlatformCredentials, postID string) (providers.PostMetrics, error) {
	var payload struct {
		Shares struct {
			Count int64 `json:"count"`
		} `json:"shares"`
		Likes struct {
			Summary struct {
				TotalCount int64 `json:"total_count"`
			} `json:"summary"`
		} `json:"likes"`
		Comments struct {
			Summary struct {
				TotalCount int64 `json:"total_count"`
			} `json:"summary"`
		} `json:"comments"`
	}
	err := a.Graph.Get(ctx, postID, credentials.AccessToken, url.Values{
		"fields": {"shares,likes.summary(true).limit(0),comments.summary(true).limit(0)"},
	}, &payload)
	if err != nil {
		return providers.PostMetrics{}, err
	}
	return providers.PostMetrics{
		PostID:   postID,
		Likes:    payload.Likes.Summary.TotalCount,
		Comments: payload.Comments.Summary.TotalCount,
		Shares:   payload.Shares.Count,
	}, nil
}

func (a *Adapter) requirePage(credentials core.PlatformCredentials) error {
	if err := providers.RequireToken(core.PlatformFacebook, credentials); err != nil {
		return err
	}
	if strings.TrimSpace(credentials.PageID) == "" {
		return core.NewValidationError(core.PlatformFacebook, "pageId", "page id is required")
	}
	return nil
}

func postURL(id string) string {
	if id == "" {
		return ""
	}
	return "https://www.facebook.com/" + id
}

var (
	_ providers.PlatformAdapter = (*Adapter)(nil)
	_ providers.CarouselPoster  = (*Adapter)(nil)
)
