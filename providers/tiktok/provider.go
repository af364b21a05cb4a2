package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/transport"
)

const (
	AuthURL    = "https://www.tiktok.com/v2/auth/authorize/"
	TokenURL   = "https://open.tiktokapis.com/v2/oauth/token/"
	APIBaseURL = "https://open.tiktokapis.com"
)

const (
	CharacterLimit   = 2200
	MaxCarouselItems = 35

	DefaultPrivacyLevel = "PUBLIC_TO_EVERYONE"
)

const (
	ScopeUserInfoBasic = "user.info.basic"
	ScopeVideoPublish  = "video.publish"
	ScopeVideoUpload   = "video.upload"
	ScopeVideoList     = "video.list"
)

const (
	statusComplete = "PUBLISH_COMPLETE"
	statusFailed   = "FAILED"
)

type Config struct {
	ClientID        string
	ClientSecret    string
	RedirectURI     string
	AuthURL         string
	TokenURL        string
	APIBaseURL      string
	Scopes          []string
	PrivacyLevel    string
	TokenTTL        time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
	HTTPClient      core.HTTPDoer
}

type Adapter struct {
	*providers.BaseAdapter
	apiBase string
	privacy string
	poll    providers.PollConfig
}

func DefaultScopes() []string {
	return []string{ScopeUserInfoBasic, ScopeVideoPublish, ScopeVideoUpload, ScopeVideoList}
}

func DefaultConfig() Config {
	return Config{
		AuthURL:      AuthURL,
		TokenURL:     TokenURL,
		APIBaseURL:   APIBaseURL,
		Scopes:       DefaultScopes(),
		PrivacyLevel: DefaultPrivacyLevel,
	}
}

func New(cfg Config) (*Adapter, error) {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.AuthURL) == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	if strings.TrimSpace(cfg.PrivacyLevel) == "" {
		cfg.PrivacyLevel = defaults.PrivacyLevel
	}

	base, err := providers.NewBaseAdapter(providers.Metadata{
		Platform:         core.PlatformTikTok,
		CharacterLimit:   CharacterLimit,
		SupportedMedia:   []core.MediaType{core.MediaTypeVideo, core.MediaTypeCarousel},
		MaxCarouselItems: MaxCarouselItems,
		RequiresVideo:    true,
	}, providers.OAuth2Config{
		AuthURL:            cfg.AuthURL,
		TokenURL:           cfg.TokenURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		RedirectURI:        cfg.RedirectURI,
		Scopes:             normalizeTikTokScopes(cfg.Scopes),
		ScopeSeparator:     ",",
		ClientIDParam:      "client_key",
		ClientSecretInBody: true,
		TokenTTL:           cfg.TokenTTL,
		HTTPClient:         cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{
		BaseAdapter: base,
		apiBase:     strings.TrimRight(cfg.APIBaseURL, "/"),
		privacy:     strings.TrimSpace(cfg.PrivacyLevel),
		poll: providers.PollConfig{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.MaxPollAttempts,
			Sleep:       providers.SleepContext,
		},
	}, nil
}

// envelope is the shape of every open API response. A successful call still
// carries an error object with code "ok".
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		LogID   string `json:"log_id"`
	} `json:"error"`
}

func (a *Adapter) call(ctx context.Context, operation string, method string, path string, query url.Values, token string, payload any, target any) error {
	var body envelope
	res, err := a.API.Call(ctx, operation, transport.Request{
		Method:  method,
		URL:     a.apiBase + path,
		Query:   query,
		Headers: providers.Bearer(token),
	}, payload, &body)
	if err != nil {
		return err
	}
	if code := strings.ToLower(strings.TrimSpace(body.Error.Code)); code != "" && code != "ok" {
		message := body.Error.Code
		if body.Error.Message != "" {
			message += ": " + body.Error.Message
		}
		return providers.ClassifyError(core.PlatformTikTok, operation, &res, errors.New(message))
	}
	if target == nil || len(body.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(body.Data, target); err != nil {
		return providers.ClassifyError(core.PlatformTikTok, operation, &res, err)
	}
	return nil
}

type userInfo struct {
	OpenID      string `json:"open_id"`
	UnionID     string `json:"union_id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
}

func (a *Adapter) userInfo(ctx context.Context, token string) (userInfo, error) {
	var data struct {
		User userInfo `json:"user"`
	}
	err := a.call(ctx, "user info", http.MethodGet, "/v2/user/info/", url.Values{
		"fields": {"open_id,union_id,display_name,username"},
	}, token, nil, &data)
	return data.User, err
}

func (a *Adapter) UserProfile(ctx context.Context, credentials core.PlatformCredentials) (providers.Profile, error) {
	if err := providers.RequireToken(core.PlatformTikTok, credentials); err != nil {
		return providers.Profile{}, err
	}
	user, err := a.userInfo(ctx, credentials.AccessToken)
	if err != nil {
		return providers.Profile{}, err
	}
	return providers.Profile{ID: user.OpenID, Username: user.Username, Name: user.DisplayName}, nil
}

func (a *Adapter) VerifyCredentials(ctx context.Context, credentials core.PlatformCredentials) (bool, error) {
	if strings.TrimSpace(credentials.AccessToken) == "" {
		return false, nil
	}
	user, err := a.userInfo(ctx, credentials.AccessToken)
	if err == nil {
		return user.OpenID != "", nil
	}
	var apiErr *core.ExternalAPIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return false, nil
	}
	return false, err
}

// PostContent starts a direct post pulling the video from its URL and waits
// until TikTok reports PUBLISH_COMPLETE or FAILED.
func (a *Adapter) PostContent(ctx context.Context, credentials core.PlatformCredentials, req providers.PostRequest) (providers.Result, error) {
	if err := providers.RequireToken(core.PlatformTikTok, credentials); err != nil {
		return providers.Failed(err), err
	}
	if strings.TrimSpace(req.MediaURL) == "" || req.MediaType != core.MediaTypeVideo {
		err := core.NewValidationError(core.PlatformTikTok, "mediaUrl", "tiktok posts require a video")
		return providers.Failed(err), err
	}
	var started struct {
		PublishID string `json:"publish_id"`
	}
	err := a.call(ctx, "init video publish", http.MethodPost, "/v2/post/publish/video/init/", nil, credentials.AccessToken, map[string]any{
		"post_info": map[string]any{
			"title":         req.Content,
			"privacy_level": a.privacy,
		},
		"source_info": map[string]any{
			"source":    "PULL_FROM_URL",
			"video_url": req.MediaURL,
		},
	}, &started)
	if err != nil {
		return providers.Failed(err), err
	}
	return a.awaitPublish(ctx, credentials, started.PublishID)
}

// PostCarousel publishes a photo post of up to 35 images.
func (a *Adapter) PostCarousel(ctx context.Context, credentials core.PlatformCredentials, req providers.CarouselRequest) (providers.Result, error) {
	if err := a.CheckCarousel(req); err != nil {
		return providers.Failed(err), err
	}
	if err := providers.RequireToken(core.PlatformTikTok, credentials); err != nil {
		return providers.Failed(err), err
	}
	var started struct {
		PublishID string `json:"publish_id"`
	}
	err := a.call(ctx, "init photo publish", http.MethodPost, "/v2/post/publish/content/init/", nil, credentials.AccessToken, map[string]any{
		"post_info": map[string]any{
			"title":         firstLine(req.Content, 90),
			"description":   req.Content,
			"privacy_level": a.privacy,
		},
		"source_info": map[string]any{
			"source":            "PULL_FROM_URL",
			"photo_cover_index": 0,
			"photo_images":      req.MediaURLs,
		},
		"post_mode":  "DIRECT_POST",
		"media_type": "PHOTO",
	}, &started)
	if err != nil {
		return providers.Failed(err), err
	}
	return a.awaitPublish(ctx, credentials, started.PublishID)
}

// UploadMedia sends a video to the creator's inbox as a draft and returns the
// publish id.
func (a *Adapter) UploadMedia(ctx context.Context, credentials core.PlatformCredentials, upload providers.MediaUpload) (providers.Result, error) {
	if err := providers.RequireToken(core.PlatformTikTok, credentials); err != nil {
		return providers.Failed(err), err
	}
	if upload.MediaType != core.MediaTypeVideo {
		err := core.NewValidationError(core.PlatformTikTok, "mediaType", "tiktok uploads require a video")
		return providers.Failed(err), err
	}
	var started struct {
		PublishID string `json:"publish_id"`
	}
	err := a.call(ctx, "init inbox upload", http.MethodPost, "/v2/post/publish/inbox/video/init/", nil, credentials.AccessToken, map[string]any{
		"source_info": map[string]any{
			"source":    "PULL_FROM_URL",
			"video_url": upload.URL,
		},
	}, &started)
	if err != nil {
		return providers.Failed(err), err
	}
	return providers.Succeeded(started.PublishID, ""), nil
}

func (a *Adapter) awaitPublish(ctx context.Context, credentials core.PlatformCredentials, publishID string) (providers.Result, error) {
	if publishID == "" {
		err := providers.ClassifyError(core.PlatformTikTok, "publish", nil, errors.New("publish id missing from response"))
		return providers.Failed(err), err
	}
	var postID string
	err := providers.Poll(ctx, a.poll, func(ctx context.Context, _ int) (bool, error) {
		var status struct {
			Status     string   `json:"status"`
			FailReason string   `json:"fail_reason"`
			PostIDs    []string `json:"publicaly_available_post_id"`
		}
		err := a.call(ctx, "publish status", http.MethodPost, "/v2/post/publish/status/fetch/", nil, credentials.AccessToken, map[string]any{
			"publish_id": publishID,
		}, &status)
		if err != nil {
			return false, err
		}
		switch status.Status {
		case statusComplete:
			if len(status.PostIDs) > 0 {
				postID = status.PostIDs[0]
			}
			return true, nil
		case statusFailed:
			return false, providers.ClassifyError(core.PlatformTikTok, "publish status", nil, errors.New("publish failed: "+status.FailReason))
		}
		return false, nil
	})
	if errors.Is(err, providers.ErrPollExhausted) {
		err = errors.New("publish did not complete in time")
	}
	if err != nil {
		classified := providers.ClassifyError(core.PlatformTikTok, "publish status", nil, err)
		return providers.Failed(classified), classified
	}
	if postID == "" {
		return providers.Succeeded(publishID, ""), nil
	}
	return providers.Succeeded(postID, videoURL(credentials.Username, postID)), nil
}

func (a *Adapter) PostMetrics(ctx context.Context, credentials core.PlatformCredentials, postID string) (providers.PostMetrics, error) {
	var data struct {
		Videos []struct {
			ID           string `json:"id"`
			LikeCount    int64  `json:"like_count"`
			CommentCount int64  `json:"comment_count"`
			ShareCount   int64  `json:"share_count"`
			ViewCount    int64  `json:"view_count"`
		} `json:"videos"`
	}
	err := a.call(ctx, "video query", http.MethodPost, "/v2/video/query/", url.Values{
		"fields": {"id,like_count,comment_count,share_count,view_count"},
	}, credentials.AccessToken, map[string]any{
		"filters": map[string]any{"video_ids": []string{postID}},
	}, &data)
	if err != nil {
		return providers.PostMetrics{}, err
	}
	metrics := providers.PostMetrics{PostID: postID}
	for _, video := range data.Videos {
		if video.ID != postID {
			continue
		}
		metrics.Likes = video.LikeCount
		metrics.Comments = video.CommentCount
		metrics.Shares = video.ShareCount
		metrics.Views = video.ViewCount
	}
	return metrics, nil
}

// SetSleeper replaces the status poll delay. Intended for tests.
func (a *Adapter) SetSleeper(sleep providers.Sleeper) {
	if sleep != nil {
		a.poll.Sleep = sleep
	}
}

func videoURL(username string, id string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return ""
	}
	return "https://www.tiktok.com/@" + username + "/video/" + id
}

func firstLine(text string, limit int) string {
	line := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	runes := []rune(line)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return line
}

func normalizeTikTokScopes(scopes []string) []string {
	set := map[string]struct{}{}
	for _, scope := range scopes {
		normalized := strings.TrimSpace(strings.ToLower(scope))
		normalized = strings.TrimPrefix(normalized, "tiktok:")
		if normalized == "" {
			continue
		}
		set[normalized] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for scope := range set {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

var (
	_ providers.PlatformAdapter = (*Adapter)(nil)
	_ providers.CarouselPoster  = (*Adapter)(nil)
)
