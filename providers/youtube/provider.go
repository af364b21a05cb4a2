package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/transport"
)

const (
	AuthURL       = "https://accounts.google.com/o/oauth2/v2/auth"
	TokenURL      = "https://oauth2.googleapis.com/token"
	APIBaseURL    = "https://www.googleapis.com/youtube/v3"
	UploadBaseURL = "https://www.googleapis.com/upload/youtube/v3"
)

const (
	DescriptionLimit = 5000
	TitleLimit       = 100

	DefaultPrivacyStatus = "public"
	defaultTitle         = "Untitled"
)

const (
	ScopeUpload   = "https://www.googleapis.com/auth/youtube.upload"
	ScopeReadonly = "https://www.googleapis.com/auth/youtube.readonly"
)

type Config struct {
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	AuthURL       string
	TokenURL      string
	APIBaseURL    string
	UploadBaseURL string
	Scopes        []string
	PrivacyStatus string
	CategoryID    string
	TokenTTL      time.Duration
	Now           func() time.Time
	HTTPClient    core.HTTPDoer
}

type Adapter struct {
	*providers.BaseAdapter
	apiBase    string
	uploadBase string
	privacy    string
	categoryID string
	now        func() time.Time
}

func DefaultScopes() []string {
	return []string{ScopeUpload, ScopeReadonly}
}

func DefaultConfig() Config {
	return Config{
		AuthURL:       AuthURL,
		TokenURL:      TokenURL,
		APIBaseURL:    APIBaseURL,
		UploadBaseURL: UploadBaseURL,
		Scopes:        DefaultScopes(),
		PrivacyStatus: DefaultPrivacyStatus,
		CategoryID:    "22",
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
	if strings.TrimSpace(cfg.UploadBaseURL) == "" {
		cfg.UploadBaseURL = defaults.UploadBaseURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	if strings.TrimSpace(cfg.PrivacyStatus) == "" {
		cfg.PrivacyStatus = defaults.PrivacyStatus
	}
	if strings.TrimSpace(cfg.CategoryID) == "" {
		cfg.CategoryID = defaults.CategoryID
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	base, err := providers.NewBaseAdapter(providers.Metadata{
		Platform:           core.PlatformYouTube,
		CharacterLimit:     DescriptionLimit,
		SupportsScheduling: true,
		SupportedMedia:     []core.MediaType{core.MediaTypeVideo},
		RequiresVideo:      true,
	}, providers.OAuth2Config{
		AuthURL:            cfg.AuthURL,
		TokenURL:           cfg.TokenURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		RedirectURI:        cfg.RedirectURI,
		Scopes:             cfg.Scopes,
		ClientSecretInBody: true,
		AuthParams: map[string]string{
			"access_type":            "offline",
			"prompt":                 "consent",
			"include_granted_scopes": "true",
		},
		TokenTTL:   cfg.TokenTTL,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{
		BaseAdapter: base,
		apiBase:     strings.TrimRight(cfg.APIBaseURL, "/"),
		uploadBase:  strings.TrimRight(cfg.UploadBaseURL, "/"),
		privacy:     cfg.PrivacyStatus,
		categoryID:  cfg.CategoryID,
		now:         cfg.Now,
	}, nil
}

type channel struct {
	ID      string `json:"id"`
	Snippet struct {
		Title     string `json:"title"`
		CustomURL string `json:"customUrl"`
	} `json:"snippet"`
}

func (a *Adapter) channel(ctx context.Context, token string) (channel, error) {
	var payload struct {
		Items []channel `json:"items"`
	}
	_, err := a.API.Call(ctx, "channels mine", transport.Request{
		Method:  http.MethodGet,
		URL:     a.apiBase + "/channels",
		Query:   url.Values{"part": {"snippet"}, "mine": {"true"}},
		Headers: providers.Bearer(token),
	}, nil, &payload)
	if err != nil {
		return channel{}, err
	}
	if len(payload.Items) == 0 {
		return channel{}, nil
	}
	return payload.Items[0], nil
}

func (a *Adapter) UserProfile(ctx context.Context, credentials core.PlatformCredentials) (providers.Profile, error) {
	if err := providers.RequireToken(core.PlatformYouTube, credentials); err != nil {
		return providers.Profile{}, err
	}
	found, err := a.channel(ctx, credentials.AccessToken)
	if err != nil {
		return providers.Profile{}, err
	}
	if found.ID == "" {
		return providers.Profile{}, providers.ClassifyError(core.PlatformYouTube, "channels mine", nil, errors.New("account has no youtube channel"))
	}
	username := strings.TrimPrefix(found.Snippet.CustomURL, "@")
	if username == "" {
		username = found.Snippet.Title
	}
	return providers.Profile{ID: found.ID, Username: username, Name: found.Snippet.Title}, nil
}

func (a *Adapter) VerifyCredentials(ctx context.Context, credentials core.PlatformCredentials) (bool, error) {
	if strings.TrimSpace(credentials.AccessToken) == "" {
		return false, nil
	}
	found, err := a.channel(ctx, credentials.AccessToken)
	if err == nil {
		return found.ID != "", nil
	}
	var apiErr *core.ExternalAPIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return false, nil
	}
	return false, err
}

func (a *Adapter) PostContent(ctx context.Context, credentials core.PlatformCredentials, req providers.PostRequest) (providers.Result, error) {
	return a.upload(ctx, credentials, req, a.privacy, nil)
}

// SchedulePost uploads the video as private with publishAt; YouTube flips it
// public at that time.
func (a *Adapter) SchedulePost(ctx context.Context, credentials core.PlatformCredentials, req providers.PostRequest, at time.Time) (providers.Result, error) {
	if !at.After(a.now()) {
		err := core.NewValidationError(core.PlatformYouTube, "scheduledAt", "scheduled time must be in the future")
		return providers.Failed(err), err
	}
	return a.upload(ctx, credentials, req, "private", &at)
}

// UploadMedia uploads a private video and returns its id without publishing.
func (a *Adapter) UploadMedia(ctx context.Context, credentials core.PlatformCredentials, upload providers.MediaUpload) (providers.Result, error) {
	return a.upload(ctx, credentials, providers.PostRequest{MediaURL: upload.URL, MediaType: upload.MediaType}, "private", nil)
}

// upload runs a resumable upload: the metadata request opens a session whose
// Location receives the video bytes.
func (a *Adapter) upload(ctx context.Context, credentials core.PlatformCredentials, req providers.PostRequest, privacy string, publishAt *time.Time) (providers.Result, error) {
	if err := providers.RequireToken(core.PlatformYouTube, credentials); err != nil {
		return providers.Failed(err), err
	}
	if strings.TrimSpace(req.MediaURL) == "" || req.MediaType != core.MediaTypeVideo {
		err := core.NewValidationError(core.PlatformYouTube, "mediaUrl", "youtube posts require a video")
		return providers.Failed(err), err
	}
	if len([]rune(req.Content)) > DescriptionLimit {
		err := core.NewValidationError(core.PlatformYouTube, "content", "description exceeds %d characters", DescriptionLimit)
		return providers.Failed(err), err
	}
	media, err := a.API.FetchMedia(ctx, req.MediaURL)
	if err != nil {
		return providers.Failed(err), err
	}

	status := map[string]any{
		"privacyStatus":           privacy,
		"selfDeclaredMadeForKids": false,
	}
	if publishAt != nil {
		status["publishAt"] = publishAt.UTC().Format(time.RFC3339)
	}
	headers := providers.Bearer(credentials.AccessToken)
	headers["X-Upload-Content-Type"] = media.ContentType
	headers["X-Upload-Content-Length"] = strconv.Itoa(len(media.Data))
	session, err := a.API.Call(ctx, "open upload session", transport.Request{
		Method:  http.MethodPost,
		URL:     a.uploadBase + "/videos",
		Query:   url.Values{"uploadType": {"resumable"}, "part": {"snippet,status"}},
		Headers: headers,
	}, map[string]any{
		"snippet": map[string]any{
			"title":       Title(req.Content),
			"description": req.Content,
			"categoryId":  a.categoryID,
		},
		"status": status,
	}, nil)
	if err != nil {
		return providers.Failed(err), err
	}
	location := strings.TrimSpace(session.Headers.Get("Location"))
	if location == "" {
		err := providers.ClassifyError(core.PlatformYouTube, "open upload session", &session, errors.New("upload session location missing"))
		return providers.Failed(err), err
	}

	putHeaders := providers.Bearer(credentials.AccessToken)
	putHeaders["Content-Type"] = media.ContentType
	var video struct {
		ID string `json:"id"`
	}
	res, err := a.API.Raw(ctx, "upload video bytes", transport.Request{
		Method:  http.MethodPut,
		URL:     location,
		Headers: putHeaders,
		Body:    media.Data,
		Timeout: providers.DefaultMediaTimeout,
	})
	if err != nil {
		return providers.Failed(err), err
	}
	if err := res.DecodeJSON(&video); err != nil || video.ID == "" {
		if err == nil {
			err = errors.New("video id missing from response")
		}
		classified := providers.ClassifyError(core.PlatformYouTube, "upload video bytes", &res, err)
		return providers.Failed(classified), classified
	}
	return providers.Succeeded(video.ID, watchURL(video.ID, req.PostType)), nil
}

func (a *Adapter) PostMetrics(ctx context.Context, credentials core.PlatformCredentials, postID string) (providers.PostMetrics, error) {
	var payload struct {
		Items []struct {
			Statistics struct {
				ViewCount    int64 `json:"viewCount,string"`
				LikeCount    int64 `json:"likeCount,string"`
				CommentCount int64 `json:"commentCount,string"`
			} `json:"statistics"`
		} `json:"items"`
	}
	_, err := a.API.Call(ctx, "video statistics", transport.Request{
		Method:  http.MethodGet,
		URL:     a.apiBase + "/videos",
		Query:   url.Values{"part": {"statistics"}, "id": {postID}},
		Headers: providers.Bearer(credentials.AccessToken),
	}, nil, &payload)
	if err != nil {
		return providers.PostMetrics{}, err
	}
	metrics := providers.PostMetrics{PostID: postID}
	if len(payload.Items) > 0 {
		stats := payload.Items[0].Statistics
		metrics.Views = stats.ViewCount
		metrics.Likes = stats.LikeCount
		metrics.Comments = stats.CommentCount
	}
	return metrics, nil
}

// Title is the first non-empty line of content, cut to 100 characters.
func Title(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > TitleLimit {
			return string(runes[:TitleLimit])
		}
		return line
	}
	return defaultTitle
}

func watchURL(id string, postType core.PostType) string {
	if postType == core.PostTypeShort {
		return "https://www.youtube.com/shorts/" + id
	}
	return "https://www.youtube.com/watch?v=" + id
}

var _ providers.PlatformAdapter = (*Adapter)(nil)
