package linkedin

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/transport"
)

const (
	AuthURL        = "https://www.linkedin.com/oauth/v2/authorization"
	TokenURL       = "https://www.linkedin.com/oauth/v2/accessToken"
	APIBaseURL     = "https://api.linkedin.com"
	DefaultVersion = "202405"
)

const (
	CharacterLimit   = 3000
	MaxCarouselItems = 20
)

const (
	ScopeOpenID            = "openid"
	ScopeProfile           = "profile"
	ScopeEmail             = "email"
	ScopeWriteMemberSocial = "w_member_social"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	Version      string
	Scopes       []string
	TokenTTL     time.Duration
	HTTPClient   core.HTTPDoer
}

type Adapter struct {
	*providers.BaseAdapter
	apiBase string
	version string
}

func DefaultScopes() []string {
	return []string{ScopeOpenID, ScopeProfile, ScopeEmail, ScopeWriteMemberSocial}
}

func DefaultConfig() Config {
	return Config{
		AuthURL:    AuthURL,
		TokenURL:   TokenURL,
		APIBaseURL: APIBaseURL,
		Version:    DefaultVersion,
		Scopes:     DefaultScopes(),
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
	if strings.TrimSpace(cfg.Version) == "" {
		cfg.Version = defaults.Version
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	base, err := providers.NewBaseAdapter(providers.Metadata{
		Platform:         core.PlatformLinkedIn,
		CharacterLimit:   CharacterLimit,
		SupportedMedia:   []core.MediaType{core.MediaTypeImage, core.MediaTypeVideo, core.MediaTypeCarousel},
		MaxCarouselItems: MaxCarouselItems,
	}, providers.OAuth2Config{
		AuthURL:            cfg.AuthURL,
		TokenURL:           cfg.TokenURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		RedirectURI:        cfg.RedirectURI,
		Scopes:             cfg.Scopes,
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
		version:     strings.TrimSpace(cfg.Version),
	}, nil
}

func (a *Adapter) headers(token string) map[string]string {
	headers := providers.Bearer(token)
	headers["LinkedIn-Version"] = a.version
	headers["X-Restli-Protocol-Version"] = "2.0.0"
	return headers
}

func personURN(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "urn:li:") {
		return id
	}
	return "urn:li:person:" + id
}

type userInfo struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (a *Adapter) userInfo(ctx context.Context, token string) (userInfo, error) {
	var info userInfo
	_, err := a.API.Call(ctx, "userinfo", transport.Request{
		Method:  http.MethodGet,
		URL:     a.apiBase + "/v2/userinfo",
		Headers: providers.Bearer(token),
	}, nil, &info)
	return info, err
}

func (a *Adapter) UserProfile(ctx context.Context, credentials core.PlatformCredentials) (providers.Profile, error) {
	if err := providers.RequireToken(core.PlatformLinkedIn, credentials); err != nil {
		return providers.Profile{}, err
	}
	info, err := a.userInfo(ctx, credentials.AccessToken)
	if err != nil {
		return providers.Profile{}, err
	}
	username := info.Email
	if username == "" {
		username = info.Name
	}
	return providers.Profile{ID: info.Sub, Username: username, Name: info.Name}, nil
}

func (a *Adapter) VerifyCredentials(ctx context.Context, credentials core.PlatformCredentials) (bool, error) {
	if strings.TrimSpace(credentials.AccessToken) == "" {
		return false, nil
	}
	info, err := a.userInfo(ctx, credentials.AccessToken)
	if err == nil {
		return info.Sub != "", nil
	}
	var apiErr *core.ExternalAPIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return false, nil
	}
	return false, err
}

func requireMember(credentials core.PlatformCredentials) error {
	if err := providers.RequireToken(core.PlatformLinkedIn, credentials); err != nil {
		return err
	}
	if strings.TrimSpace(credentials.UserID) == "" {
		return core.NewValidationError(core.PlatformLinkedIn, "userId", "member id is required to author posts")
	}
	return nil
}

func (a *Adapter) PostContent(ctx context.Context, credentials core.PlatformCredentials, req providers.PostRequest) (providers.Result, error) {
	if err := requireMember(credentials); err != nil {
		return providers.Failed(err), err
	}
	var content map[string]any
	switch {
	case req.MediaURL != "":
		uploaded, err := a.UploadMedia(ctx, credentials, providers.MediaUpload{URL: req.MediaURL, MediaType: req.MediaType})
		if err != nil {
			return uploaded, err
		}
		content = map[string]any{"media": map[string]any{"id": uploaded.ID}}
	case len(req.MediaIDs) == 1:
		content = map[string]any{"media": map[string]any{"id": req.MediaIDs[0]}}
	case len(req.MediaIDs) > 1:
		content = multiImage(req.MediaIDs)
	}
	return a.createPost(ctx, credentials, req.Content, content)
}

// PostCarousel uploads every image and publishes them as one multi-image post.
func (a *Adapter) PostCarousel(ctx context.Context, credentials core.PlatformCredentials, req providers.CarouselRequest) (providers.Result, error) {
	if err := a.CheckCarousel(req); err != nil {
		return providers.Failed(err), err
	}
	if err := requireMember(credentials); err != nil {
		return providers.Failed(err), err
	}
	urns := make([]string, 0, len(req.MediaURLs))
	for _, mediaURL := range req.MediaURLs {
		uploaded, err := a.UploadMedia(ctx, credentials, providers.MediaUpload{URL: mediaURL, MediaType: core.MediaTypeImage})
		if err != nil {
			return uploaded, err
		}
		urns = append(urns, uploaded.ID)
	}
	return a.createPost(ctx, credentials, req.Content, multiImage(urns))
}

func multiImage(urns []string) map[string]any {
	images := make([]map[string]any, 0, len(urns))
	for _, urn := range urns {
		images = append(images, map[string]any{"id": urn})
	}
	return map[string]any{"multiImage": map[string]any{"images": images}}
}

func (a *Adapter) createPost(ctx context.Context, credentials core.PlatformCredentials, text string, content map[string]any) (providers.Result, error) {
	payload := map[string]any{
		"author":     personURN(credentials.UserID),
		"commentary": text,
		"visibility": "PUBLIC",
		"distribution": map[string]any{
			"feedDistribution":               "MAIN_FEED",
			"targetEntities":                 []any{},
			"thirdPartyDistributionChannels": []any{},
		},
		"lifecycleState":            "PUBLISHED",
		"isReshareDisabledByAuthor": false,
	}
	if content != nil {
		payload["content"] = content
	}
	res, err := a.API.Call(ctx, "create post", transport.Request{
		Method:  http.MethodPost,
		URL:     a.apiBase + "/rest/posts",
		Headers: a.headers(credentials.AccessToken),
	}, payload, nil)
	if err != nil {
		return providers.Failed(err), err
	}
	id := strings.TrimSpace(res.Headers.Get("X-Restli-Id"))
	if id == "" {
		id = strings.TrimSpace(res.Headers.Get("X-LinkedIn-Id"))
	}
	if id == "" {
		err := providers.ClassifyError(core.PlatformLinkedIn, "create post", &res, errors.New("post id header missing"))
		return providers.Failed(err), err
	}
	return providers.Succeeded(id, "https://www.linkedin.com/feed/update/"+id), nil
}

// UploadMedia registers an upload, PUTs the bytes and returns the asset URN.
// Videos are finalized with the part ETags.
func (a *Adapter) UploadMedia(ctx context.Context, credentials core.PlatformCredentials, upload providers.MediaUpload) (providers.Result, error) {
	if err := requireMember(credentials); err != nil {
		return providers.Failed(err), err
	}
	media, err := a.API.FetchMedia(ctx, upload.URL)
	if err != nil {
		return providers.Failed(err), err
	}
	var urn string
	if upload.MediaType == core.MediaTypeVideo {
		urn, err = a.uploadVideo(ctx, credentials, media)
	} else {
		urn, err = a.uploadImage(ctx, credentials, media)
	}
	if err != nil {
		return providers.Failed(err), err
	}
	return providers.Succeeded(urn, ""), nil
}

func (a *Adapter) uploadImage(ctx context.Context, credentials core.PlatformCredentials, media providers.Media) (string, error) {
	var initialized struct {
		Value struct {
			UploadURL string `json:"uploadUrl"`
			Image     string `json:"image"`
		} `json:"value"`
	}
	_, err := a.API.Call(ctx, "initialize image upload", transport.Request{
		Method:  http.MethodPost,
		URL:     a.apiBase + "/rest/images",
		Query:   url.Values{"action": {"initializeUpload"}},
		Headers: a.headers(credentials.AccessToken),
	}, map[string]any{
		"initializeUploadRequest": map[string]any{"owner": personURN(credentials.UserID)},
	}, &initialized)
	if err != nil {
		return "", err
	}
	if initialized.Value.UploadURL == "" || initialized.Value.Image == "" {
		return "", providers.ClassifyError(core.PlatformLinkedIn, "initialize image upload", nil, errors.New("upload url or image urn missing"))
	}
	if _, err := a.put(ctx, credentials, initialized.Value.UploadURL, media.ContentType, media.Data); err != nil {
		return "", err
	}
	return initialized.Value.Image, nil
}

func (a *Adapter) uploadVideo(ctx context.Context, credentials core.PlatformCredentials, media providers.Media) (string, error) {
	var initialized struct {
		Value struct {
			Video              string `json:"video"`
			UploadToken        string `json:"uploadToken"`
			UploadInstructions []struct {
				UploadURL string `json:"uploadUrl"`
				FirstByte int64  `json:"firstByte"`
				LastByte  int64  `json:"lastByte"`
			} `json:"uploadInstructions"`
		} `json:"value"`
	}
	_, err := a.API.Call(ctx, "initialize video upload", transport.Request{
		Method:  http.MethodPost,
		URL:     a.apiBase + "/rest/videos",
		Query:   url.Values{"action": {"initializeUpload"}},
		Headers: a.headers(credentials.AccessToken),
	}, map[string]any{
		"initializeUploadRequest": map[string]any{
			"owner":           personURN(credentials.UserID),
			"fileSizeBytes":   len(media.Data),
			"uploadCaptions":  false,
			"uploadThumbnail": false,
		},
	}, &initialized)
	if err != nil {
		return "", err
	}
	if initialized.Value.Video == "" || len(initialized.Value.UploadInstructions) == 0 {
		return "", providers.ClassifyError(core.PlatformLinkedIn, "initialize video upload", nil, errors.New("video urn or upload instructions missing"))
	}

	size := int64(len(media.Data))
	etags := make([]string, 0, len(initialized.Value.UploadInstructions))
	for _, instruction := range initialized.Value.UploadInstructions {
		first, last := instruction.FirstByte, instruction.LastByte
		if first < 0 || last < first || last >= size {
			return "", providers.ClassifyError(core.PlatformLinkedIn, "upload video part", nil, errors.New("upload instruction range out of bounds"))
		}
		res, err := a.put(ctx, credentials, instruction.UploadURL, "application/octet-stream", media.Data[first:last+1])
		if err != nil {
			return "", err
		}
		etags = append(etags, strings.Trim(res.Headers.Get("ETag"), `"`))
	}

	_, err = a.API.Call(ctx, "finalize video upload", transport.Request{
		Method:  http.MethodPost,
		URL:     a.apiBase + "/rest/videos",
		Query:   url.Values{"action": {"finalizeUpload"}},
		Headers: a.headers(credentials.AccessToken),
	}, map[string]any{
		"finalizeUploadRequest": map[string]any{
			"video":           initialized.Value.Video,
			"uploadToken":     initialized.Value.UploadToken,
			"uploadedPartIds": etags,
		},
	}, nil)
	if err != nil {
		return "", err
	}
	return initialized.Value.Video, nil
}

func (a *Adapter) put(ctx context.Context, credentials core.PlatformCredentials, uploadURL string, contentType string, data []byte) (transport.Response, error) {
	headers := providers.Bearer(credentials.AccessToken)
	headers["Content-Type"] = contentType
	return a.API.Raw(ctx, "upload bytes", transport.Request{
		Method:  http.MethodPut,
		URL:     uploadURL,
		Headers: headers,
		Body:    data,
		Timeout: providers.DefaultMediaTimeout,
	})
}

func (a *Adapter) PostMetrics(ctx context.Context, credentials core.PlatformCredentials, postID string) (providers.PostMetrics, error) {
	var payload struct {
		LikesSummary struct {
			TotalLikes int64 `json:"totalLikes"`
		} `json:"likesSummary"`
		CommentsSummary struct {
			AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
		} `json:"commentsSummary"`
	}
	_, err := a.API.Call(ctx, "social actions", transport.Request{
		Method:  http.MethodGet,
		URL:     a.apiBase + "/rest/socialActions/" + url.PathEscape(postID),
		Headers: a.headers(credentials.AccessToken),
	}, nil, &payload)
	if err != nil {
		return providers.PostMetrics{}, err
	}
	return providers.PostMetrics{
		PostID:   postID,
		Likes:    payload.LikesSummary.TotalLikes,
		Comments: payload.CommentsSummary.AggregatedTotalComments,
	}, nil
}

var (
	_ providers.PlatformAdapter = (*Adapter)(nil)
	_ providers.CarouselPoster  = (*Adapter)(nil)
)
