package twitter

import (
	"context"
	"errors"
	"fmt"
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
	AuthURL    = "https://twitter.com/i/oauth2/authorize"
	TokenURL   = "https://api.twitter.com/2/oauth2/token"
	APIBaseURL = "https://api.twitter.com/2"
	UploadURL  = "https://api.x.com/2/media/upload"
)

const (
	CharacterLimit   = 280
	MaxCarouselItems = 4

	uploadChunkBytes = 4 << 20 // 4 MiB
)

const (
	ScopeTweetRead     = "tweet.read"
	ScopeTweetWrite    = "tweet.write"
	ScopeUsersRead     = "users.read"
	ScopeOfflineAccess = "offline.access"
	ScopeMediaWrite    = "media.write"
)

// Config configures the OAuth 2.0 PKCE client and API endpoints. Code
// verifiers are per authorization, see AuthorizationURLWithVerifier.
type Config struct {
	ClientID        string
	ClientSecret    string
	RedirectURI     string
	AuthURL         string
	TokenURL        string
	APIBaseURL      string
	UploadURL       string
	Scopes          []string
	TokenTTL        time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
	HTTPClient      core.HTTPDoer
}

type Adapter struct {
	*providers.BaseAdapter
	apiBase   string
	uploadURL string
	poll      providers.PollConfig
}

func DefaultScopes() []string {
	return []string{ScopeTweetRead, ScopeTweetWrite, ScopeUsersRead, ScopeOfflineAccess, ScopeMediaWrite}
}

func DefaultConfig() Config {
	return Config{
		AuthURL:    AuthURL,
		TokenURL:   TokenURL,
		APIBaseURL: APIBaseURL,
		UploadURL:  UploadURL,
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
	if strings.TrimSpace(cfg.UploadURL) == "" {
		cfg.UploadURL = defaults.UploadURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	base, err := providers.NewBaseAdapter(providers.Metadata{
		Platform:         core.PlatformTwitter,
		CharacterLimit:   CharacterLimit,
		SupportedMedia:   []core.MediaType{core.MediaTypeImage, core.MediaTypeVideo, core.MediaTypeCarousel},
		MaxCarouselItems: MaxCarouselItems,
	}, providers.OAuth2Config{
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		TokenTTL:     cfg.TokenTTL,
		HTTPClient:   cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{
		BaseAdapter: base,
		apiBase:     strings.TrimRight(cfg.APIBaseURL, "/"),
		uploadURL:   strings.TrimRight(cfg.UploadURL, "/"),
		poll: providers.PollConfig{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.MaxPollAttempts,
			Sleep:       providers.SleepContext,
		},
	}, nil
}

// AuthorizationURL is rejected: X requires PKCE, so callers must go through
// AuthorizationURLWithVerifier with a verifier bound to state.
func (a *Adapter) AuthorizationURL(string) (string, error) {
	return "", core.NewValidationError(core.PlatformTwitter, "codeVerifier", "a per-flow code verifier is required")
}

func (a *Adapter) ExchangeCode(context.Context, string) (providers.TokenSet, error) {
	return providers.TokenSet{}, core.NewValidationError(core.PlatformTwitter, "codeVerifier", "a per-flow code verifier is required")
}

func (a *Adapter) AuthorizationURLWithVerifier(state string, verifier string) (string, error) {
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return "", core.NewValidationError(core.PlatformTwitter, "codeVerifier", "code verifier is required")
	}
	return a.OAuth.AuthorizationURLWith(state, map[string]string{
		"code_challenge":        providers.CodeChallenge(verifier),
		"code_challenge_method": providers.CodeChallengeMethodS256,
	})
}

func (a *Adapter) ExchangeCodeWithVerifier(ctx context.Context, code string, verifier string) (providers.TokenSet, error) {
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return providers.TokenSet{}, core.NewValidationError(core.PlatformTwitter, "codeVerifier", "code verifier is required")
	}
	return a.OAuth.ExchangeWith(ctx, code, map[string]string{"code_verifier": verifier})
}

type user struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (a *Adapter) me(ctx context.Context, token string) (user, error) {
	var payload struct {
		Data user `json:"data"`
	}
	_, err := a.API.Call(ctx, "users me", transport.Request{
		Method:  http.MethodGet,
		URL:     a.apiBase + "/users/me",
		Headers: providers.Bearer(token),
	}, nil, &payload)
	return payload.Data, err
}

func (a *Adapter) UserProfile(ctx context.Context, credentials core.PlatformCredentials) (providers.Profile, error) {
	if err := providers.RequireToken(core.PlatformTwitter, credentials); err != nil {
		return providers.Profile{}, err
	}
	me, err := a.me(ctx, credentials.AccessToken)
	if err != nil {
		return providers.Profile{}, err
	}
	return providers.Profile{ID: me.ID, Username: me.Username, Name: me.Name}, nil
}

func (a *Adapter) VerifyCredentials(ctx context.Context, credentials core.PlatformCredentials) (bool, error) {
	if strings.TrimSpace(credentials.AccessToken) == "" {
		return false, nil
	}
	me, err := a.me(ctx, credentials.AccessToken)
	if err == nil {
		return me.ID != "", nil
	}
	var apiErr *core.ExternalAPIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return false, nil
	}
	return false, err
}

// PostContent uploads MediaURL when present and creates one tweet. Images and
// video cannot be mixed in one tweet.
func (a *Adapter) PostContent(ctx context.Context, credentials core.PlatformCredentials, req providers.PostRequest) (providers.Result, error) {
	if err := providers.RequireToken(core.PlatformTwitter, credentials); err != nil {
		return providers.Failed(err), err
	}
	mediaIDs := append([]string(nil), req.MediaIDs...)
	if req.MediaURL != "" {
		if len(mediaIDs) > 0 {
			err := core.NewValidationError(core.PlatformTwitter, "mediaIds", "media url and uploaded media ids cannot be combined")
			return providers.Failed(err), err
		}
		uploaded, err := a.UploadMedia(ctx, credentials, providers.MediaUpload{URL: req.MediaURL, MediaType: req.MediaType})
		if err != nil {
			return uploaded, err
		}
		mediaIDs = append(mediaIDs, uploaded.ID)
	}
	if strings.TrimSpace(req.Content) == "" && len(mediaIDs) == 0 {
		err := core.NewValidationError(core.PlatformTwitter, "content", "tweet requires text or media")
		return providers.Failed(err), err
	}
	return a.createTweet(ctx, credentials, req.Content, mediaIDs)
}

func (a *Adapter) createTweet(ctx context.Context, credentials core.PlatformCredentials, text string, mediaIDs []string) (providers.Result, error) {
	payload := map[string]any{"text": text}
	if len(mediaIDs) > 0 {
		payload["media"] = map[string]any{"media_ids": mediaIDs}
	}
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	_, err := a.API.Call(ctx, "create tweet", transport.Request{
		Method:  http.MethodPost,
		URL:     a.apiBase + "/tweets",
		Headers: providers.Bearer(credentials.AccessToken),
	}, payload, &created)
	if err != nil {
		return providers.Failed(err), err
	}
	return providers.Succeeded(created.Data.ID, tweetURL(credentials.Username, created.Data.ID)), nil
}

// PostCarousel attaches up to four images to one tweet.
func (a *Adapter) PostCarousel(ctx context.Context, credentials core.PlatformCredentials, req providers.CarouselRequest) (providers.Result, error) {
	if err := a.CheckCarousel(req); err != nil {
		return providers.Failed(err), err
	}
	if err := providers.RequireToken(core.PlatformTwitter, credentials); err != nil {
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
	return a.createTweet(ctx, credentials, req.Content, ids)
}

type uploadResponse struct {
	Data struct {
		ID             string `json:"id"`
		MediaKey       string `json:"media_key"`
		ProcessingInfo *struct {
			State           string `json:"state"`
			CheckAfterSecs  int    `json:"check_after_secs"`
			ProgressPercent int    `json:"progress_percent"`
		} `json:"processing_info"`
	} `json:"data"`
}

// UploadMedia downloads the media and re-uploads it. Images use a single
// request; video goes through initialize, append and finalize, then waits for
// processing.
func (a *Adapter) UploadMedia(ctx context.Context, credentials core.PlatformCredentials, upload providers.MediaUpload) (providers.Result, error) {
	if err := providers.RequireToken(core.PlatformTwitter, credentials); err != nil {
		return providers.Failed(err), err
	}
	media, err := a.API.FetchMedia(ctx, upload.URL)
	if err != nil {
		return providers.Failed(err), err
	}
	if upload.MediaType == core.MediaTypeVideo {
		id, err := a.uploadVideo(ctx, credentials, media)
		if err != nil {
			return providers.Failed(err), err
		}
		return providers.Succeeded(id, ""), nil
	}

	var uploaded uploadResponse
	_, err = a.API.CallMultipart(ctx, "upload media", transport.Request{
		URL:     a.uploadURL,
		Headers: providers.Bearer(credentials.AccessToken),
		Timeout: providers.DefaultMediaTimeout,
	}, [][2]string{{"media_category", "tweet_image"}}, providers.MultipartFile{
		Field:       "media",
		Filename:    "media",
		ContentType: media.ContentType,
		Data:        media.Data,
	}, &uploaded)
	if err != nil {
		return providers.Failed(err), err
	}
	return providers.Succeeded(uploaded.Data.ID, ""), nil
}

func (a *Adapter) uploadVideo(ctx context.Context, credentials core.PlatformCredentials, media providers.Media) (string, error) {
	headers := providers.Bearer(credentials.AccessToken)
	var initialized uploadResponse
	_, err := a.API.Call(ctx, "initialize upload", transport.Request{
		Method:  http.MethodPost,
		URL:     a.uploadURL + "/initialize",
		Headers: headers,
	}, map[string]any{
		"media_type":     media.ContentType,
		"total_bytes":    len(media.Data),
		"media_category": "tweet_video",
	}, &initialized)
	if err != nil {
		return "", err
	}
	id := initialized.Data.ID
	if id == "" {
		return "", providers.ClassifyError(core.PlatformTwitter, "initialize upload", nil, errors.New("media id missing from response"))
	}

	for segment, offset := 0, 0; offset < len(media.Data); segment, offset = segment+1, offset+uploadChunkBytes {
		end := offset + uploadChunkBytes
		if end > len(media.Data) {
			end = len(media.Data)
		}
		_, err := a.API.CallMultipart(ctx, "append upload", transport.Request{
			URL:     a.uploadURL + "/" + url.PathEscape(id) + "/append",
			Headers: headers,
			Timeout: providers.DefaultMediaTimeout,
		}, [][2]string{{"segment_index", strconv.Itoa(segment)}}, providers.MultipartFile{
			Field:       "media",
			Filename:    "chunk",
			ContentType: "application/octet-stream",
			Data:        media.Data[offset:end],
		}, nil)
		if err != nil {
			return "", err
		}
	}

	var finalized uploadResponse
	_, err = a.API.Call(ctx, "finalize upload", transport.Request{
		Method:  http.MethodPost,
		URL:     a.uploadURL + "/" + url.PathEscape(id) + "/finalize",
		Headers: headers,
	}, nil, &finalized)
	if err != nil {
		return "", err
	}
	if finalized.Data.ProcessingInfo == nil {
		return id, nil
	}
	return id, a.waitForProcessing(ctx, credentials, id)
}

func (a *Adapter) waitForProcessing(ctx context.Context, credentials core.PlatformCredentials, id string) error {
	err := providers.Poll(ctx, a.poll, func(ctx context.Context, _ int) (bool, error) {
		var status uploadResponse
		_, err := a.API.Call(ctx, "upload status", transport.Request{
			Method:  http.MethodGet,
			URL:     a.uploadURL,
			Query:   url.Values{"command": {"STATUS"}, "media_id": {id}},
			Headers: providers.Bearer(credentials.AccessToken),
		}, nil, &status)
		if err != nil {
			return false, err
		}
		if status.Data.ProcessingInfo == nil {
			return true, nil
		}
		switch status.Data.ProcessingInfo.State {
		case "succeeded":
			return true, nil
		case "failed":
			return false, providers.ClassifyError(core.PlatformTwitter, "upload status", nil, errors.New("media processing failed"))
		}
		return false, nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, providers.ErrPollExhausted) {
		return providers.ClassifyError(core.PlatformTwitter, "upload status", nil, errors.New("media processing did not finish in time"))
	}
	return providers.ClassifyError(core.PlatformTwitter, "upload status", nil, err)
}

func (a *Adapter) PostMetrics(ctx context.Context, credentials core.PlatformCredentials, postID string) (providers.PostMetrics, error) {
	var payload struct {
		Data struct {
			PublicMetrics struct {
				RetweetCount    int64 `json:"retweet_count"`
				ReplyCount      int64 `json:"reply_count"`
				LikeCount       int64 `json:"like_count"`
				QuoteCount      int64 `json:"quote_count"`
				ImpressionCount int64 `json:"impression_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	_, err := a.API.Call(ctx, "tweet metrics", transport.Request{
		Method:  http.MethodGet,
		URL:     a.apiBase + "/tweets/" + url.PathEscape(postID),
		Query:   url.Values{"tweet.fields": {"public_metrics"}},
		Headers: providers.Bearer(credentials.AccessToken),
	}, nil, &payload)
	if err != nil {
		return providers.PostMetrics{}, err
	}
	metrics := payload.Data.PublicMetrics
	return providers.PostMetrics{
		PostID:      postID,
		Impressions: metrics.ImpressionCount,
		Likes:       metrics.LikeCount,
		Comments:    metrics.ReplyCount,
		Shares:      metrics.RetweetCount + metrics.QuoteCount,
	}, nil
}

// SetSleeper replaces the processing poll delay. Intended for tests.
func (a *Adapter) SetSleeper(sleep providers.Sleeper) {
	if sleep != nil {
		a.poll.Sleep = sleep
	}
}

func tweetURL(username string, id string) string {
	if id == "" {
		return ""
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Sprintf("https://x.com/i/web/status/%s", id)
	}
	return fmt.Sprintf("https://x.com/%s/status/%s", username, id)
}

var (
	_ providers.PlatformAdapter = (*Adapter)(nil)
	_ providers.CarouselPoster  = (*Adapter)(nil)
	_ providers.PKCEAuthorizer  = (*Adapter)(nil)
)
