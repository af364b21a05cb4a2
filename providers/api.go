package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/transport"
)

const (
	DefaultRequestTimeout   = 30 * time.Second
	DefaultMediaTimeout     = 5 * time.Minute
	DefaultMaxMediaBytes    = 512 << 20 // 512 MiB
	defaultMediaContentType = "application/octet-stream"
)

// APIClient issues requests on behalf of one platform and classifies every
// failure into a *core.ExternalAPIError.
type APIClient struct {
	Platform core.Platform
	REST     *transport.RESTAdapter
	Timeout  time.Duration
}

func NewAPIClient(platform core.Platform, client core.HTTPDoer) *APIClient {
	return &APIClient{
		Platform: platform,
		REST:     transport.NewRESTAdapter(client),
		Timeout:  DefaultRequestTimeout,
	}
}

// Call sends payload as JSON (when non-nil) and decodes a 2xx JSON body into
// target (when non-nil).
func (c *APIClient) Call(ctx context.Context, operation string, req transport.Request, payload any, target any) (transport.Response, error) {
	req = c.withTimeout(req)
	res, err := c.REST.JSON(ctx, req, payload)
	return c.finish(operation, res, err, target)
}

// CallForm sends form as an url-encoded body.
func (c *APIClient) CallForm(ctx context.Context, operation string, req transport.Request, form url.Values, target any) (transport.Response, error) {
	req = c.withTimeout(req)
	res, err := c.REST.Form(ctx, req, form)
	return c.finish(operation, res, err, target)
}

// Raw sends req untouched and only checks the status.
func (c *APIClient) Raw(ctx context.Context, operation string, req transport.Request) (transport.Response, error) {
	req = c.withTimeout(req)
	res, err := c.REST.Do(ctx, req)
	return c.finish(operation, res, err, nil)
}

type Media struct {
	Data        []byte
	ContentType string
}

// FetchMedia downloads a public media URL so it can be re-uploaded to networks
// that do not pull from URLs.
func (c *APIClient) FetchMedia(ctx context.Context, mediaURL string) (Media, error) {
	res, err := c.Raw(ctx, "fetch media", transport.Request{
		Method:               http.MethodGet,
		URL:                  mediaURL,
		Timeout:              DefaultMediaTimeout,
		MaxResponseBodyBytes: DefaultMaxMediaBytes,
	})
	if err != nil {
		return Media{}, err
	}
	contentType := strings.TrimSpace(res.Headers.Get("Content-Type"))
	if contentType == "" {
		contentType = defaultMediaContentType
	}
	return Media{Data: res.Body, ContentType: contentType}, nil
}

func (c *APIClient) finish(operation string, res transport.Response, err error, target any) (transport.Response, error) {
	if err != nil {
		return res, ClassifyError(c.Platform, operation, nil, err)
	}
	if err := CheckResponse(c.Platform, operation, res); err != nil {
		return res, err
	}
	if target != nil {
		if err := res.DecodeJSON(target); err != nil {
			return res, ClassifyError(c.Platform, operation, &res, err)
		}
	}
	return res, nil
}

func (c *APIClient) withTimeout(req transport.Request) transport.Request {
	if req.Timeout <= 0 {
		req.Timeout = c.Timeout
	}
	return req
}

func Bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + strings.TrimSpace(token)}
}

// RequireToken fails fast when credentials carry no access token.
func RequireToken(platform core.Platform, credentials core.PlatformCredentials) error {
	if strings.TrimSpace(credentials.AccessToken) == "" {
		return core.NewValidationError(platform, "accessToken", "access token is required")
	}
	return nil
}
