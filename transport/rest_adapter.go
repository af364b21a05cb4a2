package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-social/core"
)

const KindREST = "rest"

const defaultRESTClientTimeout = 30 * time.Second
const defaultRESTResponseBodyLimit int64 = 10 << 20 // 10 MiB

type Request struct {
	Method               string
	URL                  string
	Query                url.Values
	Headers              map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

func (r Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

func (r Response) DecodeJSON(target any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("transport: empty response body")
	}
	if err := json.Unmarshal(r.Body, target); err != nil {
		return fmt.Errorf("transport: decode json response: %w", err)
	}
	return nil
}

// RESTAdapter executes plain HTTP requests for platform adapters. Non-2xx
// responses are returned as values; only failures with no response are errors.
type RESTAdapter struct {
	Client               core.HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewRESTAdapter(client core.HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
	}
}

func (a *RESTAdapter) Do(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.Client == nil {
		return Response{}, transportError(
			"transport: rest adapter requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindREST},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	parsedURL, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || parsedURL.Host == "" {
		if err == nil {
			err = fmt.Errorf("missing host")
		}
		return Response{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid request url",
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST, "host": safeHost(req.URL)},
		)
	}

	if len(req.Query) > 0 {
		query := parsedURL.Query()
		for key, values := range req.Query {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			query.Del(key)
			for _, value := range values {
				query.Add(key, value)
			}
		}
		parsedURL.RawQuery = query.Encode()
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(requestCtx, method, parsedURL.String(), body)
	if err != nil {
		return Response{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create http request",
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST, "method": method, "host": parsedURL.Host},
		)
	}
	for key, value := range a.DefaultHeaders {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	startedAt := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		// query strings carry access tokens; the error keeps scheme, host and path only
		return Response{}, transportWrapError(
			redactURLError(err),
			goerrors.CategoryExternal,
			"transport: execute http request",
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "method": method, "host": parsedURL.Host, "network": true},
		)
	}
	defer httpRes.Body.Close()

	maxBodyBytes := resolveResponseBodyLimit(req.MaxResponseBodyBytes, a.MaxResponseBodyBytes)
	payload, err := io.ReadAll(io.LimitReader(httpRes.Body, maxBodyBytes+1))
	if err != nil {
		return Response{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "status_code": httpRes.StatusCode, "network": true},
		)
	}
	if int64(len(payload)) > maxBodyBytes {
		return Response{}, transportError(
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", maxBodyBytes),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{
				"adapter":          KindREST,
				"status_code":      httpRes.StatusCode,
				"response_limit_b": maxBodyBytes,
			},
		)
	}

	return Response{
		StatusCode: httpRes.StatusCode,
		Headers:    httpRes.Header.Clone(),
		Body:       payload,
		Duration:   time.Since(startedAt),
	}, nil
}

// JSON issues req with a JSON-encoded body when payload is non-nil.
func (a *RESTAdapter) JSON(ctx context.Context, req Request, payload any) (Response, error) {
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Response{}, transportWrapError(
				err,
				goerrors.CategoryBadInput,
				"transport: encode json body",
				http.StatusBadRequest,
				map[string]any{"adapter": KindREST},
			)
		}
		req.Body = data
	}
	headers := make(map[string]string, len(req.Headers)+2)
	headers["Accept"] = "application/json"
	if len(req.Body) > 0 {
		headers["Content-Type"] = "application/json"
	}
	for key, value := range req.Headers {
		headers[key] = value
	}
	req.Headers = headers
	return a.Do(ctx, req)
}

// Form issues req with a url-encoded body.
func (a *RESTAdapter) Form(ctx context.Context, req Request, form url.Values) (Response, error) {
	req.Body = []byte(form.Encode())
	headers := make(map[string]string, len(req.Headers)+2)
	headers["Accept"] = "application/json"
	headers["Content-Type"] = "application/x-www-form-urlencoded"
	for key, value := range req.Headers {
		headers[key] = value
	}
	req.Headers = headers
	return a.Do(ctx, req)
}

// redactURLError drops query and fragment from the URL a *url.Error carries.
func redactURLError(err error) error {
	urlErr, ok := err.(*url.Error)
	if !ok {
		return err
	}
	return &url.Error{Op: urlErr.Op, URL: redactURL(urlErr.URL), Err: urlErr.Err}
}

func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
			return raw[:idx]
		}
		return raw
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.User = nil
	return parsed.String()
}

func safeHost(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return parsed.Host
}

func resolveResponseBodyLimit(requestLimit int64, adapterLimit int64) int64 {
	if requestLimit > 0 {
		return requestLimit
	}
	if adapterLimit > 0 {
		return adapterLimit
	}
	return defaultRESTResponseBodyLimit
}
