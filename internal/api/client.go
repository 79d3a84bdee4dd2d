package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"novelassist/internal/logging"
	"novelassist/internal/session"
)

// Navigator is the caller's view of the current screen. The client uses it to send the user
// back to the login screen when the session expires.
type Navigator interface {
	CurrentPath() string
	Redirect(target string)
}

// Options configures a Client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	// RateLimit is requests per second, 0 disables limiting
	RateLimit float64
	RateBurst int
	Logger    *zap.Logger
	Navigator Navigator
	// LoginPath is where expired sessions are redirected (default /login)
	LoginPath string
	// DisableHarvest turns off collecting title-bearing nested objects into a novels list
	DisableHarvest bool
	// Location is used for date values without a zone (default time.Local)
	Location *time.Location
	// Now overrides the clock used for missing or unreadable dates
	Now func() time.Time
}

// File is one file part of a multipart upload
type File struct {
	Field  string
	Name   string
	Reader io.Reader
}

// Client represents the novel backend API client
type Client struct {
	baseURL   string
	http      *resty.Client
	sessions  *session.Store
	limiter   *rate.Limiter
	log       *zap.Logger
	nav       Navigator
	loginPath string
	norm      normalizer
}

// NewClient creates a new API client reading credentials from sessions
func NewClient(opts Options, sessions *session.Store) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	c := &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		sessions:  sessions,
		limiter:   limiter,
		log:       logging.OrNop(opts.Logger),
		nav:       opts.Navigator,
		loginPath: opts.LoginPath,
		norm: normalizer{
			dates:   dateCoercer{loc: opts.Location, now: opts.Now},
			harvest: !opts.DisableHarvest,
		},
	}

	// resty keeps a cookie jar by default, so backend cookies ride along on later requests
	c.http = resty.New().
		SetBaseURL(c.baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry on 429 (Too Many Requests) and 5xx server errors
			if r == nil {
				return false
			}
			return r.StatusCode() == 429 || (r.StatusCode() >= 500 && r.StatusCode() <= 504)
		}).
		OnBeforeRequest(c.authorize)

	return c
}

// BaseURL returns the backend base address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Sessions returns the session store the client reads credentials from
func (c *Client) Sessions() *session.Store {
	return c.sessions
}

// authorize attaches the bearer token of the stored session. A missing or unreadable
// session never blocks the request.
func (c *Client) authorize(_ *resty.Client, r *resty.Request) error {
	r.SetHeader("X-Request-ID", uuid.NewString())
	if c.sessions == nil {
		return nil
	}

	s, err := c.sessions.Load(r.Context())
	var parseErr *session.ParseError
	switch {
	case err == nil:
		if token := s.Token(); token != "" {
			r.SetAuthToken(token)
		}
	case errors.Is(err, session.ErrNoSession):
	case errors.As(err, &parseErr):
		c.log.Debug("Ignoring malformed session", zap.Error(err))
	default:
		c.log.Warn("Failed to read session, sending request without credentials", zap.Error(err))
	}
	return nil
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, params map[string]string) (any, error) {
	return c.do(ctx, http.MethodGet, path, func(r *resty.Request) {
		if params != nil {
			r.SetQueryParams(params)
		}
	})
}

// Post performs a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path string, payload any) (any, error) {
	return c.do(ctx, http.MethodPost, path, jsonBody(payload))
}

// Put performs a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, path string, payload any) (any, error) {
	return c.do(ctx, http.MethodPut, path, jsonBody(payload))
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, path string) (any, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// PostMultipart performs a multipart POST with text fields and optional files
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, files ...File) (any, error) {
	return c.do(ctx, http.MethodPost, path, func(r *resty.Request) {
		parts := make([]*resty.MultipartField, 0, len(files))
		for _, f := range files {
			parts = append(parts, &resty.MultipartField{
				Param:       f.Field,
				FileName:    f.Name,
				ContentType: "application/octet-stream",
				Reader:      f.Reader,
			})
		}
		r.SetMultipartFields(parts...)
		if len(fields) > 0 {
			r.SetFormData(fields)
		}
	})
}

func jsonBody(payload any) func(*resty.Request) {
	return func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json")
		if payload != nil {
			r.SetBody(payload)
		}
	}
}

// do sends one request and classifies the outcome. Retries happen inside resty; the
// failure handling below runs once per request.
func (c *Client) do(ctx context.Context, method, path string, prepare func(*resty.Request)) (any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s %s: rate limiter: %w", method, path, err)
	}

	req := c.http.R().SetContext(ctx)
	if prepare != nil {
		prepare(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.log.Warn("Request failed without a response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, &Error{Kind: KindUnreachable, Method: method, Path: path, Err: err}
	}

	c.log.Debug("API response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", resp.Time()))

	if resp.StatusCode() >= 400 {
		return nil, c.fail(ctx, method, path, resp)
	}

	payload := decodeBody(resp.Body())
	if isNovelPath(path) {
		payload = c.norm.payload(payload)
	}
	return payload, nil
}

// fail classifies an error response: disabled account, expired session, anything else
func (c *Client) fail(ctx context.Context, method, path string, resp *resty.Response) error {
	status := resp.StatusCode()
	message := backendMessage(resp.Body())

	if containsDisabledMarker(message) {
		c.log.Info("Backend reports the account as disabled", zap.Int("status", status))
		return &DisabledAccountError{
			Message:    DisabledAccountMessage,
			Disabled:   true,
			StatusCode: status,
			Detail:     message,
		}
	}

	if status == http.StatusUnauthorized {
		c.expireSession(ctx)
		return &Error{Kind: KindUnauthenticated, Method: method, Path: path, StatusCode: status, Message: message}
	}

	return &Error{Kind: KindHTTP, Method: method, Path: path, StatusCode: status, Message: message}
}

// expireSession clears the stored session and sends the user to the login screen
// unless they are already on it
func (c *Client) expireSession(ctx context.Context) {
	if c.sessions != nil {
		if err := c.sessions.Clear(ctx); err != nil {
			c.log.Warn("Failed to clear expired session", zap.Error(err))
		}
	}

	if c.nav == nil {
		return
	}
	current := c.nav.CurrentPath()
	if pathOnly(current) == c.loginPath {
		return
	}
	c.nav.Redirect(c.loginPath + "?redirect=" + url.QueryEscape(pathOnly(current)))
}

// Decode converts a payload returned by the client into a typed value
func Decode(payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// decodeBody parses JSON keeping numbers exact. Empty bodies give nil and non-JSON bodies
// are returned as a string.
func decodeBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return string(body)
	}
	return v
}

// backendMessage extracts the error text: a plain string body, else message, else error
func backendMessage(body []byte) string {
	switch v := decodeBody(body).(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
		if msg, ok := v["error"].(string); ok && msg != "" {
			return msg
		}
	}
	return ""
}

func pathOnly(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i]
	}
	return p
}
