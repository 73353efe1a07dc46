package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// APIPrefix is prepended to every endpoint path.
const APIPrefix = "/api/v1"

// RequestIDHeader carries a per request id for backend log correlation.
const RequestIDHeader = "X-Request-ID"

// DefaultTimeout applies when Config.Timeout is zero.
var DefaultTimeout = 30 * time.Second

// Config configures the REST client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

var _ auth.BackendAPI = &Client{}

// Client is the BackendAPI over HTTP.
type Client struct {
	rest   *resty.Client
	logger auth.Logger
}

// New creates a client for cfg.
func New(cfg Config) *Client {
	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rc.SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}

	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if r.Header.Get(RequestIDHeader) == "" {
			r.SetHeader(RequestIDHeader, uuid.NewString())
		}
		return nil
	})

	_, logger := auth.ResolveLogger("backend", nil, nil)
	return &Client{rest: rc, logger: logger}
}

func (c *Client) WithLogger(logger auth.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Resty exposes the underlying client, mostly for tests.
func (c *Client) Resty() *resty.Client {
	return c.rest
}

func (c *Client) request(ctx context.Context, token string) *resty.Request {
	r := c.rest.R().SetContext(ctx)
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

// send runs a request and maps failures into the error taxonomy.
func (c *Client) send(operation string, r *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := r.Execute(method, APIPrefix+path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.logger.Debug("%s %s cancelled: %v", method, path, err)
		} else {
			c.logger.Error("%s %s transport error: %v", method, path, err)
		}
		return nil, auth.NewNetworkError(err, operation)
	}

	if resp.IsError() {
		detail := errorDetail(resp.Body())
		c.logger.Warn("%s %s returned %d: %s", method, path, resp.StatusCode(), detail)
		return resp, auth.NewBackendError(resp.StatusCode(), detail, operation)
	}

	return resp, nil
}

// errorDetail reads the backend message. detail is either a string or a
// list of validation entries carrying msg.
func errorDetail(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	root := gjson.ParseBytes(body)

	detail := root.Get("detail")
	switch {
	case detail.Type == gjson.String:
		return detail.String()
	case detail.IsArray():
		if msg := detail.Get("0.msg"); msg.Exists() {
			return msg.String()
		}
	}

	for _, path := range []string{"message", "error_description", "error"} {
		if v := root.Get(path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// listItems returns the elements of a list body, accepting a bare array or
// an envelope.
func listItems(body []byte) []gjson.Result {
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return root.Array()
	}
	for _, path := range []string{"data", "items", "results", "jobs", "applications"} {
		if v := root.Get(path); v.IsArray() {
			return v.Array()
		}
	}
	return nil
}

func malformed(operation string, err error) error {
	return auth.NewBackendError(http.StatusBadGateway, "unexpected response from server", operation).
		WithMetadata(map[string]any{"parse_error": err.Error()})
}
