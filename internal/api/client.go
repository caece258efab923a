package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/biomech/coretex/internal/logging"
)

// MaxRetryCount bounds both response retries and transport retries.
const MaxRetryCount = 3

// Endpoints and header names of the authentication flow.
const (
	LoginEndpoint   = "user/login"
	RefreshEndpoint = "user/refresh"
	TokenHeader     = "api-token"
	tokenKey        = "token"
	refreshTokenKey = "refresh_token"
)

const (
	connectTimeout = 20 * time.Second
	readTimeout    = 30 * time.Second
)

// Version is reported in the X-User-Agent header. The CLI sets it from
// the build version.
var Version = "dev"

// Client talks to one Coretex server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	// OnTokenRefresh, when set, is called with the new API token after a
	// successful login or refresh so callers can persist it.
	OnTokenRefresh func(token, refreshToken string)

	mu           sync.RWMutex
	token        string
	refreshToken string
	username     string
	password     string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the debug logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l) }
}

// WithTokens seeds the client with previously stored tokens.
func WithTokens(token, refreshToken string) Option {
	return func(c *Client) {
		c.token = token
		c.refreshToken = refreshToken
	}
}

// New returns a client for serverURL (e.g. "https://api.coretex.ai/").
// Requests go to <serverURL>api/v1/<endpoint>.
func New(serverURL string, opts ...Option) *Client {
	if !strings.HasSuffix(serverURL, "/") {
		serverURL += "/"
	}

	c := &Client{
		baseURL: serverURL + "api/v1/",
		http:    defaultHTTPClient(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// defaultHTTPClient has no overall timeout because downloads can be
// large; connecting and waiting for response headers are bounded instead.
func defaultHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.ResponseHeaderTimeout = readTimeout
	return &http.Client{Transport: transport}
}

// BaseURL returns the API root including the api/v1/ suffix.
func (c *Client) BaseURL() string { return c.baseURL }

// UserAgent is sent as X-User-Agent.
func UserAgent() string {
	return fmt.Sprintf("coretex-go;%s;go;%s", Version, strings.TrimPrefix(runtime.Version(), "go"))
}

// Token returns the current API token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// RefreshTokenValue returns the current refresh token.
func (c *Client) RefreshTokenValue() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshToken
}

// HasCredentials reports whether basic-auth credentials are set.
func (c *Client) HasCredentials() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username != ""
}

// Reset clears tokens and basic-auth credentials.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.refreshToken = ""
	c.username = ""
	c.password = ""
}

// Authenticate logs in with basic-auth credentials and stores the returned
// tokens. The credentials are kept and sent with every later request.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Response, error) {
	c.mu.Lock()
	c.username, c.password = username, password
	c.mu.Unlock()

	resp, err := c.send(ctx, request{method: http.MethodPost, endpoint: LoginEndpoint})
	if err != nil {
		return nil, err
	}
	c.storeTokens(resp)
	return resp, nil
}

// AuthenticateWithRefreshToken stores token as the refresh token and
// exchanges it for a new API token.
func (c *Client) AuthenticateWithRefreshToken(ctx context.Context, token string) (*Response, error) {
	c.mu.Lock()
	c.refreshToken = token
	c.mu.Unlock()
	return c.RefreshToken(ctx)
}

// RefreshToken requests a new API token using the refresh token.
// The refresh request itself is never retried on 401.
func (c *Client) RefreshToken(ctx context.Context) (*Response, error) {
	header := http.Header{}
	if rt := c.RefreshTokenValue(); rt != "" {
		header.Set(TokenHeader, rt)
	}

	resp, err := c.send(ctx, request{method: http.MethodPost, endpoint: RefreshEndpoint, header: header})
	if err != nil {
		return nil, err
	}
	if c.storeTokens(resp) {
		c.logger.Debug("API token refresh was successful")
	}
	return resp, nil
}

func (c *Client) storeTokens(resp *Response) bool {
	body := resp.JSON()
	token, hasToken := body[tokenKey].(string)
	refresh, hasRefresh := body[refreshTokenKey].(string)

	c.mu.Lock()
	if hasToken {
		c.token = token
	}
	if hasRefresh {
		c.refreshToken = refresh
	}
	token, refresh = c.token, c.refreshToken
	c.mu.Unlock()

	if (hasToken || hasRefresh) && c.OnTokenRefresh != nil {
		c.OnTokenRefresh(token, refresh)
	}
	return hasToken
}

// JSONRequest sends params as a JSON body (as query parameters for GET)
// and retries according to the client's retry policy.
func (c *Client) JSONRequest(ctx context.Context, method, endpoint string, params map[string]any) (*Response, error) {
	req := request{method: method, endpoint: endpoint}
	if method == http.MethodGet {
		req.query = toQuery(params)
	} else {
		if params == nil {
			params = map[string]any{}
		}
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode parameters for %s: %w", endpoint, err)
		}
		req.body = func() (io.Reader, string, error) {
			return bytes.NewReader(data), "application/json", nil
		}
	}
	return c.execute(ctx, req)
}

// Get is JSONRequest with GET.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]any) (*Response, error) {
	return c.JSONRequest(ctx, http.MethodGet, endpoint, params)
}

// Post is JSONRequest with POST.
func (c *Client) Post(ctx context.Context, endpoint string, params map[string]any) (*Response, error) {
	return c.JSONRequest(ctx, http.MethodPost, endpoint, params)
}

// Download fetches endpoint and writes the body to destination, replacing
// an existing file and creating missing parent folders. A destination that
// is a directory is rejected. Failed responses leave destination untouched.
func (c *Client) Download(ctx context.Context, endpoint, destination string, params map[string]any) (*Response, error) {
	if info, err := os.Stat(destination); err == nil && info.IsDir() {
		return nil, fmt.Errorf("destination %s is a directory, not a file", destination)
	}
	return c.execute(ctx, request{
		method:   http.MethodGet,
		endpoint: endpoint,
		query:    toQuery(params),
		sink:     destination,
	})
}

// File is one part of a multipart upload.
type File struct {
	// Field is the form field name, usually "file".
	Field    string
	Name     string
	MimeType string

	// Open returns the content. It is called once per attempt.
	Open func() (io.ReadCloser, error)
}

// FileFromPath returns a File reading path.
func FileFromPath(field, path, mimeType string) File {
	return File{
		Field:    field,
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Open:     func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// FileFromBytes returns a File with in-memory content.
func FileFromBytes(field, name, mimeType string, data []byte) File {
	return File{
		Field:    field,
		Name:     name,
		MimeType: mimeType,
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Upload posts files and form fields as multipart/form-data.
func (c *Client) Upload(ctx context.Context, endpoint string, files []File, fields map[string]string) (*Response, error) {
	return c.execute(ctx, request{
		method:   http.MethodPost,
		endpoint: endpoint,
		body: func() (io.Reader, string, error) {
			return encodeMultipart(files, fields)
		},
	})
}

// Delete sends a DELETE request. Delete is not retried on failed
// responses.
func (c *Client) Delete(ctx context.Context, endpoint string) (*Response, error) {
	return c.send(ctx, request{method: http.MethodDelete, endpoint: endpoint})
}

// request describes one API call. body is a factory so every attempt gets
// a fresh reader.
type request struct {
	method   string
	endpoint string
	query    url.Values
	header   http.Header
	body     func() (io.Reader, string, error)
	sink     string
}

// execute sends req and repeats it while shouldRetry allows.
func (c *Client) execute(ctx context.Context, req request) (*Response, error) {
	for retry := 0; ; retry++ {
		resp, err := c.send(ctx, req)
		if err != nil {
			return nil, err
		}
		if !c.shouldRetry(ctx, retry, resp) {
			return resp, nil
		}
		c.logger.Debug("retrying request",
			zap.String("endpoint", req.endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Int("retry", retry+1))
	}
}

// shouldRetry decides whether a response is worth repeating. A 401 first
// refreshes the API token and only retries when that worked.
func (c *Client) shouldRetry(ctx context.Context, retryCount int, resp *Response) bool {
	if retryCount >= MaxRetryCount {
		return false
	}
	if resp.IsUnauthorized() {
		refresh, err := c.RefreshToken(ctx)
		return err == nil && !refresh.HasFailed()
	}
	return resp.StatusCode == http.StatusInternalServerError ||
		resp.StatusCode == http.StatusServiceUnavailable
}

// send performs req, retrying transport failures up to MaxRetryCount
// times.
func (c *Client) send(ctx context.Context, req request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxRetryCount; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := c.sendOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		c.logger.Debug("request failed",
			zap.String("method", req.method),
			zap.String("endpoint", req.endpoint),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, fmt.Errorf("%w: %s %s: %v", ErrRequestFailed, req.method, req.endpoint, lastErr)
}

func (c *Client) sendOnce(ctx context.Context, req request) (*Response, error) {
	u := c.baseURL + req.endpoint
	if len(req.query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + req.query.Encode()
	}

	var body io.Reader
	contentType := ""
	if req.body != nil {
		var err error
		body, contentType, err = req.body()
		if err != nil {
			return nil, err
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.applyHeaders(httpReq, req.header)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("sending request", zap.String("method", req.method), zap.String("endpoint", req.endpoint))

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	resp := &Response{StatusCode: httpResp.StatusCode, Endpoint: req.endpoint, Header: httpResp.Header}
	if req.sink != "" && !resp.HasFailed() {
		if err := writeFile(req.sink, httpResp.Body); err != nil {
			return nil, err
		}
		return resp, nil
	}

	resp.Body, err = io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s: %w", req.endpoint, err)
	}
	return resp, nil
}

func (c *Client) applyHeaders(r *http.Request, extra http.Header) {
	r.Header.Set("Accept", "*/*")
	r.Header.Set("Cache-Control", "no-cache")
	r.Header.Set("X-User-Agent", UserAgent())

	c.mu.RLock()
	token, user, pass := c.token, c.username, c.password
	c.mu.RUnlock()

	if token != "" {
		r.Header.Set(TokenHeader, token)
	}
	if user != "" {
		r.SetBasicAuth(user, pass)
	}
	for k, vs := range extra {
		r.Header.Del(k)
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
}

// writeFile streams r into path through a temporary sibling so a broken
// transfer never leaves a truncated file behind.
func writeFile(path string, r io.Reader) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("destination %s is a directory, not a file", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create download folder: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create download file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

func toQuery(params map[string]any) url.Values {
	if len(params) == 0 {
		return nil
	}
	q := url.Values{}
	for k, v := range params {
		switch val := v.(type) {
		case []int:
			for _, i := range val {
				q.Add(k, fmt.Sprint(i))
			}
		case []string:
			for _, s := range val {
				q.Add(k, s)
			}
		default:
			q.Set(k, fmt.Sprint(v))
		}
	}
	return q
}
