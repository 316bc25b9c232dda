// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Configuration constants for the relay client.
const (
	// DefaultBaseURL is the assistants endpoint of a locally running relay.
	DefaultBaseURL = "http://127.0.0.1:3000/api/assistants"

	// DefaultFilesPath is the file retrieval endpoint, relative to the relay origin.
	DefaultFilesPath = "/api/files"

	// DefaultTimeout is the timeout for non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum accepted size of a JSON response body.
	MaxResponseSize = 1 * 1024 * 1024

	// MaxFileSize is the maximum accepted size of a downloaded file.
	MaxFileSize = 64 * 1024 * 1024

	// maxErrorBodySize bounds how much of an error body is read.
	maxErrorBodySize = 16 * 1024

	userAgent = "citechat/0.1.0"
)

// Operation names used in errors and logs.
const (
	opCreateThread = "create thread"
	opSendMessage  = "send message"
	opSubmitAction = "submit tool outputs"
	opDownloadFile = "download file"
)

var (
	// sharedTransport pools connections for all relay requests.
	sharedTransport = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
)

// File is a document fetched from the files endpoint.
type File struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

// Client talks to the assistant relay.
type Client struct {
	baseURL      string
	filesURL     string
	apiKey       string
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	log          *zap.Logger
}

// NewClient creates a client for the relay's assistants endpoint, for
// example "http://127.0.0.1:3000/api/assistants". Files are fetched from
// DefaultFilesPath on the same origin unless WithFilesURL says otherwise.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
		// No timeout for streaming; controlled via context.
		streamClient: &http.Client{
			Transport: sharedTransport,
		},
		log: zap.NewNop(),
	}
	c.filesURL = c.resolve(DefaultFilesPath)
	return c
}

// WithAPIKey sets a bearer token sent with every request.
func (c *Client) WithAPIKey(key string) *Client {
	c.apiKey = strings.TrimSpace(key)
	return c
}

// WithFilesURL sets the file endpoint. Relative references are resolved
// against the base URL.
func (c *Client) WithFilesURL(ref string) *Client {
	if ref = strings.TrimSpace(ref); ref != "" {
		c.filesURL = c.resolve(ref)
	}
	return c
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client for all requests.
// Streaming requests made through it are still bounded only by context.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc == nil {
		return c
	}
	c.httpClient = hc
	stream := *hc
	stream.Timeout = 0
	c.streamClient = &stream
	return c
}

// WithRateLimit limits outgoing requests to rps per second. Zero disables
// limiting.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(logger *zap.Logger) *Client {
	if logger != nil {
		c.log = logger.Named("relay")
	}
	return c
}

// BaseURL returns the assistants endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsConfigured reports whether the client has a usable base URL.
func (c *Client) IsConfigured() bool {
	u, err := url.Parse(c.baseURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// KeyFingerprint returns a short SHA-256 fingerprint of the API key for
// logging. The key itself is never logged.
func (c *Client) KeyFingerprint() string {
	if c.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return hex.EncodeToString(h[:4])
}

// FileURL returns the absolute download URL for fileID.
func (c *Client) FileURL(fileID string) string {
	return c.filesURL + "/" + url.PathEscape(fileID)
}

// =============================================================================
// THREADS
// =============================================================================

// CreateThread creates a conversation thread and returns its id.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	resp, err := c.do(ctx, c.httpClient, opCreateThread, http.MethodPost, c.baseURL+"/threads", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrThreadCreate, err)
	}
	defer resp.Body.Close()

	var out struct {
		ThreadID string `json:"threadId"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrThreadCreate, err)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrThreadCreate, err)
	}
	if out.ThreadID == "" {
		return "", fmt.Errorf("%w: response has no thread id", ErrThreadCreate)
	}

	c.log.Info("thread created", zap.String("thread_id", out.ThreadID))
	return out.ThreadID, nil
}

// SendMessage posts user content to a thread and returns the run's event
// stream. The caller must Close the stream.
func (c *Client) SendMessage(ctx context.Context, threadID, content string) (*Stream, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(struct {
		Content string `json:"content"`
	}{Content: content})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmit, err)
	}

	stream, err := c.openStream(ctx, opSendMessage, c.threadURL(threadID, "messages"), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	return stream, nil
}

// SubmitToolOutputs posts tool results for a run that required action and
// returns the continued run's event stream. The caller must Close the stream.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Stream, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if outputs == nil {
		outputs = []ToolOutput{}
	}
	body, err := json.Marshal(struct {
		RunID           string       `json:"runId"`
		ToolCallOutputs []ToolOutput `json:"toolCallOutputs"`
	}{RunID: runID, ToolCallOutputs: outputs})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAction, err)
	}

	stream, err := c.openStream(ctx, opSubmitAction, c.threadURL(threadID, "actions"), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAction, err)
	}
	return stream, nil
}

// =============================================================================
// FILES
// =============================================================================

// DownloadFile fetches a file's bytes together with its name and content
// type as reported by the files endpoint.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (*File, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: empty file id", ErrDownload)
	}

	resp, err := c.do(ctx, c.httpClient, opDownloadFile, http.MethodGet, c.FileURL(fileID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrDownload, err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrDownload, MaxFileSize)
	}

	f := &File{
		ID:          fileID,
		Name:        "download",
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}
	if f.ContentType == "" {
		f.ContentType = "application/octet-stream"
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			f.Name = name
		}
	}

	c.log.Info("file downloaded",
		zap.String("file_id", fileID),
		zap.String("name", f.Name),
		zap.Int("bytes", len(data)))
	return f, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (c *Client) openStream(ctx context.Context, op, endpoint string, body []byte) (*Stream, error) {
	resp, err := c.do(ctx, c.streamClient, op, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	stream := NewStream(resp.Body, c.log)
	stream.requestID = resp.Request.Header.Get("X-Request-ID")
	return stream, nil
}

// do performs one request. Nothing is retried: a failure is reported to the
// user, who decides whether to try again. Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, hc *http.Client, op, method, endpoint string, body []byte) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	c.setHeaders(req, requestID, body != nil)

	log := c.log.With(
		zap.String("op", op),
		zap.String("request_id", requestID),
		zap.String("path", req.URL.Path),
	)
	log.Debug("relay request", zap.String("key", c.KeyFingerprint()))

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		log.Warn("relay request failed", zap.Error(err))
		return nil, err
	}
	log.Debug("relay response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := handleErrorResponse(op, resp)
		log.Warn("relay returned error", zap.Int("status", apiErr.Status), zap.String("message", apiErr.Message))
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request, requestID string, hasBody bool) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Method == http.MethodPost {
		req.Header.Set("Accept", "text/event-stream, application/x-ndjson, application/json")
		req.Header.Set("Cache-Control", "no-cache")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
}

func (c *Client) threadURL(threadID, action string) string {
	return c.baseURL + "/threads/" + url.PathEscape(threadID) + "/" + action
}

// resolve turns ref into an absolute URL relative to the base URL.
func (c *Client) resolve(ref string) string {
	ref = strings.TrimSuffix(ref, "/")
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return strings.TrimSuffix(base.ResolveReference(r).String(), "/")
}
