// internal/api/client.go
// HTTP client for the Kiekky backend.
// Injects the bearer token, maps failures to apperror kinds and clears the stored
// session on 401.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/common/utils"
	"github.com/imadgeboyega/kiekky-client/internal/securestore"
)

// DefaultTimeout applies when Options.Timeout is zero
const DefaultTimeout = 10 * time.Second

// Endpoints reachable without a bearer token
var publicEndpoints = map[string]bool{
	"/clerk/login":      true,
	"/clerk/createUser": true,
}

// Options configures a Client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client

	// OnUnauthorized runs after a 401 has cleared the stored session
	OnUnauthorized func()
}

// Client talks to the backend REST API
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         securestore.Store
	onUnauthorized func()
	logger         *zap.Logger
}

// New creates an API client. tokens supplies the bearer token on every request.
func New(opts Options, tokens securestore.Store, log *zap.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		http:           httpClient,
		tokens:         tokens,
		onUnauthorized: opts.OnUnauthorized,
		logger:         logger.OrNop(log),
	}
}

// SetOnUnauthorized replaces the 401 hook
func (c *Client) SetOnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// BaseURL returns the API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get sends a GET request
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*utils.Envelope, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, "")
}

// Post sends a JSON POST request
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*utils.Envelope, error) {
	return c.doJSON(ctx, http.MethodPost, path, body)
}

// Patch sends a JSON PATCH request
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*utils.Envelope, error) {
	return c.doJSON(ctx, http.MethodPatch, path, body)
}

// Delete sends a DELETE request. body may be nil.
func (c *Client) Delete(ctx context.Context, path string, body interface{}) (*utils.Envelope, error) {
	return c.doJSON(ctx, http.MethodDelete, path, body)
}

// PostMultipart sends a multipart/form-data POST request
func (c *Client) PostMultipart(ctx context.Context, path string, form *MultipartForm) (*utils.Envelope, error) {
	body, contentType, err := form.Encode()
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, "invalid form", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, body, contentType)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}) (*utils.Envelope, error) {
	if body == nil {
		return c.do(ctx, method, path, nil, nil, "")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, method, path, nil, data, "application/json")
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) (*utils.Envelope, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if !publicEndpoints[path] {
		token, ok, err := securestore.Lookup(ctx, c.tokens, securestore.KeyAuthToken)
		if err != nil {
			c.logger.Warn("Failed to read auth token", zap.Error(err))
		}
		if ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observeRequest(method, "error", start)
		c.logger.Debug("Request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, apperror.Wrap(apperror.KindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	observeRequest(method, strconv.Itoa(resp.StatusCode), start)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindNetwork, "failed to read response", err)
	}

	env, decodeErr := utils.DecodeEnvelope(data)
	if decodeErr != nil {
		env = nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized(ctx)
		return nil, &apperror.Error{
			Kind:    apperror.KindUnauthorized,
			Message: messageOr(env, "unauthorized"),
			Status:  resp.StatusCode,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("Backend rejected request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", requestID),
		)
		return nil, &apperror.Error{
			Kind:    kindForStatus(resp.StatusCode),
			Message: messageOr(env, http.StatusText(resp.StatusCode)),
			Status:  resp.StatusCode,
		}
	}

	if decodeErr != nil {
		return nil, apperror.Wrap(apperror.KindServer, "malformed response", decodeErr)
	}
	return env, nil
}

func (c *Client) handleUnauthorized(ctx context.Context) {
	// Clearing must happen even if the caller's context is already done
	clearCtx := context.WithoutCancel(ctx)
	if err := securestore.ClearSession(clearCtx, c.tokens); err != nil {
		c.logger.Error("Failed to clear session after 401", zap.Error(err))
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

func kindForStatus(status int) apperror.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperror.KindValidation
	case http.StatusForbidden:
		return apperror.KindForbidden
	case http.StatusNotFound:
		return apperror.KindNotFound
	case http.StatusConflict:
		return apperror.KindConflict
	default:
		return apperror.KindServer
	}
}

func messageOr(env *utils.Envelope, fallback string) string {
	if env != nil {
		if msg := env.ErrorMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
