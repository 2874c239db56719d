package mirror

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

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"go.uber.org/zap"
)

const (
	defaultClientTimeout = 10 * time.Second
	recordsPath          = "/v1/records"
	maxErrorBodyBytes    = 4096
)

var (
	// ErrUnauthorized indicates the mirror rejected the bearer token.
	ErrUnauthorized = errors.New("mirror: unauthorized")
	// ErrRemoteStatus indicates an unexpected HTTP status from the mirror.
	ErrRemoteStatus = errors.New("mirror: unexpected response status")
	// ErrInvalidClientConfig wraps every client constructor validation failure.
	ErrInvalidClientConfig = errors.New("mirror: invalid client config")
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Client talks to a mirror service on behalf of a single account.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient validates cfg and constructs a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	rawURL := strings.TrimSpace(cfg.BaseURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidClientConfig)
	}
	baseURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientConfig, err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidClientConfig, baseURL.Scheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultClientTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// List returns every record the mirror holds for the account.
func (c *Client) List(ctx context.Context) ([]activities.Record, error) {
	var response listResponsePayload
	if err := c.do(ctx, http.MethodGet, recordsPath, nil, &response); err != nil {
		return nil, err
	}
	records := make([]activities.Record, 0, len(response.Records))
	for _, payload := range response.Records {
		records = append(records, payload.record())
	}
	return records, nil
}

// Put creates or replaces a record on the mirror.
func (c *Client) Put(ctx context.Context, record activities.Record) error {
	if strings.TrimSpace(record.ID) == "" {
		return errors.New("mirror: record id is required")
	}
	body, err := json.Marshal(newRecordPayload(record))
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, recordsPath+"/"+url.PathEscape(record.ID), body, nil)
}

// Delete removes a record from the mirror. Missing records are not an error.
func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, recordsPath+"/"+url.PathEscape(id), nil, nil)
	if isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// DeleteAll removes every record the mirror holds for the account.
func (c *Client) DeleteAll(ctx context.Context) error {
	var response purgeResponsePayload
	if err := c.do(ctx, http.MethodDelete, recordsPath, nil, &response); err != nil {
		return err
	}
	c.logger.Debug("mirror purged", zap.Int64("removed", response.Removed))
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// StatusError carries the HTTP status of a failed mirror call.
type StatusError struct {
	StatusCode int
	Code       string
	sentinel   error
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%v: %d %s", e.sentinel, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%v: %d", e.sentinel, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.sentinel
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	endpoint := c.baseURL.JoinPath(path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &StatusError{StatusCode: resp.StatusCode, sentinel: ErrRemoteStatus}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			statusErr.sentinel = ErrUnauthorized
		}
		var failure errorResponsePayload
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodyBytes)).Decode(&failure); decodeErr == nil {
			statusErr.Code = failure.Error
		}
		c.logger.Debug("mirror request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mirror: decode response: %w", err)
	}
	return nil
}

func isStatus(err error, status int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == status
}
