// Package publish uploads converted documents to an HTTP object store that
// accepts PUT and DELETE on {base}/{key}.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrInvalidKey = errors.New("invalid publish key")

// Client talks to the publish target.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Object is one document to upload.
type Object struct {
	Key         string
	ContentType string
	Body        []byte
	ContentHash string // sent as X-Content-Sha256 when set
	Source      string // sent as X-Docshift-Source when set
}

// Put uploads obj. Server errors, 429 and transport failures are returned as
// *RetryableError.
func (c *Client) Put(ctx context.Context, obj Object) error {
	u, err := c.objectURL(obj.Key)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(obj.Body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if obj.ContentType != "" {
		req.Header.Set("Content-Type", obj.ContentType)
	}
	if obj.ContentHash != "" {
		req.Header.Set("X-Content-Sha256", obj.ContentHash)
	}
	if obj.Source != "" {
		req.Header.Set("X-Docshift-Source", obj.Source)
	}
	return c.do(req, "put "+obj.Key, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

// Delete removes the object at key. A missing object is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	u, err := c.objectURL(key)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, "delete "+key, http.StatusOK, http.StatusNoContent, http.StatusNotFound)
}

func (c *Client) do(req *http.Request, op string, ok ...int) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return &RetryableError{Message: fmt.Sprintf("%s: %v", op, err)}
	}
	defer resp.Body.Close()
	for _, code := range ok {
		if resp.StatusCode == code {
			return nil
		}
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(respBody))
}

// objectURL escapes each key segment and rejects keys that could leave the
// base path.
func (c *Client) objectURL(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	parts := strings.Split(key, "/")
	for i, p := range parts {
		if p == "" || p == "." || p == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		parts[i] = url.PathEscape(p)
	}
	return c.baseURL + "/" + strings.Join(parts, "/"), nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
