// Package storage forwards bucket and object operations to the platform's
// storage REST API. Calls map one-to-one onto remote operations; a few
// responses are flattened into simpler records for the caller.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/supaconn/supaconn/errors"
)

// APIError is a failure reported by the storage backend.
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storage backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("storage backend returned status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// NewClient targets the /storage/v1 surface under baseURL.
func NewClient(baseURL, key string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/storage/v1",
		key:     key,
		http:    hc,
	}
}

// request performs a JSON round trip and decodes the response into out when
// out is non-nil. Backend errors come back as *APIError, unchanged.
func (c *Client) request(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		bs, err := jsoniter.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "error in encoding request body")
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "error in building storage request")
	}
	c.setAuth(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "error in calling storage backend")
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "error in reading storage response")
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = jsoniter.Unmarshal(bs, apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(jsoniter.Unmarshal(bs, out), "error in decoding storage response")
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
}

// Bucket is the backend's bucket record.
type Bucket struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Public           bool     `json:"public"`
	FileSizeLimit    int64    `json:"file_size_limit"`
	AllowedMimeTypes []string `json:"allowed_mime_types"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

// BucketOptions configure bucket creation and updates. A zero FileSizeLimit
// means no limit; nil AllowedMimeTypes allows every type.
type BucketOptions struct {
	Public           bool
	FileSizeLimit    int64
	AllowedMimeTypes []string
}

func bucketPayload(id, name string, opts BucketOptions) map[string]any {
	if name == "" {
		name = id
	}
	payload := map[string]any{
		"id":     id,
		"name":   name,
		"public": opts.Public,
	}
	if opts.FileSizeLimit > 0 {
		payload["file_size_limit"] = opts.FileSizeLimit
	}
	if opts.AllowedMimeTypes != nil {
		payload["allowed_mime_types"] = opts.AllowedMimeTypes
	}
	return payload
}

// CreateBucket creates a bucket named id (the id doubles as the name unless
// name is given).
func (c *Client) CreateBucket(ctx context.Context, id, name string, opts BucketOptions) error {
	return c.request(ctx, http.MethodPost, "/bucket", bucketPayload(id, name, opts), nil)
}

func (c *Client) GetBucket(ctx context.Context, id string) (Bucket, error) {
	var b Bucket
	err := c.request(ctx, http.MethodGet, "/bucket/"+id, nil, &b)
	return b, err
}

func (c *Client) ListBuckets(ctx context.Context) ([]Bucket, error) {
	var bs []Bucket
	err := c.request(ctx, http.MethodGet, "/bucket", nil, &bs)
	return bs, err
}

func (c *Client) UpdateBucket(ctx context.Context, id string, opts BucketOptions) error {
	return c.request(ctx, http.MethodPut, "/bucket/"+id, bucketPayload(id, id, opts), nil)
}

func (c *Client) DeleteBucket(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodDelete, "/bucket/"+id, nil, nil)
}

// EmptyBucket removes every object in the bucket but keeps the bucket.
func (c *Client) EmptyBucket(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodPost, "/bucket/"+id+"/empty", struct{}{}, nil)
}
