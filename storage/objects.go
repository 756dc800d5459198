package storage

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/supaconn/supaconn/errors"
)

// Object is the backend's object metadata record.
type Object struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	UpdatedAt      string         `json:"updated_at"`
	CreatedAt      string         `json:"created_at"`
	LastAccessedAt string         `json:"last_accessed_at"`
	Metadata       map[string]any `json:"metadata"`
}

// File is a downloaded object flattened into name, MIME type and content.
type File struct {
	Name string
	MIME string
	Data []byte
}

// UploadOptions configure Upload and UploadToSignedURL. An empty ContentType
// is guessed from the destination path's extension.
type UploadOptions struct {
	ContentType string
	Upsert      bool
}

func guessContentType(name, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Upload stores the content of r under dest in bucket. Intermediate folders
// are created by the backend as needed.
func (c *Client) Upload(ctx context.Context, bucket, dest string, r io.Reader, opts UploadOptions) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/object/"+bucket+"/"+dest, r)
	if err != nil {
		return errors.Wrap(err, "error in building upload request")
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", guessContentType(dest, opts.ContentType))
	req.Header.Set("x-upsert", strconv.FormatBool(opts.Upsert))

	return c.doDiscard(req)
}

// Download fetches an object and returns it flattened into a File. The name
// is the last segment of src; the MIME type is guessed from the name, falling
// back to the response's Content-Type.
func (c *Client) Download(ctx context.Context, bucket, src string) (File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/object/"+bucket+"/"+src, nil)
	if err != nil {
		return File{}, errors.Wrap(err, "error in building download request")
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return File{}, errors.Wrap(err, "error in downloading '%s'", src)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return File{}, errors.Wrap(err, "error in reading download body")
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = jsoniter.Unmarshal(data, apiErr)
		return File{}, apiErr
	}

	name := path.Base(src)
	mimeType := mime.TypeByExtension(path.Ext(name))
	if mimeType == "" {
		mimeType = resp.Header.Get("Content-Type")
	}

	return File{Name: name, MIME: mimeType, Data: data}, nil
}

// Move renames an object, creating the destination path when needed.
func (c *Client) Move(ctx context.Context, bucket, from, to string) error {
	return c.request(ctx, http.MethodPost, "/object/move", map[string]any{
		"bucketId":       bucket,
		"sourceKey":      from,
		"destinationKey": to,
	}, nil)
}

// Remove deletes the given objects from bucket.
func (c *Client) Remove(ctx context.Context, bucket string, paths []string) error {
	return c.request(ctx, http.MethodDelete, "/object/"+bucket, map[string]any{
		"prefixes": paths,
	}, nil)
}

// ListOptions page and sort an object listing. The zero value lists the first
// 100 objects of the bucket root sorted by name ascending.
type ListOptions struct {
	Path       string
	Limit      int
	Offset     int
	SortColumn string
	SortOrder  string
}

func (o ListOptions) withDefaults() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.SortColumn == "" {
		o.SortColumn = "name"
	}
	if o.SortOrder == "" {
		o.SortOrder = "asc"
	}
	return o
}

func (c *Client) ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]Object, error) {
	opts = opts.withDefaults()

	var objects []Object
	err := c.request(ctx, http.MethodPost, "/object/list/"+bucket, map[string]any{
		"prefix": opts.Path,
		"limit":  opts.Limit,
		"offset": opts.Offset,
		"sortBy": map[string]string{
			"column": opts.SortColumn,
			"order":  opts.SortOrder,
		},
	}, &objects)
	return objects, err
}

// SignedURL is one entry of a CreateSignedURLs response. SignedURL is
// absolute; Error is set per path when the backend rejected it.
type SignedURL struct {
	Error     string `json:"error"`
	Path      string `json:"path"`
	SignedURL string `json:"signedURL"`
}

// CreateSignedURLs issues time-limited download URLs for the given paths.
func (c *Client) CreateSignedURLs(ctx context.Context, bucket string, paths []string, expiresIn time.Duration) ([]SignedURL, error) {
	var urls []SignedURL
	err := c.request(ctx, http.MethodPost, "/object/sign/"+bucket, map[string]any{
		"paths":     paths,
		"expiresIn": int(expiresIn.Seconds()),
	}, &urls)
	if err != nil {
		return nil, err
	}

	// The backend returns URLs relative to the storage root.
	for i := range urls {
		if urls[i].SignedURL != "" {
			urls[i].SignedURL = c.baseURL + "/" + strings.TrimPrefix(urls[i].SignedURL, "/")
		}
	}
	return urls, nil
}

// GetPublicURL builds the public URL of an object in a public bucket. No
// remote call is made; the URL works only while the bucket is public.
func (c *Client) GetPublicURL(bucket, objectPath string) string {
	return c.baseURL + "/object/public/" + bucket + "/" + objectPath
}

// SignedUploadURL carries the pieces needed to upload without the service
// key: the full upload URL, the token extracted from it and the object path.
type SignedUploadURL struct {
	URL   string
	Token string
	Path  string
}

// CreateSignedUploadURL issues a one-time upload URL for path.
func (c *Client) CreateSignedUploadURL(ctx context.Context, bucket, objectPath string) (SignedUploadURL, error) {
	var resp struct {
		URL string `json:"url"`
	}
	err := c.request(ctx, http.MethodPost, "/object/upload/sign/"+bucket+"/"+objectPath, struct{}{}, &resp)
	if err != nil {
		return SignedUploadURL{}, err
	}

	full, err := url.Parse(c.baseURL + "/" + strings.TrimPrefix(resp.URL, "/"))
	if err != nil {
		return SignedUploadURL{}, errors.Wrap(err, "error in parsing signed upload url")
	}
	token := full.Query().Get("token")
	if token == "" {
		return SignedUploadURL{}, errors.New("no token sent by the API")
	}

	return SignedUploadURL{URL: full.String(), Token: token, Path: objectPath}, nil
}

// UploadToSignedURL uploads the content of r using a token from
// CreateSignedUploadURL instead of the service key.
func (c *Client) UploadToSignedURL(ctx context.Context, bucket, objectPath, token string, r io.Reader, opts UploadOptions) error {
	u := c.baseURL + "/object/upload/sign/" + bucket + "/" + objectPath + "?" + url.Values{"token": {token}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, r)
	if err != nil {
		return errors.Wrap(err, "error in building signed upload request")
	}
	req.Header.Set("Content-Type", guessContentType(objectPath, opts.ContentType))
	req.Header.Set("x-upsert", strconv.FormatBool(opts.Upsert))

	return c.doDiscard(req)
}

// doDiscard runs a request whose successful response body the caller does not
// need, still surfacing backend errors as *APIError.
func (c *Client) doDiscard(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "error in calling storage backend")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "error in reading storage response")
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = jsoniter.Unmarshal(body, apiErr)
		return apiErr
	}
	return nil
}
