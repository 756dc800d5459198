package postgrest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"

	"github.com/supaconn/supaconn/errors"
)

// APIError is a failure reported by the backend, surfaced to the caller
// unchanged. This layer never retries.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// Result holds the rows of an executed query and, when a CountMethod was set,
// the total row count reported by the server (-1 otherwise).
type Result struct {
	Rows  []map[string]any
	Count int64
}

// Decode maps the rows onto dest, which must be a pointer to a slice of
// structs. Struct fields are matched by their json tags.
func (r Result) Decode(dest any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           dest,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "error in building row decoder")
	}
	return errors.Wrap(dec.Decode(r.Rows), "error in decoding rows")
}

type Client struct {
	baseURL string
	key     string
	schema  string
	http    *http.Client
}

// NewClient targets the /rest/v1 surface under baseURL. An empty schema uses
// the server default.
func NewClient(baseURL, key, schema string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/rest/v1",
		key:     key,
		schema:  schema,
		http:    hc,
	}
}

// Execute runs the built query and returns its rows. Backend errors come back
// as *APIError.
func (c *Client) Execute(ctx context.Context, b *SelectBuilder) (Result, error) {
	u := c.baseURL + "/" + b.table + "?" + b.encodedParams()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, errors.Wrap(err, "error in building query request")
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if c.schema != "" {
		req.Header.Set("Accept-Profile", c.schema)
	}
	if b.count != CountNone {
		req.Header.Set("Prefer", "count="+string(b.count))
	}

	slog.Debug("executing query", "query", b.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, errors.Wrap(err, "error in executing query on '%s'", b.table)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, errors.Wrap(err, "error in reading query response")
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = jsoniter.Unmarshal(body, apiErr)
		return Result{}, apiErr
	}

	result := Result{Count: -1}
	if err := jsoniter.Unmarshal(body, &result.Rows); err != nil {
		return Result{}, errors.Wrap(err, "error in decoding query response")
	}

	if b.count != CountNone {
		result.Count = parseContentRangeTotal(resp.Header.Get("Content-Range"))
	}

	return result, nil
}

// parseContentRangeTotal extracts the total from a "from-to/total" header.
// Returns -1 when the server did not report one.
func parseContentRangeTotal(h string) int64 {
	_, total, found := strings.Cut(h, "/")
	if !found || total == "*" {
		return -1
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
