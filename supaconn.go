// Package supaconn connects an application to a Supabase-style backend:
// database reads through a REST query builder, object storage and
// authentication, with per-call TTL caching of read results.
package supaconn

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/supaconn/supaconn/auth"
	"github.com/supaconn/supaconn/env"
	"github.com/supaconn/supaconn/errors"
	"github.com/supaconn/supaconn/execache"
	"github.com/supaconn/supaconn/httpclient"
	"github.com/supaconn/supaconn/postgrest"
	"github.com/supaconn/supaconn/secrets"
	"github.com/supaconn/supaconn/storage"
)

// Environment variables consulted when neither an explicit option nor a
// secret store provides the connection parameters.
const (
	EnvURL = "SUPABASE_URL"
	EnvKey = "SUPABASE_KEY"
)

var (
	ErrMissingURL = errors.New("connection URL not provided: pass WithURL, set it in the secret store, or set the SUPABASE_URL environment variable")
	ErrMissingKey = errors.New("connection key not provided: pass WithKey, set it in the secret store, or set the SUPABASE_KEY environment variable")
)

// Cache TTL sentinels, re-exported so callers of Query and the cached storage
// reads don't need to import execache.
const (
	Bypass   = execache.Bypass
	NoExpiry = execache.NoExpiry
)

var defaultHTTPClient = sync.OnceValue(func() *http.Client {
	return httpclient.New("supabase", httpclient.Options{
		Namespace: "supaconn",
		Timeout:   30 * time.Second,
	})
})

// Connection is a configured client for one project. It owns one execution
// cache whose lifetime matches the connection's; Close releases it.
type Connection struct {
	rest  *postgrest.Client
	store *storage.Client
	authn *auth.Client

	cache     *execache.Cache
	ownsCache bool
}

// Connect resolves the connection parameters and builds the sub-clients.
// Resolution order for both URL and key: explicit option, then the secret
// store, then the environment. Missing values fail immediately.
func Connect(ctx context.Context, opts ...Option) (*Connection, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	url := resolve(cfg.url, EnvURL, cfg.secrets)
	if url == "" {
		return nil, ErrMissingURL
	}
	key := resolve(cfg.key, EnvKey, cfg.secrets)
	if key == "" {
		return nil, ErrMissingKey
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = defaultHTTPClient()
	}

	cache := cfg.cache
	ownsCache := false
	if cache == nil {
		cache = execache.New(execache.WithSweepInterval(cfg.sweepInterval))
		ownsCache = true
	}

	return &Connection{
		rest:      postgrest.NewClient(url, key, cfg.schema, hc),
		store:     storage.NewClient(url, key, hc),
		authn:     auth.NewClient(url, key, hc),
		cache:     cache,
		ownsCache: ownsCache,
	}, nil
}

func resolve(explicit, name string, store secrets.Store) string {
	if explicit != "" {
		return explicit
	}
	if store != nil {
		if v, ok := store.Get(name); ok && v != "" {
			return v
		}
	}
	return env.Get(name)
}

// Close tears down the connection-scoped cache. Connections built with
// WithCache leave the shared cache alone.
func (c *Connection) Close() {
	if c.ownsCache {
		c.cache.Close()
	}
}

// Auth exposes the authentication client.
func (c *Connection) Auth() *auth.Client { return c.authn }

// From starts a read query on table, to be run through Query.
func (c *Connection) From(table string, columns ...string) *postgrest.SelectBuilder {
	return postgrest.Select(table, columns...)
}

// Query executes a built query through the execution cache. The key combines
// the query's deterministic representation with the ttl, so the same query
// asked with different freshness requirements is cached independently. A ttl
// of Bypass always hits the backend; NoExpiry caches for the process
// lifetime.
func (c *Connection) Query(ctx context.Context, q *postgrest.SelectBuilder, ttl time.Duration) (postgrest.Result, error) {
	key := execache.Key("query", q.String(), int64(ttl))
	return execache.GetOrCompute(ctx, c.cache, key, ttl, func(ctx context.Context) (postgrest.Result, error) {
		return c.rest.Execute(ctx, q)
	})
}

// Cached storage reads. Each forwards to the storage client through the
// execution cache under a key derived from all arguments that affect the
// result.

func (c *Connection) GetBucket(ctx context.Context, id string, ttl time.Duration) (storage.Bucket, error) {
	key := execache.Key("get_bucket", id, int64(ttl))
	return execache.GetOrCompute(ctx, c.cache, key, ttl, func(ctx context.Context) (storage.Bucket, error) {
		return c.store.GetBucket(ctx, id)
	})
}

func (c *Connection) ListBuckets(ctx context.Context, ttl time.Duration) ([]storage.Bucket, error) {
	key := execache.Key("list_buckets", int64(ttl))
	return execache.GetOrCompute(ctx, c.cache, key, ttl, func(ctx context.Context) ([]storage.Bucket, error) {
		return c.store.ListBuckets(ctx)
	})
}

func (c *Connection) Download(ctx context.Context, bucket, path string, ttl time.Duration) (storage.File, error) {
	key := execache.Key("download", bucket, path, int64(ttl))
	return execache.GetOrCompute(ctx, c.cache, key, ttl, func(ctx context.Context) (storage.File, error) {
		return c.store.Download(ctx, bucket, path)
	})
}

func (c *Connection) ListObjects(ctx context.Context, bucket string, opts storage.ListOptions, ttl time.Duration) ([]storage.Object, error) {
	key := execache.Key("list_objects", bucket, execache.Args{
		"path":   opts.Path,
		"limit":  opts.Limit,
		"offset": opts.Offset,
		"sort":   opts.SortColumn,
		"order":  opts.SortOrder,
	}, int64(ttl))
	return execache.GetOrCompute(ctx, c.cache, key, ttl, func(ctx context.Context) ([]storage.Object, error) {
		return c.store.ListObjects(ctx, bucket, opts)
	})
}

// GetPublicURL builds the public URL of an object. Purely local, never cached.
func (c *Connection) GetPublicURL(bucket, path string) string {
	return c.store.GetPublicURL(bucket, path)
}

// Plain forwards to the storage client.

func (c *Connection) CreateBucket(ctx context.Context, id, name string, opts storage.BucketOptions) error {
	return c.store.CreateBucket(ctx, id, name, opts)
}

func (c *Connection) UpdateBucket(ctx context.Context, id string, opts storage.BucketOptions) error {
	return c.store.UpdateBucket(ctx, id, opts)
}

func (c *Connection) DeleteBucket(ctx context.Context, id string) error {
	return c.store.DeleteBucket(ctx, id)
}

func (c *Connection) EmptyBucket(ctx context.Context, id string) error {
	return c.store.EmptyBucket(ctx, id)
}

func (c *Connection) Upload(ctx context.Context, bucket, dest string, r io.Reader, opts storage.UploadOptions) error {
	return c.store.Upload(ctx, bucket, dest, r, opts)
}

func (c *Connection) Move(ctx context.Context, bucket, from, to string) error {
	return c.store.Move(ctx, bucket, from, to)
}

func (c *Connection) Remove(ctx context.Context, bucket string, paths []string) error {
	return c.store.Remove(ctx, bucket, paths)
}

func (c *Connection) CreateSignedURLs(ctx context.Context, bucket string, paths []string, expiresIn time.Duration) ([]storage.SignedURL, error) {
	return c.store.CreateSignedURLs(ctx, bucket, paths, expiresIn)
}

func (c *Connection) CreateSignedUploadURL(ctx context.Context, bucket, path string) (storage.SignedUploadURL, error) {
	return c.store.CreateSignedUploadURL(ctx, bucket, path)
}

func (c *Connection) UploadToSignedURL(ctx context.Context, bucket, path, token string, r io.Reader, opts storage.UploadOptions) error {
	return c.store.UploadToSignedURL(ctx, bucket, path, token, r, opts)
}
