package supaconn

import (
	"net/http"
	"time"

	"github.com/supaconn/supaconn/execache"
	"github.com/supaconn/supaconn/secrets"
)

type config struct {
	url    string
	key    string
	schema string

	secrets       secrets.Store
	httpClient    *http.Client
	cache         *execache.Cache
	sweepInterval time.Duration
}

type Option func(*config)

// WithURL sets the project URL explicitly, taking precedence over the secret
// store and the environment.
func WithURL(url string) Option {
	return func(c *config) { c.url = url }
}

// WithKey sets the API key explicitly, taking precedence over the secret
// store and the environment.
func WithKey(key string) Option {
	return func(c *config) { c.key = key }
}

// WithSecrets supplies a named secret store, consulted after explicit options
// and before the environment.
func WithSecrets(s secrets.Store) Option {
	return func(c *config) { c.secrets = s }
}

// WithSchema selects the database schema queries run against.
func WithSchema(schema string) Option {
	return func(c *config) { c.schema = schema }
}

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithCache shares an existing execution cache between connections. The
// connection will not close a shared cache.
func WithCache(cache *execache.Cache) Option {
	return func(c *config) { c.cache = cache }
}

// WithSweepInterval enables the background sweep on the connection-owned
// cache. Ignored when WithCache is used.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) { c.sweepInterval = d }
}
