// Package secrets provides named secret sources for connection parameters.
// The connection resolves its URL and key from explicit options first, then a
// Store, then the process environment.
package secrets

// Store looks up a named secret.
type Store interface {
	Get(key string) (string, bool)
}

// Static is an in-memory Store, handy for tests and for frameworks that hand
// secrets over as a map.
type Static map[string]string

func (s Static) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}
