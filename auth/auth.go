// Package auth forwards authentication operations to the platform's auth
// (GoTrue-style) REST API and tracks the session of the signed-in user.
package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/supaconn/supaconn/errors"
)

// APIError is a failure reported by the auth backend.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"msg"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Description
	}
	if msg == "" {
		return fmt.Sprintf("auth backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("auth backend returned status %d: %s", e.StatusCode, msg)
}

type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Role      string         `json:"role"`
	Metadata  map[string]any `json:"user_metadata"`
	CreatedAt string         `json:"created_at"`
}

// Session is the token pair returned by sign-up and sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Credentials identify a user by email or phone plus password.
type Credentials struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

type Client struct {
	baseURL string
	key     string
	http    *http.Client

	mu      sync.Mutex
	session *Session
}

// NewClient targets the /auth/v1 surface under baseURL.
func NewClient(baseURL, key string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/auth/v1",
		key:     key,
		http:    hc,
	}
}

func (c *Client) post(ctx context.Context, path string, body any, bearer string, out any) error {
	return c.do(ctx, http.MethodPost, path, body, bearer, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, bearer string, out any) error {
	var reader io.Reader
	if body != nil {
		bs, err := jsoniter.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "error in encoding auth request")
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "error in building auth request")
	}
	req.Header.Set("apikey", c.key)
	if bearer == "" {
		bearer = c.key
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "error in calling auth backend")
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "error in reading auth response")
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = jsoniter.Unmarshal(bs, apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(jsoniter.Unmarshal(bs, out), "error in decoding auth response")
}

// SignUp registers a new user. Depending on the project's confirmation
// settings the returned session may lack tokens until the user confirms.
func (c *Client) SignUp(ctx context.Context, creds Credentials) (Session, error) {
	var s Session
	if err := c.post(ctx, "/signup", creds, "", &s); err != nil {
		return Session{}, err
	}
	c.setSession(&s)
	return s, nil
}

// SignInWithPassword exchanges credentials for a session and keeps it as the
// client's current session.
func (c *Client) SignInWithPassword(ctx context.Context, creds Credentials) (Session, error) {
	var s Session
	if err := c.post(ctx, "/token?grant_type=password", creds, "", &s); err != nil {
		return Session{}, err
	}
	c.setSession(&s)
	return s, nil
}

// RefreshSession exchanges a refresh token for a fresh session. An empty
// token uses the current session's refresh token.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		current := c.Session()
		if current == nil {
			return Session{}, errors.New("no session to refresh")
		}
		refreshToken = current.RefreshToken
	}

	var s Session
	err := c.post(ctx, "/token?grant_type=refresh_token", map[string]string{"refresh_token": refreshToken}, "", &s)
	if err != nil {
		return Session{}, err
	}
	c.setSession(&s)
	return s, nil
}

// SignOut revokes the current session's tokens and forgets the session.
func (c *Client) SignOut(ctx context.Context) error {
	current := c.Session()
	if current == nil {
		return nil
	}
	if err := c.post(ctx, "/logout", struct{}{}, current.AccessToken, nil); err != nil {
		return err
	}
	c.setSession(nil)
	return nil
}

// CurrentUser fetches the user the current session belongs to.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	current := c.Session()
	if current == nil {
		return User{}, errors.New("no active session")
	}
	var u User
	err := c.do(ctx, http.MethodGet, "/user", nil, current.AccessToken, &u)
	return u, err
}

// Session returns a copy of the current session, nil when signed out.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}
