package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/supaconn/supaconn/errors"
)

// Claims are the access-token claims issued by the auth backend.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// ParseClaims decodes an access token without verifying its signature, for
// local inspection of expiry, role and subject. Do not use it to authorize.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, errors.Wrap(err, "error in parsing access token")
	}
	return claims, nil
}

// VerifyToken parses an access token and verifies it against the project's
// JWT secret.
func VerifyToken(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return nil, errors.Wrap(err, "error in verifying access token")
	}
	if !tok.Valid {
		return nil, errors.New("invalid access token")
	}
	return claims, nil
}
