// Package authtest signs access tokens shaped like the ones the auth service
// issues, for handler tests.
package authtest

import (
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueToken signs an HS384 token for email with the base64 secret. A
// negative ttl yields an already expired token.
func IssueToken(secret, email string, ttl time.Duration, roles ...string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", err
	}
	now := time.Now()
	c := jwt.MapClaims{
		"sub": email,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(ttl)),
	}
	if len(roles) > 0 {
		c["roles"] = roles
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS384, c).SignedString(key)
}
