package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims is what whoami can tell about a Supabase key without verifying it.
type Claims struct {
	Issuer    string
	Role      string
	Ref       string
	IssuedAt  *time.Time
	ExpiresAt *time.Time
	Raw       jwt.MapClaims
}

// ErrOpaque means the secret is not a JWT.
var ErrOpaque = errors.New("opaque token")

// ParseClaims decodes a JWT payload. The signature is not checked; only the
// server holding the project secret can do that.
func ParseClaims(token string) (*Claims, error) {
	if strings.Count(token, ".") != 2 {
		return nil, ErrOpaque
	}
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpaque, err)
	}
	c := &Claims{Raw: mc}
	c.Issuer, _ = mc["iss"].(string)
	c.Role, _ = mc["role"].(string)
	c.Ref, _ = mc["ref"].(string)
	c.IssuedAt = unixClaim(mc["iat"])
	c.ExpiresAt = unixClaim(mc["exp"])
	return c, nil
}

// Expired reports whether the token carries an exp in the past.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

func unixClaim(v any) *time.Time {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	t := time.Unix(int64(f), 0).UTC()
	return &t
}
