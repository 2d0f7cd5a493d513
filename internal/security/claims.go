package security

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorClaims is the body of operator access tokens.
type OperatorClaims struct {
	ClientID string   `json:"clientID"`
	Perms    []string `json:"perms"`
	jwt.RegisteredClaims
}

// Has reports whether every perm in want was granted.
func (c *OperatorClaims) Has(want ...string) bool {
	for _, p := range want {
		if !slices.Contains(c.Perms, p) {
			return false
		}
	}
	return true
}

// NewOperatorClaims stamps iss/aud/iat/nbf/exp for cl.
func NewOperatorClaims(cl Client, issuer, audience string, now time.Time, ttl time.Duration) OperatorClaims {
	return OperatorClaims{
		ClientID: cl.ID,
		Perms:    cl.Perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   cl.ID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}
