package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/josepablo-design/marketplace/configs"
	"github.com/josepablo-design/marketplace/internal/logging"
	"github.com/josepablo-design/marketplace/internal/security"
)


// Authz guards operator endpoints with HS256 bearer tokens issued by /api/token.
type Authz struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthz(cfg configs.Config) *Authz {
	return &Authz{
		secret: []byte(cfg.Security.JWTSecret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Security.Issuer),
			jwt.WithAudience(cfg.Security.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second), // clock skew
		),
	}
}

// Require rejects requests without a valid token carrying every perm.
func (a *Authz) Require(perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			deny(c, http.StatusUnauthorized, "invalid_request", "missing bearer token")
			return
		}

		var claims security.OperatorClaims
		if _, err := a.parser.ParseWithClaims(raw, &claims, a.key); err != nil {
			logging.From(c).Info("token rejected", "err", err)
			deny(c, http.StatusUnauthorized, "invalid_token", "invalid jwt")
			return
		}

		l := logging.From(c).With("client_id", claims.ClientID)
		logging.With(c, l)
		if !claims.Has(perms...) {
			l.Warn("permission denied", "required", perms)
			deny(c, http.StatusForbidden, "insufficient_scope", "missing required permissions")
			return
		}

		c.Next()
	}
}

func (a *Authz) key(*jwt.Token) (any, error) { return a.secret, nil }

func deny(c *gin.Context, status int, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(status, gin.H{"error": code, "error_description": desc})
}
