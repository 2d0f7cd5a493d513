package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/josepablo-design/marketplace/configs"
	"github.com/josepablo-design/marketplace/internal/security"
)

type TokenHandler struct {
	cfg     configs.Config
	clients *security.ClientRegistry
	now     func() time.Time
}

func NewTokenHandler(cfg configs.Config, clients *security.ClientRegistry) *TokenHandler {
	return &TokenHandler{cfg: cfg, clients: clients, now: time.Now}
}

type tokenReq struct {
	ClientID     string `form:"client_id" json:"client_id"`
	ClientSecret string `form:"client_secret" json:"client_secret"`
}

// POST /api/token (form or JSON)
// Accepts: client_id, client_secret
func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req tokenReq
	_ = c.ShouldBind(&req)
	if req.ClientID == "" || req.ClientSecret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	cl, ok := h.clients.Authenticate(req.ClientID, req.ClientSecret)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	ttl := h.cfg.Security.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	claims := security.NewOperatorClaims(cl, h.cfg.Security.Issuer, h.cfg.Security.Audience, h.now(), ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.Security.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int64(ttl.Seconds()),
	})
}
