// Package authapi exposes the auth operations over HTTP. Handlers stay
// thin: they bind params, pick the caller's identity out of tokens and
// translate the typed errors from the auth package into status codes,
// rate-limit headers and cookie changes.
package authapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/knoxys/authcore/internal/auth"
	"github.com/knoxys/authcore/internal/ratelimit"
)

var (
	logger = log.With().Str("component", "authapi").Logger()
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/auth"
)

type Handler struct {
	orchestrator *auth.Orchestrator
	config       *auth.Config
}

func NewHandler(orchestrator *auth.Orchestrator, config *auth.Config) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		config:       config,
	}
}

func (h *Handler) RegisterHandlers(rg *gin.RouterGroup) {
	authRoutes := rg.Group("/auth")
	{
		authRoutes.POST("/register", h.handleRegister)
		authRoutes.POST("/login", h.handleLogin)
		authRoutes.POST("/refresh", h.handleRefresh)
		authRoutes.POST("/logout", h.handleLogout)
		authRoutes.POST("/logout_all", h.handleLogoutAll)
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

func (h *Handler) tokenResponse(pair *auth.TokenPair) *tokenResponse {
	return &tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    h.config.AccessTokenTTL,
	}
}

// setRefreshCookie mirrors the refresh token into an http-only cookie scoped
// to the auth endpoints. Secure flag is left to the TLS terminator upstream.
func (h *Handler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, h.config.RefreshTokenTTL, refreshCookiePath, "", false, true)
}

func clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", false, true)
}

// setRateLimitHeaders derives the X-RateLimit-* headers from the limiter
// result, and Retry-After when the caller is blocked.
func setRateLimitHeaders(c *gin.Context, policy auth.LimitPolicy, res *ratelimit.Result) {
	if res == nil {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(policy.MaxAttempts))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if res.Blocked {
		c.Header("Retry-After", strconv.FormatInt(int64(res.RetryAfter().Seconds()), 10))
	}
}
