package authapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/knoxys/authcore/internal/auth"
)

type handleLogoutParams struct {
	RefreshToken string `json:"refresh_token"`
}

// handleLogout revokes the presented refresh token and drops the cookie.
func (h *Handler) handleLogout(c *gin.Context) {
	presented, err := c.Cookie(refreshCookieName)
	if err != nil || presented == "" {
		params := &handleLogoutParams{}
		if err := c.ShouldBindJSON(params); err != nil || params.RefreshToken == "" {
			responseGenericError(c, http.StatusUnauthorized, "no refresh token presented")
			return
		}
		presented = params.RefreshToken
	}

	clearRefreshCookie(c)

	if err := h.orchestrator.Logout(presented); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			responseGenericError(c, http.StatusUnauthorized, "logout with invalid token")
			return
		}
		logger.Error().Err(err).Msg("Logout failed")
		c.String(http.StatusInternalServerError, "Logout failed")
		return
	}

	c.Status(http.StatusNoContent)
}

// handleLogoutAll revokes every refresh token of the caller. Unlike refresh,
// this wants a live access token.
func (h *Handler) handleLogoutAll(c *gin.Context) {
	accessToken, ok := bearerToken(c)
	if !ok {
		responseGenericError(c, http.StatusUnauthorized, "no access token presented")
		return
	}

	userID, err := h.orchestrator.IdentityFromAccessToken(accessToken, false)
	if err != nil {
		responseGenericError(c, http.StatusUnauthorized, "access token invalid")
		return
	}

	clearRefreshCookie(c)

	if err := h.orchestrator.LogoutAll(userID); err != nil {
		logger.Error().Err(err).Msg("Logout-all failed")
		c.String(http.StatusInternalServerError, "Logout failed")
		return
	}

	c.Status(http.StatusNoContent)
}
