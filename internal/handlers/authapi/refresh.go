package authapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/knoxys/authcore/internal/auth"
)

type handleRefreshParams struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRefresh rotates the caller's refresh token. The token comes from the
// refresh cookie with a JSON body fallback; the claimed identity is the
// subject of the presented access token, which may be expired but whose
// signature must hold.
func (h *Handler) handleRefresh(c *gin.Context) {
	presented, err := c.Cookie(refreshCookieName)
	if err != nil || presented == "" {
		params := &handleRefreshParams{}
		if err := c.ShouldBindJSON(params); err != nil || params.RefreshToken == "" {
			responseGenericError(c, http.StatusUnauthorized, "no refresh token presented")
			return
		}
		presented = params.RefreshToken
	}

	accessToken, ok := bearerToken(c)
	if !ok {
		responseGenericError(c, http.StatusUnauthorized, "no access token presented")
		return
	}

	claimedUserID, err := h.orchestrator.IdentityFromAccessToken(accessToken, true)
	if err != nil {
		clearRefreshCookie(c)
		responseGenericError(c, http.StatusUnauthorized, "access token signature invalid")
		return
	}

	pair, res, err := h.orchestrator.Refresh(c.Request.Context(), presented, claimedUserID, c.ClientIP())
	setRateLimitHeaders(c, h.orchestrator.Limits().Refresh, res)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRateLimited):
			responseGenericError(c, http.StatusTooManyRequests, "refresh rate limited")
		case errors.Is(err, auth.ErrInvalidToken):
			clearRefreshCookie(c)
			responseGenericError(c, http.StatusUnauthorized, "refresh token invalid")
		case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrReuseDetected):
			// same status and body on both branches on purpose
			clearRefreshCookie(c)
			responseGenericError(c, http.StatusForbidden, "refresh rejected, session revoked")
		default:
			logger.Error().Err(err).Msg("Refresh failed")
			c.String(http.StatusInternalServerError, "Refresh failed")
		}
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, h.tokenResponse(pair))
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}
