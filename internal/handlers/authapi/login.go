package authapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/knoxys/authcore/internal/auth"
)

type handleLoginParams struct {
	// Identifier is username or email.
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

func (h *Handler) handleLogin(c *gin.Context) {
	params := &handleLoginParams{}
	if err := c.ShouldBindJSON(params); err != nil {
		c.String(http.StatusBadRequest, "Missing required parameters")
		return
	}

	_, pair, res, err := h.orchestrator.Login(
		c.Request.Context(), params.Identifier, params.Password, c.ClientIP())
	setRateLimitHeaders(c, h.orchestrator.Limits().Login, res)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRateLimited):
			responseGenericError(c, http.StatusTooManyRequests, "login rate limited")
		case errors.Is(err, auth.ErrInvalidCredentials):
			responseGenericError(c, http.StatusUnauthorized, "invalid credentials")
		default:
			logger.Error().Err(err).Msg("Login failed")
			c.String(http.StatusInternalServerError, "Login failed")
		}
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, h.tokenResponse(pair))
}
