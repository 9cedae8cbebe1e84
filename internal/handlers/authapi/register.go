package authapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/knoxys/authcore/internal/auth"
)

type handleRegisterParams struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) handleRegister(c *gin.Context) {
	params := &handleRegisterParams{}
	if err := c.ShouldBindJSON(params); err != nil {
		c.String(http.StatusBadRequest, "Missing required parameters")
		return
	}

	user, pair, res, err := h.orchestrator.Register(
		c.Request.Context(), params.Username, params.Name, params.Email, params.Password, c.ClientIP())
	setRateLimitHeaders(c, h.orchestrator.Limits().Register, res)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRateLimited):
			responseGenericError(c, http.StatusTooManyRequests, "register rate limited")
		case errors.Is(err, auth.ErrInvalidRegistration):
			c.String(http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrUserExists):
			c.String(http.StatusConflict, "Username or email already taken")
		default:
			logger.Error().Err(err).Msg("Registration failed")
			c.String(http.StatusInternalServerError, "Registration failed")
		}
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"tokens":   h.tokenResponse(pair),
	})
}
