package authapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// responseGenericError logs the real reason and answers with the bare status
// text, so callers cannot tell the rejection branches apart.
func responseGenericError(c *gin.Context, httpCode int, errMsg string) {
	logger.Info().Str("path", c.FullPath()).Str("reason", errMsg).Msg("Rejected request")
	c.String(httpCode, http.StatusText(httpCode))
}
