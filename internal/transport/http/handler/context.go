package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"logydesk/internal/transport/http/middleware"
	"logydesk/internal/transport/http/response"
)

// currentUserID reads the authenticated user id set by the JWT middleware.
// It writes the 401 itself so callers can bail with a bare return.
func currentUserID(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found in token")
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	if !ok || userID == 0 {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return 0, false
	}
	return userID, true
}

// pathID parses a positive uint path parameter; writes the 400 on failure.
func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(parsed), true
}
