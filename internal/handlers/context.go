package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/opsboard/opsboard/internal/middleware"
	"github.com/opsboard/opsboard/internal/models"
	"github.com/opsboard/opsboard/internal/services"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// callerScope derives the service scope from the authenticated request.
func callerScope(c *gin.Context) services.Scope {
	return services.Scope{
		UserID: c.GetString(middleware.CtxUserIDKey),
		Role:   models.Role(c.GetString(middleware.CtxUserRoleKey)),
	}
}
