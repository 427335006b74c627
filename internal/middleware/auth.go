package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"playtube/api/internal/api"
	"playtube/api/internal/apperr"
	"playtube/api/internal/cache"
	"playtube/api/internal/config"
	"playtube/api/internal/models"
	"playtube/api/internal/security"
)

const currentUserKey = "current_user"

// UserSource resolves an authenticated subject to its user record.
type UserSource interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

// Auth accepts the access token from the accessToken cookie or a bearer
// Authorization header, verifies it, and loads the current user (cache
// first, then the store).
func Auth(cfg *config.AppConfig, users UserSource, userCache *cache.UserCache) gin.HandlerFunc {
	includeStack := !cfg.Production()

	return func(c *gin.Context) {
		tokenStr, _ := c.Cookie("accessToken")
		if tokenStr == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				tokenStr = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}
		if tokenStr == "" {
			api.AbortFail(c, apperr.New(apperr.Unauthorized, "unauthorized request"), includeStack)
			return
		}

		claims, err := security.ParseAccessToken(tokenStr, cfg.Security.AccessTokenSecret)
		if err != nil {
			api.AbortFail(c, apperr.Wrap(apperr.Unauthorized, "invalid access token", err), includeStack)
			return
		}

		user, ok := userCache.Get(c.Request.Context(), claims.UserID)
		if !ok {
			user, err = users.GetByID(c.Request.Context(), claims.UserID)
			if err != nil {
				api.AbortFail(c, apperr.Wrap(apperr.Unauthorized, "invalid access token", err), includeStack)
				return
			}
			userCache.Set(c.Request.Context(), user)
		}

		c.Set(currentUserKey, user.Sanitized())
		c.Next()
	}
}

// CurrentUser returns the authenticated user stashed by Auth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(currentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}
