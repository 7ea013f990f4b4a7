// Package middleware holds gin middleware for the REST API.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/store"
)

// UserHeader names the acting user of an authenticated request.
const UserHeader = "X-Tracker-User"

const userKey = "tracker.user"

// UserLookup resolves the acting user.
type UserLookup interface {
	GetUser(ctx context.Context, name string) (*model.User, error)
}

// AuthMiddleware checks the bearer token and attaches the acting user.
type AuthMiddleware struct {
	log   *logger.Logger
	token string
	users UserLookup
}

// NewAuthMiddleware creates the middleware. Requests must carry token as
// a bearer token.
func NewAuthMiddleware(log *logger.Logger, token string, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), token: token, users: users}
}

// RequireToken rejects requests without the API token. The user named by
// UserHeader becomes the acting user; without the header the request is
// anonymous.
func (am *AuthMiddleware) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(am.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"errorMessages": []string{"missing or invalid token"},
				"errors":        gin.H{},
			})
			return
		}

		name := strings.TrimSpace(c.GetHeader(UserHeader))
		if name == "" {
			c.Set(userKey, model.User{})
			c.Next()
			return
		}
		user, err := am.users.GetUser(c.Request.Context(), name)
		if err != nil {
			status := http.StatusInternalServerError
			msg := "could not resolve user"
			if store.IsNotFound(err) {
				status = http.StatusUnauthorized
				msg = "unknown user " + name
			} else {
				am.log.Error("resolving request user", "user", name, "error", err)
			}
			c.AbortWithStatusJSON(status, gin.H{"errorMessages": []string{msg}, "errors": gin.H{}})
			return
		}
		c.Set(userKey, *user)
		c.Next()
	}
}

// CurrentUser returns the acting user of the request.
func CurrentUser(c *gin.Context) model.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(model.User); ok {
			return u
		}
	}
	return model.User{}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
