package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const userIDKey = "userID"

// DefaultUser owns requests that name no user.
const DefaultUser = "default"

// UserIDFromContext returns the user Auth attached to the request.
func UserIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Auth checks credentials and resolves the acting user. A key may arrive as
// a bearer Authorization header or as X-API-Key, which the launcher plugin
// sends on its own.
//
// A key listed in apiKeys always acts as its mapped user. The shared token
// acts as X-User-ID, or DefaultUser when the header is absent. With neither
// configured every request is accepted the same way.
func Auth(authToken string, apiKeys map[string]string) gin.HandlerFunc {
	token := strings.TrimSpace(authToken)
	return func(c *gin.Context) {
		presented := presentedToken(c)
		headerUser := strings.TrimSpace(c.GetHeader("X-User-ID"))

		if user, ok := apiKeys[presented]; ok && presented != "" {
			if headerUser != "" && headerUser != user {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "api key belongs to another user"})
				return
			}
			c.Set(userIDKey, user)
			c.Next()
			return
		}

		if (token != "" || len(apiKeys) > 0) && (token == "" || presented != token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if headerUser == "" {
			headerUser = DefaultUser
		}
		c.Set(userIDKey, headerUser)
		c.Next()
	}
}

func presentedToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(c.GetHeader("X-API-Key"))
}

// RequestLogger logs one line per request.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if user := UserIDFromContext(c); user != "" {
			entry = entry.WithField("user", user)
		}
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("request rejected")
		default:
			entry.Debug("request")
		}
	}
}
