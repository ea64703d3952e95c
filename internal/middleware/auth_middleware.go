package middleware

import (
	"context"
	"strings"

	"ridelink/internal/utils"
	"ridelink/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthRequired validates the bearer token and sets user_id, email and
// is_driver on the context. Browsers cannot set headers on a socket
// upgrade, so a ?token= query parameter is accepted as well.
func AuthRequired(secret string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			utils.ErrorResponse(c, utils.HTTPStatus(utils.KindUnauthorized), string(utils.KindUnauthorized), "Bearer token required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			log.LogSecurityEvent("invalid_token", "low", map[string]interface{}{
				"path":      c.FullPath(),
				"client_ip": c.ClientIP(),
				"error":     err.Error(),
			})
			utils.ErrorResponse(c, utils.HTTPStatus(utils.KindUnauthorized), string(utils.KindUnauthorized), utils.ErrInvalidToken)
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("is_driver", claims.IsDriver)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.UserIDKey, claims.UserID))

		c.Next()
	}
}

// DriverRequired middleware ensures user is a driver
func DriverRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("is_driver") {
			utils.ErrorResponse(c, utils.HTTPStatus(utils.KindForbidden), string(utils.KindForbidden), "Driver access required")
			c.Abort()
			return
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}
