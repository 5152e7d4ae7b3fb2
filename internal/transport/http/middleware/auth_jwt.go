package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-library-api/internal/core/auth"
	resp "go-library-api/internal/transport/http/response"
)

// AuthJWT 校验 Bearer token，把 userId/role 放进上下文供后续取用。
// requireRole 非空时同时做角色门禁。
func AuthJWT(j *auth.JWTer, requireRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "missing token"))
			return
		}
		claims, err := j.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "invalid token"))
			return
		}
		if requireRole != "" && claims.Role != requireRole {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeForbidden, "forbidden"))
			return
		}
		c.Set("userId", claims.UID)
		c.Set("role", claims.Role)
		c.Next()
	}
}
