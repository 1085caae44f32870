package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"signet/internal/domain"
)

const (
	ContextKeyOwner     = "owner"
	ContextKeyRequestID = "request_id"
)

// OwnerVerifier resolves a bearer token to the owner it identifies.
type OwnerVerifier interface {
	Verify(token string) (*domain.Owner, error)
}

// AuthMiddleware returns Gin middleware that validates owner bearer tokens
// and injects the owner into the context.
func AuthMiddleware(verifier OwnerVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "missing or invalid authorization header"},
			})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		owner, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "invalid or expired token"},
			})
			return
		}

		c.Set(ContextKeyOwner, *owner)
		c.Next()
	}
}

// GetOwner extracts the authenticated owner from the Gin context.
func GetOwner(c *gin.Context) (domain.Owner, error) {
	val, exists := c.Get(ContextKeyOwner)
	if !exists {
		return domain.Owner{}, domain.ErrUnauthorized
	}
	owner, ok := val.(domain.Owner)
	if !ok {
		return domain.Owner{}, domain.ErrUnauthorized
	}
	return owner, nil
}
