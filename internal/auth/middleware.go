package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/curriculum-relay/internal/domain"
)

// Gin context keys set by Middleware.
const (
	CtxIdentity = "identity"
	CtxUser     = "user"
)

// Middleware is the HTTP side of the authenticator. Rejections abort with 401.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Allow(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// Allow reports whether the request carries a valid credential and, if so,
// attaches the identity to c. It never writes a response.
func (a *Authenticator) Allow(c *gin.Context) bool {
	id, user, err := a.Authenticate(c.Request.Context(), c.Request.Header)
	if err != nil {
		a.recordFailure("http", err)
		return false
	}
	c.Set(CtxIdentity, id)
	c.Set(CtxUser, user)
	return true
}

func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

func UserFrom(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok
}
