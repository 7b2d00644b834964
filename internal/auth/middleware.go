package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"classattend/internal/attendance"
)

const (
	claimsKey = "claims"
	actorKey  = "actor"
)

// Bearer enforces bearer JWT tokens signed with HS256 and stores the caller
// as an attendance.Actor on the context.
func Bearer(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		actor, err := claims.Actor()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the caller stored by Bearer.
func ActorFrom(c *gin.Context) (attendance.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil, false
	}
	a, ok := v.(attendance.Actor)
	return a, ok
}

// SetActor stores a on the context, for handlers mounted without Bearer.
func SetActor(c *gin.Context, a attendance.Actor) {
	c.Set(actorKey, a)
}

// RequireRole rejects callers whose role is not role.
func RequireRole(role attendance.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := ActorFrom(c)
		if !ok || a.Role() != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
