package admin

import (
	"net/http"

	"landkeeper/pkg/server"

	"github.com/gin-gonic/gin"
)

// Role is an admin API key's authorization level.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

func (r Role) atLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// KeyStore resolves an API key to the role it grants. Callers supply a
// static map built from configuration; the admin package does not
// prescribe a storage backend.
type KeyStore map[string]Role

// apiKey extracts the caller's API key from the request (spec §4.6
// "X-API-Key header or apiKey query param").
func apiKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.Query("apiKey")
}

// RequireRole returns gin middleware that rejects requests whose API
// key does not resolve to at least min.
func RequireRole(keys KeyStore, min Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := apiKey(c)
		if key == "" {
			server.AbortWithError(c, http.StatusUnauthorized, "missing_api_key", "missing API key")
			return
		}
		role, ok := keys[key]
		if !ok {
			server.AbortWithError(c, http.StatusUnauthorized, "invalid_api_key", "invalid API key")
			return
		}
		if !role.atLeast(min) {
			server.AbortWithError(c, http.StatusForbidden, "insufficient_role", "insufficient role")
			return
		}
		c.Set("admin.role", role)
		c.Next()
	}
}
