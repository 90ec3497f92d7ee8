package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRole_AtLeast(t *testing.T) {
	if !RoleAdmin.atLeast(RoleViewer) {
		t.Error("expected admin to satisfy viewer requirement")
	}
	if RoleViewer.atLeast(RoleAdmin) {
		t.Error("expected viewer to not satisfy admin requirement")
	}
	if !RoleOperator.atLeast(RoleOperator) {
		t.Error("expected operator to satisfy an equal requirement")
	}
}

func newTestRouter(keys KeyStore, min Role) *gin.Engine {
	r := gin.New()
	r.GET("/protected", RequireRole(keys, min), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRequireRole_MissingKeyIsUnauthorized(t *testing.T) {
	router := newTestRouter(KeyStore{"secret": RoleAdmin}, RoleViewer)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireRole_ValidHeaderKeyPasses(t *testing.T) {
	router := newTestRouter(KeyStore{"secret": RoleViewer}, RoleViewer)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireRole_QueryParamKeyPasses(t *testing.T) {
	router := newTestRouter(KeyStore{"secret": RoleViewer}, RoleViewer)

	req := httptest.NewRequest(http.MethodGet, "/protected?apiKey=secret", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireRole_InsufficientRoleIsForbidden(t *testing.T) {
	router := newTestRouter(KeyStore{"secret": RoleViewer}, RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireRole_UnknownKeyIsUnauthorized(t *testing.T) {
	router := newTestRouter(KeyStore{"secret": RoleAdmin}, RoleViewer)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
