package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"triconnect/internal/model"
	"triconnect/pkg/trace"
	"triconnect/pkg/util"
)

const testSecret = "test-secret"

func protectedRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	grp := r.Group("/")
	grp.Use(mw...)
	grp.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64("user_id")})
	})
	return r
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	r := protectedRouter(AuthMiddleware(testSecret))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	r := protectedRouter(AuthMiddleware(testSecret))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	r := protectedRouter(AuthMiddleware(testSecret))

	token, err := util.GenerateJWT(42, model.RoleUser, testSecret)
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", w.Code, w.Body.String())
	}
}

func TestRequireRole(t *testing.T) {
	r := protectedRouter(AuthMiddleware(testSecret), RequireRole(model.RoleAdmin))

	userToken, err := util.GenerateJWT(42, model.RoleUser, testSecret)
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("user role status = %d, want 403", w.Code)
	}

	adminToken, err := util.GenerateJWT(1, model.RoleAdmin, testSecret)
	if err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("admin role status = %d, want 200", w.Code)
	}
}

func TestTraceMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware())

	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = trace.FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	// 透传已有的 trace id
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(trace.HeaderName(), "trace-123")
	r.ServeHTTP(w, req)
	if seen != "trace-123" {
		t.Fatalf("propagated trace id = %q, want trace-123", seen)
	}
	if got := w.Header().Get(trace.HeaderName()); got != "trace-123" {
		t.Fatalf("response header trace id = %q, want trace-123", got)
	}

	// 没有就生成
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)
	if seen == "" {
		t.Fatal("expected generated trace id")
	}
}
