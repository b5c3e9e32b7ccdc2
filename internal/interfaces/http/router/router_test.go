package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterRegister(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	group := NewDomainGroup("pricing", "/pricing")
	r.Register(group)

	assert.Len(t, r.registrars, 1)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("pricing", "/pricing")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.Register(group)
	r.Setup()

	req := httptest.NewRequest("GET", "/api/v1/pricing/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRouterMiddlewareAppliesToGroups(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	r.Use(func(c *gin.Context) {
		c.Header("X-Marker", "set")
		c.Next()
	})

	group := NewDomainGroup("allocations", "/allocations")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.Register(group)
	r.Setup()

	req := httptest.NewRequest("GET", "/api/v1/allocations/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, "set", w.Header().Get("X-Marker"))
}

func TestDomainGroup(t *testing.T) {
	t.Run("creates group with name and prefix", func(t *testing.T) {
		g := NewDomainGroup("accounting", "/accounting")
		assert.Equal(t, "accounting", g.Name())
		assert.Equal(t, "/accounting", g.Prefix())
	})

	t.Run("registers routes for all verbs", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("accounting", "/accounting")
		handler := func(c *gin.Context) { c.Status(http.StatusOK) }
		g.GET("/entries", handler)
		g.POST("/entries", handler)
		g.PUT("/entries/1", handler)
		g.DELETE("/entries/1", handler)

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		for _, method := range []string{"GET", "POST"} {
			req := httptest.NewRequest(method, "/api/v1/accounting/entries", nil)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code, method)
		}
		for _, method := range []string{"PUT", "DELETE"} {
			req := httptest.NewRequest(method, "/api/v1/accounting/entries/1", nil)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code, method)
		}
	})
}
