package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newInvoiceRouter builds a minimal router shaped like the settlement
// API surface, with the given middleware in front of it.
func newInvoiceRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.GET("/api/v1/invoices", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"invoices": []gin.H{}})
	})
	router.POST("/api/v1/payments/:id/allocations", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"payment_id": c.Param("id")})
	})
	return router
}

func TestCORS(t *testing.T) {
	router := newInvoiceRouter(CORS())

	t.Run("rejects cross-origin request with empty whitelist default", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
		req.Header.Set("Origin", "https://unknown.example.net")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allows same-origin request", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("OPTIONS preflight returns 204 without CORS headers", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/api/v1/invoices", nil)
		req.Header.Set("Origin", "https://unknown.example.net")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSWithConfig(t *testing.T) {
	t.Run("allows whitelisted finance frontends", func(t *testing.T) {
		cfg := CORSConfig{
			AllowOrigins:     []string{"https://finance.openledger.example", "https://back-office.openledger.example"},
			AllowMethods:     []string{"GET", "POST", "DELETE"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
		}
		router := newInvoiceRouter(CORSWithConfig(cfg))

		for _, origin := range cfg.AllowOrigins {
			req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
			req.Header.Set("Origin", origin)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		}
	})

	t.Run("rejects origin outside the whitelist", func(t *testing.T) {
		cfg := CORSConfig{
			AllowOrigins: []string{"https://finance.openledger.example"},
		}
		router := newInvoiceRouter(CORSWithConfig(cfg))

		req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
		req.Header.Set("Origin", "https://not-allowed.example.net")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard allows any origin but never credentials", func(t *testing.T) {
		cfg := CORSConfig{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
		}
		router := newInvoiceRouter(CORSWithConfig(cfg))

		req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
		req.Header.Set("Origin", "https://anything.example.net")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("Max-Age is emitted in whole seconds", func(t *testing.T) {
		cfg := CORSConfig{
			AllowOrigins: []string{"https://finance.openledger.example"},
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       12 * time.Hour,
		}
		router := newInvoiceRouter(CORSWithConfig(cfg))

		req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
		req.Header.Set("Origin", "https://finance.openledger.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("exposes the request ID header to browsers", func(t *testing.T) {
		cfg := CORSConfig{
			AllowOrigins:  []string{"https://finance.openledger.example"},
			AllowMethods:  []string{"GET"},
			AllowHeaders:  []string{"Content-Type"},
			ExposeHeaders: []string{"X-Request-ID"},
		}
		router := newInvoiceRouter(CORSWithConfig(cfg))

		req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
		req.Header.Set("Origin", "https://finance.openledger.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
	})

	t.Run("preflight for allocation create advertises allowed methods", func(t *testing.T) {
		cfg := CORSConfig{
			AllowOrigins: []string{"https://finance.openledger.example"},
			AllowMethods: []string{"GET", "POST", "DELETE"},
			AllowHeaders: []string{"Content-Type", "Authorization"},
		}
		router := newInvoiceRouter(CORSWithConfig(cfg))

		req := httptest.NewRequest("OPTIONS", "/api/v1/payments/42/allocations", nil)
		req.Header.Set("Origin", "https://finance.openledger.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://finance.openledger.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, DELETE", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	})
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/api/v1/invoices", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	t.Run("generates an ID when the client sends none", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())
	})

	t.Run("propagates a client-supplied ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
		req.Header.Set("X-Request-ID", "recon-batch-2025-01-31")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "recon-batch-2025-01-31", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "recon-batch-2025-01-31", w.Body.String())
	})
}

func TestGenerateRequestID(t *testing.T) {
	id1 := generateRequestID()
	id2 := generateRequestID()

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
	assert.Len(t, id1, 32) // 16 bytes hex encoded
}

func TestSecure(t *testing.T) {
	router := newInvoiceRouter(Secure())

	req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))

	csp := w.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "default-src 'self'")
	assert.Contains(t, csp, "frame-ancestors 'none'")

	// HSTS stays off until TLS termination is configured.
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	assert.Contains(t, w.Header().Get("Permissions-Policy"), "camera=()")
}

func TestSecureWithConfig(t *testing.T) {
	t.Run("HSTS header formatting", func(t *testing.T) {
		cfg := SecurityConfig{
			HSTSEnabled:           true,
			HSTSMaxAge:            63072000,
			HSTSIncludeSubdomains: true,
			HSTSPreload:           true,
		}
		router := newInvoiceRouter(SecureWithConfig(cfg))

		req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "max-age=63072000; includeSubDomains; preload",
			w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("optional headers can all be disabled", func(t *testing.T) {
		cfg := SecurityConfig{
			HSTSEnabled:              false,
			CSPEnabled:               false,
			PermissionsPolicyEnabled: false,
		}
		router := newInvoiceRouter(SecureWithConfig(cfg))

		req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		// The baseline headers are unconditional.
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

		assert.Empty(t, w.Header().Get("Content-Security-Policy"))
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
		assert.Empty(t, w.Header().Get("Permissions-Policy"))
	})
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	assert.Empty(t, cfg.AllowOrigins, "cross-origin access is opt-in")
	assert.Contains(t, cfg.AllowMethods, "GET")
	assert.Contains(t, cfg.AllowMethods, "POST")
	assert.Contains(t, cfg.AllowHeaders, "Content-Type")
	assert.True(t, cfg.AllowCredentials)
	assert.Equal(t, 12*time.Hour, cfg.MaxAge)
}

func TestTimeout(t *testing.T) {
	router := newInvoiceRouter(Timeout(30 * time.Second))

	req := httptest.NewRequest("GET", "/api/v1/invoices", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "30s", w.Header().Get("X-Request-Timeout"))
}
