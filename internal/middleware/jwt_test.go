package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/pgmiso/sc-landingai/internal/pkg/jwt"
)

func newAuthRouter(secret []byte) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", JWTAuth(secret), func(c *gin.Context) {
		operator, _ := c.Get(ContextOperatorKey)
		c.String(http.StatusOK, "%v", operator)
	})
	return router
}

func TestJWTAuth(t *testing.T) {
	secret := []byte("test-secret")
	router := newAuthRouter(secret)

	token, err := jwt.GenerateToken("ops", secret, time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ops", w.Body.String())
}

func TestJWTAuthRejects(t *testing.T) {
	secret := []byte("test-secret")
	router := newAuthRouter(secret)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "missing authorization"},
		{"not bearer", "Basic abc", "invalid authorization"},
		{"garbage token", "Bearer not.a.token", "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)
			require.NotEqual(t, "ops", w.Body.String())
			require.Contains(t, w.Body.String(), tt.message)
		})
	}

	// token signed with a different secret
	token, err := jwt.GenerateToken("ops", []byte("other-secret"), time.Minute)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.NotEqual(t, "ops", w.Body.String())
}
