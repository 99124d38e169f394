package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("unit-test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString(secret)
	require.NoError(t, err)
	return s
}

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	hs := append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(CtxUserIDKey),
			"role":    c.GetString(CtxRoleKey),
		})
	})
	r.GET("/ping", hs...)
	return r
}

func doGet(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_ValidToken(t *testing.T) {
	r := newTestRouter(RequireAuth(testSecret))
	tok := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "alice",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	w := doGet(r, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"alice"`)
	assert.Contains(t, w.Body.String(), `"role":"admin"`)
}

func TestRequireAuth_Rejections(t *testing.T) {
	r := newTestRouter(RequireAuth(testSecret))

	t.Run("missing header", func(t *testing.T) {
		w := doGet(r, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		// 他ハンドラと同じエラーエンベロープで返す
		assert.Contains(t, w.Body.String(), `"code":"UNAUTHENTICATED"`)
	})

	t.Run("not bearer", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doGet(r, "Basic abc").Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doGet(r, "Bearer not.a.jwt").Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := signToken(t, []byte("other-secret"), jwt.MapClaims{
			"sub": "alice",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		assert.Equal(t, http.StatusUnauthorized, doGet(r, "Bearer "+tok).Code)
	})

	t.Run("expired", func(t *testing.T) {
		tok := signToken(t, testSecret, jwt.MapClaims{
			"sub": "alice",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		assert.Equal(t, http.StatusUnauthorized, doGet(r, "Bearer "+tok).Code)
	})

	t.Run("missing sub", func(t *testing.T) {
		tok := signToken(t, testSecret, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		assert.Equal(t, http.StatusUnauthorized, doGet(r, "Bearer "+tok).Code)
	})
}

func TestRequireRole(t *testing.T) {
	r := newTestRouter(RequireAuth(testSecret), RequireRole("admin"))

	adminTok := signToken(t, testSecret, jwt.MapClaims{
		"sub": "alice", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	})
	userTok := signToken(t, testSecret, jwt.MapClaims{
		"sub": "bob", "role": "user", "exp": time.Now().Add(time.Hour).Unix(),
	})

	assert.Equal(t, http.StatusOK, doGet(r, "Bearer "+adminTok).Code)

	w := doGet(r, "Bearer "+userTok)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"FORBIDDEN"`)
}
