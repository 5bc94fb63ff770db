package middleware

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

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(role string) Claims {
	return Claims{
		UserID: 7,
		Email:  "ops@example.com",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/secure", Auth(testSecret), RequireRole(roles...), func(c *gin.Context) {
		actor := GetActorID(c)
		c.JSON(http.StatusOK, gin.H{"actor": *actor, "role": GetUserRole(c)})
	})
	return r
}

func TestAuth(t *testing.T) {
	expired := validClaims(RoleAdmin)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := []struct {
		name   string
		header string
		query  string
		roles  []string
		status int
	}{
		{name: "missing header", roles: []string{RoleAdmin}, status: http.StatusUnauthorized},
		{name: "bad scheme", header: "Basic abc", roles: []string{RoleAdmin}, status: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other", validClaims(RoleAdmin)), roles: []string{RoleAdmin}, status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, testSecret, expired), roles: []string{RoleAdmin}, status: http.StatusUnauthorized},
		{name: "unknown role", header: "Bearer " + signToken(t, testSecret, validClaims("seller")), roles: []string{RoleAdmin}, status: http.StatusUnauthorized},
		{name: "forbidden role", header: "Bearer " + signToken(t, testSecret, validClaims(RoleViewer)), roles: []string{RoleAdmin}, status: http.StatusForbidden},
		{name: "allowed", header: "Bearer " + signToken(t, testSecret, validClaims(RoleService)), roles: []string{RoleService, RoleAdmin}, status: http.StatusOK},
		{name: "query token", query: "?token=" + signToken(t, testSecret, validClaims(RoleViewer)), roles: []string{RoleViewer}, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/secure"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(tt.roles...).ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestGetActorID_Anonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetActorID(c))

	c.Set("userID", uint(9))
	require.NotNil(t, GetActorID(c))
	assert.Equal(t, uint(9), *GetActorID(c))
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://ops.example.com"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
