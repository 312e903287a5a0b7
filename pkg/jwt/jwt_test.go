package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mthirumalai2905/clubly-community-hub/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(secret string) *JWTService {
	return NewJWTService(config.JWTConfig{Secret: secret, Issuer: "clubly-auth", ExpireTime: time.Hour})
}

func TestGenerateAndValidate(t *testing.T) {
	svc := newService("short")

	token, err := svc.GenerateToken("user-123", map[string]interface{}{"username": "alice"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "alice", claims.Data["username"])
}

func TestValidateRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := newService("secret-a")

	foreign, err := newService("secret-b").GenerateToken("user-123", nil)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err)

	expired, err := NewJWTService(config.JWTConfig{Secret: "secret-a", Issuer: "clubly-auth", ExpireTime: -time.Minute}).
		GenerateToken("user-123", nil)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.Error(t, err)

	_, err = svc.ValidateToken("")
	assert.Error(t, err)

	_, err = svc.GenerateToken("", nil)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newService("secret")

	r := gin.New()
	r.GET("/me", svc.AuthMiddleware(), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c))
	})

	token, err := svc.GenerateToken("user-123", nil)
	require.NoError(t, err)

	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Token " + token, http.StatusUnauthorized},
		{"Bearer not-a-jwt", http.StatusUnauthorized},
		{"Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, tc.header)
		if tc.status == http.StatusOK {
			assert.Equal(t, "user-123", w.Body.String())
		}
	}
}
