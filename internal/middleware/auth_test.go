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

func signToken(t *testing.T, secret string, userID int64, expiresIn time.Duration) string {
	t.Helper()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func authTestRouter() (*gin.Engine, *int64) {
	gin.SetMode(gin.TestMode)
	var seen int64
	r := gin.New()
	r.GET("/protected", Auth(testSecret), func(c *gin.Context) {
		seen = UserID(c)
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func request(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAcceptsValidToken(t *testing.T) {
	r, seen := authTestRouter()
	token := signToken(t, testSecret, 42, time.Hour)

	w := request(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), *seen)
}

func TestAuthRejects(t *testing.T) {
	r, seen := authTestRouter()

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not a bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", 42, time.Hour)},
		{"expired", "Bearer " + signToken(t, testSecret, 42, -time.Hour)},
		{"no user id", "Bearer " + signToken(t, testSecret, 0, time.Hour)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			*seen = 0
			w := request(r, tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Zero(t, *seen, "the handler must not run")
		})
	}
}

func TestUserIDWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Zero(t, UserID(c))
}
