package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/nischalstha-ns/e-commerce-sub001/common/auth"
	"github.com/nischalstha-ns/e-commerce-sub001/middleware"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret"

func setupRouter(a middleware.Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", middleware.AuthMiddleware(a), func(c *gin.Context) {
		id, _ := middleware.UserID(c)
		c.String(http.StatusOK, id)
	})
	return r
}

func do(r *gin.Engine, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestGatewayAuth(t *testing.T) {
	r := setupRouter(middleware.GatewayAuth{})

	w := do(r, "/me", map[string]string{"X-User-ID": "u1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	w = do(r, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Unauthorized")
}

func TestJWTAuth(t *testing.T) {
	r := setupRouter(middleware.JWTAuth{Parser: auth.NewTokenParser(testSecret)})
	valid := signToken(t, jwt.MapClaims{
		"user_id": "u42",
		"typ":     "access",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		target string
		header string
		code   int
	}{
		{"valid bearer", "/me", "Bearer " + valid, http.StatusOK},
		{"query token", "/me?access_token=" + valid, "", http.StatusOK},
		{"missing", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic " + valid, http.StatusUnauthorized},
		{"garbage", "/me", "Bearer nope", http.StatusUnauthorized},
		{"refresh token", "/me", "Bearer " + signToken(t, jwt.MapClaims{"user_id": "u42", "typ": "refresh"}), http.StatusUnauthorized},
		{"expired", "/me", "Bearer " + signToken(t, jwt.MapClaims{"user_id": "u42", "typ": "access", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := do(r, tt.target, headers)
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "u42", w.Body.String())
			}
		})
	}
}

type mockVerifier struct {
	token *firebaseauth.Token
	err   error
	got   string
}

func (m *mockVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	m.got = idToken
	return m.token, m.err
}

func TestFirebaseAuth(t *testing.T) {
	v := &mockVerifier{token: &firebaseauth.Token{UID: "fb-uid"}}
	r := setupRouter(middleware.FirebaseAuth{Verifier: v})

	w := do(r, "/me", map[string]string{"Authorization": "Bearer id-token"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fb-uid", w.Body.String())
	assert.Equal(t, "id-token", v.got)

	v.err = errors.New("token revoked")
	w = do(r, "/me", map[string]string{"Authorization": "Bearer id-token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
