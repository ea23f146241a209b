package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)

	token, err := m.GenerateAccessToken(Claims{Subject: "ops", IsAdmin: true})
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}

	claims, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("Should validate own token: %v", err)
	}
	if claims.Subject != "ops" || !claims.IsAdmin {
		t.Errorf("Unexpected claims %+v", claims)
	}
	if m.GetAccessTokenDuration() != 60 {
		t.Errorf("Expected 60s duration, got %d", m.GetAccessTokenDuration())
	}
}

func TestExpiredToken(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }

	token, err := m.GenerateAccessToken(Claims{Subject: "ops"})
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}

	m.now = time.Now
	if _, err := m.ValidateAccessToken(token); err != ErrTokenExpired {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestForeignSecretRejected(t *testing.T) {
	token, _ := NewJWTManager("other", time.Minute).GenerateAccessToken(Claims{Subject: "x"})
	if _, err := NewJWTManager("secret", time.Minute).ValidateAccessToken(token); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewJWTManager("secret", time.Minute)
	reader, _ := m.GenerateAccessToken(Claims{Subject: "reader"})
	admin, _ := m.GenerateAccessToken(Claims{Subject: "ops", IsAdmin: true})

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/read", func(c *gin.Context) { c.String(http.StatusOK, GetSubject(c)) })
	r.POST("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"missing header", http.MethodGet, "/read", "", http.StatusUnauthorized},
		{"wrong scheme", http.MethodGet, "/read", "Basic abc", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/read", "Bearer abc", http.StatusUnauthorized},
		{"reader reads", http.MethodGet, "/read", "Bearer " + reader, http.StatusOK},
		{"reader cannot admin", http.MethodPost, "/admin", "Bearer " + reader, http.StatusForbidden},
		{"admin", http.MethodPost, "/admin", "Bearer " + admin, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}
