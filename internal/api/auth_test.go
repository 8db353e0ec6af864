package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kalambet/tastetwin/internal/taste"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestSignAndVerifyToken(t *testing.T) {
	token, err := SignIdentity(testSecret, taste.Identity{ID: "u1", Email: "u1@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("SignIdentity: %v", err)
	}

	ident, err := VerifyToken(testSecret, token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if ident.ID != "u1" || ident.Email != "u1@example.com" {
		t.Errorf("identity = %+v", ident)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	token, err := SignIdentity(testSecret, taste.Identity{ID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("SignIdentity: %v", err)
	}
	if _, err := VerifyToken([]byte("another-secret-another-secret-xx"), token); err == nil {
		t.Error("expected verification failure with wrong secret")
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	token, err := SignIdentity(testSecret, taste.Identity{ID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatalf("SignIdentity: %v", err)
	}
	if _, err := VerifyToken(testSecret, token); err == nil {
		t.Error("expected verification failure for expired token")
	}
}

func TestJWTAuth_Middleware(t *testing.T) {
	var got taste.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := JWTAuth(testSecret)(next)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	token, err := SignIdentity(testSecret, taste.Identity{ID: "u9", Email: "e@x.com"}, time.Hour)
	if err != nil {
		t.Fatalf("SignIdentity: %v", err)
	}
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got.ID != "u9" {
		t.Errorf("identity in context = %+v", got)
	}
}
