package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return tok
}

func TestValidateToken(t *testing.T) {
	valid := signHS256(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	expired := signHS256(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongSecret := signHS256(t, "other", jwt.MapClaims{"sub": "user-1"})
	noSub := signHS256(t, testSecret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name    string
		token   string
		secret  string
		wantSub string
		wantErr bool
	}{
		{"valid", valid, testSecret, "user-1", false},
		{"expired", expired, testSecret, "", true},
		{"wrong secret", wrongSecret, testSecret, "", true},
		{"missing subject", noSub, testSecret, "", true},
		{"no secret configured", valid, "", "", true},
		{"garbage", "not-a-jwt", testSecret, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := ValidateToken(tt.token, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if sub != tt.wantSub {
				t.Errorf("ValidateToken() sub = %q, want %q", sub, tt.wantSub)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	valid := signHS256(t, testSecret, jwt.MapClaims{"sub": "user-1"})

	tests := []struct {
		name     string
		cfg      JWTCfg
		header   map[string]string
		wantCode int
		wantSub  string
	}{
		{"anonymous allowed", JWTCfg{HS256Secret: testSecret}, nil, http.StatusOK, ""},
		{"anonymous rejected when required", JWTCfg{HS256Secret: testSecret, Required: true}, nil, http.StatusUnauthorized, ""},
		{"bearer token", JWTCfg{HS256Secret: testSecret, Required: true}, map[string]string{"Authorization": "Bearer " + valid}, http.StatusOK, "user-1"},
		{"bad token", JWTCfg{HS256Secret: testSecret}, map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, ""},
		{"debug header in dev mode", JWTCfg{DevMode: true, Required: true}, map[string]string{"X-Debug-Sub": "dev"}, http.StatusOK, "dev"},
		{"debug header ignored outside dev mode", JWTCfg{HS256Secret: testSecret, Required: true}, map[string]string{"X-Debug-Sub": "dev"}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSub string
			h := Middleware(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSub = Subject(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if gotSub != tt.wantSub {
				t.Errorf("subject = %q, want %q", gotSub, tt.wantSub)
			}
		})
	}
}
