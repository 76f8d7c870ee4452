package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dosada05/venue-tournaments/models"
	"github.com/Dosada05/venue-tournaments/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthenticator struct {
	AuthenticateFunc func(token string) (*models.Admin, error)
}

func (f fakeAuthenticator) Authenticate(token string) (*models.Admin, error) {
	return f.AuthenticateFunc(token)
}

func validOnly(token string) (*models.Admin, error) {
	if token == "good" {
		return &models.Admin{Email: "admin@example.com", TokenID: "t1", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	return nil, errors.New("bad token")
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantAdmin bool
	}{
		{name: "no header", header: "", wantAdmin: false},
		{name: "valid bearer", header: "Bearer good", wantAdmin: true},
		{name: "lowercase scheme", header: "bearer good", wantAdmin: true},
		{name: "invalid token", header: "Bearer bad", wantAdmin: false},
		{name: "wrong scheme", header: "Basic good", wantAdmin: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAdmin bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, gotAdmin = services.AdminFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Authenticate(fakeAuthenticator{AuthenticateFunc: validOnly})(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, tt.wantAdmin, gotAdmin)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(services.SessionAdminChecker{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"unauthorized"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(services.ContextWithAdmin(context.Background(), &models.Admin{Email: "admin@example.com"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(2)
	frozen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return frozen }
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("10.0.0.1:5000"))
	require.Equal(t, http.StatusOK, send("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5002"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000"))

	frozen = frozen.Add(time.Minute)
	assert.Equal(t, http.StatusOK, send("10.0.0.1:5003"))
}
