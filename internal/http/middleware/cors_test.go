package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginPolicyAllows(t *testing.T) {
	policy := NewOriginPolicy([]string{" https://ops.example.com/ ", ""})

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "dash.local", true},
		{"listed", "https://ops.example.com", "dash.local", true},
		{"listed case-insensitive", "https://OPS.example.com", "dash.local", true},
		{"same host http", "http://dash.local:8080", "dash.local:8080", true},
		{"same host https", "https://dash.local", "dash.local", true},
		{"other host", "https://evil.example", "dash.local", false},
		{"garbage", "not a url", "dash.local", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Allows(tt.origin, tt.host))
		})
	}

	assert.True(t, policy.Configured())
	assert.False(t, NewOriginPolicy(nil).Configured())
	assert.True(t, NewOriginPolicy([]string{"*"}).Allows("https://anything.example", "dash.local"))
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantAllow   string
		wantMethods bool
		wantNext    bool
	}{
		{name: "no origin", method: http.MethodGet, wantStatus: http.StatusOK, wantNext: true},
		{name: "listed origin", method: http.MethodGet, origin: "https://ops.example.com", wantStatus: http.StatusOK, wantAllow: "https://ops.example.com", wantNext: true},
		{name: "unknown origin still served", method: http.MethodGet, origin: "https://evil.example", wantStatus: http.StatusOK, wantNext: true},
		{name: "preflight accepted", method: http.MethodOptions, origin: "https://ops.example.com", preflight: true, wantStatus: http.StatusNoContent, wantAllow: "https://ops.example.com", wantMethods: true},
		{name: "preflight rejected", method: http.MethodOptions, origin: "https://evil.example", preflight: true, wantStatus: http.StatusForbidden},
		{name: "plain options passes through", method: http.MethodOptions, origin: "https://ops.example.com", wantStatus: http.StatusOK, wantAllow: "https://ops.example.com", wantNext: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "http://dash.local/api/settings", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPut)
			}
			rec := httptest.NewRecorder()

			CORS(NewOriginPolicy([]string{"https://ops.example.com"}))(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantNext, called)
			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantMethods, rec.Header().Get("Access-Control-Allow-Methods") != "")
			if tt.origin != "" {
				assert.Equal(t, "Origin", rec.Header().Get("Vary"))
			}
		})
	}
}
