package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsRequest(t *testing.T, origins []string, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = origins

	reached := false
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, reached
}

func TestCORS_AllowOrigin(t *testing.T) {
	t.Parallel()

	site := []string{"https://recipes.example.com"}

	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{"nothing configured", nil, "https://recipes.example.com", ""},
		{"listed origin", site, "https://recipes.example.com", "https://recipes.example.com"},
		{"unlisted origin", site, "https://elsewhere.example.org", ""},
		{"subdomain pattern", []string{"https://*.example.com"}, "https://admin.example.com", "https://admin.example.com"},
		{"configured in upper case", []string{"HTTPS://RECIPES.EXAMPLE.COM"}, "https://recipes.example.com", "https://recipes.example.com"},
		{"same-origin request", site, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/v1/tags", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			rec, reached := corsRequest(t, tt.origins, req)
			if !reached {
				t.Fatal("simple request did not reach the handler")
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recipes/3", nil)
	req.Header.Set("Origin", "https://recipes.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	rec, reached := corsRequest(t, []string{"https://recipes.example.com"}, req)
	if reached {
		t.Error("preflight reached the wrapped handler")
	}

	want := map[string]string{
		"Access-Control-Allow-Origin":  "https://recipes.example.com",
		"Access-Control-Allow-Methods": http.MethodPatch,
		"Access-Control-Max-Age":       "86400",
	}
	for name, v := range want {
		if got := rec.Header().Get(name); got != v {
			t.Errorf("%s = %q, want %q", name, got, v)
		}
	}
	if rec.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Error("Access-Control-Allow-Headers missing")
	}
}
