package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func passThrough(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminKeyAuth(t *testing.T) {
	cases := []struct {
		name       string
		configured string
		supplied   string
		wantStatus int
		wantCalled bool
	}{
		{"valid key", "secret", "secret", http.StatusOK, true},
		{"wrong key", "secret", "nope", http.StatusUnauthorized, false},
		{"missing key", "secret", "", http.StatusUnauthorized, false},
		{"disabled", "", "anything", http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var called bool
			h := AdminKeyAuth(tc.configured)(passThrough(&called))

			req := httptest.NewRequest(http.MethodPost, "/api/registry/register", nil)
			if tc.supplied != "" {
				req.Header.Set(AdminKeyHeader, tc.supplied)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			if called != tc.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tc.wantCalled)
			}
		})
	}
}

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromCtx(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	echoed := rr.Header().Get(RequestIDHeader)
	if echoed == "" {
		t.Fatal("no request id echoed")
	}
	if seen != echoed {
		t.Errorf("context id %q != echoed id %q", seen, echoed)
	}
}

func TestRequestIDHonorsCallerSupplied(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caller-id-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); got != "caller-id-1" {
		t.Errorf("echoed id = %q", got)
	}
}

func TestRequestIDFromCtxMissing(t *testing.T) {
	if got := RequestIDFromCtx(httptest.NewRequest(http.MethodGet, "/", nil).Context()); got != "" {
		t.Errorf("id = %q, want empty", got)
	}
}
