package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// AdminKeyHeader carries the shared admin secret on mutating registry calls.
const AdminKeyHeader = "x-admin-key"

// AdminKeyAuth rejects requests whose x-admin-key header does not match the
// configured secret. The check runs before any store access. Comparison is
// constant-time over SHA-256 digests so key length is not observable.
func AdminKeyAuth(adminKey string) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(adminKey))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				http.Error(w, `{"error":"admin access disabled"}`, http.StatusUnauthorized)
				return
			}
			got := sha256.Sum256([]byte(r.Header.Get(AdminKeyHeader)))
			if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
