package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/watchtower/internal/api/response"
)

// CronKeyHeader carries the shared secret of the external cron trigger.
const CronKeyHeader = "X-CRON-KEY"

// CronKey admits requests whose X-CRON-KEY header equals key. An empty key
// rejects every request.
func CronKey(key string) func(http.Handler) http.Handler {
	expected := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(CronKeyHeader))
			if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
				slog.Warn("cron trigger rejected", "remote_addr", r.RemoteAddr)
				response.Error(w, http.StatusForbidden,
					"FORBIDDEN", "Invalid cron key", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
