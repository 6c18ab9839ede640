package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/orro3790/drive-sub008/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-Id"
	maxRequestIDLen = 128
)

// RequestID echoes a usable X-Request-Id back to the client and onto every
// log line of the request. Missing or unusable ids are replaced.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if !usableRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)
			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// usableRequestID accepts short printable ASCII only; anything else would
// end up verbatim in logs.
func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
