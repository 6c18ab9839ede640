package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/orro3790/drive-sub008/api/responses"
	"github.com/orro3790/drive-sub008/api/validators"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/logger"
	pkgredis "github.com/orro3790/drive-sub008/pkg/redis"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	// pendingTTL bounds how long a crashed request can hold its key.
	pendingTTL = 30 * time.Second
)

// Dispatch mutations that a client may retry. Lifecycle steps (confirm,
// arrive, complete) are naturally idempotent through their state checks.
var idempotentRoutes = []struct {
	method string
	match  func(string) bool
}{
	{http.MethodPost, pathBetween("/api/v1/assignments/", "/bid-windows")},
	{http.MethodPost, pathBetween("/api/v1/assignments/", "/assign")},
	{http.MethodPost, pathBetween("/api/v1/assignments/", "/cancel")},
	{http.MethodPost, pathBetween("/api/v1/bid-windows/", "/bids")},
	{http.MethodPost, pathBetween("/api/v1/bid-windows/", "/accept")},
	{http.MethodPost, pathBetween("/api/v1/bid-windows/", "/resolve")},
	{http.MethodPost, pathIs("/api/v1/no-shows/detect")},
}

type replayRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency claims the caller's Idempotency-Key before the handler runs.
// A retry with the same key and body replays the first response; a retry
// that arrives while the first is still running gets 409. Server errors
// release the key so the client can try again.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || !isIdempotentRoute(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				msg := "read request body"
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					msg = fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			requestHash := hashBody(body)

			key := store.IdempotencyKey(callerScope(r), clientKey)
			acquired, stored, err := store.Claim(ctx, key, pendingTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}

			if !acquired {
				if stored == "" {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
					return
				}
				var record replayRecord
				if err := json.Unmarshal([]byte(stored), &record); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if record.RequestHash != requestHash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				record.replay(w)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusOrOK()
			if status >= http.StatusInternalServerError {
				if err := store.Release(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
				return
			}

			payload, err := json.Marshal(replayRecord{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				RequestHash: requestHash,
			})
			if err == nil {
				err = store.Complete(ctx, key, string(payload), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

// callerScope keeps keys from colliding across organizations, users and routes.
func callerScope(r *http.Request) string {
	parts := []string{r.Method, r.URL.Path}
	if c, ok := CallerFrom(r.Context()); ok {
		parts = append([]string{c.Scope.OrgID().String(), c.UserID.String()}, parts...)
	}
	return strings.Join(parts, "|")
}

func (rec replayRecord) replay(w http.ResponseWriter) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(rec.Status)
	if decoded, err := base64.StdEncoding.DecodeString(rec.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func isIdempotentRoute(method, path string) bool {
	for _, route := range idempotentRoutes {
		if route.method == method && route.match(path) {
			return true
		}
	}
	return false
}

func pathIs(want string) func(string) bool {
	return func(path string) bool { return path == want }
}

func pathBetween(prefix, suffix string) func(string) bool {
	return func(path string) bool {
		return len(path) > len(prefix)+len(suffix) &&
			strings.HasPrefix(path, prefix) &&
			strings.HasSuffix(path, suffix)
	}
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
