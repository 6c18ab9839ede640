package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orro3790/drive-sub008/api/validators"
	"github.com/orro3790/drive-sub008/pkg/enums"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

const inFlight = "\x00pending"

type memoryStore struct {
	data     map[string]string
	ttls     map[string]time.Duration
	released []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func (m *memoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, string, error) {
	v, ok := m.data[key]
	if !ok {
		m.data[key] = inFlight
		m.ttls[key] = ttl
		return true, "", nil
	}
	if v == inFlight {
		return false, "", nil
	}
	return false, v, nil
}

func (m *memoryStore) Complete(_ context.Context, key, value string, ttl time.Duration) error {
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Release(_ context.Context, key string) error {
	delete(m.data, key)
	m.released = append(m.released, key)
	return nil
}

type testCaller struct{ Caller }

func newCaller(t *testing.T, role enums.UserRole) testCaller {
	t.Helper()
	scope, err := tenant.NewScope(uuid.New())
	require.NoError(t, err)
	return testCaller{Caller{Scope: scope, UserID: uuid.New(), Role: role}}
}

func (c testCaller) post(url, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	return req.WithContext(WithCaller(req.Context(), c.Caller))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIsIdempotentRoute(t *testing.T) {
	id := uuid.NewString()
	tests := []struct {
		name   string
		method string
		path   string
		want   bool
	}{
		{"submit bid", http.MethodPost, "/api/v1/bid-windows/" + id + "/bids", true},
		{"accept", http.MethodPost, "/api/v1/bid-windows/" + id + "/accept", true},
		{"resolve", http.MethodPost, "/api/v1/bid-windows/" + id + "/resolve", true},
		{"manager assign", http.MethodPost, "/api/v1/assignments/" + id + "/assign", true},
		{"open window", http.MethodPost, "/api/v1/assignments/" + id + "/bid-windows", true},
		{"cancel", http.MethodPost, "/api/v1/assignments/" + id + "/cancel", true},
		{"detect", http.MethodPost, "/api/v1/no-shows/detect", true},
		{"list windows", http.MethodGet, "/api/v1/bid-windows", false},
		{"confirm", http.MethodPost, "/api/v1/assignments/" + id + "/confirm", false},
		{"missing id", http.MethodPost, "/api/v1/bid-windows//bids", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isIdempotentRoute(tt.method, tt.path))
		})
	}
}

func TestIdempotencyPassesThroughWithoutStore(t *testing.T) {
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	c := newCaller(t, enums.UserRoleDriver)

	Idempotency(nil, time.Hour, nil)(handler).ServeHTTP(httptest.NewRecorder(), c.post("/api/v1/bid-windows/"+uuid.NewString()+"/bids", "", `{}`))

	assert.Equal(t, 1, calls)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { handlerCalled = true })
	c := newCaller(t, enums.UserRoleDriver)

	rec := httptest.NewRecorder()
	Idempotency(newMemoryStore(), time.Hour, nil)(handler).ServeHTTP(rec, c.post("/api/v1/bid-windows/"+uuid.NewString()+"/accept", "", `{}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, handlerCalled)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"instantlyAssigned":true}`))
	})
	mw := Idempotency(store, 2*time.Hour, nil)(handler)
	c := newCaller(t, enums.UserRoleDriver)
	url := "/api/v1/bid-windows/" + uuid.NewString() + "/accept"
	body := `{"assignmentId":"` + uuid.NewString() + `"}`

	mw.ServeHTTP(httptest.NewRecorder(), c.post(url, "abc", body))
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, c.post(url, "abc", body))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"instantlyAssigned":true}`, rec.Body.String())
	for _, ttl := range store.ttls {
		assert.Equal(t, 2*time.Hour, ttl)
	}
}

func TestIdempotencyRejectsDuplicateWhileInFlight(t *testing.T) {
	store := newMemoryStore()
	c := newCaller(t, enums.UserRoleDriver)
	url := "/api/v1/bid-windows/" + uuid.NewString() + "/accept"

	var mw http.Handler
	var nested *httptest.ResponseRecorder
	var calls int
	mw = Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if nested == nil {
			// A double tap lands before the first request has finished.
			nested = httptest.NewRecorder()
			mw.ServeHTTP(nested, c.post(url, "tap", `{}`))
		}
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	mw.ServeHTTP(first, c.post(url, "tap", `{}`))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusOK, first.Code)
	require.NotNil(t, nested)
	assert.Equal(t, http.StatusConflict, nested.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, nested))
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newMemoryStore()
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mw := Idempotency(store, time.Hour, nil)(handler)
	c := newCaller(t, enums.UserRoleManager)
	url := "/api/v1/no-shows/detect"

	first := httptest.NewRecorder()
	mw.ServeHTTP(first, c.post(url, "retry-me", ``))
	second := httptest.NewRecorder()
	mw.ServeHTTP(second, c.post(url, "retry-me", ``))

	assert.Equal(t, http.StatusServiceUnavailable, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 2, calls)
	assert.Len(t, store.released, 1)
}

func TestIdempotencyKeysAreScopedPerCaller(t *testing.T) {
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	mw := Idempotency(newMemoryStore(), time.Hour, nil)(handler)
	url := "/api/v1/bid-windows/" + uuid.NewString() + "/bids"

	for i := 0; i < 2; i++ {
		mw.ServeHTTP(httptest.NewRecorder(), newCaller(t, enums.UserRoleDriver).post(url, "same", `{}`))
	}

	assert.Equal(t, 2, calls)
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mw := Idempotency(newMemoryStore(), time.Hour, nil)(handler)
	c := newCaller(t, enums.UserRoleManager)
	url := "/api/v1/assignments/" + uuid.NewString() + "/assign"

	mw.ServeHTTP(httptest.NewRecorder(), c.post(url, "xyz", `{"userId":"a"}`))
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, c.post(url, "xyz", `{"userId":"b"}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyRejectsOversizedBody(t *testing.T) {
	store := newMemoryStore()
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	c := newCaller(t, enums.UserRoleDriver)
	body := `{"note":"` + strings.Repeat("x", validators.MaxBodyBytes) + `"}`

	rec := httptest.NewRecorder()
	Idempotency(store, time.Hour, nil)(handler).ServeHTTP(rec, c.post("/api/v1/bid-windows/"+uuid.NewString()+"/bids", "big", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	assert.Zero(t, calls)
	assert.Empty(t, store.data, "an oversized request never claims its key")
}
