package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/logger"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]any{"resolved": false, "reason": "no_bids"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"resolved":false,"reason":"no_bids"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]string{"id": "w-1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		code        pkgerrors.Code
		message     string
		withDetails bool
	}{
		{
			name:        "validation echoes message and details",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "assignmentId required").WithDetails(map[string]string{"assignmentId": "required"}),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeValidation,
			message:     "assignmentId required",
			withDetails: true,
		},
		{
			name:    "not found hides details",
			err:     pkgerrors.New(pkgerrors.CodeNotFound, "bid window not found").WithDetails("secret"),
			status:  http.StatusNotFound,
			code:    pkgerrors.CodeNotFound,
			message: "bid window not found",
		},
		{
			name:    "untyped becomes internal",
			err:     errors.New("nil map write"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
		{
			name:        "dependency keeps its message private",
			err:         pkgerrors.Dependency(errors.New("dial tcp 10.0.0.4:5432"), "load bid window").WithDetails(map[string]string{"store": "postgres"}),
			status:      http.StatusServiceUnavailable,
			code:        pkgerrors.CodeDependency,
			message:     "dependency unavailable",
			withDetails: true,
		},
		{
			name:    "nil error",
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, string(tt.code), body.Code)
			assert.Equal(t, tt.message, body.Message)
			assert.Equal(t, tt.withDetails, body.Details != nil)
			assert.NotContains(t, rec.Body.String(), "10.0.0.4")
		})
	}
}

func TestWriteErrorSetsRetryAfterOnlyForDependencies(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.Dependency(errors.New("down"), "ping"))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeConflict, "busy"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestWriteErrorLogsBySeverity(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "api", Level: zerolog.DebugLevel, Output: &buf})

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeForbidden, "drivers may not resolve"))
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "request.rejected")

	buf.Reset()
	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.Dependency(errors.New("redis: connection refused"), "claim key"))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "request.error")
	assert.Contains(t, buf.String(), "DEPENDENCY_ERROR")
}
