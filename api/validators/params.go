package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
)

const dateLayout = "2006-01-02"

func invalidField(field, msg string, extra ...any) *pkgerrors.Error {
	details := map[string]any{"field": field}
	for i := 0; i+1 < len(extra); i += 2 {
		if k, ok := extra[i].(string); ok {
			details[k] = extra[i+1]
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// ParseUUIDParam reads a chi path parameter. The nil uuid is rejected.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, invalidField(name, "invalid path parameter")
	}
	return id, nil
}

// ParseQueryDate reads YYYY-MM-DD as UTC midnight, or the zero time when absent.
func ParseQueryDate(r *http.Request, key string) (time.Time, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return time.Time{}, nil
	}
	date, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, invalidField(key, "query parameter must be YYYY-MM-DD")
	}
	return date, nil
}

// ParseQueryInt returns def when key is absent and rejects values outside [lo, hi].
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidField(key, "query parameter must be numeric")
	}
	if v < lo || v > hi {
		return 0, invalidField(key, "query parameter out of range", "min", lo, "max", hi)
	}
	return v, nil
}

func ParseQueryBool(r *http.Request, key string, def bool) (bool, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidField(key, "query parameter must be true or false")
	}
	return v, nil
}
