package controllers

import (
	"net/http"
	"time"

	"github.com/orro3790/drive-sub008/api/middleware"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
)

// clock is swapped in tests.
var clock = func() time.Time { return time.Now().UTC() }

func callerFrom(r *http.Request) (middleware.Caller, error) {
	c, ok := middleware.CallerFrom(r.Context())
	if !ok {
		return middleware.Caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	return c, nil
}
