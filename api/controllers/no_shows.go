package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/orro3790/drive-sub008/api/responses"
	"github.com/orro3790/drive-sub008/internal/noshow"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

type NoShowService interface {
	DetectNoShowsForOrganization(ctx context.Context, scope tenant.Scope, now time.Time) (noshow.DetectionResult, error)
}

// DetectNoShows runs detection for the caller's organization immediately.
func DetectNoShows(svc NoShowService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.DetectNoShowsForOrganization(r.Context(), c.Scope, clock())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}
