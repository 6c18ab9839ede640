package middleware

import (
	"net/http"
	"slices"

	"github.com/orro3790/drive-sub008/api/responses"
	"github.com/orro3790/drive-sub008/pkg/enums"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/logger"
)

// RequireRole lets through only callers holding one of roles. It must run
// after Identity.
func RequireRole(logg *logger.Logger, roles ...enums.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := CallerFrom(r.Context())
			switch {
			case !ok:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
			case !slices.Contains(roles, c.Role):
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role "+string(c.Role)+" may not perform this action"))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
