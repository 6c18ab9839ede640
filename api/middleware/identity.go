package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/orro3790/drive-sub008/api/responses"
	"github.com/orro3790/drive-sub008/pkg/enums"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

// Headers set by the authenticating gateway in front of the API.
const (
	HeaderOrganizationID = "X-Organization-Id"
	HeaderUserID         = "X-User-Id"
	HeaderUserRole       = "X-User-Role"
)

// Identity resolves the gateway headers into a Caller and rejects the
// request with 401 when any of them is missing or malformed.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := callerFromHeaders(r.Header)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := WithCaller(r.Context(), c)
			if logg != nil {
				ctx = logg.WithCaller(ctx, c.Scope.OrgID().String(), c.UserID.String(), string(c.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func callerFromHeaders(h http.Header) (Caller, error) {
	rawOrg := strings.TrimSpace(h.Get(HeaderOrganizationID))
	rawUser := strings.TrimSpace(h.Get(HeaderUserID))
	if rawOrg == "" || rawUser == "" {
		return Caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity")
	}
	orgID, err := uuid.Parse(rawOrg)
	if err != nil {
		return Caller{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid organization id")
	}
	scope, err := tenant.NewScope(orgID)
	if err != nil {
		return Caller{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid organization id")
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil || userID == uuid.Nil {
		return Caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user id")
	}
	role, err := enums.ParseUserRole(h.Get(HeaderUserRole))
	if err != nil {
		return Caller{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role")
	}
	return Caller{Scope: scope, UserID: userID, Role: role}, nil
}
