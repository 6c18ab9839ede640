package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/orro3790/drive-sub008/pkg/enums"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

// Caller is the principal the gateway authenticated for this request.
type Caller struct {
	Scope  tenant.Scope
	UserID uuid.UUID
	Role   enums.UserRole
}

// Actor is the audit label stored on rows the caller changes.
func (c Caller) Actor() string {
	return string(c.Role) + ":" + c.UserID.String()
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller seeded by Identity. ok is false when no
// caller is present or it carries a zero organization or user.
func CallerFrom(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	c, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || c.Scope.IsZero() || c.UserID == uuid.Nil {
		return Caller{}, false
	}
	return c, true
}
