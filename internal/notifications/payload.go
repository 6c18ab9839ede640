package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/orro3790/drive-sub008/pkg/db/models"
)

// SlotPayload is the data block shared by every dispatch notification about
// one assignment.
func SlotPayload(a models.Assignment, route models.Route, shiftStart time.Time, windowID uuid.UUID) map[string]any {
	payload := map[string]any{
		"assignmentId": a.ID.String(),
		"routeId":      route.ID.String(),
		"routeName":    route.Name,
		"date":         a.CivilDate().Format(time.DateOnly),
		"shiftStart":   shiftStart.UTC().Format(time.RFC3339),
	}
	if windowID != uuid.Nil {
		payload["bidWindowId"] = windowID.String()
	}
	return payload
}

// Fanout copies base once per user with a per-user dedupe key
// derived from prefix.
func Fanout(base Message, users []uuid.UUID, prefix string) []Message {
	out := make([]Message, 0, len(users))
	for _, id := range users {
		msg := base
		msg.UserID = id
		if prefix != "" {
			msg.DedupeKey = prefix + ":" + id.String()
		}
		out = append(out, msg)
	}
	return out
}
