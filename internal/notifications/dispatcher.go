package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	"github.com/orro3790/drive-sub008/pkg/logger"
)

// Message is one notification addressed to one user.
type Message struct {
	Type      enums.NotificationType
	UserID    uuid.UUID
	OrgID     uuid.UUID
	Title     string
	Body      string
	Payload   map[string]any
	DedupeKey string
}

// Failure records a message that could not be delivered.
type Failure struct {
	UserID uuid.UUID              `json:"userId"`
	Type   enums.NotificationType `json:"type"`
	Error  string                 `json:"error"`
}

// Summary counts per-item outcomes of a Dispatch call.
type Summary struct {
	Sent       int       `json:"sent"`
	Duplicates int       `json:"duplicates"`
	Failed     int       `json:"failed"`
	Failures   []Failure `json:"failures,omitempty"`
}

// Dispatcher delivers notifications. A failing item never aborts the rest.
type Dispatcher interface {
	Dispatch(ctx context.Context, msgs []Message) Summary
}

// Publisher pushes a serialized notification to the push fan-out.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// InAppDispatcher persists notifications to the inbox and optionally
// publishes them for push delivery.
type InAppDispatcher struct {
	repo      Repository
	publisher Publisher
	logg      *logger.Logger
}

// NewDispatcher builds a dispatcher. publisher may be nil.
func NewDispatcher(repo Repository, publisher Publisher, logg *logger.Logger) *InAppDispatcher {
	return &InAppDispatcher{repo: repo, publisher: publisher, logg: logg}
}

type pushEnvelope struct {
	NotificationID uuid.UUID              `json:"notificationId"`
	OrganizationID uuid.UUID              `json:"organizationId"`
	UserID         uuid.UUID              `json:"userId"`
	Type           enums.NotificationType `json:"type"`
	Title          string                 `json:"title"`
	Body           string                 `json:"body"`
	Data           map[string]any         `json:"data,omitempty"`
}

func (d *InAppDispatcher) Dispatch(ctx context.Context, msgs []Message) Summary {
	var summary Summary
	for _, msg := range msgs {
		created, err := d.deliver(ctx, msg)
		switch {
		case err != nil:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{UserID: msg.UserID, Type: msg.Type, Error: err.Error()})
			d.logg.Warn(d.logg.WithFields(ctx, map[string]any{
				"user_id": msg.UserID.String(),
				"type":    string(msg.Type),
				"error":   err.Error(),
			}), "notification.failed")
		case !created:
			summary.Duplicates++
		default:
			summary.Sent++
		}
	}
	return summary
}

func (d *InAppDispatcher) deliver(ctx context.Context, msg Message) (bool, error) {
	if !msg.Type.IsValid() {
		return false, fmt.Errorf("invalid notification type %q", msg.Type)
	}
	title, body := msg.Title, msg.Body
	if title == "" {
		title, body = defaultCopy(msg.Type)
	}

	var data datatypes.JSON
	if len(msg.Payload) > 0 {
		raw, err := json.Marshal(msg.Payload)
		if err != nil {
			return false, fmt.Errorf("encode payload: %w", err)
		}
		data = datatypes.JSON(raw)
	}

	row := &models.Notification{
		OrganizationID: msg.OrgID,
		UserID:         msg.UserID,
		Type:           msg.Type,
		Title:          title,
		Body:           body,
		Data:           data,
	}
	if msg.DedupeKey != "" {
		key := msg.DedupeKey
		row.DedupeKey = &key
	}

	created, err := d.repo.CreateIfAbsent(ctx, row)
	if err != nil {
		return false, fmt.Errorf("store notification: %w", err)
	}
	if !created || d.publisher == nil {
		return created, nil
	}

	raw, err := json.Marshal(pushEnvelope{
		NotificationID: row.ID,
		OrganizationID: row.OrganizationID,
		UserID:         row.UserID,
		Type:           row.Type,
		Title:          title,
		Body:           body,
		Data:           msg.Payload,
	})
	if err != nil {
		return true, fmt.Errorf("encode push: %w", err)
	}
	if _, err := d.publisher.Publish(ctx, raw, map[string]string{
		"type":            string(msg.Type),
		"organization_id": msg.OrgID.String(),
		"user_id":         row.UserID.String(),
	}); err != nil {
		return true, fmt.Errorf("publish push: %w", err)
	}
	return true, nil
}

func defaultCopy(t enums.NotificationType) (string, string) {
	switch t {
	case enums.NotificationTypeBidOpen:
		return "New route open for bids", "A route is open for bidding. Place a bid before the window closes."
	case enums.NotificationTypeEmergencyRouteAvailable:
		return "Urgent route available", "A route needs a driver now. First to accept gets it."
	case enums.NotificationTypeRouteNowInstant:
		return "Route available now", "No bids were placed. The route is now first come, first served."
	case enums.NotificationTypeBidWon:
		return "You won the route", "Your bid won. The route is on your schedule."
	case enums.NotificationTypeBidLost:
		return "Route assigned to another driver", "Another driver was selected for this route."
	case enums.NotificationTypeRouteAssigned:
		return "Route assigned", "A manager assigned you a route."
	case enums.NotificationTypeDriverNoShow:
		return "Driver no-show", "A driver did not arrive for their route. An emergency window was opened."
	default:
		return string(t), ""
	}
}
