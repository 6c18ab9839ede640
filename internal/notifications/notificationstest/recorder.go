// Package notificationstest provides an in-memory Dispatcher for tests.
package notificationstest

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/orro3790/drive-sub008/internal/notifications"
	"github.com/orro3790/drive-sub008/pkg/enums"
)

// Recorder captures dispatched messages. Users listed in FailFor fail delivery.
type Recorder struct {
	mu       sync.Mutex
	messages []notifications.Message
	seen     map[string]bool
	FailFor  map[uuid.UUID]bool
}

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{seen: map[string]bool{}, FailFor: map[uuid.UUID]bool{}}
}

func (r *Recorder) Dispatch(_ context.Context, msgs []notifications.Message) notifications.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	var summary notifications.Summary
	for _, msg := range msgs {
		if r.FailFor[msg.UserID] {
			summary.Failed++
			summary.Failures = append(summary.Failures, notifications.Failure{
				UserID: msg.UserID,
				Type:   msg.Type,
				Error:  errors.New("delivery failed").Error(),
			})
			continue
		}
		if msg.DedupeKey != "" {
			if r.seen[msg.DedupeKey] {
				summary.Duplicates++
				continue
			}
			r.seen[msg.DedupeKey] = true
		}
		r.messages = append(r.messages, msg)
		summary.Sent++
	}
	return summary
}

// Messages returns a copy of every delivered message.
func (r *Recorder) Messages() []notifications.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notifications.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// OfType returns delivered messages of type t.
func (r *Recorder) OfType(t enums.NotificationType) []notifications.Message {
	var out []notifications.Message
	for _, msg := range r.Messages() {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}

// To returns delivered messages of type t addressed to userID.
func (r *Recorder) To(userID uuid.UUID, t enums.NotificationType) []notifications.Message {
	var out []notifications.Message
	for _, msg := range r.OfType(t) {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	return out
}
