// Package events carries state transitions out of the core. Delivery is
// at-least-once; ordering holds per entity id only. Subscribers dedupe on ID.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Channel names match the dashboard subscriptions.
const (
	ChannelAttendance = "attendance"
	ChannelEquipment  = "equipment"
	ChannelDashboard  = "dashboard"
)

// Kind identifies the transition.
type Kind string

const (
	KindStudentCheckedIn     Kind = "student.checked_in"
	KindStudentCheckedOut    Kind = "student.checked_out"
	KindEquipmentLoanStarted Kind = "equipment.loan_started"
	KindEquipmentLoanEnded   Kind = "equipment.loan_ended"
	KindEquipmentLoanExtend  Kind = "equipment.loan_extended"
	KindBookCheckedOut       Kind = "book.checked_out"
	KindBookReturned         Kind = "book.returned"
)

// Event is the envelope published to subscribers. Seq is assigned by the
// publisher from a per-entity counter so a subscriber can order events within
// one entity; it means nothing across entities.
type Event struct {
	ID         string         `json:"id"`
	Channel    string         `json:"channel"`
	Kind       Kind           `json:"kind"`
	EntityID   string         `json:"entity_id"`
	Seq        uint64         `json:"seq"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New builds an event with a fresh id and timestamp; Seq is filled in by the
// publisher.
func New(channel string, kind Kind, entityID string, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Channel:    channel,
		Kind:       kind,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}
