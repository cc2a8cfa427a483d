// Package reminders builds the read-only snapshot shown to a student at
// check-in. A failed snapshot never fails the check-in.
package reminders

import (
	"context"
	"time"

	"frontdesk/internal/books"
)

// Reminder kinds.
const (
	KindOverdue = "overdue"
	KindDueSoon = "due_soon"
	KindWelcome = "welcome"
)

// Reminder is one line on the kiosk screen.
type Reminder struct {
	Kind    string     `json:"kind"`
	Message string     `json:"message"`
	BookID  string     `json:"book_id,omitempty"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// Provider is the contract the session registry consumes.
type Provider interface {
	RemindersFor(ctx context.Context, studentID string) ([]Reminder, error)
	CustomMessage(ctx context.Context, kind string) (string, error)
}

// Outstanding supplies a student's open checkouts.
type Outstanding interface {
	OutstandingFor(ctx context.Context, studentID string) ([]books.Checkout, error)
}

// Service composes reminders from outstanding checkouts plus configured
// messages.
type Service struct {
	books         Outstanding
	messages      map[string]string
	dueSoonWindow time.Duration
	now           func() time.Time
}

// NewService creates a provider. messages may be nil.
func NewService(outstanding Outstanding, messages map[string]string) *Service {
	return &Service{
		books:         outstanding,
		messages:      messages,
		dueSoonWindow: 48 * time.Hour,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RemindersFor lists overdue and due-soon checkouts for a student.
func (s *Service) RemindersFor(ctx context.Context, studentID string) ([]Reminder, error) {
	outstanding, err := s.books.OutstandingFor(ctx, studentID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []Reminder
	for _, co := range outstanding {
		due := co.DueDate
		switch {
		case due.Before(now):
			out = append(out, Reminder{
				Kind:    KindOverdue,
				Message: "book overdue, please return it",
				BookID:  co.BookID,
				DueDate: &due,
			})
		case due.Sub(now) <= s.dueSoonWindow:
			out = append(out, Reminder{
				Kind:    KindDueSoon,
				Message: "book due soon",
				BookID:  co.BookID,
				DueDate: &due,
			})
		}
	}
	return out, nil
}

// CustomMessage returns the configured message for a kind, if any.
func (s *Service) CustomMessage(_ context.Context, kind string) (string, error) {
	return s.messages[kind], nil
}
