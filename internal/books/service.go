package books

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"frontdesk/internal/core"
	"frontdesk/internal/events"
)

// CreateOutcome reports what the conditional checkout write did.
type CreateOutcome int

const (
	CreateOK CreateOutcome = iota
	CreateNoCopies
	CreateNoBook
)

// CloseOutcome reports what the return write did.
type CloseOutcome int

const (
	CloseOK CloseOutcome = iota
	CloseAlready
	CloseMissing
)

// Repo is the storage contract. Implementations must make CreateActive a
// single atomic decrement-and-insert and CloseActive a single transaction.
type Repo interface {
	CreateActive(ctx context.Context, co Checkout) (CreateOutcome, error)
	CloseActive(ctx context.Context, checkoutID string, returnedAt time.Time, dailyRate float64) (CloseOutcome, *Checkout, error)
	Availability(ctx context.Context, bookID string) (available, total int, err error)
	OutstandingFor(ctx context.Context, studentID string) ([]Checkout, error)
}

// Service is the Book Checkout/Return Coordinator.
type Service struct {
	repo      Repo
	pub       events.Publisher
	dailyRate float64
	now       func() time.Time
}

// NewService creates the coordinator.
func NewService(repo Repo, pub events.Publisher, dailyRate float64) *Service {
	return &Service{repo: repo, pub: pub, dailyRate: dailyRate, now: func() time.Time { return time.Now().UTC() }}
}

// ReturnResult is what a return reports back to the desk.
type ReturnResult struct {
	Checkout      *Checkout `json:"checkout"`
	AlreadyClosed bool      `json:"already_closed"`
}

// Checkout borrows one copy for a student. Conflict when no copies remain.
func (s *Service) Checkout(ctx context.Context, bookID, studentID string, dueDate time.Time) (*Checkout, error) {
	bookID = strings.TrimSpace(bookID)
	studentID = strings.TrimSpace(studentID)
	if bookID == "" || studentID == "" {
		return nil, core.Invalid("book and student required")
	}
	if dueDate.IsZero() || !dueDate.After(s.now()) {
		return nil, core.Invalid("due date must be in the future")
	}

	co := Checkout{
		ID:           uuid.NewString(),
		BookID:       bookID,
		StudentID:    studentID,
		CheckoutDate: s.now(),
		DueDate:      dueDate,
		Status:       StatusActive,
	}
	outcome, err := s.repo.CreateActive(ctx, co)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case CreateNoBook:
		return nil, core.NotFound("book not found")
	case CreateNoCopies:
		return nil, core.Conflict("no copies available")
	}

	events.Emit(ctx, s.pub, events.New(events.ChannelDashboard, events.KindBookCheckedOut, co.BookID, map[string]any{
		"checkout_id": co.ID,
		"student_id":  co.StudentID,
		"due_date":    co.DueDate,
	}))
	return &co, nil
}

// Return closes a checkout, restores the copy, and computes the fine. A
// repeat return reports already-closed instead of failing.
func (s *Service) Return(ctx context.Context, checkoutID string) (*ReturnResult, error) {
	checkoutID = strings.TrimSpace(checkoutID)
	if checkoutID == "" {
		return nil, core.Invalid("checkout id required")
	}

	outcome, co, err := s.repo.CloseActive(ctx, checkoutID, s.now(), s.dailyRate)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case CloseMissing:
		return nil, core.NotFound("checkout not found")
	case CloseAlready:
		return &ReturnResult{Checkout: co, AlreadyClosed: true}, nil
	}

	events.Emit(ctx, s.pub, events.New(events.ChannelDashboard, events.KindBookReturned, co.BookID, map[string]any{
		"checkout_id": co.ID,
		"student_id":  co.StudentID,
		"status":      co.Status,
		"fine_amount": co.FineAmount,
	}))
	return &ReturnResult{Checkout: co}, nil
}

// Availability reports the copy counters for a book.
func (s *Service) Availability(ctx context.Context, bookID string) (available, total int, err error) {
	return s.repo.Availability(ctx, bookID)
}

// OutstandingFor lists a student's open checkouts, used for the check-in
// reminder snapshot.
func (s *Service) OutstandingFor(ctx context.Context, studentID string) ([]Checkout, error) {
	return s.repo.OutstandingFor(ctx, studentID)
}
