// Package books handles checkout and return bookkeeping. The availability
// counter only ever moves through conditional SQL, never read-then-write, so
// two kiosks grabbing the last copy cannot both win.
package books

import (
	"math"
	"time"
)

// Status of a checkout row.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusReturned Status = "RETURNED"
	StatusOverdue  Status = "OVERDUE"
)

// Checkout is one borrow of one copy.
type Checkout struct {
	ID           string     `json:"id"`
	BookID       string     `json:"book_id"`
	StudentID    string     `json:"student_id"`
	CheckoutDate time.Time  `json:"checkout_date"`
	DueDate      time.Time  `json:"due_date"`
	ReturnDate   *time.Time `json:"return_date,omitempty"`
	Status       Status     `json:"status"`
	FineAmount   float64    `json:"fine_amount"`
}

// FineAmount is the pure fine formula: full days overdue (rounded up) times
// the daily rate, never negative.
func FineAmount(returnedAt, dueAt time.Time, dailyRate float64) float64 {
	if !returnedAt.After(dueAt) {
		return 0
	}
	days := math.Ceil(returnedAt.Sub(dueAt).Hours() / 24)
	return days * dailyRate
}

// statusOnReturn compares return date to due date.
func statusOnReturn(returnedAt, dueAt time.Time) Status {
	if returnedAt.After(dueAt) {
		return StatusOverdue
	}
	return StatusReturned
}
