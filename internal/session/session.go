// Package session is the registry of student activity sessions. The
// one-active-session-per-student invariant lives in the store's conditional
// writes, never in an in-process lock, so it holds across server instances.
package session

import "time"

// Status of a session row. Rows are never deleted; COMPLETED is terminal.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// EndReason distinguishes a manual check-out from a sweeper close.
type EndReason string

const (
	ReasonManual EndReason = "manual"
	ReasonAuto   EndReason = "auto"
)

// Session is one student's open or closed period in the library.
type Session struct {
	ID           string     `json:"id"`
	StudentID    string     `json:"student_id"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	AutoExpireAt time.Time  `json:"auto_expire_at"`
	EndReason    *EndReason `json:"end_reason,omitempty"`
}

// ActiveSession is a live row with the remaining time derived at read time.
type ActiveSession struct {
	Session
	Remaining time.Duration `json:"remaining"`
}

// Stats is the front-desk usage rollup: lifetime check-ins, distinct
// students, and the average length of completed visits in minutes.
type Stats struct {
	TotalCheckIns  int     `json:"total_check_ins"`
	UniqueStudents int     `json:"unique_students"`
	AverageMinutes float64 `json:"average_minutes"`
}
