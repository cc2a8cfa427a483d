// Package equipment coordinates loans of physical units (laptops, tablets,
// calculators). A unit's AVAILABLE/IN_USE status and its loan row change in
// one transaction, so the two can never disagree.
package equipment

import "time"

// Unit status mirror.
const (
	UnitAvailable = "AVAILABLE"
	UnitInUse     = "IN_USE"
)

// Status of a loan row.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// EndReason distinguishes a manual end from a sweeper close.
type EndReason string

const (
	ReasonManual EndReason = "manual"
	ReasonAuto   EndReason = "auto"
)

// Loan is one student's use of one equipment unit.
type Loan struct {
	ID           string     `json:"id"`
	EquipmentID  string     `json:"equipment_id"`
	StudentID    string     `json:"student_id"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	AutoExpireAt time.Time  `json:"auto_expire_at"`
	EndReason    *EndReason `json:"end_reason,omitempty"`
}

// Duration of the loan so far, or total when ended.
func (l Loan) Duration(now time.Time) time.Duration {
	if l.EndedAt != nil {
		return l.EndedAt.Sub(l.StartedAt)
	}
	return now.Sub(l.StartedAt)
}
