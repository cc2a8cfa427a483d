package equipment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"frontdesk/internal/core"
	"frontdesk/internal/events"
)

// StartOutcome reports what the atomic claim did.
type StartOutcome int

const (
	StartOK StartOutcome = iota
	StartBusy
	StartNoUnit
)

// EndOutcome reports what the close did.
type EndOutcome int

const (
	EndOK EndOutcome = iota
	EndAlready
	EndMissing
)

// Repo is the storage contract. StartLoan must flip the unit status and
// insert the loan row in one transaction; EndLoan the reverse.
type Repo interface {
	StartLoan(ctx context.Context, loan Loan) (StartOutcome, error)
	EndLoan(ctx context.Context, loanID string, endedAt time.Time, reason EndReason) (EndOutcome, *Loan, error)
	ExtendLoan(ctx context.Context, loanID string, extra time.Duration) (*Loan, error)
	Active(ctx context.Context) ([]Loan, error)
	ActiveDue(ctx context.Context, cutoff time.Time) ([]Loan, error)
}

// Service is the Equipment Loan Coordinator.
type Service struct {
	repo       Repo
	pub        events.Publisher
	defaultTTL time.Duration
	now        func() time.Time
}

// NewService creates the coordinator. defaultTTL applies when a start gives
// no time limit.
func NewService(repo Repo, pub events.Publisher, defaultTTL time.Duration) *Service {
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &Service{repo: repo, pub: pub, defaultTTL: defaultTTL, now: func() time.Time { return time.Now().UTC() }}
}

// EndResult reports the closed loan and its duration.
type EndResult struct {
	Loan          Loan          `json:"loan"`
	Duration      time.Duration `json:"duration"`
	AlreadyClosed bool          `json:"already_closed"`
}

// Start claims a unit for a student. Conflict when the unit is in use.
func (s *Service) Start(ctx context.Context, equipmentID, studentID string, timeLimit time.Duration) (*Loan, error) {
	equipmentID = strings.TrimSpace(equipmentID)
	studentID = strings.TrimSpace(studentID)
	if equipmentID == "" || studentID == "" {
		return nil, core.Invalid("equipment and student required")
	}
	if timeLimit <= 0 {
		timeLimit = s.defaultTTL
	}

	now := s.now()
	loan := Loan{
		ID:           uuid.NewString(),
		EquipmentID:  equipmentID,
		StudentID:    studentID,
		Status:       StatusActive,
		StartedAt:    now,
		AutoExpireAt: now.Add(timeLimit),
	}
	outcome, err := s.repo.StartLoan(ctx, loan)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case StartNoUnit:
		return nil, core.NotFound("equipment not found")
	case StartBusy:
		return nil, core.Conflict("equipment already in use")
	}

	events.Emit(ctx, s.pub, events.New(events.ChannelEquipment, events.KindEquipmentLoanStarted, equipmentID, map[string]any{
		"loan_id":        loan.ID,
		"student_id":     studentID,
		"auto_expire_at": loan.AutoExpireAt,
	}))
	return &loan, nil
}

// End returns a unit. NotFound when the loan never existed; a repeat end
// reports AlreadyClosed instead of failing, so the sweeper and a manual
// return can race safely.
func (s *Service) End(ctx context.Context, loanID string, reason EndReason) (*EndResult, error) {
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return nil, core.Invalid("loan id required")
	}
	if reason != ReasonManual && reason != ReasonAuto {
		return nil, core.Invalid("unknown end reason")
	}

	now := s.now()
	outcome, loan, err := s.repo.EndLoan(ctx, loanID, now, reason)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case EndMissing:
		return nil, core.NotFound("loan not found")
	case EndAlready:
		return &EndResult{Loan: *loan, Duration: loan.Duration(now), AlreadyClosed: true}, nil
	}

	events.Emit(ctx, s.pub, events.New(events.ChannelEquipment, events.KindEquipmentLoanEnded, loan.EquipmentID, map[string]any{
		"loan_id":    loan.ID,
		"student_id": loan.StudentID,
		"end_reason": reason,
		"duration":   loan.Duration(now).Seconds(),
	}))
	return &EndResult{Loan: *loan, Duration: loan.Duration(now)}, nil
}

// Extend pushes out the expiry of an active loan. Conflict when the loan is
// not active anymore.
func (s *Service) Extend(ctx context.Context, loanID string, additional time.Duration) (*Loan, error) {
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return nil, core.Invalid("loan id required")
	}
	if additional <= 0 {
		return nil, core.Invalid("extension must be positive")
	}

	loan, err := s.repo.ExtendLoan(ctx, loanID, additional)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, core.Conflict("loan is not active")
	}

	events.Emit(ctx, s.pub, events.New(events.ChannelEquipment, events.KindEquipmentLoanExtend, loan.EquipmentID, map[string]any{
		"loan_id":        loan.ID,
		"auto_expire_at": loan.AutoExpireAt,
	}))
	return loan, nil
}

// ActiveLoans lists live loans.
func (s *Service) ActiveLoans(ctx context.Context) ([]Loan, error) {
	return s.repo.Active(ctx)
}

// ExpireDue ends every loan whose expiry has passed, through the same End
// path as manual returns. Returns the number actually transitioned.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ActiveDue(ctx, now)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, loan := range due {
		res, err := s.End(ctx, loan.ID, ReasonAuto)
		if err != nil {
			if core.IsBusiness(err) {
				continue
			}
			return closed, err
		}
		if !res.AlreadyClosed {
			closed++
		}
	}
	return closed, nil
}
