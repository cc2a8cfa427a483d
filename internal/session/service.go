package session

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"frontdesk/internal/core"
	"frontdesk/internal/events"
	"frontdesk/internal/reminders"
)

// Repo is the storage contract. InsertActive must be a single
// insert-if-no-active-row statement; CompleteActive a single conditional
// update. Zero-rows outcomes come back as booleans/nils, not errors.
type Repo interface {
	InsertActive(ctx context.Context, s Session) (bool, error)
	CompleteActive(ctx context.Context, studentID string, endedAt time.Time, reason EndReason) (*Session, error)
	ActiveFor(ctx context.Context, studentID string) (*Session, error)
	LatestFor(ctx context.Context, studentID string) (*Session, error)
	Active(ctx context.Context) ([]Session, error)
	ActiveDue(ctx context.Context, cutoff time.Time) ([]Session, error)
	Stats(ctx context.Context) (Stats, error)
}

// Service is the Session Registry for students.
type Service struct {
	repo      Repo
	pub       events.Publisher
	reminders reminders.Provider
	ttl       time.Duration
	now       func() time.Time
}

// NewService creates the registry. rem may be nil when no reminder provider
// is wired (the snapshot is then always empty).
func NewService(repo Repo, pub events.Publisher, rem reminders.Provider, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Service{repo: repo, pub: pub, reminders: rem, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// CheckInResult pairs the new session with the kiosk greeting snapshot.
type CheckInResult struct {
	Session   Session              `json:"session"`
	Reminders []reminders.Reminder `json:"reminders,omitempty"`
	Welcome   string               `json:"welcome,omitempty"`
}

// CheckOutResult reports the closed session. AlreadyClosed means someone (or
// the sweeper) got there first; that is a normal outcome.
type CheckOutResult struct {
	Session       Session `json:"session"`
	AlreadyClosed bool    `json:"already_closed"`
}

// CheckIn opens a session. Conflict when one is already active.
func (s *Service) CheckIn(ctx context.Context, studentID string) (*CheckInResult, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, core.Invalid("student id required")
	}

	now := s.now()
	sess := Session{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		Status:       StatusActive,
		StartedAt:    now,
		AutoExpireAt: now.Add(s.ttl),
	}
	inserted, err := s.repo.InsertActive(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, core.Conflict("already checked in")
	}

	res := &CheckInResult{Session: sess}
	if s.reminders != nil {
		// Reminders are best effort; check-in never fails because of them.
		if rems, err := s.reminders.RemindersFor(ctx, studentID); err == nil {
			res.Reminders = rems
		} else {
			log.Printf("reminder snapshot failed for %s: %v", studentID, err)
		}
		if msg, err := s.reminders.CustomMessage(ctx, reminders.KindWelcome); err == nil {
			res.Welcome = msg
		}
	}

	events.Emit(ctx, s.pub, events.New(events.ChannelAttendance, events.KindStudentCheckedIn, studentID, map[string]any{
		"session_id":     sess.ID,
		"auto_expire_at": sess.AutoExpireAt,
	}))
	return res, nil
}

// CheckOut closes the active session. NotFound when the student has none;
// a repeat call reports AlreadyClosed instead of failing.
func (s *Service) CheckOut(ctx context.Context, studentID string, reason EndReason) (*CheckOutResult, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, core.Invalid("student id required")
	}
	if reason != ReasonManual && reason != ReasonAuto {
		return nil, core.Invalid("unknown end reason")
	}

	closed, err := s.repo.CompleteActive(ctx, studentID, s.now(), reason)
	if err != nil {
		return nil, err
	}
	if closed == nil {
		latest, err := s.repo.LatestFor(ctx, studentID)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return nil, core.NotFound("no session for student")
		}
		return &CheckOutResult{Session: *latest, AlreadyClosed: true}, nil
	}

	events.Emit(ctx, s.pub, events.New(events.ChannelAttendance, events.KindStudentCheckedOut, studentID, map[string]any{
		"session_id": closed.ID,
		"end_reason": reason,
	}))
	return &CheckOutResult{Session: *closed}, nil
}

// ActiveFor returns the student's active session, nil when none.
func (s *Service) ActiveFor(ctx context.Context, studentID string) (*Session, error) {
	return s.repo.ActiveFor(ctx, studentID)
}

// ActiveSessions lists live sessions with remaining time derived at read
// time; a session past its expiry shows zero, not negative.
func (s *Service) ActiveSessions(ctx context.Context) ([]ActiveSession, error) {
	rows, err := s.repo.Active(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]ActiveSession, 0, len(rows))
	for _, row := range rows {
		remaining := row.AutoExpireAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, ActiveSession{Session: row, Remaining: remaining})
	}
	return out, nil
}

// Stats returns the usage rollup for the dashboard.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

// ExpireDue closes every session whose expiry has passed, through the same
// CheckOut path as manual closes. Returns the number actually transitioned;
// rows a concurrent manual check-out already closed do not count.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ActiveDue(ctx, now)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, sess := range due {
		res, err := s.CheckOut(ctx, sess.StudentID, ReasonAuto)
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
