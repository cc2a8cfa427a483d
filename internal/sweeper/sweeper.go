// Package sweeper closes stale sessions on a fixed period. It goes through
// the same check-out/end paths as manual actions, so racing a kiosk is safe:
// one side transitions, the other sees already-closed.
package sweeper

import (
	"context"
	"log"
	"time"

	"frontdesk/internal/core"
	"frontdesk/internal/metrics"
)

// Expirer closes everything due at the cutoff and reports how many rows it
// actually transitioned.
type Expirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// Sweeper drives both registries.
type Sweeper struct {
	students    Expirer
	equipment   Expirer
	interval    time.Duration
	retries     int
	now         func() time.Time
	activeCount func(ctx context.Context) (int, error)
}

// Result of one sweep.
type Result struct {
	Students  int `json:"students"`
	Equipment int `json:"equipment"`
}

// New creates a sweeper. The retry budget applies per registry per sweep and
// only to transient store errors; business outcomes never retry.
func New(students, equipment Expirer, interval time.Duration, retries int) *Sweeper {
	if interval <= 0 {
		interval = 45 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Sweeper{
		students:  students,
		equipment: equipment,
		interval:  interval,
		retries:   retries,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// TrackActive registers a live-session counter. Each sweep then refreshes
// the active-sessions gauge, so it tracks reality between dashboard polls.
func (s *Sweeper) TrackActive(count func(ctx context.Context) (int, error)) {
	s.activeCount = count
}

// Sweep closes everything due right now. Also invoked directly by the
// scheduler trigger endpoint.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	now := s.now()
	var res Result
	var err error

	if res.Students, err = s.expireWithRetry(ctx, s.students, now); err != nil {
		return res, err
	}
	metrics.SweeperClosed.WithLabelValues("student").Add(float64(res.Students))

	if res.Equipment, err = s.expireWithRetry(ctx, s.equipment, now); err != nil {
		return res, err
	}
	metrics.SweeperClosed.WithLabelValues("equipment").Add(float64(res.Equipment))

	if s.activeCount != nil {
		if n, err := s.activeCount(ctx); err == nil {
			metrics.ActiveStudentSessions.Set(float64(n))
		}
	}
	return res, nil
}

// Run loops until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.Sweep(ctx)
			if err != nil {
				log.Printf("sweep failed: %v", err)
				continue
			}
			if res.Students > 0 || res.Equipment > 0 {
				log.Printf("sweep closed %d student sessions, %d equipment loans", res.Students, res.Equipment)
			}
		}
	}
}

func (s *Sweeper) expireWithRetry(ctx context.Context, exp Expirer, now time.Time) (int, error) {
	closed := 0
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return closed, ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
		n, err := exp.ExpireDue(ctx, now)
		closed += n
		if err == nil {
			return closed, nil
		}
		if core.CodeOf(err) != core.CodeTransientStore {
			return closed, err
		}
		lastErr = err
	}
	return closed, lastErr
}
