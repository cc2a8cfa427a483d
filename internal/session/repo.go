package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"frontdesk/internal/store"
)

// PGRepo persists activity sessions in Postgres. A partial unique index on
// (student_id) WHERE status = 'ACTIVE' backs the conditional insert.
type PGRepo struct {
	db *sql.DB
}

// NewPGRepo creates a repo.
func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{db: db}
}

// InsertActive inserts iff the student has no active row. One statement, so
// two kiosks racing the same badge leave exactly one session behind.
func (r *PGRepo) InsertActive(ctx context.Context, s Session) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_sessions (id, student_id, status, started_at, auto_expire_at)
		SELECT $1, $2, 'ACTIVE', $3, $4
		WHERE NOT EXISTS (
			SELECT 1 FROM activity_sessions
			WHERE student_id = $2 AND status = 'ACTIVE'
		)
	`, s.ID, s.StudentID, s.StartedAt, s.AutoExpireAt)
	if err != nil {
		// The partial unique index turns a true race into a constraint
		// violation; report it the same way as the no-op path.
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, store.MapErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, store.MapErr(err)
	}
	return affected == 1, nil
}

// CompleteActive closes the active row for a student; nil when none exists.
func (r *PGRepo) CompleteActive(ctx context.Context, studentID string, endedAt time.Time, reason EndReason) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE activity_sessions
		SET status = 'COMPLETED', ended_at = $2, end_reason = $3
		WHERE student_id = $1 AND status = 'ACTIVE'
		RETURNING id, student_id, status, started_at, ended_at, auto_expire_at, end_reason
	`, studentID, endedAt, reason)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.MapErr(err)
	}
	return s, nil
}

// ActiveFor returns the active session for a student, nil when none.
func (r *PGRepo) ActiveFor(ctx context.Context, studentID string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, status, started_at, ended_at, auto_expire_at, end_reason
		FROM activity_sessions
		WHERE student_id = $1 AND status = 'ACTIVE'
	`, studentID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.MapErr(err)
	}
	return s, nil
}

// LatestFor returns the most recent session for a student, nil when the
// student has never checked in.
func (r *PGRepo) LatestFor(ctx context.Context, studentID string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, status, started_at, ended_at, auto_expire_at, end_reason
		FROM activity_sessions
		WHERE student_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, studentID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.MapErr(err)
	}
	return s, nil
}

// Active lists every active session.
func (r *PGRepo) Active(ctx context.Context) ([]Session, error) {
	return r.list(ctx, `
		SELECT id, student_id, status, started_at, ended_at, auto_expire_at, end_reason
		FROM activity_sessions
		WHERE status = 'ACTIVE'
		ORDER BY started_at
	`)
}

// ActiveDue lists active sessions whose expiry is at or before cutoff.
func (r *PGRepo) ActiveDue(ctx context.Context, cutoff time.Time) ([]Session, error) {
	return r.list(ctx, `
		SELECT id, student_id, status, started_at, ended_at, auto_expire_at, end_reason
		FROM activity_sessions
		WHERE status = 'ACTIVE' AND auto_expire_at <= $1
		ORDER BY auto_expire_at
	`, cutoff)
}

// Stats aggregates over all sessions; avg only counts completed visits.
func (r *PGRepo) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*),
		       count(DISTINCT student_id),
		       coalesce(avg(extract(epoch FROM ended_at - started_at)) / 60.0, 0)
		FROM activity_sessions
	`).Scan(&st.TotalCheckIns, &st.UniqueStudents, &st.AverageMinutes)
	if err != nil {
		return Stats{}, store.MapErr(err)
	}
	return st, nil
}

func (r *PGRepo) list(ctx context.Context, query string, args ...any) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.MapErr(err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.StudentID, &s.Status, &s.StartedAt, &s.EndedAt, &s.AutoExpireAt, &s.EndReason); err != nil {
			return nil, store.MapErr(err)
		}
		out = append(out, s)
	}
	return out, store.MapErr(rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	if err := row.Scan(&s.ID, &s.StudentID, &s.Status, &s.StartedAt, &s.EndedAt, &s.AutoExpireAt, &s.EndReason); err != nil {
		return nil, err
	}
	return &s, nil
}

func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var pgErr coder
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
