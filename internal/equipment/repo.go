package equipment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"frontdesk/internal/store"
)

// PGRepo persists equipment loans in Postgres. A partial unique index on
// (equipment_id) WHERE status = 'ACTIVE' backs the claim.
type PGRepo struct {
	db *sql.DB
}

// NewPGRepo creates a repo.
func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{db: db}
}

// StartLoan flips the unit AVAILABLE -> IN_USE and inserts the loan row in
// one transaction. The conditional status flip is the exclusivity gate: zero
// rows affected means the unit is busy (or absent).
func (r *PGRepo) StartLoan(ctx context.Context, loan Loan) (StartOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, store.MapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE equipment
		SET status = 'IN_USE'
		WHERE id = $1 AND status = 'AVAILABLE'
	`, loan.EquipmentID)
	if err != nil {
		return 0, store.MapErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, store.MapErr(err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM equipment WHERE id = $1)`, loan.EquipmentID,
		).Scan(&exists); err != nil {
			return 0, store.MapErr(err)
		}
		if !exists {
			return StartNoUnit, nil
		}
		return StartBusy, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO equipment_sessions (id, equipment_id, student_id, status, started_at, auto_expire_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, loan.ID, loan.EquipmentID, loan.StudentID, loan.Status, loan.StartedAt, loan.AutoExpireAt)
	if err != nil {
		return 0, store.MapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, store.MapErr(err)
	}
	return StartOK, nil
}

// EndLoan completes the loan and flips the unit back, atomically. The
// conditional update makes a repeat end (or a sweeper race) a clean
// already-closed outcome.
func (r *PGRepo) EndLoan(ctx context.Context, loanID string, endedAt time.Time, reason EndReason) (EndOutcome, *Loan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, store.MapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		UPDATE equipment_sessions
		SET status = 'COMPLETED', ended_at = $2, end_reason = $3
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING id, equipment_id, student_id, status, started_at, ended_at, auto_expire_at, end_reason
	`, loanID, endedAt, reason)
	loan, err := scanLoan(row)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, nil, store.MapErr(err)
		}
		// Not active: distinguish a finished loan from a ghost id.
		prior := tx.QueryRowContext(ctx, `
			SELECT id, equipment_id, student_id, status, started_at, ended_at, auto_expire_at, end_reason
			FROM equipment_sessions WHERE id = $1
		`, loanID)
		loan, err = scanLoan(prior)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return EndMissing, nil, nil
			}
			return 0, nil, store.MapErr(err)
		}
		if err := tx.Commit(); err != nil {
			return 0, nil, store.MapErr(err)
		}
		return EndAlready, loan, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE equipment
		SET status = 'AVAILABLE'
		WHERE id = $1 AND status = 'IN_USE'
	`, loan.EquipmentID); err != nil {
		return 0, nil, store.MapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, store.MapErr(err)
	}
	return EndOK, loan, nil
}

// ExtendLoan pushes the expiry of an active loan; nil when the loan is not
// active.
func (r *PGRepo) ExtendLoan(ctx context.Context, loanID string, extra time.Duration) (*Loan, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE equipment_sessions
		SET auto_expire_at = auto_expire_at + $2 * interval '1 second'
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING id, equipment_id, student_id, status, started_at, ended_at, auto_expire_at, end_reason
	`, loanID, extra.Seconds())
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.MapErr(err)
	}
	return loan, nil
}

// Active lists live loans.
func (r *PGRepo) Active(ctx context.Context) ([]Loan, error) {
	return r.list(ctx, `
		SELECT id, equipment_id, student_id, status, started_at, ended_at, auto_expire_at, end_reason
		FROM equipment_sessions
		WHERE status = 'ACTIVE'
		ORDER BY started_at
	`)
}

// ActiveDue lists live loans whose expiry is at or before cutoff.
func (r *PGRepo) ActiveDue(ctx context.Context, cutoff time.Time) ([]Loan, error) {
	return r.list(ctx, `
		SELECT id, equipment_id, student_id, status, started_at, ended_at, auto_expire_at, end_reason
		FROM equipment_sessions
		WHERE status = 'ACTIVE' AND auto_expire_at <= $1
		ORDER BY auto_expire_at
	`, cutoff)
}

func (r *PGRepo) list(ctx context.Context, query string, args ...any) ([]Loan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.MapErr(err)
	}
	defer rows.Close()

	var out []Loan
	for rows.Next() {
		var l Loan
		if err := rows.Scan(&l.ID, &l.EquipmentID, &l.StudentID, &l.Status, &l.StartedAt, &l.EndedAt, &l.AutoExpireAt, &l.EndReason); err != nil {
			return nil, store.MapErr(err)
		}
		out = append(out, l)
	}
	return out, store.MapErr(rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*Loan, error) {
	var l Loan
	if err := row.Scan(&l.ID, &l.EquipmentID, &l.StudentID, &l.Status, &l.StartedAt, &l.EndedAt, &l.AutoExpireAt, &l.EndReason); err != nil {
		return nil, err
	}
	return &l, nil
}
