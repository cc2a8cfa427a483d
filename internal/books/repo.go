package books

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"frontdesk/internal/store"
)

// PGRepo persists checkouts in Postgres.
type PGRepo struct {
	db *sql.DB
}

// NewPGRepo creates a repo.
func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{db: db}
}

// CreateActive decrements availability and inserts the checkout row in one
// transaction. The decrement is conditional on available_copies > 0; zero
// rows affected means every copy is out, not an error.
func (r *PGRepo) CreateActive(ctx context.Context, co Checkout) (CreateOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, store.MapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE books
		SET available_copies = available_copies - 1
		WHERE id = $1 AND available_copies > 0
	`, co.BookID)
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
			`SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, co.BookID,
		).Scan(&exists); err != nil {
			return 0, store.MapErr(err)
		}
		if !exists {
			return CreateNoBook, nil
		}
		return CreateNoCopies, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO book_checkouts (id, book_id, student_id, checkout_date, due_date, status, fine_amount)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
	`, co.ID, co.BookID, co.StudentID, co.CheckoutDate, co.DueDate, co.Status)
	if err != nil {
		return 0, store.MapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, store.MapErr(err)
	}
	return CreateOK, nil
}

// CloseActive marks a checkout returned and restores the copy. The row lock
// keeps a concurrent double-return from incrementing twice.
func (r *PGRepo) CloseActive(ctx context.Context, checkoutID string, returnedAt time.Time, dailyRate float64) (CloseOutcome, *Checkout, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, store.MapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	var co Checkout
	row := tx.QueryRowContext(ctx, `
		SELECT id, book_id, student_id, checkout_date, due_date, return_date, status, fine_amount
		FROM book_checkouts
		WHERE id = $1
		FOR UPDATE
	`, checkoutID)
	if err := row.Scan(&co.ID, &co.BookID, &co.StudentID, &co.CheckoutDate, &co.DueDate, &co.ReturnDate, &co.Status, &co.FineAmount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CloseMissing, nil, nil
		}
		return 0, nil, store.MapErr(err)
	}
	if co.ReturnDate != nil {
		return CloseAlready, &co, nil
	}

	co.ReturnDate = &returnedAt
	co.Status = statusOnReturn(returnedAt, co.DueDate)
	co.FineAmount = FineAmount(returnedAt, co.DueDate, dailyRate)

	if _, err := tx.ExecContext(ctx, `
		UPDATE book_checkouts
		SET return_date = $2, status = $3, fine_amount = $4
		WHERE id = $1
	`, co.ID, returnedAt, co.Status, co.FineAmount); err != nil {
		return 0, nil, store.MapErr(err)
	}

	// Guarded so a stray row can never push available past total.
	if _, err := tx.ExecContext(ctx, `
		UPDATE books
		SET available_copies = available_copies + 1
		WHERE id = $1 AND available_copies < total_copies
	`, co.BookID); err != nil {
		return 0, nil, store.MapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, store.MapErr(err)
	}
	return CloseOK, &co, nil
}

// Availability returns the copy counters for a book.
func (r *PGRepo) Availability(ctx context.Context, bookID string) (int, int, error) {
	var available, total int
	err := r.db.QueryRowContext(ctx,
		`SELECT available_copies, total_copies FROM books WHERE id = $1`, bookID,
	).Scan(&available, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	return available, total, store.MapErr(err)
}

// OutstandingFor lists open checkouts for one student, soonest due first.
func (r *PGRepo) OutstandingFor(ctx context.Context, studentID string) ([]Checkout, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, book_id, student_id, checkout_date, due_date, return_date, status, fine_amount
		FROM book_checkouts
		WHERE student_id = $1 AND return_date IS NULL
		ORDER BY due_date
	`, studentID)
	if err != nil {
		return nil, store.MapErr(err)
	}
	defer rows.Close()

	var out []Checkout
	for rows.Next() {
		var co Checkout
		if err := rows.Scan(&co.ID, &co.BookID, &co.StudentID, &co.CheckoutDate, &co.DueDate, &co.ReturnDate, &co.Status, &co.FineAmount); err != nil {
			return nil, store.MapErr(err)
		}
		out = append(out, co)
	}
	return out, store.MapErr(rows.Err())
}
