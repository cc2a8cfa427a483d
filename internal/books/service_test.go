package books_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"frontdesk/internal/books"
	"frontdesk/internal/core"
	"frontdesk/internal/events"
)

// fakeRepo holds counters and rows under one lock, matching the atomicity of
// the store's conditional decrement.
type fakeRepo struct {
	mu        sync.Mutex
	available map[string]int
	total     map[string]int
	checkouts map[string]books.Checkout
}

func newFakeRepo(bookID string, copies int) *fakeRepo {
	return &fakeRepo{
		available: map[string]int{bookID: copies},
		total:     map[string]int{bookID: copies},
		checkouts: make(map[string]books.Checkout),
	}
}

func (f *fakeRepo) CreateActive(_ context.Context, co books.Checkout) (books.CreateOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	avail, ok := f.available[co.BookID]
	if !ok {
		return books.CreateNoBook, nil
	}
	if avail == 0 {
		return books.CreateNoCopies, nil
	}
	f.available[co.BookID] = avail - 1
	f.checkouts[co.ID] = co
	return books.CreateOK, nil
}

func (f *fakeRepo) CloseActive(_ context.Context, checkoutID string, returnedAt time.Time, dailyRate float64) (books.CloseOutcome, *books.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	co, ok := f.checkouts[checkoutID]
	if !ok {
		return books.CloseMissing, nil, nil
	}
	if co.ReturnDate != nil {
		return books.CloseAlready, &co, nil
	}
	co.ReturnDate = &returnedAt
	if returnedAt.After(co.DueDate) {
		co.Status = books.StatusOverdue
	} else {
		co.Status = books.StatusReturned
	}
	co.FineAmount = books.FineAmount(returnedAt, co.DueDate, dailyRate)
	f.checkouts[checkoutID] = co
	if f.available[co.BookID] < f.total[co.BookID] {
		f.available[co.BookID]++
	}
	return books.CloseOK, &co, nil
}

func (f *fakeRepo) Availability(_ context.Context, bookID string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available[bookID], f.total[bookID], nil
}

func (f *fakeRepo) OutstandingFor(_ context.Context, studentID string) ([]books.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []books.Checkout
	for _, co := range f.checkouts {
		if co.StudentID == studentID && co.ReturnDate == nil {
			out = append(out, co)
		}
	}
	return out, nil
}

func due() time.Time { return time.Now().UTC().Add(14 * 24 * time.Hour) }

func TestCheckout_LastCopyThenConflictThenReturn(t *testing.T) {
	repo := newFakeRepo("B1", 1)
	svc := books.NewService(repo, events.NewInMemory(), 5)
	ctx := context.Background()

	co, err := svc.Checkout(ctx, "B1", "S1", due())
	require.NoError(t, err)
	require.Equal(t, books.StatusActive, co.Status)

	avail, total, err := svc.Availability(ctx, "B1")
	require.NoError(t, err)
	require.Equal(t, 0, avail)
	require.Equal(t, 1, total)

	_, err = svc.Checkout(ctx, "B1", "S2", due())
	require.Error(t, err)
	require.Equal(t, core.CodeConflict, core.CodeOf(err))

	res, err := svc.Return(ctx, co.ID)
	require.NoError(t, err)
	require.False(t, res.AlreadyClosed)
	require.Equal(t, books.StatusReturned, res.Checkout.Status)
	require.Equal(t, float64(0), res.Checkout.FineAmount)

	avail, _, err = svc.Availability(ctx, "B1")
	require.NoError(t, err)
	require.Equal(t, 1, avail)
}

func TestCheckout_ConcurrentLastCopy(t *testing.T) {
	repo := newFakeRepo("B1", 1)
	svc := books.NewService(repo, events.NewInMemory(), 5)
	ctx := context.Background()

	const n = 6
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(ctx, "B1", "S1", due())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	success, conflict := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			success++
		case core.CodeOf(err) == core.CodeConflict:
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, success)
	require.Equal(t, n-1, conflict)

	avail, total, err := svc.Availability(ctx, "B1")
	require.NoError(t, err)
	require.Equal(t, 0, avail)
	require.Equal(t, 1, total)
}

func TestCheckout_UnknownBookIsNotFound(t *testing.T) {
	svc := books.NewService(newFakeRepo("B1", 1), events.NewInMemory(), 5)

	_, err := svc.Checkout(context.Background(), "B404", "S1", due())
	require.Error(t, err)
	require.Equal(t, core.CodeNotFound, core.CodeOf(err))
}

func TestReturn_LateComputesFineAndOverdue(t *testing.T) {
	repo := newFakeRepo("B1", 1)
	svc := books.NewService(repo, events.NewInMemory(), 5)
	ctx := context.Background()

	co, err := svc.Checkout(ctx, "B1", "S1", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	// Backdate the due date so the return lands in the third overdue day.
	repo.mu.Lock()
	row := repo.checkouts[co.ID]
	row.DueDate = time.Now().UTC().Add(-71 * time.Hour)
	repo.checkouts[co.ID] = row
	repo.mu.Unlock()

	res, err := svc.Return(ctx, co.ID)
	require.NoError(t, err)
	require.Equal(t, books.StatusOverdue, res.Checkout.Status)
	require.Equal(t, float64(15), res.Checkout.FineAmount)
}

func TestReturn_RepeatIsAlreadyClosed(t *testing.T) {
	repo := newFakeRepo("B1", 1)
	pub := events.NewInMemory()
	svc := books.NewService(repo, pub, 5)
	ctx := context.Background()

	co, err := svc.Checkout(ctx, "B1", "S1", due())
	require.NoError(t, err)

	first, err := svc.Return(ctx, co.ID)
	require.NoError(t, err)
	require.False(t, first.AlreadyClosed)

	second, err := svc.Return(ctx, co.ID)
	require.NoError(t, err)
	require.True(t, second.AlreadyClosed)

	// The second return must not increment availability again.
	avail, total, err := svc.Availability(ctx, "B1")
	require.NoError(t, err)
	require.Equal(t, total, avail)

	var returned int
	for _, evt := range pub.Log() {
		if evt.Kind == events.KindBookReturned {
			returned++
		}
	}
	require.Equal(t, 1, returned)
}

func TestReturn_UnknownCheckoutIsNotFound(t *testing.T) {
	svc := books.NewService(newFakeRepo("B1", 1), events.NewInMemory(), 5)

	_, err := svc.Return(context.Background(), "nope")
	require.Error(t, err)
	require.Equal(t, core.CodeNotFound, core.CodeOf(err))
}
