package reminders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"frontdesk/internal/books"
	"frontdesk/internal/reminders"
)

type fakeOutstanding struct {
	rows []books.Checkout
	err  error
}

func (f *fakeOutstanding) OutstandingFor(_ context.Context, _ string) ([]books.Checkout, error) {
	return f.rows, f.err
}

func TestRemindersFor_OverdueAndDueSoon(t *testing.T) {
	now := time.Now().UTC()
	outstanding := &fakeOutstanding{rows: []books.Checkout{
		{BookID: "B1", DueDate: now.Add(-24 * time.Hour)}, // overdue
		{BookID: "B2", DueDate: now.Add(24 * time.Hour)},  // due soon
		{BookID: "B3", DueDate: now.Add(10 * 24 * time.Hour)},
	}}
	svc := reminders.NewService(outstanding, nil)

	rems, err := svc.RemindersFor(context.Background(), "S1")
	require.NoError(t, err)
	require.Len(t, rems, 2)
	require.Equal(t, reminders.KindOverdue, rems[0].Kind)
	require.Equal(t, "B1", rems[0].BookID)
	require.Equal(t, reminders.KindDueSoon, rems[1].Kind)
	require.Equal(t, "B2", rems[1].BookID)
}

func TestRemindersFor_PropagatesLookupFailure(t *testing.T) {
	svc := reminders.NewService(&fakeOutstanding{err: errors.New("down")}, nil)

	_, err := svc.RemindersFor(context.Background(), "S1")
	require.Error(t, err)
}

func TestCustomMessage(t *testing.T) {
	svc := reminders.NewService(&fakeOutstanding{}, map[string]string{
		reminders.KindWelcome: "Welcome back",
	})

	msg, err := svc.CustomMessage(context.Background(), reminders.KindWelcome)
	require.NoError(t, err)
	require.Equal(t, "Welcome back", msg)

	msg, err = svc.CustomMessage(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, msg)
}
