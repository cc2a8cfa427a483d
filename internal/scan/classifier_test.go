package scan_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"frontdesk/internal/core"
	"frontdesk/internal/events"
	"frontdesk/internal/lookup"
	"frontdesk/internal/scan"
	"frontdesk/internal/session"
)

// registry wraps a real session service over an in-memory repo so the
// classifier drives actual check-in/check-out transitions.
func newRegistry(t *testing.T) (*session.Service, *events.InMemory) {
	t.Helper()
	pub := events.NewInMemory()
	return session.NewService(&memRepo{}, pub, nil, 2*time.Hour), pub
}

func newClassifier(t *testing.T, cooldown scan.CooldownStore) (*scan.Classifier, *events.InMemory) {
	t.Helper()
	svc, pub := newRegistry(t)
	resolver := lookup.NewClient("", true) // prefix stub: S=student, B=book, E=equipment
	return scan.New(resolver, svc, cooldown), pub
}

func TestClassify_UnknownCodeIsValidOutcome(t *testing.T) {
	c, _ := newClassifier(t, scan.NewMemoryCooldown(time.Minute))

	res, err := c.Classify(context.Background(), "X999")
	require.NoError(t, err)
	require.Equal(t, scan.ActionUnknown, res.Action)
	require.Equal(t, "code not recognized", res.Message)
}

func TestClassify_EmptyCodeIsValidation(t *testing.T) {
	c, _ := newClassifier(t, scan.NewMemoryCooldown(time.Minute))

	_, err := c.Classify(context.Background(), "   ")
	require.Error(t, err)
	require.Equal(t, core.CodeValidation, core.CodeOf(err))
}

func TestClassify_RoutesBookAndEquipment(t *testing.T) {
	c, _ := newClassifier(t, scan.NewMemoryCooldown(time.Minute))
	ctx := context.Background()

	res, err := c.Classify(ctx, "B42")
	require.NoError(t, err)
	require.Equal(t, scan.ActionBook, res.Action)
	require.Equal(t, lookup.KindBook, res.Entity.Kind)
	require.Equal(t, "B42", res.Entity.ID)

	res, err = c.Classify(ctx, "E7")
	require.NoError(t, err)
	require.Equal(t, scan.ActionEquipment, res.Action)
}

// The kiosk scenario: check in, rescan inside the cooldown window with no
// side effects, then check out once the window has passed.
func TestHandle_CheckInCooldownCheckOut(t *testing.T) {
	now := time.Now()
	cooldown := scan.NewMemoryCooldown(2 * time.Minute)
	cooldown.SetClock(func() time.Time { return now })

	c, pub := newClassifier(t, cooldown)
	ctx := context.Background()

	res, err := c.Handle(ctx, "S100")
	require.NoError(t, err)
	require.Equal(t, scan.ActionCheckIn, res.Action)
	require.Equal(t, "checked in", res.Message)
	require.NotNil(t, res.Session)
	require.Equal(t, session.StatusActive, res.Session.Status)

	// 5 seconds later: rejected, nothing mutated.
	now = now.Add(5 * time.Second)
	res, err = c.Handle(ctx, "S100")
	require.NoError(t, err)
	require.Equal(t, scan.ActionCooldown, res.Action)
	require.Equal(t, "please wait before scanning again", res.Message)
	require.Equal(t, session.StatusActive, res.Session.Status)
	require.Len(t, pub.Log(), 1)

	// Past the window, before expiry: checks out.
	now = now.Add(3 * time.Minute)
	res, err = c.Handle(ctx, "S100")
	require.NoError(t, err)
	require.Equal(t, scan.ActionCheckOut, res.Action)
	require.Equal(t, "checked out", res.Message)
	require.Equal(t, session.StatusCompleted, res.Session.Status)
	require.NotNil(t, res.Session.EndedAt)

	kinds := []events.Kind{}
	for _, evt := range pub.Log() {
		kinds = append(kinds, evt.Kind)
	}
	require.Equal(t, []events.Kind{events.KindStudentCheckedIn, events.KindStudentCheckedOut}, kinds)
}

func TestMemoryCooldown_Expires(t *testing.T) {
	now := time.Now()
	c := scan.NewMemoryCooldown(time.Minute)
	c.SetClock(func() time.Time { return now })
	ctx := context.Background()

	recent, err := c.Recent(ctx, "S100")
	require.NoError(t, err)
	require.False(t, recent)

	require.NoError(t, c.Touch(ctx, "S100"))

	recent, err = c.Recent(ctx, "S100")
	require.NoError(t, err)
	require.True(t, recent)

	now = now.Add(61 * time.Second)
	recent, err = c.Recent(ctx, "S100")
	require.NoError(t, err)
	require.False(t, recent)
}
