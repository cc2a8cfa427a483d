package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"frontdesk/internal/events"
)

func TestInMemory_PerEntitySequence(t *testing.T) {
	pub := events.NewInMemory()
	ctx := context.Background()

	require.NoError(t, pub.Publish(ctx, events.New(events.ChannelAttendance, events.KindStudentCheckedIn, "S1", nil)))
	require.NoError(t, pub.Publish(ctx, events.New(events.ChannelAttendance, events.KindStudentCheckedIn, "S2", nil)))
	require.NoError(t, pub.Publish(ctx, events.New(events.ChannelAttendance, events.KindStudentCheckedOut, "S1", nil)))

	log := pub.Log()
	require.Len(t, log, 3)

	// Sequence counts per entity, not globally.
	require.Equal(t, uint64(1), log[0].Seq) // S1
	require.Equal(t, uint64(1), log[1].Seq) // S2
	require.Equal(t, uint64(2), log[2].Seq) // S1 again

	// Every event carries a unique id for subscriber-side dedup.
	require.NotEqual(t, log[0].ID, log[2].ID)
}

func TestInMemory_SubscribeReceivesChannelEventsOnly(t *testing.T) {
	pub := events.NewInMemory()
	ctx := context.Background()

	attendance := pub.Subscribe(events.ChannelAttendance)

	require.NoError(t, pub.Publish(ctx, events.New(events.ChannelEquipment, events.KindEquipmentLoanStarted, "E1", nil)))
	require.NoError(t, pub.Publish(ctx, events.New(events.ChannelAttendance, events.KindStudentCheckedIn, "S1", map[string]any{
		"session_id": "abc",
	})))

	evt := <-attendance
	require.Equal(t, events.KindStudentCheckedIn, evt.Kind)
	require.Equal(t, "S1", evt.EntityID)
	require.Equal(t, "abc", evt.Payload["session_id"])

	select {
	case extra := <-attendance:
		t.Fatalf("unexpected event on attendance channel: %v", extra.Kind)
	default:
	}
}

func TestNew_FillsEnvelope(t *testing.T) {
	evt := events.New(events.ChannelDashboard, events.KindBookCheckedOut, "B1", map[string]any{"student_id": "S1"})

	require.NotEmpty(t, evt.ID)
	require.False(t, evt.OccurredAt.IsZero())
	require.Equal(t, events.ChannelDashboard, evt.Channel)
	require.Equal(t, "B1", evt.EntityID)
	require.Zero(t, evt.Seq) // assigned at publish time
}
