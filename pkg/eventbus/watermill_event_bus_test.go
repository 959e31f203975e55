package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvphq/journey/pkg/channels/gochannel"
	"github.com/rsvphq/journey/pkg/eventbus"
	"github.com/rsvphq/journey/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func startedEvent(enrollmentID string) events.EnrollmentStarted {
	return events.EnrollmentStarted{
		BaseEvent: events.BaseEvent{
			ID:           "evt-1",
			Type:         events.EnrollmentStartedEvent,
			Timestamp:    time.Now().UTC(),
			AutomationID: "auto-1",
			EnrollmentID: enrollmentID,
			ContactID:    "c-1",
		},
		TriggerType: "contact_created",
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	id1 := bus.GenerateID()
	id2 := bus.GenerateID()

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
}

func TestWatermillEventBus_PublishAndSubscribe(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.EnrollmentStartedEvent, func(ctx context.Context, event any) error {
		received <- event

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "enr-1", startedEvent("enr-1")))

	select {
	case event := <-received:
		started, ok := event.(*events.EnrollmentStarted)
		require.True(t, ok)
		assert.Equal(t, "enr-1", started.EnrollmentID)
		assert.Equal(t, events.EnrollmentStartedEvent, started.GetType())
	case <-time.After(5 * time.Second):
		t.Fatal("Did not receive event within timeout")
	}
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan any, 2)

	require.NoError(t, bus.Handle(events.EnrollmentCompletedEvent, func(ctx context.Context, event any) error {
		received <- event

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for the started event; it must not block the
	// completed event behind it.
	require.NoError(t, bus.Publish(ctx, "enr-1", startedEvent("enr-1")))

	completed := events.EnrollmentCompleted{
		BaseEvent: events.BaseEvent{
			ID:           "evt-2",
			Type:         events.EnrollmentCompletedEvent,
			Timestamp:    time.Now().UTC(),
			AutomationID: "auto-1",
			EnrollmentID: "enr-1",
			ContactID:    "c-1",
		},
		CompletedAt: time.Now().UTC(),
	}
	require.NoError(t, bus.Publish(ctx, "enr-1", completed))

	select {
	case event := <-received:
		got, ok := event.(*events.EnrollmentCompleted)
		require.True(t, ok)
		assert.Equal(t, "enr-1", got.EnrollmentID)
	case <-time.After(5 * time.Second):
		t.Fatal("Did not receive event within timeout")
	}
}
