package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus, err := NewBus()
	require.NoError(t, err)
	defer bus.Stop()

	received := make(chan *Event[AssignmentCreatedData], 1)
	SubscribeTyped(bus, AssignmentCreated, "test_handler",
		func(ctx context.Context, ev *Event[AssignmentCreatedData]) error {
			received <- ev
			return nil
		})

	go func() {
		_ = bus.Start(ctx)
	}()
	<-bus.Running()

	err = Publish(bus, ctx, New("test_source", AssignmentCreatedData{
		AgentID:  "red",
		TicketID: "T1",
	}))
	require.NoError(t, err)

	select {
	case ev := <-received:
		assert.Equal(t, "red", ev.Data.AgentID)
		assert.Equal(t, "T1", ev.Data.TicketID)
		assert.Equal(t, "test_source", ev.Source)
		assert.NotEmpty(t, ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not handled within timeout")
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus, err := NewBus()
	require.NoError(t, err)
	defer bus.Stop()

	handled1 := make(chan bool, 1)
	handled2 := make(chan bool, 1)
	SubscribeTyped(bus, TicketCompleted, "handler1",
		func(ctx context.Context, ev *Event[TicketCompletedData]) error {
			handled1 <- true
			return nil
		})
	SubscribeTyped(bus, TicketCompleted, "handler2",
		func(ctx context.Context, ev *Event[TicketCompletedData]) error {
			handled2 <- true
			return nil
		})

	go func() {
		_ = bus.Start(ctx)
	}()
	<-bus.Running()

	err = Publish(bus, ctx, New("test_source", TicketCompletedData{
		AgentID:  "red",
		TicketID: "T1",
		Status:   "DONE",
	}))
	require.NoError(t, err)

	for i, ch := range []chan bool{handled1, handled2} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("handler %d did not receive the event", i+1)
		}
	}
}

func TestInferType(t *testing.T) {
	cases := []struct {
		data any
		want Type
	}{
		{AssignmentCreatedData{}, AssignmentCreated},
		{&TicketCompletedData{}, TicketCompleted},
		{TicketReadyData{}, TicketReady},
		{ParentClosableData{}, ParentClosable},
		{EdgeAddedData{}, EdgeAdded},
		{EdgeRejectedData{}, EdgeRejected},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, inferType(c.data))
	}
}

func TestEventMessageRoundTrip(t *testing.T) {
	ev := New("coordinator", EdgeRejectedData{
		DependentID:    "A",
		PrerequisiteID: "B",
		Path:           []string{"A", "B"},
	})

	msg, err := ev.ToMessage()
	require.NoError(t, err)
	assert.Equal(t, EdgeRejected, msg.Type)

	back, err := FromMessage[EdgeRejectedData](msg)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, ev.Data, back.Data)
}
