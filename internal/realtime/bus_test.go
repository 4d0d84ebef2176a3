package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus(nil, "", nil)

	var got []Event
	unsubscribe := bus.Subscribe("notices", nil, func(e Event) {
		got = append(got, e)
	})
	defer unsubscribe()

	bus.Publish(context.Background(), Event{Table: "notices", Action: "APPROVE", EntityID: "n1"})

	require.Len(t, got, 1)
	assert.Equal(t, "APPROVE", got[0].Action)
	assert.Equal(t, "n1", got[0].EntityID)
	assert.False(t, got[0].At.IsZero())
}

func TestBusFiltersByTableAndAction(t *testing.T) {
	bus := NewBus(nil, "", nil)

	var noticeEvents, deleteEvents int
	bus.Subscribe("notices", nil, func(Event) { noticeEvents++ })
	bus.Subscribe("notices", []string{"DELETE"}, func(Event) { deleteEvents++ })

	bus.Publish(context.Background(), Event{Table: "notices", Action: "CREATE", EntityID: "a"})
	bus.Publish(context.Background(), Event{Table: "users", Action: "CREATE", EntityID: "b"})
	bus.Publish(context.Background(), Event{Table: "notices", Action: "DELETE", EntityID: "c"})

	assert.Equal(t, 2, noticeEvents)
	assert.Equal(t, 1, deleteEvents)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(nil, "", nil)

	count := 0
	unsubscribe := bus.Subscribe("notices", nil, func(Event) { count++ })

	bus.Publish(context.Background(), Event{Table: "notices", Action: "CREATE", EntityID: "a"})
	unsubscribe()
	bus.Publish(context.Background(), Event{Table: "notices", Action: "CREATE", EntityID: "b"})

	assert.Equal(t, 1, count)
}
