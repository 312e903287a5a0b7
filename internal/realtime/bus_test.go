package realtime

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dmRow struct {
	ID         uint   `json:"id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Read       bool   `json:"read"`
}

func mustEvent(t *testing.T, table Table, typ EventType, row interface{}) ChangeEvent {
	t.Helper()
	ev, err := NewChangeEvent(table, typ, row)
	require.NoError(t, err)
	return ev
}

func TestNewChangeEventRecordFields(t *testing.T) {
	ev := mustEvent(t, TableDirectMessages, EventInsert, dmRow{ID: 7, SenderID: "a", ReceiverID: "b"})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "7", ev.Field("id"))
	assert.Equal(t, "b", ev.Field("receiver_id"))
	assert.Equal(t, "false", ev.Field("read"))
	assert.Equal(t, "", ev.Field("missing"))

	var row dmRow
	require.NoError(t, ev.Decode(&row))
	assert.Equal(t, uint(7), row.ID)
	assert.Equal(t, "a", row.SenderID)
}

func TestNewChangeEventRejectsNonObject(t *testing.T) {
	_, err := NewChangeEvent(TableDirectMessages, EventInsert, []int{1, 2})
	assert.Error(t, err)
}

func TestBusDeliversMatchingEventsOnly(t *testing.T) {
	bus := NewBus()
	var got []string
	_, err := bus.Subscribe(TableDirectMessages, Eq("receiver_id", "bob"), func(e ChangeEvent) {
		got = append(got, e.Field("id"))
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, mustEvent(t, TableDirectMessages, EventInsert, dmRow{ID: 1, ReceiverID: "bob"})))
	require.NoError(t, bus.Publish(ctx, mustEvent(t, TableDirectMessages, EventInsert, dmRow{ID: 2, ReceiverID: "carol"})))
	require.NoError(t, bus.Publish(ctx, mustEvent(t, TableNotifications, EventInsert, dmRow{ID: 3, ReceiverID: "bob"})))

	assert.Equal(t, []string{"1"}, got)
}

func TestBusAnyOfAndNilFilter(t *testing.T) {
	bus := NewBus()
	var both, all int
	_, _ = bus.Subscribe(TableDirectMessages, AnyOf(Eq("sender_id", "a"), Eq("receiver_id", "a")), func(ChangeEvent) { both++ })
	_, _ = bus.Subscribe(TableDirectMessages, nil, func(ChangeEvent) { all++ })

	ctx := context.Background()
	_ = bus.Publish(ctx, mustEvent(t, TableDirectMessages, EventInsert, dmRow{SenderID: "a", ReceiverID: "b"}))
	_ = bus.Publish(ctx, mustEvent(t, TableDirectMessages, EventInsert, dmRow{SenderID: "b", ReceiverID: "a"}))
	_ = bus.Publish(ctx, mustEvent(t, TableDirectMessages, EventInsert, dmRow{SenderID: "b", ReceiverID: "c"}))

	assert.Equal(t, 2, both)
	assert.Equal(t, 3, all)
}

func TestBusUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()
	calls := 0
	sub, _ := bus.Subscribe(TableFriendships, nil, func(ChangeEvent) { calls++ })
	assert.Equal(t, 1, bus.SubscriberCount(TableFriendships))

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, bus.SubscriberCount(TableFriendships))

	_ = bus.Publish(context.Background(), mustEvent(t, TableFriendships, EventInsert, dmRow{}))
	assert.Equal(t, 0, calls)
}

func TestBusHandlerPanicDoesNotStopOthers(t *testing.T) {
	bus := NewBus()
	delivered := false
	_, _ = bus.Subscribe(TableFriendships, nil, func(ChangeEvent) { panic("boom") })
	_, _ = bus.Subscribe(TableFriendships, nil, func(ChangeEvent) { delivered = true })

	require.NoError(t, bus.Publish(context.Background(), mustEvent(t, TableFriendships, EventInsert, dmRow{})))
	assert.True(t, delivered)
}

func TestBusHandlerMayUnsubscribeItself(t *testing.T) {
	bus := NewBus()
	var sub Subscription
	calls := 0
	sub, _ = bus.Subscribe(TableFriendships, nil, func(ChangeEvent) {
		calls++
		sub.Unsubscribe()
	})

	ctx := context.Background()
	_ = bus.Publish(ctx, mustEvent(t, TableFriendships, EventInsert, dmRow{}))
	_ = bus.Publish(ctx, mustEvent(t, TableFriendships, EventInsert, dmRow{}))
	assert.Equal(t, 1, calls)
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	count := 0
	_, _ = bus.Subscribe(TableDirectMessages, nil, func(ChangeEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev, _ := NewChangeEvent(TableDirectMessages, EventInsert, dmRow{ID: uint(i)})
			_ = bus.Publish(context.Background(), ev)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, count)
}
