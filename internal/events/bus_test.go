package events

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus[int] {
	return NewBus[int](slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBus_SubscribeFiltersAndDelivers(t *testing.T) {
	bus := newTestBus()

	all, unsubAll := bus.Subscribe(8, nil)
	defer unsubAll()
	onlyA, unsubA := bus.Subscribe(8, ForSubject[int]("a"))
	defer unsubA()

	bus.Publish(Event[int]{Kind: KindStarted, Subject: "a", Payload: 1})
	bus.Publish(Event[int]{Kind: KindStarted, Subject: "b", Payload: 2})

	require.Len(t, all, 2)
	require.Len(t, onlyA, 1)

	got := <-onlyA
	assert.Equal(t, "a", got.Subject)
	assert.Equal(t, 1, got.Payload)
	assert.False(t, got.Time.IsZero(), "Publish should stamp a time")
}

func TestBus_SlowSubscriberDrops(t *testing.T) {
	bus := newTestBus()

	ch, unsub := bus.Subscribe(1, nil)
	defer unsub()

	bus.Publish(Event[int]{Kind: KindProgress, Payload: 1})
	bus.Publish(Event[int]{Kind: KindProgress, Payload: 2})

	assert.Len(t, ch, 1)
	assert.Equal(t, uint64(1), bus.Dropped())
}

func TestBus_HandlersRunInOrder(t *testing.T) {
	bus := newTestBus()

	var got []int
	unsub := bus.Handle(ForKinds[int](KindProgress, KindCompleted), func(e Event[int]) {
		got = append(got, e.Payload)
	})
	defer unsub()

	bus.Publish(Event[int]{Kind: KindStarted, Payload: 0})
	for i := 1; i <= 5; i++ {
		bus.Publish(Event[int]{Kind: KindProgress, Payload: i * 10})
	}
	bus.Publish(Event[int]{Kind: KindCompleted, Payload: 100})

	assert.Equal(t, []int{10, 20, 30, 40, 50, 100}, got)
}

func TestBus_HandlerPanicIsContained(t *testing.T) {
	bus := newTestBus()

	called := false
	bus.Handle(nil, func(Event[int]) { panic("boom") })
	bus.Handle(nil, func(Event[int]) { called = true })

	assert.NotPanics(t, func() {
		bus.Publish(Event[int]{Kind: KindFailed})
	})
	assert.True(t, called, "other handlers still receive the event")
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := newTestBus()

	ch, unsub := bus.Subscribe(1, nil)
	unsub()
	unsub()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.Len())

	assert.NotPanics(t, func() {
		bus.Publish(Event[int]{Kind: KindStarted})
	})
}

func TestBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := newTestBus()

	ch, unsub := bus.Subscribe(64, nil)
	bus.Handle(nil, func(Event[int]) { unsub() })

	assert.NotPanics(t, func() {
		for i := 0; i < 50; i++ {
			bus.Publish(Event[int]{Kind: KindProgress, Payload: i})
		}
	})

	received := 0
	for range ch {
		received++
	}
	assert.LessOrEqual(t, received, 1, "nothing is delivered after the channel closes")
}

func TestBus_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		ch, unsub := bus.Subscribe(1, nil)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(Event[int]{Kind: KindProgress, Payload: j})
			}
		}()
		go func() {
			defer wg.Done()
			unsub()
		}()
		go func() {
			for range ch {
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, bus.Len())
}

func TestBus_CloseSubject(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	calls := 0
	bus.HandleSubject("task-1", func(Event[int]) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	bus.HandleSubject("task-1", func(Event[int]) {})
	bus.HandleSubject("task-2", func(Event[int]) {})

	bus.Publish(Event[int]{Kind: KindProgress, Subject: "task-1"})
	assert.Equal(t, 2, bus.CloseSubject("task-1"))
	bus.Publish(Event[int]{Kind: KindProgress, Subject: "task-1"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, bus.Len())
}

func TestBus_CloseSubjectClosesSubjectChannels(t *testing.T) {
	bus := newTestBus()

	ch, unsub := bus.SubscribeSubject("task-1", 4)
	other, unsubOther := bus.Subscribe(4, nil)
	defer unsubOther()

	bus.Publish(Event[int]{Kind: KindStarted, Subject: "task-2"})
	bus.Publish(Event[int]{Kind: KindStarted, Subject: "task-1", Payload: 7})

	require.Len(t, ch, 1)
	assert.Equal(t, 1, bus.CloseSubject("task-1"))

	got, ok := <-ch
	require.True(t, ok, "buffered event survives close")
	assert.Equal(t, 7, got.Payload)
	_, ok = <-ch
	assert.False(t, ok)
	assert.Len(t, other, 2)

	unsub()
}

func TestKind_Terminal(t *testing.T) {
	assert.False(t, KindStarted.Terminal())
	assert.False(t, KindProgress.Terminal())
	assert.True(t, KindCompleted.Terminal())
	assert.True(t, KindFailed.Terminal())
	assert.True(t, KindCancelled.Terminal())
}

func TestAnd(t *testing.T) {
	f := And(ForSubject[int]("x"), nil, ForKinds[int](KindFailed))

	assert.True(t, f(Event[int]{Subject: "x", Kind: KindFailed}))
	assert.False(t, f(Event[int]{Subject: "x", Kind: KindCompleted}))
	assert.False(t, f(Event[int]{Subject: "y", Kind: KindFailed}))
}
