package events

import (
	"sync"
	"testing"
)

// mockSubscriber implements Subscriber for testing.
type mockSubscriber struct {
	mu       sync.Mutex
	events   []Event
	isClosed bool
}

func (m *mockSubscriber) Receive(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockSubscriber) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isClosed
}

func (m *mockSubscriber) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Event, len(m.events))
	copy(cp, m.events)
	return cp
}

func TestBusEmitToTarget(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}
	bus.Subscribe("#bob", sub)

	bus.Emit(Event{Type: EvMessage, Target: "#bob", Source: "#gen", Text: "Hello world"})

	events := sub.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Text != "Hello world" {
		t.Errorf("expected text %q, got %q", "Hello world", events[0].Text)
	}
	if events[0].Type != EvMessage {
		t.Errorf("expected type EvMessage, got %v", events[0].Type)
	}
}

func TestBusTargetIsolation(t *testing.T) {
	bus := NewBus()
	bob := &mockSubscriber{}
	ada := &mockSubscriber{}
	bus.Subscribe("#bob", bob)
	bus.Subscribe("#ada", ada)

	bus.EmitTo("#bob", Event{Type: EvText, Text: "for bob"})

	if got := len(bob.Events()); got != 1 {
		t.Errorf("bob got %d events, want 1", got)
	}
	if got := len(ada.Events()); got != 0 {
		t.Errorf("ada got %d events, want 0", got)
	}
}

func TestBusGlobalSubscriber(t *testing.T) {
	bus := NewBus()
	global := &mockSubscriber{}
	bus.SubscribeGlobal(global)

	bus.Emit(Event{Type: EvText, Target: "#whoever", Text: "test msg"})

	events := global.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 global event, got %d", len(events))
	}
	if events[0].Target != "#whoever" {
		t.Errorf("expected target #whoever, got %q", events[0].Target)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}
	bus.Subscribe("#bob", sub)
	bus.Unsubscribe("#bob", sub)

	bus.Emit(Event{Type: EvText, Target: "#bob", Text: "dropped"})

	if got := len(sub.Events()); got != 0 {
		t.Errorf("unsubscribed got %d events, want 0", got)
	}
}

func TestBusClosedSubscriberSkipped(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{isClosed: true}
	bus.Subscribe("#bob", sub)

	bus.Emit(Event{Type: EvText, Target: "#bob", Text: "dropped"})

	if got := len(sub.Events()); got != 0 {
		t.Errorf("closed subscriber got %d events, want 0", got)
	}
}

func TestBusPrune(t *testing.T) {
	bus := NewBus()
	open := &mockSubscriber{}
	closed := &mockSubscriber{isClosed: true}
	bus.Subscribe("#bob", open)
	bus.Subscribe("#bob", closed)
	bus.Subscribe("#gone", closed)

	bus.Prune()

	bus.Emit(Event{Type: EvText, Target: "#bob", Text: "still here"})
	if got := len(open.Events()); got != 1 {
		t.Errorf("open subscriber got %d events, want 1", got)
	}
	bus.mu.RLock()
	_, gone := bus.subscribers["#gone"]
	bus.mu.RUnlock()
	if gone {
		t.Errorf("pruned target still registered")
	}
}

func TestBusConcurrentEmit(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}
	bus.Subscribe("#bob", sub)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.EmitTo("#bob", Event{Type: EvText, Text: "x"})
		}()
	}
	wg.Wait()

	if got := len(sub.Events()); got != 20 {
		t.Errorf("got %d events, want 20", got)
	}
}
