package events

import (
	"testing"
	"time"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestSubscribeReceivesTopicEvents(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	taskCh := bus.Subscribe(TopicTask, 8)
	schedCh := bus.Subscribe(TopicScheduler, 8)

	bus.Publish(TopicTask, TaskSubmittedEvent{ID: 1, Title: "a"})

	ev := recvEvent(t, taskCh)
	sub, ok := ev.(TaskSubmittedEvent)
	if !ok {
		t.Fatalf("got %T, want TaskSubmittedEvent", ev)
	}
	if sub.ID != 1 || sub.Title != "a" {
		t.Fatalf("event fields %+v", sub)
	}

	// Other topics see nothing.
	select {
	case ev := <-schedCh:
		t.Fatalf("scheduler topic received %T", ev)
	default:
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	allCh := bus.SubscribeAll(8)
	bus.Publish(TopicTask, TaskCompletedEvent{ID: 2})
	bus.Publish(TopicScheduler, SchedulerProgressEvent{Total: 3})

	first := recvEvent(t, allCh)
	if first.EventType() != EventTypeTaskCompleted {
		t.Fatalf("first event %s", first.EventType())
	}
	second := recvEvent(t, allCh)
	if second.EventType() != EventTypeSchedulerProgress {
		t.Fatalf("second event %s", second.EventType())
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 1)
	bus.Publish(TopicTask, TaskSubmittedEvent{ID: 1})
	// The buffer is full; this publish must not block.
	done := make(chan struct{})
	go func() {
		bus.Publish(TopicTask, TaskSubmittedEvent{ID: 2})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	if ev := recvEvent(t, ch); ev.TaskID() != 1 {
		t.Fatalf("kept event %d, want 1", ev.TaskID())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TopicTask, 1)

	bus.Close()
	bus.Close()

	if _, open := <-ch; open {
		t.Fatal("subscriber channel still open after close")
	}

	// Publishing after close is a no-op rather than a panic.
	bus.Publish(TopicTask, TaskSubmittedEvent{ID: 1})

	// Subscriptions after close come back closed.
	if _, open := <-bus.Subscribe(TopicTask, 1); open {
		t.Fatal("post-close subscription came back open")
	}
}
