package events

import (
	"context"
	"testing"
	"time"
)

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(TopicMarketEvent, 2)
	defer unsub()

	for i := 0; i < 5; i++ {
		bus.Publish(TopicMarketEvent, i)
	}

	// Only the first two publishes fit; the rest were dropped.
	if got := len(ch); got != 2 {
		t.Fatalf("buffered=%d, expected 2", got)
	}
	if v := <-ch; v != 0 {
		t.Fatalf("first=%v, expected 0", v)
	}
	if v := <-ch; v != 1 {
		t.Fatalf("second=%v, expected 1", v)
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(TopicSignal, 1)
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(TopicSignal, "x")
}

func TestPipelineBlocksUntilCapacity(t *testing.T) {
	p := NewPipeline[int](1)

	if err := p.Send(context.Background(), 1); err != nil {
		t.Fatalf("send: %v", err)
	}
	if p.TrySend(2) {
		t.Fatal("TrySend should fail on a full pipeline")
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Send(context.Background(), 2)
	}()

	select {
	case err := <-done:
		t.Fatalf("send completed before capacity freed: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	if v := <-p.Receive(); v != 1 {
		t.Fatalf("received %d, expected 1", v)
	}
	if err := <-done; err != nil {
		t.Fatalf("blocked send: %v", err)
	}
	if v := <-p.Receive(); v != 2 {
		t.Fatalf("received %d, expected 2", v)
	}
}

func TestPipelineSendHonoursContext(t *testing.T) {
	p := NewPipeline[int](1)
	_ = p.TrySend(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := p.Send(ctx, 2); err != context.DeadlineExceeded {
		t.Fatalf("err=%v, expected DeadlineExceeded", err)
	}
}
