package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"sniper-core/internal/models"
)

func TestMemoryKVWithTTL(t *testing.T) {
	m := NewMemory()
	now := time.Unix(1_700_000_000, 0)
	m.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if err := m.Set(ctx, "bot:status", `{"mode":"DryRun"}`, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := m.Get(ctx, "bot:status")
	if err != nil || !ok || v != `{"mode":"DryRun"}` {
		t.Fatalf("get: v=%q ok=%v err=%v", v, ok, err)
	}

	now = now.Add(2 * time.Hour)
	if _, ok, _ := m.Get(ctx, "bot:status"); ok {
		t.Fatal("value should have expired")
	}
}

func TestMemoryListQueueSemantics(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	// Producers push-front, consumers pop-back: FIFO across the list.
	for _, mint := range []string{"mintA", "mintB", "mintC"} {
		if err := m.ListPushFront(ctx, KeyNewTokenQueue, mint); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	for _, want := range []string{"mintA", "mintB", "mintC"} {
		got, ok, err := m.ListPopBack(ctx, KeyNewTokenQueue)
		if err != nil || !ok {
			t.Fatalf("pop: ok=%v err=%v", ok, err)
		}
		if got != want {
			t.Fatalf("pop=%q, expected %q", got, want)
		}
	}
	if _, ok, _ := m.ListPopBack(ctx, KeyNewTokenQueue); ok {
		t.Fatal("queue should be empty")
	}
}

func TestMemoryListTrimBoundsFeed(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		_ = m.ListPushFront(ctx, KeyActivityFeed, "entry")
	}
	if err := m.ListTrim(ctx, KeyActivityFeed, 0, ActivityFeedLimit-1); err != nil {
		t.Fatalf("trim: %v", err)
	}
	got, err := m.ListRange(ctx, KeyActivityFeed, 0, -1)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != ActivityFeedLimit {
		t.Fatalf("feed length=%d, expected %d", len(got), ActivityFeedLimit)
	}
}

func TestMemorySetDeduplicates(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	wasNew, err := m.SetAdd(ctx, KeyProcessedTokens, "mintA")
	if err != nil || !wasNew {
		t.Fatalf("first add: wasNew=%v err=%v", wasNew, err)
	}
	wasNew, err = m.SetAdd(ctx, KeyProcessedTokens, "mintA")
	if err != nil || wasNew {
		t.Fatalf("second add: wasNew=%v err=%v", wasNew, err)
	}
	ok, err := m.SetContains(ctx, KeyProcessedTokens, "mintA")
	if err != nil || !ok {
		t.Fatalf("contains: ok=%v err=%v", ok, err)
	}
}

func TestMemoryKeysPattern(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.Set(ctx, ActivePositionKey("a1"), "{}", 0)
	_ = m.Set(ctx, ActivePositionKey("b2"), "{}", 0)
	_ = m.Set(ctx, KeyBotStatus, "{}", 0)

	keys, err := m.Keys(ctx, KeyActivePositionPattern)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("matched %d keys, expected 2: %v", len(keys), keys)
	}
}

func TestMemoryFailureMapsToStoreUnavailable(t *testing.T) {
	m := NewMemory()
	m.SetFailing(true)
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 0); !errors.Is(err, models.ErrStoreUnavailable) {
		t.Fatalf("err=%v, expected ErrStoreUnavailable", err)
	}
	if m.HealthCheck(ctx) {
		t.Fatal("health check should fail during outage")
	}
}

func TestMemoryHealthCheck(t *testing.T) {
	m := NewMemory()
	if !m.HealthCheck(context.Background()) {
		t.Fatal("health check should pass")
	}
	if ok, _ := m.Exists(context.Background(), "__health_check__"); ok {
		t.Fatal("sentinel key should be deleted")
	}
}
