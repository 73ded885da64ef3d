package cache

import (
	"testing"
	"time"

	"sniper-core/internal/models"
)

func TestSetGetWithAge(t *testing.T) {
	c := NewShardedQuoteCache()
	now := time.Unix(1_700_000_000, 0)
	c.SetClock(func() time.Time { return now })

	c.Set("TKN/SOL", models.Quote{Symbol: "TKN/SOL", Price: 0.001, SourceTag: "jupiter"})

	now = now.Add(2 * time.Second)
	q, age, ok := c.GetWithAge("TKN/SOL")
	if !ok || q.Price != 0.001 {
		t.Fatalf("q=%+v ok=%v", q, ok)
	}
	if age != 2*time.Second {
		t.Fatalf("age=%v", age)
	}

	if _, _, ok := c.GetWithAge("OTHER/SOL"); ok {
		t.Fatal("missing symbol should not be found")
	}
}

func TestCleanupRemovesStaleEntries(t *testing.T) {
	c := NewShardedQuoteCache()
	now := time.Unix(1_700_000_000, 0)
	c.SetClock(func() time.Time { return now })

	c.Set("old/SOL", models.Quote{Price: 1})
	now = now.Add(time.Minute)
	c.Set("fresh/SOL", models.Quote{Price: 2})

	removed := c.Cleanup(30 * time.Second)
	if removed != 1 {
		t.Fatalf("removed=%d, expected 1", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d", c.Len())
	}
	if _, _, ok := c.GetWithAge("fresh/SOL"); !ok {
		t.Fatal("fresh entry evicted")
	}
}

func TestDelete(t *testing.T) {
	c := NewShardedQuoteCache()
	c.Set("TKN/SOL", models.Quote{Price: 1})
	c.Delete("TKN/SOL")
	if c.Len() != 0 {
		t.Fatalf("len=%d after delete", c.Len())
	}
}
