package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"giftregistry/internal/core"
	"giftregistry/internal/log"
	"giftregistry/internal/metrics"
)

func TestViewCache(t *testing.T) {
	m := metrics.New()
	c := NewViewCache(8, time.Minute, m)
	records := []core.GiftRecord{
		{ID: "1", Name: "Kite", Recipient: "Zoe", Category: "Toys"},
		{ID: "2", Name: "Book", Recipient: "Amir", Category: "Learning"},
	}

	first := c.Get(1, core.GroupByRecipient, records)
	if len(first) != 2 || first[0].Label != "Amir" {
		t.Fatalf("view = %+v", first)
	}
	// A cached entry is served even if the caller passes other records.
	again := c.Get(1, core.GroupByRecipient, nil)
	if len(again) != 2 {
		t.Fatalf("expected cached view, got %+v", again)
	}
	byCategory := c.Get(1, core.GroupByCategory, records)
	if byCategory[0].Label != "Learning" {
		t.Fatalf("category view = %+v", byCategory)
	}

	if testutil.ToFloat64(m.ViewCache.WithLabelValues("hit")) != 1 ||
		testutil.ToFloat64(m.ViewCache.WithLabelValues("miss")) != 2 {
		t.Fatal("hits and misses not counted")
	}

	c.Get(2, core.GroupByRecipient, records[:1])
	if n := c.Invalidate(2); n != 2 {
		t.Fatalf("Invalidate removed %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Fatalf("Size = %d", c.Size())
	}
}

func TestManager(t *testing.T) {
	c, clock := newTestLRU(4, time.Minute)
	c.Set("a", 1)
	clock.advance(2 * time.Minute)

	m := NewManager(log.New(log.Config{Format: "json", Output: io.Discard}))
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
