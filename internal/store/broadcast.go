package store

import (
	"context"
	"sync"

	"giftregistry/internal/core"
)

// Broadcaster fans change notifications out to in-process subscribers.
// Notifications coalesce: a slow subscriber sees at most one pending change
// and reloads the latest state when it catches up.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

// Notify wakes every subscriber without blocking.
func (b *Broadcaster) Notify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of active watchers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Watch implements Subscriber on top of a load function: it delivers one
// snapshot immediately and another after each Notify, until ctx is done.
// A failed load is reported through onError and the watch keeps going.
func (b *Broadcaster) Watch(ctx context.Context, load func(context.Context) ([]core.GiftRecord, error), onSnapshot func([]core.GiftRecord), onError func(error)) error {
	id, ch := b.add()
	defer b.remove(id)

	deliver := func() {
		records, err := load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if onError != nil {
				onError(err)
			}
			return
		}
		onSnapshot(records)
	}

	deliver()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			deliver()
		}
	}
}

func (b *Broadcaster) add() (int, chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]chan struct{})
	}
	id := b.next
	b.next++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch
	return id, ch
}

func (b *Broadcaster) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}
