package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"giftregistry/internal/amqp"
	"giftregistry/internal/core"
	"giftregistry/internal/log"
	"giftregistry/internal/metrics"
	"giftregistry/internal/store"
	"giftregistry/internal/store/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.Op
	err    error
	closed bool
}

func (p *recordingPublisher) PublishGiftChanged(_ context.Context, _ string, op amqp.Op) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, op)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func newService(t *testing.T) (*GiftService, *memory.Store, *recordingPublisher, *metrics.Metrics) {
	t.Helper()
	st := memory.New(nil)
	pub := &recordingPublisher{}
	m := metrics.New()
	logger := log.New(log.Config{Format: "json", Output: io.Discard})
	return NewGiftService(st, pub, logger, m), st, pub, m
}

func TestGiftService_CreateGift(t *testing.T) {
	svc, st, pub, m := newService(t)
	ctx := context.Background()

	id, err := svc.CreateGift(ctx, core.GiftInput{Name: " Kite ", Recipient: "Zoe", Price: "12.50", Priority: "High"}, "alice")
	if err != nil {
		t.Fatalf("CreateGift: %v", err)
	}
	rec, _ := st.GetGift(ctx, id)
	if rec.Name != "Kite" || rec.AddedBy != "alice" || rec.Price == nil || *rec.Price != 12.5 || rec.Purchased {
		t.Fatalf("stored record = %+v", rec)
	}
	if len(pub.events) != 1 || pub.events[0] != amqp.OpCreate {
		t.Fatalf("events = %v", pub.events)
	}
	if testutil.ToFloat64(m.Mutations.WithLabelValues("create", "ok")) != 1 {
		t.Fatalf("mutation not counted")
	}

	if _, err := svc.CreateGift(ctx, core.GiftInput{Name: ""}, "alice"); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := svc.CreateGift(ctx, core.GiftInput{Name: "x"}, ""); !errors.Is(err, core.ErrEmptyUser) {
		t.Fatalf("expected ErrEmptyUser, got %v", err)
	}
}

func TestGiftService_PublishFailureDoesNotFailMutation(t *testing.T) {
	svc, _, pub, m := newService(t)
	pub.err = errors.New("broker down")

	if _, err := svc.CreateGift(context.Background(), core.GiftInput{Name: "Kite"}, "alice"); err != nil {
		t.Fatalf("CreateGift should succeed when publishing fails: %v", err)
	}
	if testutil.ToFloat64(m.EventsPublished.WithLabelValues("error")) != 1 {
		t.Fatalf("publish failure not counted")
	}
}

func TestGiftService_EditGift(t *testing.T) {
	svc, st, pub, _ := newService(t)
	ctx := context.Background()
	id, _ := svc.CreateGift(ctx, core.GiftInput{Name: "Lamp", Price: "25", Type: "Individual"}, "alice")

	err := svc.EditGift(ctx, id, core.GiftInput{Name: "Desk lamp", Type: "Group", Goal: "80"}, "bob")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("editing another user's gift: got %v", err)
	}

	if err := svc.EditGift(ctx, id, core.GiftInput{Name: "Desk lamp", Type: "Group", Goal: "80"}, "alice"); err != nil {
		t.Fatalf("EditGift: %v", err)
	}
	rec, _ := st.GetGift(ctx, id)
	if rec.Name != "Desk lamp" || rec.Type != core.TypeGroup || rec.Goal == nil || *rec.Goal != 80 {
		t.Fatalf("after edit: %+v", rec)
	}
	if rec.Price == nil || *rec.Price != 25 {
		t.Fatalf("price should be kept when the edit omits it: %v", rec.Price)
	}
	if rec.AddedBy != "alice" {
		t.Fatalf("edit must not change AddedBy")
	}
	if got := pub.events[len(pub.events)-1]; got != amqp.OpUpdate {
		t.Fatalf("last event = %v", got)
	}

	if err := svc.EditGift(ctx, "missing", core.GiftInput{Name: "x"}, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("editing a missing gift: got %v", err)
	}
}

func TestGiftService_TogglePurchased(t *testing.T) {
	svc, st, _, _ := newService(t)
	ctx := context.Background()
	id, _ := svc.CreateGift(ctx, core.GiftInput{Name: "Kite"}, "alice")

	purchased, err := svc.TogglePurchased(ctx, id, "bob")
	if err != nil || !purchased {
		t.Fatalf("first toggle = %v, %v", purchased, err)
	}
	purchased, _ = svc.TogglePurchased(ctx, id, "alice")
	rec, _ := st.GetGift(ctx, id)
	if purchased || rec.Purchased {
		t.Fatalf("second toggle should unmark the gift")
	}
	if _, err := svc.TogglePurchased(ctx, id, ""); !errors.Is(err, core.ErrEmptyUser) {
		t.Fatalf("anonymous toggle: %v", err)
	}
}

func TestGiftService_AddContribution(t *testing.T) {
	svc, st, _, _ := newService(t)
	ctx := context.Background()
	id, _ := svc.CreateGift(ctx, core.GiftInput{Name: "Bike", Type: "Group", Goal: "100"}, "alice")

	if _, err := svc.AddContribution(ctx, id, "20", "bob"); err != nil {
		t.Fatalf("first contribution: %v", err)
	}
	p, err := svc.AddContribution(ctx, id, " 30 ", "carol")
	if err != nil {
		t.Fatalf("second contribution: %v", err)
	}
	if p.TotalContributed != 50 || p.Percentage != 50 {
		t.Fatalf("progress = %+v", p)
	}
	rec, _ := st.GetGift(ctx, id)
	if len(rec.Contributions) != 2 {
		t.Fatalf("contributions = %v", rec.Contributions)
	}

	for _, bad := range []string{"0", "-5", "abc", ""} {
		if _, err := svc.AddContribution(ctx, id, bad, "bob"); !errors.Is(err, core.ErrInvalidAmount) {
			t.Fatalf("amount %q: got %v", bad, err)
		}
	}
}

func TestGiftService_DeleteGift(t *testing.T) {
	svc, st, pub, _ := newService(t)
	ctx := context.Background()
	id, _ := svc.CreateGift(ctx, core.GiftInput{Name: "Kite"}, "alice")

	if err := svc.DeleteGift(ctx, id, "bob"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("deleting another user's gift: got %v", err)
	}
	if err := svc.DeleteGift(ctx, id, "alice"); err != nil {
		t.Fatalf("DeleteGift: %v", err)
	}
	if _, err := st.GetGift(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("gift still present: %v", err)
	}
	if got := pub.events[len(pub.events)-1]; got != amqp.OpDelete {
		t.Fatalf("last event = %v", got)
	}
}

func TestGiftService_AcceptSuggestion(t *testing.T) {
	svc, st, _, _ := newService(t)
	ctx := context.Background()

	id, err := svc.AcceptSuggestion(ctx, "A cooking class", "Amir", "alice")
	if err != nil {
		t.Fatalf("AcceptSuggestion: %v", err)
	}
	rec, _ := st.GetGift(ctx, id)
	if rec.Notes != core.SuggestedNote || rec.Recipient != "Amir" || rec.Category != "Learning" {
		t.Fatalf("suggested gift = %+v", rec)
	}
	if _, err := svc.AcceptSuggestion(ctx, "A pony", "Amir", "alice"); !errors.Is(err, ErrUnknownSuggestion) {
		t.Fatalf("unknown suggestion: %v", err)
	}
}

func TestGiftService_Close(t *testing.T) {
	svc, _, pub, _ := newService(t)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !pub.closed {
		t.Fatalf("publisher not closed")
	}

	nilSvc := NewGiftService(memory.New(nil), nil, nil, nil)
	if err := nilSvc.Close(); err != nil {
		t.Fatalf("Close without publisher: %v", err)
	}
}

func TestGiftService_AddContributionConcurrent(t *testing.T) {
	svc, st, _, _ := newService(t)
	ctx := context.Background()
	id, _ := svc.CreateGift(ctx, core.GiftInput{Name: "Bike", Type: "Cash", Goal: "100"}, "alice")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddContribution(ctx, id, "10", "bob"); err != nil {
				t.Errorf("AddContribution: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, _ := st.GetGift(ctx, id)
	if len(rec.Contributions) != 10 {
		t.Fatalf("contributions = %d, want 10", len(rec.Contributions))
	}
}

func TestGiftService_AddContributionIndividualGift(t *testing.T) {
	svc, st, _, _ := newService(t)
	ctx := context.Background()
	id, _ := svc.CreateGift(ctx, core.GiftInput{Name: "Scarf", Type: "Individual", Price: "30"}, "alice")

	if _, err := svc.AddContribution(ctx, id, "10", "bob"); !errors.Is(err, ErrNotPooled) {
		t.Fatalf("contribution to individual gift: %v", err)
	}
	rec, _ := st.GetGift(ctx, id)
	if len(rec.Contributions) != 0 {
		t.Fatalf("contributions = %v", rec.Contributions)
	}
}
