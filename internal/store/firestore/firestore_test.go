package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"giftregistry/internal/core"
	"giftregistry/internal/store"
)

func TestToUpdates(t *testing.T) {
	bought := true
	name := "Kite"
	updates := toUpdates(core.GiftPatch{
		Name:             &name,
		Price:            core.AmountPatch{Set: true},
		Purchased:        &bought,
		SetContributions: true,
		Contributions:    []core.Contribution{{Amount: 4}},
	})
	if len(updates) != 4 {
		t.Fatalf("got %d updates", len(updates))
	}
	want := []string{"name", "price", "purchased", "contributions"}
	for i, u := range updates {
		if u.Path != want[i] {
			t.Fatalf("update %d path = %q, want %q", i, u.Path, want[i])
		}
	}
	if updates[1].Value != nil {
		t.Fatalf("cleared price should be stored as null, got %v", updates[1].Value)
	}
	cs, ok := updates[3].Value.([]map[string]any)
	if !ok || len(cs) != 1 || cs[0]["amount"] != 4.0 {
		t.Fatalf("contributions value = %#v", updates[3].Value)
	}
	if len(toUpdates(core.GiftPatch{})) != 0 {
		t.Fatalf("empty patch should produce no updates")
	}
}

func TestMapError(t *testing.T) {
	if err := mapError("get", status.Error(codes.NotFound, "missing")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("NotFound should map to store.ErrNotFound, got %v", err)
	}
	other := status.Error(codes.PermissionDenied, "nope")
	if err := mapError("get", other); errors.Is(err, store.ErrNotFound) || !errors.Is(err, other) {
		t.Fatalf("unexpected mapping: %v", err)
	}
}

// TestEmulatorRoundTrip runs against a local Firestore emulator when
// FIRESTORE_EMULATOR_HOST is set.
func TestEmulatorRoundTrip(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := NewFromConfig(ctx, Config{
		ProjectID:  "demo-registry",
		Collection: fmt.Sprintf("gifts-test-%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	price := 12.5
	id, err := s.CreateGift(ctx, core.GiftRecord{Name: "Kite", Price: &price, Contributions: []core.Contribution{}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bought := true
	if err := s.UpdateGift(ctx, id, core.GiftPatch{Purchased: &bought}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetGift(ctx, id)
	if err != nil || !got.Purchased || got.Price == nil || *got.Price != 12.5 {
		t.Fatalf("get: %+v err=%v", got, err)
	}
	if err := s.DeleteGift(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteGift(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}
