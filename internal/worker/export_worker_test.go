package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"giftregistry/internal/amqp"
	"giftregistry/internal/core"
	"giftregistry/internal/log"
	"giftregistry/internal/metrics"
	sheetsmem "giftregistry/internal/sheets/memory"
	"giftregistry/internal/store/memory"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Format: "json", Output: io.Discard})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

type failingLister struct{}

func (failingLister) ListGifts(context.Context) ([]core.GiftRecord, error) {
	return nil, errors.New("store offline")
}

func (failingLister) GetGift(context.Context, string) (core.GiftRecord, error) {
	return core.GiftRecord{}, errors.New("store offline")
}

func TestExportWorker_ExportNow(t *testing.T) {
	st := memory.New([]core.GiftRecord{
		{ID: "1", Name: "Kite", Recipient: "Zoe", Priority: core.PriorityHigh},
		{ID: "2", Name: "Book", Recipient: "Amir", Priority: core.PriorityLow},
	})
	exp := sheetsmem.New()
	m := metrics.New()
	w := NewExportWorker(st, exp, core.GroupByRecipient, time.Millisecond, quietLogger(), m)

	ref, err := w.ExportNow(context.Background())
	if err != nil {
		t.Fatalf("ExportNow: %v", err)
	}
	if ref != "mem:1" {
		t.Fatalf("ref = %s", ref)
	}
	rows := exp.Rows()
	if rows[1][0] != "Amir" || rows[2][0] != "Zoe" {
		t.Fatalf("rows not in label order: %v", rows[1:3])
	}
	if testutil.ToFloat64(m.Exports.WithLabelValues("ok")) != 1 {
		t.Fatal("export not counted")
	}
}

func TestExportWorker_ExportNowFailure(t *testing.T) {
	m := metrics.New()
	w := NewExportWorker(failingLister{}, sheetsmem.New(), core.GroupByCategory, time.Millisecond, quietLogger(), m)

	if _, err := w.ExportNow(context.Background()); err == nil {
		t.Fatal("expected error from failing lister")
	}
	if testutil.ToFloat64(m.Exports.WithLabelValues("error")) != 1 {
		t.Fatal("failed export not counted")
	}
}

func TestExportWorker_RunCoalescesEvents(t *testing.T) {
	st := memory.New(nil)
	exp := sheetsmem.New()
	w := NewExportWorker(st, exp, core.GroupByRecipient, 50*time.Millisecond, quietLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, func() bool { return exp.Exports() == 1 })

	if _, err := st.CreateGift(ctx, core.GiftRecord{Name: "Kite", Recipient: "Zoe", AddedBy: "alice"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := w.HandleGiftChanged(ctx, amqp.NewGiftChangedMessage("g", amqp.OpUpdate)); err != nil {
			t.Fatalf("HandleGiftChanged: %v", err)
		}
	}

	waitFor(t, func() bool {
		rows := exp.Rows()
		return len(rows) > 1 && len(rows[1]) > 1 && rows[1][1] == "Kite"
	})
	if n := exp.Exports(); n > 3 {
		t.Errorf("burst of 5 events produced %d exports", n)
	}

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
