package memory

import (
	"context"
	"testing"

	"giftregistry/internal/core"
)

func TestExporter(t *testing.T) {
	e := New()
	records := []core.GiftRecord{{ID: "1", Name: "Kite", Recipient: "Zoe"}}

	ref, err := e.Export(context.Background(), core.ProjectGroupedView(records, core.GroupByRecipient), core.ProjectStats(records))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if ref != "mem:1" || e.Exports() != 1 {
		t.Fatalf("ref = %s, exports = %d", ref, e.Exports())
	}
	rows := e.Rows()
	if len(rows) != 7 || rows[1][1] != "Kite" {
		t.Fatalf("rows = %v", rows)
	}

	ref, _ = e.Export(context.Background(), nil, core.ProjectStats(nil))
	if ref != "mem:2" || len(e.Rows()) != 6 {
		t.Fatalf("second export replaced rows incorrectly: %s %v", ref, e.Rows())
	}
}
