package sheets

import (
	"context"

	"giftregistry/internal/core"
)

// Ports for outbound adapters.
type (
	// ViewExporter writes the grouped registry view somewhere people read it.
	ViewExporter interface {
		Export(ctx context.Context, groups []core.GroupView, stats core.StatsView) (ref string, err error)
	}
)

// Header is the first exported row.
var Header = []string{"Group", "Name", "Recipient", "Category", "Event", "Date", "Priority", "Type", "Cost", "Purchased", "Added by", "Link"}

// BuildRows flattens a grouped view into one header row, one row per gift in
// group label order and a stats footer separated by an empty row.
func BuildRows(groups []core.GroupView, stats core.StatsView) [][]any {
	rows := make([][]any, 0, stats.Total+6)
	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	rows = append(rows, header)

	for _, g := range groups {
		for _, it := range g.Items {
			rows = append(rows, []any{
				g.Label,
				it.Name,
				it.Recipient,
				it.Category,
				it.Event,
				it.Date,
				string(it.Priority),
				string(it.Type),
				costText(it),
				purchasedText(it.Purchased),
				it.AddedBy,
				it.Link,
			})
		}
	}

	rows = append(rows, []any{},
		[]any{"Total", stats.Stats.Total},
		[]any{"Purchased", stats.Stats.Purchased},
		[]any{"Remaining", stats.Stats.Remaining},
		[]any{"Budget", stats.BudgetText},
	)
	return rows
}

func costText(it core.ItemView) string {
	switch it.CostKind {
	case core.CostPrice:
		return it.PriceText
	case core.CostProgress:
		return it.ProgressText
	default:
		return ""
	}
}

func purchasedText(p bool) string {
	if p {
		return "yes"
	}
	return "no"
}
