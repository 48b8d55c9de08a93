package core

import "strconv"

// CostKind tells the presentation layer which cost block to render.
type CostKind string

const (
	CostNone     CostKind = "none"
	CostPrice    CostKind = "price"
	CostProgress CostKind = "progress"
)

// ItemView is a sorted record plus everything needed to display it.
type ItemView struct {
	GiftRecord
	PriorityBadge string    `json:"priorityBadge"`
	CostKind      CostKind  `json:"costKind"`
	PriceText     string    `json:"priceText,omitempty"`
	Progress      *Progress `json:"progress,omitempty"`
	ProgressText  string    `json:"progressText,omitempty"`
	AddedText     string    `json:"addedText"`
	ToggleLabel   string    `json:"toggleLabel"`
}

// GroupView is one rendered list: a header summary and its ordered items.
type GroupView struct {
	Label   string     `json:"label"`
	Count   int        `json:"count"`
	Summary string     `json:"summary"`
	Items   []ItemView `json:"items"`
}

// StatsView is Stats with the budget preformatted.
type StatsView struct {
	Stats
	BudgetText string `json:"budgetText"`
}

// ProjectGroupedView groups records by key, orders the groups by label and
// the items of each group with CompareRecords. It has no side effects and
// returns a fresh structure on every call.
func ProjectGroupedView(records []GiftRecord, key GroupKey) []GroupView {
	groups := GroupBy(records, key)
	labels := SortedLabels(groups)
	out := make([]GroupView, 0, len(labels))
	for _, label := range labels {
		sorted := SortRecords(groups[label])
		items := make([]ItemView, len(sorted))
		for i, r := range sorted {
			items[i] = ProjectItem(r)
		}
		out = append(out, GroupView{
			Label:   label,
			Count:   len(items),
			Summary: SummaryText(len(items)),
			Items:   items,
		})
	}
	return out
}

// ProjectItem derives the display fields of a single record.
func ProjectItem(r GiftRecord) ItemView {
	v := ItemView{
		GiftRecord:    r.Clone(),
		PriorityBadge: string(r.Priority) + " priority",
		CostKind:      CostNone,
		AddedText:     "Recently added",
		ToggleLabel:   "Mark purchased",
	}
	if r.Purchased {
		v.ToggleLabel = "Purchased"
	}
	switch {
	case r.Type.UsesGoal():
		goal := 0.0
		if r.Goal != nil {
			goal = *r.Goal
		}
		p := ComputeProgress(goal, r.Contributions)
		v.CostKind = CostProgress
		v.Progress = &p
		v.ProgressText = FormatCurrency(p.TotalContributed) + " / " + FormatCurrency(r.Goal)
	case r.Price != nil:
		v.CostKind = CostPrice
		v.PriceText = FormatCurrency(*r.Price)
	}
	if t, ok := ParseTimestamp(r.Added); ok {
		v.AddedText = t.Local().Format("Jan 2")
	}
	return v
}

// ProjectStats computes Stats and formats the budget.
func ProjectStats(records []GiftRecord) StatsView {
	s := ComputeStats(records)
	return StatsView{Stats: s, BudgetText: FormatCurrency(s.Budget)}
}

// SummaryText phrases an item count for a group header.
func SummaryText(n int) string {
	switch n {
	case 0:
		return "No items yet"
	case 1:
		return "1 item"
	default:
		return strconv.Itoa(n) + " items"
	}
}
