package core

import (
	"slices"
	"strings"
)

// GroupKey names the record field used to partition a registry.
type GroupKey string

const (
	GroupByRecipient GroupKey = "recipient"
	GroupByCategory  GroupKey = "category"
	GroupByEvent     GroupKey = "event"
)

// ParseGroupKey maps user input to a GroupKey, defaulting to recipient.
func ParseGroupKey(s string) GroupKey {
	switch k := GroupKey(strings.ToLower(strings.TrimSpace(s))); k {
	case GroupByRecipient, GroupByCategory, GroupByEvent:
		return k
	default:
		return GroupByRecipient
	}
}

// value returns the field named by k. Unknown keys yield "", which routes
// the record to the Uncategorized group.
func (k GroupKey) value(g GiftRecord) string {
	switch k {
	case GroupByRecipient:
		return g.Recipient
	case GroupByCategory:
		return g.Category
	case GroupByEvent:
		return g.Event
	default:
		return ""
	}
}

// Label is the group a record falls into for this key.
func (k GroupKey) Label(g GiftRecord) string {
	if v := k.value(g); v != "" {
		return v
	}
	return UncategorizedLabel
}

// GroupBy partitions records by key. Each partition keeps input order; use
// SortedLabels to iterate groups and SortRecords to order each partition.
func GroupBy(records []GiftRecord, key GroupKey) map[string][]GiftRecord {
	groups := make(map[string][]GiftRecord)
	for _, r := range records {
		label := key.Label(r)
		groups[label] = append(groups[label], r)
	}
	return groups
}

// SortedLabels returns the group labels in ascending lexicographic order.
func SortedLabels(groups map[string][]GiftRecord) []string {
	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	return labels
}

// CompareRecords is the canonical display order:
//  1. unpurchased before purchased
//  2. priority weight, High < Medium < Low (unknown counts as Medium)
//  3. Added ascending; unparseable timestamps sort after parseable ones and
//     compare equal to each other
func CompareRecords(a, b GiftRecord) int {
	if a.Purchased != b.Purchased {
		if a.Purchased {
			return 1
		}
		return -1
	}
	if wa, wb := a.Priority.Weight(), b.Priority.Weight(); wa != wb {
		return wa - wb
	}
	ta, okA := ParseTimestamp(a.Added)
	tb, okB := ParseTimestamp(b.Added)
	switch {
	case okA && okB:
		return ta.Compare(tb)
	case okA:
		return -1
	case okB:
		return 1
	default:
		return 0
	}
}

// SortRecords returns a stably sorted copy of records.
func SortRecords(records []GiftRecord) []GiftRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, CompareRecords)
	return out
}
