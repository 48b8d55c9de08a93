package core

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// NormalizeRecord validates a record received from a store. Price and goal go
// through NormalizePrice, non-finite contributions are dropped and a missing
// contribution list becomes empty. Priority and type are kept as stored.
func NormalizeRecord(rec GiftRecord) GiftRecord {
	rec.Price = NormalizePrice(rec.Price)
	rec.Goal = NormalizePrice(rec.Goal)
	cs := make([]Contribution, 0, len(rec.Contributions))
	for _, c := range rec.Contributions {
		if math.IsNaN(c.Amount) || math.IsInf(c.Amount, 0) {
			continue
		}
		cs = append(cs, c)
	}
	rec.Contributions = cs
	return rec
}

// NormalizeRecords normalizes a whole snapshot into a fresh slice.
func NormalizeRecords(in []GiftRecord) []GiftRecord {
	out := make([]GiftRecord, len(in))
	for i, r := range in {
		out[i] = NormalizeRecord(r)
	}
	return out
}

// RecordFromFields decodes a schemaless document. Missing fields take their
// zero value, numeric fields are coerced through NormalizePrice.
func RecordFromFields(id string, fields map[string]any) GiftRecord {
	rec := GiftRecord{
		ID:        id,
		Name:      stringField(fields["name"]),
		Recipient: stringField(fields["recipient"]),
		Category:  stringField(fields["category"]),
		Event:     stringField(fields["event"]),
		Notes:     stringField(fields["notes"]),
		Link:      stringField(fields["link"]),
		Date:      stringField(fields["date"]),
		Priority:  Priority(stringField(fields["priority"])),
		Type:      GiftType(stringField(fields["type"])),
		Price:     NormalizePrice(fields["price"]),
		Goal:      NormalizePrice(fields["goal"]),
		Added:     stringField(fields["added"]),
		AddedBy:   stringField(fields["addedBy"]),
	}
	if b, ok := fields["purchased"].(bool); ok {
		rec.Purchased = b
	}
	rec.Contributions = contributionsField(fields["contributions"])
	return rec
}

// Fields is the inverse of RecordFromFields, used for document creation.
func (g GiftRecord) Fields() map[string]any {
	cs := make([]map[string]any, 0, len(g.Contributions))
	for _, c := range g.Contributions {
		cs = append(cs, map[string]any{"amount": c.Amount})
	}
	return map[string]any{
		"name":          g.Name,
		"recipient":     g.Recipient,
		"category":      g.Category,
		"event":         g.Event,
		"notes":         g.Notes,
		"link":          g.Link,
		"date":          g.Date,
		"priority":      string(g.Priority),
		"type":          string(g.Type),
		"price":         amountValue(g.Price),
		"goal":          amountValue(g.Goal),
		"contributions": cs,
		"purchased":     g.Purchased,
		"added":         g.Added,
		"addedBy":       g.AddedBy,
	}
}

func stringField(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case time.Time:
		return FormatTimestamp(s)
	case fmt.Stringer:
		return s.String()
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func contributionsField(v any) []Contribution {
	out := []Contribution{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		var raw any
		switch c := item.(type) {
		case map[string]any:
			raw = c["amount"]
		default:
			raw = c
		}
		switch a := raw.(type) {
		case float64:
			if !math.IsNaN(a) && !math.IsInf(a, 0) {
				out = append(out, Contribution{Amount: a})
			}
		case int64:
			out = append(out, Contribution{Amount: float64(a)})
		case int:
			out = append(out, Contribution{Amount: float64(a)})
		default:
			if amt := NormalizePrice(a); amt != nil {
				out = append(out, Contribution{Amount: *amt})
			}
		}
	}
	return out
}
