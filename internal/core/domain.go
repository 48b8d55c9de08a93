package core

import (
	"errors"
	"strings"
	"time"
)

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

const (
	TypeIndividual GiftType = "Individual"
	TypeGroup      GiftType = "Group"
	TypeCash       GiftType = "Cash"
)

// UncategorizedLabel is the group label for records with an empty grouping field.
const UncategorizedLabel = "Uncategorized"

type (
	// Priority is stored exactly as entered. Unknown values are kept in
	// storage and only fall back to Medium when ordering.
	Priority string

	// GiftType decides which cost field drives budget and display.
	GiftType string

	Contribution struct {
		Amount float64 `json:"amount"`
	}

	// GiftRecord is one registry entry. Price and Goal are nil when unknown,
	// which is distinct from zero.
	GiftRecord struct {
		ID            string         `json:"id"`
		Name          string         `json:"name"`
		Recipient     string         `json:"recipient"`
		Category      string         `json:"category"`
		Event         string         `json:"event"`
		Notes         string         `json:"notes"`
		Link          string         `json:"link"`
		Date          string         `json:"date"`
		Priority      Priority       `json:"priority"`
		Type          GiftType       `json:"type"`
		Price         *float64       `json:"price"`
		Goal          *float64       `json:"goal"`
		Contributions []Contribution `json:"contributions"`
		Purchased     bool           `json:"purchased"`
		Added         string         `json:"added"`
		AddedBy       string         `json:"addedBy"`
	}

	// GiftInput carries raw form values before normalization.
	GiftInput struct {
		Name      string
		Recipient string
		Category  string
		Event     string
		Date      string
		Priority  string
		Type      string
		Price     string
		Goal      string
		Link      string
		Notes     string
	}
)

var (
	ErrEmptyName     = errors.New("empty gift name")
	ErrEmptyUser     = errors.New("missing user")
	ErrInvalidAmount = errors.New("invalid amount")
)

var priorityWeight = map[Priority]int{
	PriorityHigh:   0,
	PriorityMedium: 1,
	PriorityLow:    2,
}

// Weight orders priorities High < Medium < Low. Unrecognized values weigh as Medium.
func (p Priority) Weight() int {
	if w, ok := priorityWeight[p]; ok {
		return w
	}
	return 1
}

// UsesGoal reports whether cost is driven by Goal rather than Price.
func (t GiftType) UsesGoal() bool {
	return t == TypeGroup || t == TypeCash
}

// Cost returns the amount the record contributes to the budget.
func (g GiftRecord) Cost() float64 {
	v := g.Price
	if g.Type.UsesGoal() {
		v = g.Goal
	}
	if v == nil {
		return 0
	}
	return *v
}

// CanModify reports whether user may edit or delete the record.
func (g GiftRecord) CanModify(user string) bool {
	return user != "" && user == g.AddedBy
}

// NewGift builds a creation payload from raw form input. The ID is left
// empty for the store to assign.
func NewGift(in GiftInput, user string, now time.Time) (GiftRecord, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return GiftRecord{}, ErrEmptyName
	}
	if strings.TrimSpace(user) == "" {
		return GiftRecord{}, ErrEmptyUser
	}
	return GiftRecord{
		Name:          name,
		Recipient:     strings.TrimSpace(in.Recipient),
		Category:      strings.TrimSpace(in.Category),
		Event:         strings.TrimSpace(in.Event),
		Date:          strings.TrimSpace(in.Date),
		Priority:      Priority(strings.TrimSpace(in.Priority)),
		Type:          GiftType(strings.TrimSpace(in.Type)),
		Price:         NormalizePrice(in.Price),
		Goal:          NormalizePrice(in.Goal),
		Contributions: []Contribution{},
		Link:          strings.TrimSpace(in.Link),
		Notes:         strings.TrimSpace(in.Notes),
		Purchased:     false,
		Added:         FormatTimestamp(now),
		AddedBy:       user,
	}, nil
}

// FormatTimestamp renders creation timestamps the way they are stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an Added value. ok is false for anything unparseable.
func ParseTimestamp(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
