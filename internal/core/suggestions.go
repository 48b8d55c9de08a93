package core

import (
	"strings"
	"time"
)

// Suggestion is a canned gift idea offered for a recipient.
type Suggestion struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// SuggestedNote marks records created from a suggestion.
const SuggestedNote = "AI Suggested"

var defaultSuggestions = []Suggestion{
	{Name: "A good book", Category: "Learning"},
	{Name: "A subscription box", Category: "Experience"},
	{Name: "A weekend getaway", Category: "Experience"},
	{Name: "A cooking class", Category: "Learning"},
	{Name: "A personalized photo album", Category: "Keepsake"},
}

// Suggestions returns a copy of the suggestion list.
func Suggestions() []Suggestion {
	return append([]Suggestion(nil), defaultSuggestions...)
}

// SuggestedGift turns an accepted suggestion into a creation payload.
func SuggestedGift(s Suggestion, recipient, user string, now time.Time) (GiftRecord, error) {
	rec, err := NewGift(GiftInput{
		Name:      s.Name,
		Recipient: recipient,
		Category:  s.Category,
		Priority:  string(PriorityMedium),
		Type:      string(TypeIndividual),
		Notes:     SuggestedNote,
	}, user, now)
	if err != nil {
		return GiftRecord{}, err
	}
	return rec, nil
}

// FindSuggestion looks a suggestion up by name, case-insensitively.
func FindSuggestion(name string) (Suggestion, bool) {
	for _, s := range defaultSuggestions {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, true
		}
	}
	return Suggestion{}, false
}
