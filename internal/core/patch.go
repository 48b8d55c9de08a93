package core

import "strings"

// AmountPatch updates a nullable amount. Set marks the field as part of the
// patch; a nil Value clears it.
type AmountPatch struct {
	Set   bool
	Value *float64
}

// GiftPatch is a field-level edit. Nil pointers leave the field unchanged.
type GiftPatch struct {
	Name          *string
	Recipient     *string
	Category      *string
	Event         *string
	Date          *string
	Link          *string
	Notes         *string
	Priority      *Priority
	Type          *GiftType
	Price         AmountPatch
	Goal          AmountPatch
	Purchased     *bool
	Contributions []Contribution
	// SetContributions replaces the whole contribution list with Contributions.
	SetContributions bool
}

// PatchField is one stored field touched by a patch. Name uses the document
// field names shared by every store.
type PatchField struct {
	Name  string
	Value any
}

// EditPatch builds the patch for a full edit from raw form input. Goal and
// Price are only included when the form supplied them.
func EditPatch(in GiftInput) (GiftPatch, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return GiftPatch{}, ErrEmptyName
	}
	str := func(s string) *string {
		s = strings.TrimSpace(s)
		return &s
	}
	p := GiftPatch{
		Name:      &name,
		Recipient: str(in.Recipient),
		Category:  str(in.Category),
		Event:     str(in.Event),
		Date:      str(in.Date),
		Link:      str(in.Link),
		Notes:     str(in.Notes),
		Goal:      AmountPatch{Set: true, Value: NormalizePrice(in.Goal)},
	}
	if t := strings.TrimSpace(in.Type); t != "" {
		gt := GiftType(t)
		p.Type = &gt
	}
	if pr := strings.TrimSpace(in.Priority); pr != "" {
		pp := Priority(pr)
		p.Priority = &pp
	}
	if strings.TrimSpace(in.Price) != "" {
		p.Price = AmountPatch{Set: true, Value: NormalizePrice(in.Price)}
	}
	return p, nil
}

// IsEmpty reports whether the patch touches no field.
func (p GiftPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields lists the touched fields in a fixed order.
func (p GiftPatch) Fields() []PatchField {
	var out []PatchField
	addStr := func(name string, v *string) {
		if v != nil {
			out = append(out, PatchField{Name: name, Value: *v})
		}
	}
	addStr("name", p.Name)
	addStr("recipient", p.Recipient)
	addStr("category", p.Category)
	addStr("event", p.Event)
	addStr("date", p.Date)
	addStr("link", p.Link)
	addStr("notes", p.Notes)
	if p.Priority != nil {
		out = append(out, PatchField{Name: "priority", Value: string(*p.Priority)})
	}
	if p.Type != nil {
		out = append(out, PatchField{Name: "type", Value: string(*p.Type)})
	}
	if p.Price.Set {
		out = append(out, PatchField{Name: "price", Value: amountValue(p.Price.Value)})
	}
	if p.Goal.Set {
		out = append(out, PatchField{Name: "goal", Value: amountValue(p.Goal.Value)})
	}
	if p.Purchased != nil {
		out = append(out, PatchField{Name: "purchased", Value: *p.Purchased})
	}
	if p.SetContributions {
		cs := make([]Contribution, len(p.Contributions))
		copy(cs, p.Contributions)
		out = append(out, PatchField{Name: "contributions", Value: cs})
	}
	return out
}

func amountValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// Apply returns a copy of rec with the patch applied. ID, Added and AddedBy
// are never changed.
func (p GiftPatch) Apply(rec GiftRecord) GiftRecord {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&rec.Name, p.Name)
	set(&rec.Recipient, p.Recipient)
	set(&rec.Category, p.Category)
	set(&rec.Event, p.Event)
	set(&rec.Date, p.Date)
	set(&rec.Link, p.Link)
	set(&rec.Notes, p.Notes)
	if p.Priority != nil {
		rec.Priority = *p.Priority
	}
	if p.Type != nil {
		rec.Type = *p.Type
	}
	if p.Price.Set {
		rec.Price = cloneAmount(p.Price.Value)
	}
	if p.Goal.Set {
		rec.Goal = cloneAmount(p.Goal.Value)
	}
	if p.Purchased != nil {
		rec.Purchased = *p.Purchased
	}
	if p.SetContributions {
		rec.Contributions = append([]Contribution{}, p.Contributions...)
	} else {
		rec.Contributions = append([]Contribution{}, rec.Contributions...)
	}
	return rec
}

func cloneAmount(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Clone returns a deep copy of the record.
func (g GiftRecord) Clone() GiftRecord {
	g.Price = cloneAmount(g.Price)
	g.Goal = cloneAmount(g.Goal)
	g.Contributions = append([]Contribution{}, g.Contributions...)
	return g
}
