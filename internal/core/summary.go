package core

// Stats is the registry-wide summary shown above the lists.
type Stats struct {
	Total     int     `json:"total"`
	Purchased int     `json:"purchased"`
	Remaining int     `json:"remaining"`
	Budget    float64 `json:"budget"`
}

// Progress is the funding state of a Group or Cash gift. Percentage is not
// capped and exceeds 100 when over-funded.
type Progress struct {
	TotalContributed float64 `json:"totalContributed"`
	Percentage       float64 `json:"percentage"`
}

// ComputeStats counts records and sums their cost. Group and Cash gifts
// contribute their goal, every other type its price; unknown amounts count as 0.
func ComputeStats(records []GiftRecord) Stats {
	var s Stats
	s.Total = len(records)
	for _, r := range records {
		if r.Purchased {
			s.Purchased++
		}
		s.Budget += r.Cost()
	}
	s.Remaining = max(s.Total-s.Purchased, 0)
	return s
}

// ComputeProgress sums contributions against goal. A goal of zero or less
// yields 0%.
func ComputeProgress(goal float64, contributions []Contribution) Progress {
	var p Progress
	for _, c := range contributions {
		p.TotalContributed += c.Amount
	}
	if goal > 0 {
		p.Percentage = p.TotalContributed / goal * 100
	}
	return p
}
