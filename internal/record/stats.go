package record

import (
	"math"
	"strings"
	"time"
)

// DefaultGoal is the application target progress is measured against.
const DefaultGoal = 400

// Stats summarizes a collection.
type Stats struct {
	Total        int            `json:"total"`
	Today        int            `json:"today"`
	DailyAverage float64        `json:"daily_average"` // records per distinct date, one decimal
	Progress     float64        `json:"progress"`      // percent of goal, capped at 100
	Goal         int            `json:"goal"`
	ByStatus     map[Status]int `json:"by_status"`
	Interviewing int            `json:"interviewing"`
	Offers       int            `json:"offers"`
}

// ComputeStats summarizes records as of today. A goal <= 0 uses DefaultGoal.
func ComputeStats(records []Record, today time.Time, goal int) Stats {
	if goal <= 0 {
		goal = DefaultGoal
	}
	st := Stats{
		Total:    len(records),
		Goal:     goal,
		ByStatus: make(map[Status]int),
	}

	day := today.Format(DateLayout)
	dates := make(map[string]struct{})
	for _, r := range records {
		dates[r.Date] = struct{}{}
		if r.Date == day {
			st.Today++
		}
		st.ByStatus[r.Status]++
		if strings.Contains(string(r.Status), "Interview") {
			st.Interviewing++
		}
		if strings.HasPrefix(string(r.Status), "Offer") {
			st.Offers++
		}
	}

	if len(records) > 0 {
		avg := float64(len(records)) / float64(len(dates))
		st.DailyAverage = math.Round(avg*10) / 10
	}
	st.Progress = math.Min(float64(st.Total)*100/float64(goal), 100)
	return st
}
