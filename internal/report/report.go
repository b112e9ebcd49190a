package report

import (
	"time"

	"paperbroker/internal/broker"
)

// Summary aggregates a settlement series into the headline numbers of
// a finished run.
type Summary struct {
	Days        int       `json:"days"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	FinalEquity float64   `json:"final_equity"`
	TotalReturn float64   `json:"total_return"`
	BestDay     float64   `json:"best_day"`
	WorstDay    float64   `json:"worst_day"`
	MaxDrawdown float64   `json:"max_drawdown"`
	WinDays     int       `json:"win_days"`
}

// Returns computes the simple day-over-day return series from
// consecutive settlement equities. n settlements yield n-1 returns.
func Returns(settlements []broker.Settlement) []float64 {
	if len(settlements) < 2 {
		return nil
	}
	out := make([]float64, 0, len(settlements)-1)
	for i := 1; i < len(settlements); i++ {
		prev := settlements[i-1].TotalEquity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, settlements[i].TotalEquity/prev-1)
	}
	return out
}

// Summarize folds a settlement series into a Summary. An empty series
// yields the zero value.
func Summarize(settlements []broker.Settlement) Summary {
	if len(settlements) == 0 {
		return Summary{}
	}

	first, last := settlements[0], settlements[len(settlements)-1]
	s := Summary{
		Days:        len(settlements),
		Start:       first.At,
		End:         last.At,
		FinalEquity: last.TotalEquity,
	}
	if first.TotalEquity != 0 {
		s.TotalReturn = last.TotalEquity/first.TotalEquity - 1
	}

	returns := Returns(settlements)
	for i, r := range returns {
		if i == 0 || r > s.BestDay {
			s.BestDay = r
		}
		if i == 0 || r < s.WorstDay {
			s.WorstDay = r
		}
		if r > 0 {
			s.WinDays++
		}
	}

	peak := first.TotalEquity
	for _, settlement := range settlements {
		if settlement.TotalEquity > peak {
			peak = settlement.TotalEquity
		}
		if peak > 0 {
			if dd := 1 - settlement.TotalEquity/peak; dd > s.MaxDrawdown {
				s.MaxDrawdown = dd
			}
		}
	}
	return s
}
