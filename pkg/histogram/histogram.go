package histogram

import (
	"math"
)

// Band labels, in presentation order. Cancelled is only present when at least
// one journey was cancelled.
const (
	BandEarly3To5  = "3-5 min early"
	BandEarly2To3  = "2-3 min early"
	BandOnTime     = "On time (±1 min)"
	BandLate2To3   = "2-3 min late"
	BandLate3To5   = "3-5 min late"
	BandLate5To10  = "5-10 min late"
	BandLate10To15 = "10-15 min late"
	BandLate15To30 = "15-30 min late"
	BandLate30Plus = "30+ min late"
	BandCancelled  = "Cancelled"
)

// Bands lists the delay bands in presentation order, excluding Cancelled.
var Bands = []string{
	BandEarly3To5,
	BandEarly2To3,
	BandOnTime,
	BandLate2To3,
	BandLate3To5,
	BandLate5To10,
	BandLate10To15,
	BandLate15To30,
	BandLate30Plus,
}

type Stats struct {
	AvgDelay float64 `json:"avg_delay"`

	EarlyCount     int `json:"early_count"`
	OnTimeCount    int `json:"on_time_count"`
	LateCount      int `json:"late_count"`
	ExtremeDelays  int `json:"extreme_delays"`
	CancelledCount int `json:"cancelled_count"`
	TotalCount     int `json:"total_count"`

	OnTimePercentage    float64 `json:"on_time_percentage"`
	EarlyPercentage     float64 `json:"early_percentage"`
	LatePercentage      float64 `json:"late_percentage"`
	CancelledPercentage float64 `json:"cancelled_percentage"`
}

type Analysis struct {
	Histogram map[string]float64 `json:"histogram"`
	RawCounts map[string]int     `json:"raw_counts"`
	Stats     Stats              `json:"stats"`
}

// Aggregate buckets a multiset of signed delay minutes (plus a cancellation
// count) into the fixed performance bands and computes summary statistics.
// It is pure - the same inputs always produce the same output, in any order.
//
// Delays of more than 5 minutes early are clamped to the 3-5 min early band
// so that every sample lands in exactly one band.
func Aggregate(delayMinutes []int, cancelledCount int) Analysis {
	counts := map[string]int{}
	for _, band := range Bands {
		counts[band] = 0
	}

	sum := 0
	for _, d := range delayMinutes {
		sum += d

		if d < -5 {
			d = -5
		}

		counts[band(d)]++
	}

	if cancelledCount > 0 {
		counts[BandCancelled] = cancelledCount
	}

	totalCount := len(delayMinutes) + cancelledCount

	buckets := map[string]float64{}
	for bandName, count := range counts {
		buckets[bandName] = percentage(count, totalCount)
	}

	stats := Stats{
		CancelledCount: cancelledCount,
		TotalCount:     totalCount,
	}

	for _, d := range delayMinutes {
		switch {
		case d < -1:
			stats.EarlyCount++
		case d <= 1:
			stats.OnTimeCount++
		default:
			stats.LateCount++
		}

		if d > 30 {
			stats.ExtremeDelays++
		}
	}

	if len(delayMinutes) > 0 {
		stats.AvgDelay = float64(sum) / float64(len(delayMinutes))
	}

	stats.OnTimePercentage = percentage(stats.OnTimeCount, totalCount)
	stats.EarlyPercentage = percentage(stats.EarlyCount, totalCount)
	stats.LatePercentage = percentage(stats.LateCount, totalCount)
	stats.CancelledPercentage = percentage(cancelledCount, totalCount)

	return Analysis{
		Histogram: buckets,
		RawCounts: counts,
		Stats:     stats,
	}
}

func band(d int) string {
	switch {
	case d <= -3:
		return BandEarly3To5
	case d <= -2:
		return BandEarly2To3
	case d <= 1:
		return BandOnTime
	case d <= 3:
		return BandLate2To3
	case d <= 5:
		return BandLate3To5
	case d <= 10:
		return BandLate5To10
	case d <= 15:
		return BandLate10To15
	case d <= 30:
		return BandLate15To30
	default:
		return BandLate30Plus
	}
}

func percentage(count int, total int) float64 {
	if total == 0 {
		return 0.0
	}

	return math.Round(float64(count)/float64(total)*1000) / 10
}
