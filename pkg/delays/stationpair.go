package delays

import (
	"github.com/trelay/trelay/pkg/hsp"
)

const fallbackCancelReason = "Service cancelled"

// PairResult holds the departure delay at the origin station and the arrival
// delay at the destination station for a single journey. A station that never
// appears in the calling points leaves its side at StatusNoData with no
// cancellation reason.
type PairResult struct {
	DepartureDelay  int
	DepartureStatus Status
	ArrivalDelay    int
	ArrivalStatus   Status

	DepartureCancelReason string
	ArrivalCancelReason   string
}

// ExtractStationPair scans the full calling point sequence for the origin and
// destination stations. The scan never short-circuits, so on a looped route
// the last matching calling point wins for each role.
func ExtractStationPair(points []hsp.CallingPoint, origin string, destination string) PairResult {
	result := PairResult{
		DepartureStatus: StatusNoData,
		ArrivalStatus:   StatusNoData,
	}

	for _, point := range points {
		if point.Location == origin && point.GBTTDeparture != "" {
			result.DepartureDelay, result.DepartureStatus = ComputeDelay(point.GBTTDeparture, point.ActualDeparture)

			result.DepartureCancelReason = ""
			if result.DepartureStatus == StatusCancelled {
				result.DepartureCancelReason = cancelReason(point)
			}
		}

		if point.Location == destination && point.GBTTArrival != "" {
			result.ArrivalDelay, result.ArrivalStatus = ComputeDelay(point.GBTTArrival, point.ActualArrival)

			result.ArrivalCancelReason = ""
			if result.ArrivalStatus == StatusCancelled {
				result.ArrivalCancelReason = cancelReason(point)
			}
		}
	}

	return result
}

func cancelReason(point hsp.CallingPoint) string {
	if point.CancelReason != "" {
		return point.CancelReason
	}

	return fallbackCancelReason
}
