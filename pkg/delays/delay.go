package delays

const minutesPerDay = 24 * 60
const rolloverThreshold = 12 * 60

// Status describes what a scheduled/actual time pair yielded.
type Status int

const (
	// StatusKnown means a delay value was computed.
	StatusKnown Status = iota
	// StatusCancelled means the service had a timetabled time but no
	// recorded actual time.
	StatusCancelled
	// StatusNoData means no conclusion could be drawn - missing timetable
	// data or an unparseable time string.
	StatusNoData
)

// ComputeDelay returns the signed delay in minutes between a scheduled and an
// actual time, both in zero-padded 24 hour HHMM form.
//
// An empty scheduled time is anomalous timetable data and yields StatusNoData.
// A scheduled time with no actual time means the service never ran, which
// yields StatusCancelled. Malformed time strings also yield StatusNoData
// rather than an error.
func ComputeDelay(scheduled string, actual string) (int, Status) {
	if scheduled == "" {
		return 0, StatusNoData
	}

	if actual == "" {
		return 0, StatusCancelled
	}

	if scheduled == actual {
		return 0, StatusKnown
	}

	scheduledMinutes, ok := parseClock(scheduled)
	if !ok {
		return 0, StatusNoData
	}

	actualMinutes, ok := parseClock(actual)
	if !ok {
		return 0, StatusNoData
	}

	delta := actualMinutes - scheduledMinutes

	// Services crossing midnight have no explicit date on either side, so a
	// swing of more than 12 hours is assumed to be a day rollover
	if delta < -rolloverThreshold {
		delta += minutesPerDay
	} else if delta > rolloverThreshold {
		delta -= minutesPerDay
	}

	return delta, StatusKnown
}

func parseClock(value string) (int, bool) {
	if len(value) != 4 {
		return 0, false
	}

	for _, c := range value {
		if c < '0' || c > '9' {
			return 0, false
		}
	}

	hours := int(value[0]-'0')*10 + int(value[1]-'0')
	minutes := int(value[2]-'0')*10 + int(value[3]-'0')

	if hours > 23 || minutes > 59 {
		return 0, false
	}

	return hours*60 + minutes, true
}
