package delays

import (
	"testing"
)

func TestComputeDelayIdenticalTimes(t *testing.T) {
	for _, timeString := range []string{"0000", "0700", "1234", "2359"} {
		minutes, status := ComputeDelay(timeString, timeString)
		if status != StatusKnown || minutes != 0 {
			t.Errorf("ComputeDelay(%q, %q) = %d, %v, expected 0, StatusKnown", timeString, timeString, minutes, status)
		}
	}
}

func TestComputeDelaySimpleDifferences(t *testing.T) {
	tests := []struct {
		scheduled string
		actual    string
		expected  int
	}{
		{"0700", "0705", 5},
		{"0700", "0655", -5},
		{"0959", "1001", 2},
		{"2300", "2330", 30},
		{"0000", "0001", 1},
	}

	for _, test := range tests {
		minutes, status := ComputeDelay(test.scheduled, test.actual)
		if status != StatusKnown {
			t.Errorf("ComputeDelay(%q, %q) status = %v, expected StatusKnown", test.scheduled, test.actual, status)
			continue
		}
		if minutes != test.expected {
			t.Errorf("ComputeDelay(%q, %q) = %d, expected %d", test.scheduled, test.actual, minutes, test.expected)
		}
	}
}

func TestComputeDelayDayRollover(t *testing.T) {
	minutes, status := ComputeDelay("2359", "0001")
	if status != StatusKnown || minutes != 2 {
		t.Errorf("ComputeDelay(2359, 0001) = %d, %v, expected +2 next-day rollover", minutes, status)
	}

	minutes, status = ComputeDelay("0001", "2359")
	if status != StatusKnown || minutes != -2 {
		t.Errorf("ComputeDelay(0001, 2359) = %d, %v, expected -2 previous-day rollover", minutes, status)
	}
}

func TestComputeDelayCancelled(t *testing.T) {
	for _, scheduled := range []string{"0700", "2359", "garbage"} {
		_, status := ComputeDelay(scheduled, "")
		if status != StatusCancelled {
			t.Errorf("ComputeDelay(%q, \"\") status = %v, expected StatusCancelled", scheduled, status)
		}
	}
}

func TestComputeDelayMissingScheduled(t *testing.T) {
	for _, actual := range []string{"", "0700", "garbage"} {
		_, status := ComputeDelay("", actual)
		if status != StatusNoData {
			t.Errorf("ComputeDelay(\"\", %q) status = %v, expected StatusNoData", actual, status)
		}
	}
}

func TestComputeDelayMalformedTimes(t *testing.T) {
	tests := []struct {
		scheduled string
		actual    string
	}{
		{"07:0", "0705"},
		{"0700", "07050"},
		{"07a0", "0705"},
		{"0700", "07b5"},
		{"2400", "0005"},
		{"0700", "0760"},
		{"7", "0705"},
	}

	for _, test := range tests {
		_, status := ComputeDelay(test.scheduled, test.actual)
		if status != StatusNoData {
			t.Errorf("ComputeDelay(%q, %q) status = %v, expected StatusNoData", test.scheduled, test.actual, status)
		}
	}
}
