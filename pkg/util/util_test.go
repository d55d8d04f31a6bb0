package util

import "testing"

func TestTrimString(t *testing.T) {
	if got := TrimString("hello", 10); got != "hello" {
		t.Errorf("TrimString(hello, 10) = %q", got)
	}
	if got := TrimString("hello world", 5); got != "hello" {
		t.Errorf("TrimString(hello world, 5) = %q", got)
	}
	if got := TrimString("", 5); got != "" {
		t.Errorf("TrimString(\"\", 5) = %q", got)
	}
}

func TestGetEnvironmentVariables(t *testing.T) {
	t.Setenv("TRELAY_UTIL_TEST", "some value=with equals")

	variables := GetEnvironmentVariables()
	if variables["TRELAY_UTIL_TEST"] != "some value=with equals" {
		t.Errorf("TRELAY_UTIL_TEST = %q, expected the full value after the first equals", variables["TRELAY_UTIL_TEST"])
	}
}
