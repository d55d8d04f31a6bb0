package stations

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.csv")

	csv := "code,name\nBTN,Brighton\nVIC,London Victoria\n"
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatalf("writing fixture failed: %v", err)
	}

	lookup, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if name := lookup.Name("BTN"); name != "Brighton" {
		t.Errorf("Name(BTN) = %q, expected Brighton", name)
	}
	if name := lookup.Name("VIC"); name != "London Victoria" {
		t.Errorf("Name(VIC) = %q, expected London Victoria", name)
	}
}

func TestUnknownCodeFallsBackToCode(t *testing.T) {
	lookup, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if name := lookup.Name("XYZ"); name != "XYZ" {
		t.Errorf("Name(XYZ) = %q, expected the raw code", name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	if err == nil {
		t.Error("expected an error for a missing station table")
	}
}
