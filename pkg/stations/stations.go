package stations

import (
	"os"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

type stationRecord struct {
	Code string `csv:"code"`
	Name string `csv:"name"`
}

// Lookup maps three-letter CRS station codes to display names. Codes with no
// entry fall back to the raw code.
type Lookup struct {
	names map[string]string
}

// Load reads a code,name CSV table. An empty path yields an empty lookup -
// every code then falls back to itself.
func Load(path string) (*Lookup, error) {
	lookup := &Lookup{names: map[string]string{}}

	if path == "" {
		log.Info().Msg("No station codes table configured, using raw CRS codes")
		return lookup, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []stationRecord
	if err := gocsv.UnmarshalFile(file, &records); err != nil {
		return nil, err
	}

	for _, record := range records {
		if record.Code == "" || record.Name == "" {
			continue
		}

		lookup.names[record.Code] = record.Name
	}

	log.Info().Int("stations", len(lookup.names)).Str("path", path).Msg("Loaded station codes table")

	return lookup, nil
}

// Name returns the display name for a CRS code, or the code itself when
// unknown.
func (l *Lookup) Name(code string) string {
	if name, ok := l.names[code]; ok {
		return name
	}

	return code
}
