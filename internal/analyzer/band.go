package analyzer

import (
	"encoding"
	"fmt"
)

// Band selects one of the fixed frequency ranges, or the full spectrum.
type Band int

const (
	Bass Band = iota
	Mid
	High
	// Full selects all three bands combined.
	Full
)

// numBands is the number of real bands; Full is a view, not a band.
const numBands = 3

var (
	_ encoding.TextUnmarshaler = (*Band)(nil)
	_ encoding.TextMarshaler   = (*Band)(nil)
)

func (b Band) String() string {
	switch b {
	case Bass:
		return "bass"
	case Mid:
		return "mid"
	case High:
		return "high"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Band) UnmarshalText(text []byte) error {
	switch string(text) {
	case "bass":
		*b = Bass
	case "mid":
		*b = Mid
	case "high":
		*b = High
	case "full":
		*b = Full
	default:
		return fmt.Errorf("unknown frequency band %q", text)
	}
	return nil
}
