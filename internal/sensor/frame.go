// Package sensor provides the wireless pressure-sensor channel: frame parsing
// and the links that deliver samples and connection events to the calibration
// engines.
package sensor

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ChannelCount is the number of pressure channels in a well-formed frame.
const ChannelCount = 4

// labelPrefix is the optional label token some sensor firmware revisions
// prepend to the numeric payload.
const labelPrefix = "SensorVal = "

// ErrMalformedFrame is returned when a frame does not contain exactly four
// parseable integer fields. Malformed frames are dropped with no side effect.
var ErrMalformedFrame = errors.New("malformed sensor frame")

// Sample is one pressure reading: channels 0..2 are the front pads, channel 3
// is the heel pad.
type Sample struct {
	Channels [ChannelCount]int32
	At       time.Time
}

// ParseFrame parses a raw sensor payload: a UTF-8 comma-separated list of four
// decimal integers, optionally preceded by the "SensorVal = " label. Any other
// arity or a non-numeric field yields ErrMalformedFrame.
func ParseFrame(raw []byte) (Sample, error) {
	text := strings.TrimSpace(string(raw))
	if after, ok := strings.CutPrefix(text, labelPrefix); ok {
		text = after
	}

	fields := strings.Split(text, ",")
	if len(fields) != ChannelCount {
		return Sample{}, ErrMalformedFrame
	}

	var s Sample
	for i, field := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(field), 10, 32)
		if err != nil {
			return Sample{}, ErrMalformedFrame
		}
		s.Channels[i] = int32(v)
	}

	s.At = time.Now()
	return s, nil
}
