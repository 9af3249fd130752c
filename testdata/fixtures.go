// Package testdata provides shared pressure-sensor fixtures for integration
// and end-to-end tests: canonical stance samples and their wire-format
// frames.
package testdata

import (
	"fmt"
	"time"

	"github.com/msardana/leanplay/internal/sensor"
)

// Canonical four-channel stances. The fourth channel is the rear sensor;
// leaning forward loads the front three and unloads the rear.
var (
	NeutralChannels  = [4]int32{100, 110, 120, 210}
	ForwardChannels  = [4]int32{110, 120, 130, 208}
	BackwardChannels = [4]int32{90, 100, 110, 212}
)

// Sample builds a sensor sample from channel values, stamped now.
func Sample(channels [4]int32) sensor.Sample {
	return sensor.Sample{Channels: channels, At: time.Now()}
}

// Neutral returns a neutral-stance sample.
func Neutral() sensor.Sample { return Sample(NeutralChannels) }

// Forward returns a forward-lean sample.
func Forward() sensor.Sample { return Sample(ForwardChannels) }

// Backward returns a backward-lean sample.
func Backward() sensor.Sample { return Sample(BackwardChannels) }

// Frame renders channel values in the sensor wire format.
func Frame(channels [4]int32) []byte {
	return []byte(fmt.Sprintf("SensorVal = %d,%d,%d,%d",
		channels[0], channels[1], channels[2], channels[3]))
}
