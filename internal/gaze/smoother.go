// Package gaze provides the "looking at screen" signal: a camera-backed face
// tracker and the hysteresis smoother that turns its raw boolean stream into
// a stable gaze state.
package gaze

// Smoother defaults.
const (
	DefaultWindow       = 8
	DefaultOnThreshold  = 0.65
	DefaultOffThreshold = 0.45
)

// Smoother debounces a boolean sample stream with dual-threshold hysteresis
// over a fixed-length FIFO window. Entering the "on" state requires a higher
// true-ratio than staying in it, so brief detection dropouts do not flicker
// the output. Not safe for concurrent use.
type Smoother struct {
	window       []bool
	size         int
	onThreshold  float64
	offThreshold float64
	on           bool
}

// NewSmoother creates a smoother. Non-positive window or thresholds select
// the defaults.
func NewSmoother(window int, onThreshold, offThreshold float64) *Smoother {
	if window <= 0 {
		window = DefaultWindow
	}
	if onThreshold <= 0 {
		onThreshold = DefaultOnThreshold
	}
	if offThreshold <= 0 {
		offThreshold = DefaultOffThreshold
	}
	return &Smoother{
		window:       make([]bool, 0, window),
		size:         window,
		onThreshold:  onThreshold,
		offThreshold: offThreshold,
	}
}

// Looking returns the current smoothed state.
func (s *Smoother) Looking() bool {
	return s.on
}

// Ratio returns the fraction of true samples in the current window.
func (s *Smoother) Ratio() float64 {
	if len(s.window) == 0 {
		return 0
	}
	trueCount := 0
	for _, v := range s.window {
		if v {
			trueCount++
		}
	}
	return float64(trueCount) / float64(len(s.window))
}

// Observe appends a raw sample, trims the window, and applies the hysteresis
// rule. It returns the smoothed state and whether it changed.
func (s *Smoother) Observe(raw bool) (looking, changed bool) {
	s.window = append(s.window, raw)
	for len(s.window) > s.size {
		s.window = s.window[1:]
	}

	ratio := s.Ratio()
	next := s.on
	if s.on {
		next = ratio >= s.offThreshold
	} else {
		next = ratio >= s.onThreshold
	}

	changed = next != s.on
	s.on = next
	return s.on, changed
}

// Reset clears the window and returns the state to off.
func (s *Smoother) Reset() {
	s.window = s.window[:0]
	s.on = false
}
