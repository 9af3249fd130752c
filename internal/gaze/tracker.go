package gaze

import (
	"log"
	"sync"
	"time"

	"github.com/msardana/leanplay/internal/capture"
	"github.com/msardana/leanplay/internal/event"
)

// DefaultInterval is the sampling period of the tracker loop.
const DefaultInterval = 100 * time.Millisecond

// TrackerConfig holds the tracker's tuning knobs.
type TrackerConfig struct {
	// Interval is the sampling period. Zero selects DefaultInterval.
	Interval time.Duration
	// MotionThreshold is the percentage of changed pixels below which face
	// detection is skipped and the previous raw value is reused.
	MotionThreshold float64
	// Window and thresholds are passed to the smoother; zero values select
	// the smoother defaults.
	Window       int
	OnThreshold  float64
	OffThreshold float64
}

// Tracker samples the camera on a fixed interval, runs face detection, and
// feeds the raw presence signal through the hysteresis smoother. Smoothed
// transitions are published as GazeChanged events.
type Tracker struct {
	config   TrackerConfig
	camera   capture.Camera
	detector FaceDetector
	motion   *capture.MotionDetector
	smoother *Smoother
	bus      *event.Bus

	mu      sync.Mutex
	stopCh  chan struct{}
	lastRaw bool
	primed  bool
}

// NewTracker creates a tracker reading from the given camera and detector.
func NewTracker(config TrackerConfig, camera capture.Camera, detector FaceDetector, bus *event.Bus) *Tracker {
	threshold := config.MotionThreshold
	if threshold <= 0 {
		threshold = 1.0
	}
	return &Tracker{
		config:   config,
		camera:   camera,
		detector: detector,
		motion:   capture.NewMotionDetector(threshold),
		smoother: NewSmoother(config.Window, config.OnThreshold, config.OffThreshold),
		bus:      bus,
	}
}

// Looking returns the current smoothed gaze state.
func (t *Tracker) Looking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.smoother.Looking()
}

// Start opens the camera and begins the sampling loop.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopCh != nil {
		return nil
	}

	if err := t.camera.Open(); err != nil {
		return err
	}

	t.stopCh = make(chan struct{})
	go t.run(t.stopCh)

	log.Println("gaze: tracker started")
	return nil
}

// Stop halts the sampling loop and releases the camera and detector.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopCh != nil {
		close(t.stopCh)
		t.stopCh = nil
	}

	if err := t.camera.Close(); err != nil {
		log.Printf("gaze: error closing camera: %v", err)
	}
	t.motion.Close()
	if err := t.detector.Close(); err != nil {
		log.Printf("gaze: error closing detector: %v", err)
	}

	log.Println("gaze: tracker stopped")
}

func (t *Tracker) interval() time.Duration {
	if t.config.Interval <= 0 {
		return DefaultInterval
	}
	return t.config.Interval
}

// run is the sampling loop.
func (t *Tracker) run(stopCh chan struct{}) {
	ticker := time.NewTicker(t.interval())
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			t.sample()
		}
	}
}

// sample reads one frame and advances the smoother.
func (t *Tracker) sample() {
	frame, err := t.camera.ReadFrame()
	if err != nil {
		return
	}
	defer frame.Close()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Skip face detection while the scene is static; the previous raw value
	// still enters the window so the smoother keeps converging.
	raw := t.lastRaw
	if moved, _ := t.motion.Detect(frame); moved || !t.primed {
		present, err := t.detector.Present(frame)
		if err != nil {
			return
		}
		raw = present
		t.primed = true
	}
	t.lastRaw = raw

	if looking, changed := t.smoother.Observe(raw); changed {
		t.bus.Publish(event.GazeChanged{Looking: looking})
	}
}
