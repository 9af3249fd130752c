package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// Mock camera errors.
var (
	ErrMockClosed  = errors.New("mock camera is closed")
	ErrNoFrames    = errors.New("mock camera has no frames")
	ErrOutOfFrames = errors.New("mock camera frame sequence exhausted")
)

// MockCamera replays a fixed frame sequence so gaze sampling can be tested
// without hardware. Reads return clones; the caller owns the returned Mat and
// the source frames are never mutated. With loop set the sequence repeats
// forever, which suits tracker tests that sample on a ticker.
type MockCamera struct {
	mu     sync.Mutex
	frames []*gocv.Mat
	next   int
	loop   bool
	open   bool
}

// NewMockCamera creates a mock camera over the given frames.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{frames: frames, loop: loop}
}

// Open rewinds the sequence and marks the camera running.
func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.next = 0
	return nil
}

// Close marks the camera stopped. The frames stay owned by the caller.
func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

// ReadFrame returns a clone of the next frame in the sequence.
func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrMockClosed
	}
	if len(c.frames) == 0 {
		return nil, ErrNoFrames
	}
	if c.next >= len(c.frames) {
		if !c.loop {
			return nil, ErrOutOfFrames
		}
		c.next = 0
	}

	frame := c.frames[c.next].Clone()
	c.next++
	return &frame, nil
}

// SetFPS is a no-op; the mock has no capture rate.
func (c *MockCamera) SetFPS(fps int) {}

// FPS reports a nominal rate.
func (c *MockCamera) FPS() int { return 15 }

// IsOpen reports whether the camera is between Open and Close.
func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// SetFrames swaps in a new frame sequence and rewinds.
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.next = 0
}

// Reset rewinds playback to the first frame.
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = 0
}
