package gaze

import (
	"fmt"

	"gocv.io/x/gocv"
)

// FaceDetector reports whether a face is present in a frame. Face presence is
// the raw "looking at screen" signal; the smoother stabilizes it.
type FaceDetector interface {
	Present(frame *gocv.Mat) (bool, error)
	Close() error
}

// CascadeDetector detects frontal faces with an OpenCV Haar cascade.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
}

// NewCascadeDetector loads the cascade model from the given path.
func NewCascadeDetector(cascadePath string) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade model %q", cascadePath)
	}
	return &CascadeDetector{classifier: classifier}, nil
}

// Present reports whether at least one frontal face is visible in the frame.
func (d *CascadeDetector) Present(frame *gocv.Mat) (bool, error) {
	if frame == nil || frame.Empty() {
		return false, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	rects := d.classifier.DetectMultiScale(gray)
	return len(rects) > 0, nil
}

// Close releases the cascade classifier.
func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}

// MockFaceDetector is a test implementation of FaceDetector with a
// controllable result.
type MockFaceDetector struct {
	present bool
	err     error
}

// NewMockFaceDetector creates a MockFaceDetector reporting no face.
func NewMockFaceDetector() *MockFaceDetector {
	return &MockFaceDetector{}
}

// SetPresent sets the result returned by Present.
func (m *MockFaceDetector) SetPresent(present bool) {
	m.present = present
}

// SetError sets the error returned by Present.
func (m *MockFaceDetector) SetError(err error) {
	m.err = err
}

// Present returns the pre-configured result.
func (m *MockFaceDetector) Present(frame *gocv.Mat) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.present, nil
}

// Close is a no-op for the mock detector.
func (m *MockFaceDetector) Close() error {
	return nil
}
