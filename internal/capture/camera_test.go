package capture

import "testing"

func TestCameraDefaults(t *testing.T) {
	cam := NewCamera(0)

	if got := cam.FPS(); got != 10 {
		t.Errorf("default FPS = %d, want 10", got)
	}
	if cam.IsOpen() {
		t.Error("camera should not report open before Open")
	}
	if _, err := cam.ReadFrame(); err == nil {
		t.Error("ReadFrame before Open should fail")
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close before Open should be a no-op, got %v", err)
	}
}

func TestCameraSetFPS(t *testing.T) {
	cam := NewCamera(0)

	cases := []struct {
		set  int
		want int
	}{
		{30, 30},
		{1, 1},
		// Non-positive values keep the previous rate.
		{0, 1},
		{-5, 1},
	}
	for _, tc := range cases {
		cam.SetFPS(tc.set)
		if got := cam.FPS(); got != tc.want {
			t.Errorf("SetFPS(%d): FPS = %d, want %d", tc.set, got, tc.want)
		}
	}
}

// TestCameraHardware exercises a real capture device when one is attached.
func TestCameraHardware(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping hardware test in short mode")
	}

	cam := NewCamera(0)
	if err := cam.Open(); err != nil {
		t.Skipf("no capture device: %v", err)
	}
	defer cam.Close()

	if !cam.IsOpen() {
		t.Error("camera should report open after Open")
	}

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	defer frame.Close()
	if frame.Empty() {
		t.Error("captured frame is empty")
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if cam.IsOpen() {
		t.Error("camera should not report open after Close")
	}
}
