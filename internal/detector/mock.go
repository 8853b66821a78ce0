package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockObjectDetector is a test implementation of ObjectDetector.
// Each call to DetectAndTrack consumes the next scripted step; once the
// script is exhausted it returns no detections.
type MockObjectDetector struct {
	mu      sync.Mutex
	steps   []mockStep
	calls   int
	classes map[int]string
	closed  bool
}

type mockStep struct {
	detections []Detection
	err        error
}

// NewMockObjectDetector creates a mock reporting the COCO80 class set.
func NewMockObjectDetector() *MockObjectDetector {
	return &MockObjectDetector{classes: COCOClasses()}
}

// Then appends a step returning the given detections.
func (m *MockObjectDetector) Then(detections ...Detection) *MockObjectDetector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{detections: detections})
	return m
}

// ThenError appends a step failing with err.
func (m *MockObjectDetector) ThenError(err error) *MockObjectDetector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{err: err})
	return m
}

// DetectAndTrack returns the next scripted step.
func (m *MockObjectDetector) DetectAndTrack(frame *gocv.Mat) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	m.calls++
	if idx >= len(m.steps) {
		return nil, nil
	}
	step := m.steps[idx]
	if step.err != nil {
		return nil, step.err
	}
	out := make([]Detection, len(step.detections))
	copy(out, step.detections)
	return out, nil
}

// Calls returns how many times DetectAndTrack has been invoked.
func (m *MockObjectDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Classes returns the configured class set.
func (m *MockObjectDetector) Classes() map[int]string {
	return m.classes
}

// Closed reports whether Close was called.
func (m *MockObjectDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the mock closed.
func (m *MockObjectDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MockHandDetector is a test implementation of HandDetector.
type MockHandDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockHandDetector creates a new MockHandDetector instance.
func NewMockHandDetector() *MockHandDetector {
	return &MockHandDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockHandDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockHandDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured hands or error.
func (m *MockHandDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Calls returns how many times Detect has been invoked.
func (m *MockHandDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op for the mock detector.
func (m *MockHandDetector) Close() error {
	return nil
}

// HandAt returns a preset open hand whose wrist sits at the given
// normalized position. The remaining landmarks fan out above the wrist.
func HandAt(x, y float64) HandLandmarks {
	hand := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}
	hand.Points[Wrist] = Point3D{X: x, Y: y}

	// Thumb to the side, fingers upward.
	fingers := [5][4]int{
		{ThumbCMC, ThumbMCP, ThumbIP, ThumbTip},
		{IndexMCP, IndexPIP, IndexDIP, IndexTip},
		{MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip},
		{RingMCP, RingPIP, RingDIP, RingTip},
		{PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip},
	}
	for f, joints := range fingers {
		dx := 0.02 * float64(2-f)
		for j, idx := range joints {
			step := float64(j + 1)
			hand.Points[idx] = Point3D{X: x + dx*step, Y: y - 0.03*step}
		}
	}

	return hand
}
