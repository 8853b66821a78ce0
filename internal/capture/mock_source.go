package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back in-memory frames for testing.
type MockSource struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	fps     float64
	openErr error
	readErr map[int]error
	mu      sync.Mutex
	running bool
}

// NewMockSource creates a source over frames. When loop is false the source
// reports ErrEndOfStream after the last frame.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{
		frames:  frames,
		loop:    loop,
		fps:     15,
		readErr: make(map[int]error),
	}
}

// FailOpen makes Open return err.
func (s *MockSource) FailOpen(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

// FailReadAt makes the n-th read (1-indexed) return err instead of a frame.
func (s *MockSource) FailReadAt(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr[n] = err
}

func (s *MockSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.running = true
	s.index = 0
	return nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// ReadFrame returns a clone of the next frame.
func (s *MockSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrSourceNotOpen
	}

	if err, ok := s.readErr[s.index+1]; ok {
		s.index++
		return nil, err
	}

	if len(s.frames) == 0 {
		return nil, ErrEndOfStream
	}

	if s.index >= len(s.frames) {
		if !s.loop {
			return nil, ErrEndOfStream
		}
		s.index = 0
	}

	// Clone the frame so the original isn't modified
	frame := s.frames[s.index].Clone()
	s.index++

	return &frame, nil
}

func (s *MockSource) Width() int {
	if len(s.frames) == 0 {
		return 0
	}
	return s.frames[0].Cols()
}

func (s *MockSource) Height() int {
	if len(s.frames) == 0 {
		return 0
	}
	return s.frames[0].Rows()
}

func (s *MockSource) FPS() float64 { return s.fps }

// FrameCount is 0 for looping sources.
func (s *MockSource) FrameCount() int {
	if s.loop {
		return 0
	}
	return len(s.frames)
}

func (s *MockSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Reset restarts playback from the beginning
func (s *MockSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
}

// BlankFrames returns n black BGR frames of the given size for tests and
// demos. Callers close them with CloseFrames.
func BlankFrames(n, width, height int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	return frames
}

// CloseFrames closes every frame.
func CloseFrames(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
