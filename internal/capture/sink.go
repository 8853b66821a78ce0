package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultCodec is the fourcc used for annotated output video.
const DefaultCodec = "mp4v"

// ErrSinkNotOpen is returned when writing to a sink that is not open.
var ErrSinkNotOpen = errors.New("sink is not open")

// Sink receives annotated frames.
type Sink interface {
	Open(width, height int, fps float64) error
	Write(frame *gocv.Mat) error
	Close() error
	Path() string
}

// VideoFileSink writes frames to a video file.
type VideoFileSink struct {
	path   string
	codec  string
	writer *gocv.VideoWriter
	mu     sync.Mutex
}

// NewVideoFileSink creates a sink writing to path with DefaultCodec.
func NewVideoFileSink(path string) *VideoFileSink {
	return &VideoFileSink{path: path, codec: DefaultCodec}
}

// Open creates the parent directory and the video writer. A non-positive
// fps falls back to 30, which OpenCV needs to produce a playable file.
func (s *VideoFileSink) Open(width, height int, fps float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		return nil
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if fps <= 0 {
		fps = 30
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	writer, err := gocv.VideoWriterFile(s.path, s.codec, fps, width, height, true)
	if err != nil {
		return fmt.Errorf("open video writer %s: %w", s.path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return fmt.Errorf("open video writer %s: writer not opened", s.path)
	}

	s.writer = writer
	return nil
}

// Write appends a frame to the video.
func (s *VideoFileSink) Write(frame *gocv.Mat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return ErrSinkNotOpen
	}
	return s.writer.Write(*frame)
}

// Close flushes and closes the file.
func (s *VideoFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	return err
}

// Path returns the output file path.
func (s *VideoFileSink) Path() string {
	return s.path
}

// MockSink records written frames for testing.
type MockSink struct {
	mu      sync.Mutex
	open    bool
	openErr error
	width   int
	height  int
	written int
}

// NewMockSink creates a new MockSink instance.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// FailOpen makes Open return err.
func (s *MockSink) FailOpen(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

func (s *MockSink) Open(width, height int, fps float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.open = true
	s.width, s.height = width, height
	return nil
}

func (s *MockSink) Write(frame *gocv.Mat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrSinkNotOpen
	}
	s.written++
	return nil
}

func (s *MockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *MockSink) Path() string { return "" }

// Written returns the number of frames written.
func (s *MockSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Size returns the frame size the sink was opened with.
func (s *MockSink) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// IsOpen reports whether the sink is open.
func (s *MockSink) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}
