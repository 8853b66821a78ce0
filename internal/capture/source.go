// Package capture provides video input, annotated video output and periodic
// frame snapshots using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrSourceNotOpen is returned when reading from a source that is not open.
	ErrSourceNotOpen = errors.New("source is not open")

	// ErrEndOfStream is returned once a finite source has no more frames.
	ErrEndOfStream = errors.New("end of stream")
)

// Source is a stream of decoded frames.
type Source interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller is responsible for
	// closing the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	Width() int
	Height() int
	FPS() float64
	// FrameCount is the total number of frames, 0 when unknown (live devices).
	FrameCount() int
	IsOpen() bool
}

// videoSource reads from a video file, a network stream or a camera device.
type videoSource struct {
	input   string
	capture *gocv.VideoCapture
	live    bool
	mu      sync.Mutex
	running bool

	width, height int
	fps           float64
	frames        int
}

// NewSource creates a Source for input, which is a path to a video file, a
// stream URL such as rtsp://host/path, or a numeric camera index.
func NewSource(input string) Source {
	return &videoSource{input: input}
}

type inputKind int

const (
	inputMissing inputKind = iota
	inputFile
	inputDevice
	inputStream
)

// classifyInput decides how input is opened. A path that exists is always
// treated as a file, so a file named "0" shadows camera 0.
func classifyInput(input string) (inputKind, int) {
	if _, err := os.Stat(input); err == nil {
		return inputFile, 0
	}
	if id, err := strconv.Atoi(input); err == nil {
		return inputDevice, id
	}
	if u, err := url.Parse(input); err == nil && u.Scheme != "" && u.Host != "" {
		return inputStream, 0
	}
	return inputMissing, 0
}

// Open opens the file, stream or device.
func (s *videoSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	var (
		capture *gocv.VideoCapture
		err     error
	)
	switch kind, id := classifyInput(s.input); kind {
	case inputFile:
		capture, err = gocv.VideoCaptureFile(s.input)
	case inputDevice:
		capture, err = gocv.VideoCaptureDevice(id)
		s.live = true
	case inputStream:
		// OpenCV's FFmpeg backend opens network URLs as files.
		capture, err = gocv.VideoCaptureFile(s.input)
		s.live = true
	default:
		return fmt.Errorf("open %s: %w", s.input, os.ErrNotExist)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", s.input, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open %s: capture not opened", s.input)
	}

	s.capture = capture
	s.width = int(capture.Get(gocv.VideoCaptureFrameWidth))
	s.height = int(capture.Get(gocv.VideoCaptureFrameHeight))
	s.fps = capture.Get(gocv.VideoCaptureFPS)
	if !s.live {
		s.frames = int(capture.Get(gocv.VideoCaptureFrameCount))
	}
	s.running = true

	return nil
}

// Close releases the capture.
func (s *videoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		s.running = false
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	s.running = false

	return err
}

// ReadFrame reads a single frame. A failed read on a file is the end of the
// stream; on a live device or stream it is an error.
func (s *videoSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		if s.live {
			return nil, errors.New("failed to read frame from live source")
		}
		return nil, ErrEndOfStream
	}

	return &mat, nil
}

func (s *videoSource) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

func (s *videoSource) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// FPS returns the stream frame rate. Some containers report 0.
func (s *videoSource) FPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps
}

func (s *videoSource) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// IsOpen returns true if the source is currently open.
func (s *videoSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
