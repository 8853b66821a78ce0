// Package app runs the customer tracking pipeline over a video source.
//
// An App owns all per-session tracking state (the table zone, the identity
// registry, the entrance crossing detector and the hand smoother) and drives
// it frame by frame from Run. The state is touched only by the goroutine
// running Run; the accessors used by the server and tray are safe for
// concurrent use.
package app

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/retailsight/internal/capture"
	"github.com/ayusman/retailsight/internal/detector"
	"github.com/ayusman/retailsight/internal/notify"
	"github.com/ayusman/retailsight/internal/store"
	"github.com/ayusman/retailsight/internal/tracking"
)

// DefaultFrameSkip processes every third frame.
const DefaultFrameSkip = 3

// ErrAlreadyRunning is returned when Run is called on an App that is running.
var ErrAlreadyRunning = errors.New("pipeline already running")

// ErrInvalidFrameSize is returned when the opened source has no usable
// frame size; the entrance line cannot be placed without a width.
var ErrInvalidFrameSize = errors.New("invalid frame size")

// Config holds configuration options for the application.
type Config struct {
	// Source and Detector are required.
	Source   capture.Source
	Detector detector.ObjectDetector

	// Sink receives every processed, annotated frame. Optional.
	Sink capture.Sink

	// Hands runs only on frames with at least one customer. Optional.
	Hands detector.HandDetector

	// Roles maps detector class ids to roles. Nil uses tracking.DefaultRoleMap.
	Roles tracking.RoleMap

	// FrameSkip processes frames whose 1-indexed number is a multiple of it.
	FrameSkip int

	// EntranceRatio places the entrance line as a fraction of frame width.
	EntranceRatio float64

	// SnapshotDir enables periodic snapshots when set.
	SnapshotDir     string
	CaptureInterval time.Duration

	HandHistory       int
	HandAssignment    tracking.HandAssignment
	HandMatchDistance float64

	// MaxIdleFrames evicts identities and hand tracks unseen for that many
	// processed frames. 0 keeps them for the whole session.
	MaxIdleFrames int

	// Notifier receives every crossing event. Optional.
	Notifier notify.Sink

	// Store persists the run, its events and snapshots. Optional.
	Store *store.Store

	// SourceName is recorded with the run.
	SourceName string

	// Progress shows a progress bar for sources with a known frame count.
	Progress bool

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// App is the frame orchestrator.
type App struct {
	config Config

	zone      tracking.Zone
	registry  *tracking.Registry
	crossing  *tracking.CrossingDetector
	smoother  *tracking.HandSmoother
	snapshots *capture.Snapshotter
	notifier  notify.Sink
	runID     string
	width     int
	height    int

	mu             sync.RWMutex
	stopCh         chan struct{}
	stopOnce       sync.Once
	running        bool
	count          int
	stats          Stats
	frameObservers []func(*gocv.Mat)
	entryObservers []func(tracking.CrossingEvent)
}

// New creates a new App with the given configuration.
func New(config Config) (*App, error) {
	if config.Source == nil {
		return nil, errors.New("app: source is required")
	}
	if config.Detector == nil {
		return nil, errors.New("app: detector is required")
	}
	if config.FrameSkip <= 0 {
		config.FrameSkip = DefaultFrameSkip
	}
	if config.EntranceRatio <= 0 {
		config.EntranceRatio = tracking.DefaultEntranceRatio
	}
	if config.CaptureInterval <= 0 {
		config.CaptureInterval = capture.DefaultCaptureInterval
	}
	if config.HandHistory <= 0 {
		config.HandHistory = tracking.DefaultHandHistory
	}
	if config.Roles == nil {
		config.Roles = tracking.DefaultRoleMap()
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &App{
		config:   config,
		registry: tracking.NewRegistry(config.Roles, config.MaxIdleFrames),
		smoother: tracking.NewHandSmoother(tracking.HandSmootherConfig{
			Capacity:      config.HandHistory,
			Policy:        config.HandAssignment,
			MatchDistance: config.HandMatchDistance,
			MaxIdleFrames: config.MaxIdleFrames,
		}),
		stopCh: make(chan struct{}),
	}, nil
}

// OnFrame registers fn to receive every annotated processed frame. The frame
// is only valid for the duration of the call; observers that keep it must
// clone it.
func (a *App) OnFrame(fn func(*gocv.Mat)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frameObservers = append(a.frameObservers, fn)
}

// OnEntry registers fn to be called on every entrance crossing.
func (a *App) OnEntry(fn func(tracking.CrossingEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entryObservers = append(a.entryObservers, fn)
}

// Stop asks a running pipeline to finish after the current frame. It is
// safe to call more than once and from any goroutine.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
	})
}

// Count returns the number of customers that have entered so far.
func (a *App) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.count
}

// IsRunning reports whether Run is in progress.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// Stats returns a snapshot of the run counters.
func (a *App) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats.clone()
}

// RunID returns the store id of the current run, or "" without a store.
func (a *App) RunID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runID
}

// Close releases the detectors.
func (a *App) Close() error {
	var errs []error
	if err := a.config.Detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}
	if a.config.Hands != nil {
		if err := a.config.Hands.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close hand detector: %w", err))
		}
	}
	return errors.Join(errs...)
}

// setup opens the source and sink and prepares per-run state. Any failure
// here is fatal.
func (a *App) setup() error {
	if err := a.config.Roles.Validate(a.config.Detector.Classes()); err != nil {
		return fmt.Errorf("invalid role map: %w", err)
	}

	src := a.config.Source
	if err := src.Open(); err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	a.width, a.height = src.Width(), src.Height()
	if a.width <= 0 || a.height <= 0 {
		src.Close()
		return fmt.Errorf("%w: source reports %dx%d", ErrInvalidFrameSize, a.width, a.height)
	}
	a.crossing = tracking.NewCrossingDetector(a.width, a.config.EntranceRatio)

	if a.config.Sink != nil {
		if err := a.config.Sink.Open(a.width, a.height, src.FPS()); err != nil {
			src.Close()
			return fmt.Errorf("open sink: %w", err)
		}
	}

	if a.config.SnapshotDir != "" {
		snaps, err := capture.NewSnapshotter(a.config.SnapshotDir, a.config.CaptureInterval, a.config.Clock)
		if err != nil {
			a.teardown()
			return err
		}
		a.snapshots = snaps
	}

	sinks := notify.Multi{a.config.Notifier}
	if a.config.Store != nil {
		run := &store.Run{
			Source:        a.config.SourceName,
			FrameWidth:    a.width,
			FrameHeight:   a.height,
			EntranceLineX: a.crossing.LineX(),
			FrameSkip:     a.config.FrameSkip,
			StartedAt:     a.config.Clock(),
		}
		if a.config.Sink != nil {
			run.OutputPath = a.config.Sink.Path()
		}
		if err := a.config.Store.Runs().Create(run); err != nil {
			a.teardown()
			return fmt.Errorf("create run: %w", err)
		}
		a.mu.Lock()
		a.runID = run.ID
		a.mu.Unlock()
		sinks = append(sinks, a.config.Store.EventRecorder(run.ID))
	}
	a.notifier = sinks

	log.Printf("Frame %dx%d, entrance line at x=%d, processing every %d frames",
		a.width, a.height, a.crossing.LineX(), a.config.FrameSkip)
	return nil
}

func (a *App) teardown() {
	if a.config.Sink != nil {
		if err := a.config.Sink.Close(); err != nil {
			log.Printf("Error closing sink: %v", err)
		}
	}
	if err := a.config.Source.Close(); err != nil {
		log.Printf("Error closing source: %v", err)
	}
}

func (a *App) now() time.Time {
	return a.config.Clock()
}
