package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"
)

// DefaultCaptureInterval is the wall-clock time between snapshots.
const DefaultCaptureInterval = 3 * time.Second

// Snapshot describes one saved frame.
type Snapshot struct {
	Path       string
	Sequence   int
	CapturedAt time.Time
}

// Snapshotter saves a frame to disk whenever the capture interval has
// elapsed since the previous snapshot. Files are named frame_0000.jpg,
// frame_0001.jpg and so on. The interval is measured from construction, so
// the first snapshot is taken one interval into the run.
type Snapshotter struct {
	dir      string
	interval time.Duration
	now      func() time.Time
	last     time.Time
	next     int
}

// NewSnapshotter creates the snapshot directory. now may be nil to use time.Now.
func NewSnapshotter(dir string, interval time.Duration, now func() time.Time) (*Snapshotter, error) {
	if interval <= 0 {
		interval = DefaultCaptureInterval
	}
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &Snapshotter{
		dir:      dir,
		interval: interval,
		now:      now,
		last:     now(),
	}, nil
}

// Due reports whether the interval has elapsed.
func (s *Snapshotter) Due() bool {
	return s.now().Sub(s.last) >= s.interval
}

// MaybeCapture writes frame when due. It returns false when no snapshot
// was taken.
func (s *Snapshotter) MaybeCapture(frame *gocv.Mat) (Snapshot, bool, error) {
	now := s.now()
	if now.Sub(s.last) < s.interval {
		return Snapshot{}, false, nil
	}

	path := filepath.Join(s.dir, fmt.Sprintf("frame_%04d.jpg", s.next))
	if ok := gocv.IMWrite(path, *frame); !ok {
		return Snapshot{}, false, fmt.Errorf("write snapshot %s", path)
	}

	snap := Snapshot{Path: path, Sequence: s.next, CapturedAt: now}
	s.next++
	s.last = now
	return snap, true, nil
}

// Count returns the number of snapshots taken.
func (s *Snapshotter) Count() int {
	return s.next
}
