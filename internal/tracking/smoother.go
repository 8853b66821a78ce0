package tracking

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/retailsight/internal/detector"
)

// DefaultHandHistory is the number of positions kept per hand.
const DefaultHandHistory = 10

// HandAssignment selects how detected hands are mapped to hand ids.
type HandAssignment int

const (
	// AssignSequential gives every detected hand a new id equal to the
	// number of hand tracks created so far. A physical hand is not
	// followed across frames.
	AssignSequential HandAssignment = iota

	// AssignNearest reuses the closest track whose last position is within
	// the match distance and has not been claimed in the current frame.
	AssignNearest
)

func (a HandAssignment) String() string {
	switch a {
	case AssignSequential:
		return "sequential"
	case AssignNearest:
		return "nearest"
	}
	return fmt.Sprintf("assignment(%d)", int(a))
}

// ParseHandAssignment parses "sequential" or "nearest".
func ParseHandAssignment(s string) (HandAssignment, error) {
	switch s {
	case "", "sequential":
		return AssignSequential, nil
	case "nearest":
		return AssignNearest, nil
	}
	return AssignSequential, fmt.Errorf("unknown hand assignment %q", s)
}

type handTrack struct {
	history  []detector.Point2D
	lastSeen int
}

// HandSmoother keeps a bounded FIFO history of positions per hand id and
// reports the mean of that history.
type HandSmoother struct {
	capacity      int
	policy        HandAssignment
	matchDistance float64
	maxIdleFrames int

	tracks  map[int]*handTrack
	created int
	frame   int
	claimed map[int]bool
}

// HandSmootherConfig configures a HandSmoother.
type HandSmootherConfig struct {
	Capacity      int
	Policy        HandAssignment
	MatchDistance float64
	MaxIdleFrames int
}

// NewHandSmoother creates a smoother. A non-positive capacity falls back to
// DefaultHandHistory.
func NewHandSmoother(cfg HandSmootherConfig) *HandSmoother {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultHandHistory
	}
	return &HandSmoother{
		capacity:      cfg.Capacity,
		policy:        cfg.Policy,
		matchDistance: cfg.MatchDistance,
		maxIdleFrames: cfg.MaxIdleFrames,
		tracks:        make(map[int]*handTrack),
		claimed:       make(map[int]bool),
	}
}

// BeginFrame marks the start of a processed frame.
func (s *HandSmoother) BeginFrame(frame int) {
	s.frame = frame
	clear(s.claimed)
}

// NextID returns the id the next new hand track will receive: the number of
// hand tracks created so far.
func (s *HandSmoother) NextID() int {
	return s.created
}

// Assign returns the hand id for a hand observed at pos in the current frame.
func (s *HandSmoother) Assign(pos detector.Point2D) int {
	if s.policy == AssignNearest {
		best, bestDist := -1, math.Inf(1)
		for id, t := range s.tracks {
			if s.claimed[id] || len(t.history) == 0 {
				continue
			}
			last := t.history[len(t.history)-1]
			d := math.Hypot(last.X-pos.X, last.Y-pos.Y)
			if d <= s.matchDistance && d < bestDist {
				best, bestDist = id, d
			}
		}
		if best >= 0 {
			s.claimed[best] = true
			return best
		}
	}

	id := s.NextID()
	s.claimed[id] = true
	return id
}

// PushAndSmooth appends pos to the history of handID, dropping the oldest
// entry when full, and returns the mean of the history.
func (s *HandSmoother) PushAndSmooth(handID int, pos detector.Point2D) detector.Point2D {
	t, ok := s.tracks[handID]
	if !ok {
		t = &handTrack{history: make([]detector.Point2D, 0, s.capacity)}
		s.tracks[handID] = t
		s.created++
	}

	if len(t.history) == s.capacity {
		copy(t.history, t.history[1:])
		t.history = t.history[:len(t.history)-1]
	}
	t.history = append(t.history, pos)
	t.lastSeen = s.frame

	xs := make([]float64, len(t.history))
	ys := make([]float64, len(t.history))
	for i, p := range t.history {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return detector.Point2D{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
}

// History returns a copy of the positions held for handID, oldest first.
func (s *HandSmoother) History(handID int) []detector.Point2D {
	t, ok := s.tracks[handID]
	if !ok {
		return nil
	}
	out := make([]detector.Point2D, len(t.history))
	copy(out, t.history)
	return out
}

// Len returns the number of hand tracks held.
func (s *HandSmoother) Len() int {
	return len(s.tracks)
}

// Evict drops hand tracks unseen for more than the configured idle frames.
// Ids are never reused after eviction.
func (s *HandSmoother) Evict(frame int) int {
	if s.maxIdleFrames <= 0 {
		return 0
	}
	removed := 0
	for id, t := range s.tracks {
		if frame-t.lastSeen > s.maxIdleFrames {
			delete(s.tracks, id)
			removed++
		}
	}
	return removed
}
