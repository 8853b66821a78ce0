package detector

import (
	"fmt"
	"sync"

	"github.com/LdDl/mot-go/mot"
	"github.com/google/uuid"
)

// IdentityAssigner gives persistent integer track ids to detections coming
// from a detector without a tracker of its own. Each class is tracked
// separately so a bag never inherits the id of the customer carrying it.
type IdentityAssigner struct {
	maxNoMatch   int
	iouThreshold float64

	mu       sync.Mutex
	trackers map[int]*mot.IoUTracker[*mot.SimpleBlob]
	ids      map[uuid.UUID]int
	nextID   int
}

// NewIdentityAssigner creates an assigner. maxNoMatch is the number of frames
// a track survives without a match.
func NewIdentityAssigner(maxNoMatch int, iouThreshold float64) *IdentityAssigner {
	return &IdentityAssigner{
		maxNoMatch:   maxNoMatch,
		iouThreshold: iouThreshold,
		trackers:     make(map[int]*mot.IoUTracker[*mot.SimpleBlob]),
		ids:          make(map[uuid.UUID]int),
		nextID:       1,
	}
}

// Assign sets TrackID on every detection in place. Ids start at 1 and are
// never reused within the lifetime of the assigner.
func (a *IdentityAssigner) Assign(detections []Detection) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	byClass := make(map[int][]int)
	for i, d := range detections {
		byClass[d.ClassID] = append(byClass[d.ClassID], i)
	}

	for classID, indices := range byClass {
		tracker, ok := a.trackers[classID]
		if !ok {
			tracker = mot.NewIoUTracker[*mot.SimpleBlob](a.maxNoMatch, a.iouThreshold)
			a.trackers[classID] = tracker
		}

		blobs := make([]*mot.SimpleBlob, len(indices))
		for j, idx := range indices {
			b := detections[idx].Box
			blobs[j] = mot.NewSimpleBlob(mot.Rectangle{
				X:      b.X1,
				Y:      b.Y1,
				Width:  b.Width(),
				Height: b.Height(),
			})
		}

		if err := tracker.MatchObjects(blobs); err != nil {
			return fmt.Errorf("match class %d: %w", classID, err)
		}

		for j, idx := range indices {
			detections[idx].TrackID = a.idFor(blobs[j].GetID())
		}

		a.forgetLost(tracker)
	}

	return nil
}

func (a *IdentityAssigner) idFor(key uuid.UUID) int {
	if id, ok := a.ids[key]; ok {
		return id
	}
	id := a.nextID
	a.nextID++
	a.ids[key] = id
	return id
}

// forgetLost drops uuid mappings for tracks the tracker has given up on.
func (a *IdentityAssigner) forgetLost(tracker *mot.IoUTracker[*mot.SimpleBlob]) {
	for key := range a.ids {
		if _, alive := tracker.Objects[key]; alive {
			continue
		}
		alive := false
		for _, other := range a.trackers {
			if _, ok := other.Objects[key]; ok {
				alive = true
				break
			}
		}
		if !alive {
			delete(a.ids, key)
		}
	}
}
