package detector

import (
	"encoding/json"
	"fmt"

	"gocv.io/x/gocv"
)

// TrackServiceScript is the sidecar script wrapping an Ultralytics
// detector with its built-in multi-object tracker.
const TrackServiceScript = "track_service.py"

// SidecarTracker implements ObjectDetector by delegating detection and
// tracking to a Python subprocess. Class ids are COCO80 indices.
//
// The service numbers its tracks from 1 each time it starts. When the
// process is restarted after a failure, new ids are offset past every id
// already handed out so they never alias identities from before the restart.
type SidecarTracker struct {
	config Config
	proc   *sidecar

	generation int
	offset     int
	maxID      int
}

// NewSidecarTracker creates a tracker backed by the track service script.
// The Python process is started lazily on first detection and kept for the
// whole run.
func NewSidecarTracker(config Config) (*SidecarTracker, error) {
	proc, err := newSidecar(TrackServiceScript, config.ScriptDir, 0)
	if err != nil {
		return nil, err
	}
	return &SidecarTracker{config: config, proc: proc}, nil
}

type jsonDetection struct {
	TrackID    *int       `json:"track_id"`
	ClassID    int        `json:"class_id"`
	Box        [4]float64 `json:"box"`
	Confidence float64    `json:"confidence"`
}

// DetectAndTrack sends the frame to the service and returns tracked detections.
// Boxes the service could not associate with a track are dropped.
func (t *SidecarTracker) DetectAndTrack(frame *gocv.Mat) ([]Detection, error) {
	data, err := encodeFrame(frame)
	if err != nil {
		return nil, err
	}
	return t.track(data)
}

func (t *SidecarTracker) track(data []byte) ([]Detection, error) {
	line, generation, err := t.proc.exchange(data)
	if err != nil {
		return nil, err
	}

	var response struct {
		Detections []jsonDetection `json:"detections"`
		Error      string          `json:"error,omitempty"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		t.proc.reset()
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("track service: %s", response.Error)
	}

	if generation != t.generation {
		if t.generation != 0 {
			t.offset = t.maxID
		}
		t.generation = generation
	}

	detections := make([]Detection, 0, len(response.Detections))
	for _, d := range response.Detections {
		if d.TrackID == nil || d.Confidence < t.config.MinConfidence {
			continue
		}
		label := ""
		if d.ClassID >= 0 && d.ClassID < len(COCO80) {
			label = COCO80[d.ClassID]
		}
		id := t.offset + *d.TrackID
		if id > t.maxID {
			t.maxID = id
		}
		detections = append(detections, Detection{
			TrackID:    id,
			ClassID:    d.ClassID,
			Label:      label,
			Box:        BBox{X1: d.Box[0], Y1: d.Box[1], X2: d.Box[2], Y2: d.Box[3]},
			Confidence: d.Confidence,
		})
	}

	return detections, nil
}

// Classes returns the COCO80 label set.
func (t *SidecarTracker) Classes() map[int]string {
	return COCOClasses()
}

// Close shuts down the Python process.
func (t *SidecarTracker) Close() error {
	return t.proc.close()
}
