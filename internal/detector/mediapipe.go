package detector

import (
	"encoding/json"
	"fmt"

	"gocv.io/x/gocv"
)

// HandServiceScript is the sidecar script answering hand landmark requests.
const HandServiceScript = "hand_service.py"

// MediaPipeDetector implements HandDetector using a Python MediaPipe subprocess.
type MediaPipeDetector struct {
	config Config
	proc   *sidecar
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	proc, err := newSidecar(HandServiceScript, config.ScriptDir, sidecarIdleTimeout)
	if err != nil {
		return nil, err
	}

	return &MediaPipeDetector{
		config: config,
		proc:   proc,
	}, nil
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	line, err := d.proc.roundTrip(frame)
	if err != nil {
		return nil, err
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		d.proc.reset()
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := make([]HandLandmarks, 0, len(response.Hands))
	for _, h := range response.Hands {
		if h.Score < d.config.MinConfidence {
			continue
		}
		result = append(result, h.toHandLandmarks())
		if d.config.MaxHands > 0 && len(result) == d.config.MaxHands {
			break
		}
	}

	return result, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	return d.proc.close()
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		lm.Points[i] = Point3D{
			X: h.Points[i].X,
			Y: h.Points[i].Y,
			Z: h.Points[i].Z,
		}
	}

	return lm
}
