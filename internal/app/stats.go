package app

import "time"

// Stats are the counters of one run.
type Stats struct {
	Frames              int          `json:"frames"`
	Processed           int          `json:"processed"`
	Skipped             int          `json:"skipped"`
	DetectorErrors      int          `json:"detector_errors"`
	MalformedDetections int          `json:"malformed_detections"`
	HandErrors          int          `json:"hand_errors"`
	Entries             int          `json:"entries"`
	Snapshots           int          `json:"snapshots"`
	Started             time.Time    `json:"started"`
	Finished            time.Time    `json:"finished"`
	Timeline            []EntryPoint `json:"timeline,omitempty"`
}

// EntryPoint is one customer entry on the run timeline.
type EntryPoint struct {
	Frame      int       `json:"frame"`
	IdentityID int       `json:"identity_id"`
	Total      int       `json:"total"`
	At         time.Time `json:"at"`
}

// Duration is the wall-clock processing time, or 0 while running.
func (s Stats) Duration() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// ProcessingFPS is processed frames per second of wall-clock time.
func (s Stats) ProcessingFPS() float64 {
	d := s.Duration().Seconds()
	if d <= 0 {
		return 0
	}
	return float64(s.Processed) / d
}

func (s Stats) clone() Stats {
	out := s
	if s.Timeline != nil {
		out.Timeline = append([]EntryPoint(nil), s.Timeline...)
	}
	return out
}
