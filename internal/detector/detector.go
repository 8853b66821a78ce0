package detector

import "gocv.io/x/gocv"

// HandDetector defines the interface for hand landmark detection implementations.
type HandDetector interface {
	// Detect analyzes a video frame and returns detected hand landmarks
	// in frame-normalized coordinates.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ModelPath and ModelConfig locate the DNN weights and graph description.
	ModelPath   string
	ModelConfig string

	// ScriptDir is searched first for sidecar service scripts.
	ScriptDir string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		ModelPath:       "models/frozen_inference_graph.pb",
		ModelConfig:     "models/ssd_mobilenet_v1_coco_2017_11_17.pbtxt",
	}
}
