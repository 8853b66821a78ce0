package detector

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// BBox is an axis-aligned bounding box in pixel coordinates.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Center returns the midpoint of the box.
func (b BBox) Center() Point2D {
	return Point2D{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Valid reports whether all coordinates are finite and the corners are ordered.
func (b BBox) Valid() bool {
	for _, v := range [4]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X2 >= b.X1 && b.Y2 >= b.Y1
}

// Rect converts the box to an integer image.Rectangle for drawing.
func (b BBox) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// Clamp limits the box to a frame of the given size.
func (b BBox) Clamp(width, height int) BBox {
	w, h := float64(width), float64(height)
	return BBox{
		X1: math.Max(0, math.Min(b.X1, w)),
		Y1: math.Max(0, math.Min(b.Y1, h)),
		X2: math.Max(0, math.Min(b.X2, w)),
		Y2: math.Max(0, math.Min(b.Y2, h)),
	}
}

// Point2D is a position in pixel coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Image rounds the point to an image.Point.
func (p Point2D) Image() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// Detection is one tracked object in a single frame.
type Detection struct {
	TrackID    int     `json:"track_id"`
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label"`
	Box        BBox    `json:"box"`
	Confidence float64 `json:"confidence"`
}

// ObjectDetector wraps an object detector and tracker.
// Implementations return detections in no particular order.
type ObjectDetector interface {
	// DetectAndTrack runs detection on a frame and attaches a persistent
	// track identifier to every returned detection.
	DetectAndTrack(frame *gocv.Mat) ([]Detection, error)

	// Classes returns the class identifiers the detector can emit, keyed by id.
	Classes() map[int]string

	// Close releases any resources held by the detector.
	Close() error
}
