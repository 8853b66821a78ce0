// Package detector provides the detection adapters consumed by the tracking pipeline:
// object detection with persistent track identifiers and hand landmark detection.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D represents a 3D point in space with x, y, z coordinates.
// X and Y are normalized to the frame size, Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the landmarks detected for one hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Denormalize converts all landmarks to pixel coordinates for a frame
// of the given width and height.
func (h *HandLandmarks) Denormalize(width, height int) []Point2D {
	if h == nil {
		return nil
	}

	points := make([]Point2D, NumLandmarks)
	for i, p := range h.Points {
		points[i] = Point2D{X: p.X * float64(width), Y: p.Y * float64(height)}
	}
	return points
}

// Anchor returns the wrist landmark in pixel coordinates. The wrist is the
// position fed to trajectory smoothing.
func (h *HandLandmarks) Anchor(width, height int) Point2D {
	p := h.Points[Wrist]
	return Point2D{X: p.X * float64(width), Y: p.Y * float64(height)}
}

// Valid reports whether the wrist landmark lies inside the normalized [0,1] range.
// Fingertips may legitimately leave the frame, so only the anchor is checked.
func (h *HandLandmarks) Valid() bool {
	p := h.Points[Wrist]
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}
