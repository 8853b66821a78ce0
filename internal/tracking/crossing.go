package tracking

import (
	"time"

	"github.com/ayusman/retailsight/internal/detector"
)

// DefaultEntranceRatio places the entrance line at 53% of the frame width.
const DefaultEntranceRatio = 0.53

// CrossingEvent is emitted the first time a customer passes the entrance line.
type CrossingEvent struct {
	IdentityID int       `json:"identity_id"`
	Timestamp  time.Time `json:"timestamp"`
	Total      int       `json:"total"`
}

// CrossingDetector is a one-way, one-shot entrance counter. A track id fires
// at most once for the whole session, even if its identity is later evicted
// from the registry.
type CrossingDetector struct {
	lineX int
	fired map[int]struct{}
	count int
}

// NewCrossingDetector places a vertical line at ratio of frameWidth,
// truncated to a whole pixel.
func NewCrossingDetector(frameWidth int, ratio float64) *CrossingDetector {
	return &CrossingDetector{
		lineX: int(float64(frameWidth) * ratio),
		fired: make(map[int]struct{}),
	}
}

// LineX returns the entrance line position in pixels.
func (c *CrossingDetector) LineX() int {
	return c.lineX
}

// CheckAndRegister tests the horizontal center of box against the line.
// It returns an event only on the first frame the identity is past the line.
func (c *CrossingDetector) CheckAndRegister(identityID int, box detector.BBox, at time.Time) (CrossingEvent, bool) {
	if _, ok := c.fired[identityID]; ok {
		return CrossingEvent{}, false
	}

	centerX := int(box.Center().X)
	if centerX <= c.lineX {
		return CrossingEvent{}, false
	}

	c.fired[identityID] = struct{}{}
	c.count++
	return CrossingEvent{
		IdentityID: identityID,
		Timestamp:  at,
		Total:      c.count,
	}, true
}

// Count returns the number of customers that have entered.
func (c *CrossingDetector) Count() int {
	return c.count
}
