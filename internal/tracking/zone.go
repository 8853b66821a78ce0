package tracking

import "github.com/ayusman/retailsight/internal/detector"

// Zone is the table region. A single table is assumed: every table
// detection replaces the previous box and the box stays in place on
// frames where no table is seen.
type Zone struct {
	box  detector.BBox
	seen bool
}

// Update replaces the zone with the given table box.
func (z *Zone) Update(box detector.BBox) {
	z.box = box
	z.seen = true
}

// ContainsBottomEdge reports whether the bottom edge of box lies strictly
// below the top edge of the table. Horizontal overlap is not considered.
// Before any table has been seen nothing is on the zone.
func (z *Zone) ContainsBottomEdge(box detector.BBox) bool {
	if !z.seen {
		return false
	}
	return box.Y2 > z.box.Y1
}

// Current returns the table box and whether one has been observed.
func (z *Zone) Current() (detector.BBox, bool) {
	return z.box, z.seen
}
