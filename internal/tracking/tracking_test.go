package tracking

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/retailsight/internal/detector"
)

const epsilon = 1e-9

func box(x1, y1, x2, y2 float64) detector.BBox {
	return detector.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// boxCenteredAt returns a 40px wide box whose horizontal center is cx.
func boxCenteredAt(cx float64) detector.BBox {
	return box(cx-20, 100, cx+20, 400)
}

func TestZone(t *testing.T) {
	t.Run("nothing is on zone before a table is seen", func(t *testing.T) {
		var z Zone
		if z.ContainsBottomEdge(box(0, 0, 10, 1000)) {
			t.Error("expected not on zone without a table")
		}
		if _, ok := z.Current(); ok {
			t.Error("expected no current zone")
		}
	})

	t.Run("bottom edge below table top is on zone", func(t *testing.T) {
		var z Zone
		z.Update(box(100, 100, 400, 300))

		if !z.ContainsBottomEdge(box(0, 0, 50, 150)) {
			t.Error("expected y2=150 to be on zone")
		}
		if z.ContainsBottomEdge(box(0, 0, 50, 50)) {
			t.Error("expected y2=50 to be off zone")
		}
		if z.ContainsBottomEdge(box(0, 0, 50, 100)) {
			t.Error("expected y2 equal to table top to be off zone")
		}
	})

	t.Run("horizontal position is ignored", func(t *testing.T) {
		var z Zone
		z.Update(box(100, 100, 400, 300))
		if !z.ContainsBottomEdge(box(900, 0, 950, 150)) {
			t.Error("expected item far to the right to be on zone")
		}
	})

	t.Run("last table wins and persists", func(t *testing.T) {
		var z Zone
		z.Update(box(100, 100, 400, 300))
		z.Update(box(100, 200, 400, 300))

		if z.ContainsBottomEdge(box(0, 0, 50, 150)) {
			t.Error("expected zone to follow the latest table")
		}
		got, ok := z.Current()
		if !ok {
			t.Fatal("expected current zone")
		}
		if diff := cmp.Diff(box(100, 200, 400, 300), got); diff != "" {
			t.Errorf("zone mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestRoles(t *testing.T) {
	t.Run("parse accepts config names and labels", func(t *testing.T) {
		tests := map[string]Role{
			"customer":        RoleCustomer,
			"Table":           RoleTable,
			"bottle_of_water": RoleBottleOfWater,
			"Tennis Racket":   RoleTennisRacket,
			"bottle-of-water": RoleBottleOfWater,
		}
		for in, want := range tests {
			got, err := ParseRole(in)
			if err != nil {
				t.Errorf("ParseRole(%q): %v", in, err)
				continue
			}
			if got != want {
				t.Errorf("ParseRole(%q) = %v, want %v", in, got, want)
			}
		}
	})

	t.Run("parse rejects unknown", func(t *testing.T) {
		for _, in := range []string{"", "unknown", "sofa"} {
			if _, err := ParseRole(in); !errors.Is(err, ErrUnknownRole) {
				t.Errorf("ParseRole(%q): expected ErrUnknownRole, got %v", in, err)
			}
		}
	})

	t.Run("items", func(t *testing.T) {
		for _, r := range []Role{RoleBag, RoleSpoon, RoleTennisRacket, RoleBottleOfWater, RoleCup} {
			if !r.IsItem() {
				t.Errorf("expected %v to be an item", r)
			}
		}
		for _, r := range []Role{RoleUnknown, RoleCustomer, RoleTable} {
			if r.IsItem() {
				t.Errorf("expected %v not to be an item", r)
			}
		}
	})

	t.Run("default map", func(t *testing.T) {
		m := DefaultRoleMap()
		want := map[int]Role{0: RoleCustomer, 60: RoleTable, 24: RoleBag, 26: RoleBag, 44: RoleSpoon, 38: RoleTennisRacket, 39: RoleBottleOfWater, 41: RoleCup}
		if diff := cmp.Diff(want, map[int]Role(m)); diff != "" {
			t.Errorf("default map mismatch (-want +got):\n%s", diff)
		}
		if m.Lookup(2) != RoleUnknown {
			t.Error("expected unmapped class to be unknown")
		}
	})

	t.Run("validate against detector classes", func(t *testing.T) {
		classes := detector.COCOClasses()
		if err := DefaultRoleMap().Validate(classes); err != nil {
			t.Errorf("expected default map to validate: %v", err)
		}
		if err := (RoleMap{0: RoleCustomer, 95: RoleCup}).Validate(classes); err == nil {
			t.Error("expected error for class outside detector set")
		}
		if err := (RoleMap{60: RoleTable}).Validate(classes); err == nil {
			t.Error("expected error for map without customer")
		}
		if err := (RoleMap{}).Validate(classes); err == nil {
			t.Error("expected error for empty map")
		}
	})
}

func TestRegistry(t *testing.T) {
	t.Run("unknown classes leave no state", func(t *testing.T) {
		r := NewRegistry(DefaultRoleMap(), 0)
		if id := r.Observe(detector.Detection{TrackID: 5, ClassID: 2}, 1); id != nil {
			t.Errorf("expected nil identity, got %+v", id)
		}
		if r.Len() != 0 {
			t.Errorf("expected empty registry, got %d", r.Len())
		}
	})

	t.Run("role is fixed at first observation", func(t *testing.T) {
		r := NewRegistry(DefaultRoleMap(), 0)
		first := r.Observe(detector.Detection{TrackID: 7, ClassID: 0, Box: box(0, 0, 10, 10)}, 1)
		if first == nil || first.Role != RoleCustomer {
			t.Fatalf("expected customer, got %+v", first)
		}

		again := r.Observe(detector.Detection{TrackID: 7, ClassID: 41, Box: box(5, 5, 15, 15)}, 2)
		if again != first {
			t.Error("expected the same identity")
		}
		if again.Role != RoleCustomer {
			t.Errorf("expected role to stay customer, got %v", again.Role)
		}
		if again.FirstSeen != 1 || again.LastSeen != 2 {
			t.Errorf("expected seen 1..2, got %d..%d", again.FirstSeen, again.LastSeen)
		}
		if r.Classify(7, 60) != RoleCustomer {
			t.Error("expected Classify to honour stored role")
		}
	})

	t.Run("zone membership", func(t *testing.T) {
		r := NewRegistry(DefaultRoleMap(), 0)
		r.Observe(detector.Detection{TrackID: 3, ClassID: 41}, 1)
		r.SetZoneMembership(3, true)
		id, ok := r.Get(3)
		if !ok || !id.OnZone {
			t.Errorf("expected item on zone, got %+v", id)
		}
		r.SetZoneMembership(99, true)
		if _, ok := r.Get(99); ok {
			t.Error("membership must not create identities")
		}
	})

	t.Run("eviction", func(t *testing.T) {
		r := NewRegistry(DefaultRoleMap(), 2)
		r.Observe(detector.Detection{TrackID: 1, ClassID: 0}, 1)
		r.Observe(detector.Detection{TrackID: 2, ClassID: 0}, 3)

		if n := r.Evict(3); n != 0 {
			t.Errorf("expected nothing evicted at frame 3, got %d", n)
		}
		if n := r.Evict(4); n != 1 {
			t.Errorf("expected one eviction at frame 4, got %d", n)
		}
		if _, ok := r.Get(1); ok {
			t.Error("expected identity 1 evicted")
		}
		if _, ok := r.Get(2); !ok {
			t.Error("expected identity 2 retained")
		}
	})

	t.Run("no eviction when disabled", func(t *testing.T) {
		r := NewRegistry(nil, 0)
		r.Observe(detector.Detection{TrackID: 1, ClassID: 0}, 1)
		if n := r.Evict(1_000_000); n != 0 {
			t.Errorf("expected no eviction, got %d", n)
		}
	})
}

func TestCrossingDetector(t *testing.T) {
	t.Run("fires once on the first frame past the line", func(t *testing.T) {
		c := NewCrossingDetector(980, DefaultEntranceRatio)
		if c.LineX() != 519 {
			t.Fatalf("expected line at 519, got %d", c.LineX())
		}

		at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		var events []CrossingEvent
		var firedAt []int
		for i, cx := range []float64{480, 500, 530, 560} {
			if ev, ok := c.CheckAndRegister(7, boxCenteredAt(cx), at.Add(time.Duration(i)*time.Second)); ok {
				events = append(events, ev)
				firedAt = append(firedAt, i+1)
			}
		}

		want := []CrossingEvent{{IdentityID: 7, Timestamp: at.Add(2 * time.Second), Total: 1}}
		if diff := cmp.Diff(want, events); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]int{3}, firedAt); diff != "" {
			t.Errorf("fired frames mismatch (-want +got):\n%s", diff)
		}
		if c.Count() != 1 {
			t.Errorf("expected count 1, got %d", c.Count())
		}

		for i := 0; i < 5; i++ {
			if _, ok := c.CheckAndRegister(7, boxCenteredAt(600), at); ok {
				t.Fatal("identity fired twice")
			}
		}
	})

	t.Run("center on the line does not fire", func(t *testing.T) {
		c := NewCrossingDetector(980, DefaultEntranceRatio)
		if _, ok := c.CheckAndRegister(1, boxCenteredAt(519), time.Now()); ok {
			t.Error("expected no event for center equal to line")
		}
		if _, ok := c.CheckAndRegister(1, boxCenteredAt(519.9), time.Now()); ok {
			t.Error("expected truncated center to stay on the line")
		}
	})

	t.Run("reverse crossing is ignored", func(t *testing.T) {
		c := NewCrossingDetector(1000, 0.5)
		c.CheckAndRegister(1, boxCenteredAt(600), time.Now())
		if _, ok := c.CheckAndRegister(1, boxCenteredAt(400), time.Now()); ok {
			t.Error("expected no event moving back")
		}
		if _, ok := c.CheckAndRegister(1, boxCenteredAt(700), time.Now()); ok {
			t.Error("expected no re-entry")
		}
		if c.Count() != 1 {
			t.Errorf("expected count 1, got %d", c.Count())
		}
	})

	t.Run("count equals distinct identities past the line", func(t *testing.T) {
		c := NewCrossingDetector(1000, 0.5)
		observations := []struct {
			id int
			cx float64
		}{
			{1, 100}, {2, 600}, {1, 700}, {3, 200}, {2, 900}, {4, 800}, {1, 900}, {3, 400},
		}
		var totals []int
		for _, o := range observations {
			if ev, ok := c.CheckAndRegister(o.id, boxCenteredAt(o.cx), time.Now()); ok {
				totals = append(totals, ev.Total)
			}
		}
		if c.Count() != 3 {
			t.Errorf("expected 3 entries, got %d", c.Count())
		}
		if diff := cmp.Diff([]int{1, 2, 3}, totals); diff != "" {
			t.Errorf("totals mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestHandSmoother(t *testing.T) {
	pt := func(x, y float64) detector.Point2D { return detector.Point2D{X: x, Y: y} }

	t.Run("mean of fewer than capacity pushes", func(t *testing.T) {
		s := NewHandSmoother(HandSmootherConfig{})
		var sumX, sumY float64
		for i := 1; i <= 7; i++ {
			p := pt(float64(i*10), float64(i))
			sumX += p.X
			sumY += p.Y
			got := s.PushAndSmooth(0, p)
			wantX, wantY := sumX/float64(i), sumY/float64(i)
			if math.Abs(got.X-wantX) > epsilon || math.Abs(got.Y-wantY) > epsilon {
				t.Errorf("push %d: expected (%f,%f), got (%f,%f)", i, wantX, wantY, got.X, got.Y)
			}
		}
	})

	t.Run("only the most recent ten count", func(t *testing.T) {
		s := NewHandSmoother(HandSmootherConfig{})
		var got detector.Point2D
		for i := 1; i <= 15; i++ {
			got = s.PushAndSmooth(0, pt(float64(i), 0))
		}
		// mean of 6..15
		if math.Abs(got.X-10.5) > epsilon {
			t.Errorf("expected 10.5, got %f", got.X)
		}

		hist := s.History(0)
		if len(hist) != DefaultHandHistory {
			t.Fatalf("expected %d entries, got %d", DefaultHandHistory, len(hist))
		}
		if hist[0].X != 6 || hist[len(hist)-1].X != 15 {
			t.Errorf("expected history 6..15, got %v..%v", hist[0].X, hist[len(hist)-1].X)
		}
	})

	t.Run("sequential ids count known tracks", func(t *testing.T) {
		s := NewHandSmoother(HandSmootherConfig{})
		s.BeginFrame(1)
		var ids []int
		for _, p := range []detector.Point2D{pt(10, 10), pt(200, 10)} {
			id := s.Assign(p)
			s.PushAndSmooth(id, p)
			ids = append(ids, id)
		}
		s.BeginFrame(2)
		id := s.Assign(pt(10, 10))
		s.PushAndSmooth(id, pt(10, 10))
		ids = append(ids, id)

		if diff := cmp.Diff([]int{0, 1, 2}, ids); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
		if s.Len() != 3 {
			t.Errorf("expected 3 tracks, got %d", s.Len())
		}
	})

	t.Run("nearest reuses close tracks", func(t *testing.T) {
		s := NewHandSmoother(HandSmootherConfig{Policy: AssignNearest, MatchDistance: 50})
		s.BeginFrame(1)
		a := s.Assign(pt(100, 100))
		s.PushAndSmooth(a, pt(100, 100))
		b := s.Assign(pt(400, 100))
		s.PushAndSmooth(b, pt(400, 100))

		s.BeginFrame(2)
		a2 := s.Assign(pt(110, 105))
		s.PushAndSmooth(a2, pt(110, 105))
		c := s.Assign(pt(120, 100))
		s.PushAndSmooth(c, pt(120, 100))

		if a2 != a {
			t.Errorf("expected nearby hand to keep id %d, got %d", a, a2)
		}
		if c == a || c == b {
			t.Errorf("expected claimed track not to be reused, got %d", c)
		}

		got := s.PushAndSmooth(a, pt(120, 105))
		if math.Abs(got.X-110) > epsilon {
			t.Errorf("expected smoothed x 110, got %f", got.X)
		}
	})

	t.Run("eviction never reuses ids", func(t *testing.T) {
		s := NewHandSmoother(HandSmootherConfig{MaxIdleFrames: 1})
		s.BeginFrame(1)
		s.PushAndSmooth(s.Assign(pt(0, 0)), pt(0, 0))
		s.BeginFrame(5)
		if n := s.Evict(5); n != 1 {
			t.Fatalf("expected one eviction, got %d", n)
		}
		if id := s.Assign(pt(0, 0)); id != 1 {
			t.Errorf("expected id 1 after eviction, got %d", id)
		}
	})

	t.Run("parse assignment", func(t *testing.T) {
		if a, err := ParseHandAssignment("nearest"); err != nil || a != AssignNearest {
			t.Errorf("expected nearest, got %v %v", a, err)
		}
		if a, err := ParseHandAssignment(""); err != nil || a != AssignSequential {
			t.Errorf("expected sequential default, got %v %v", a, err)
		}
		if _, err := ParseHandAssignment("random"); err == nil {
			t.Error("expected error for unknown policy")
		}
	})
}
