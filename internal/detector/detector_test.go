package detector

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestBBox(t *testing.T) {
	t.Run("center is the midpoint", func(t *testing.T) {
		b := BBox{X1: 100, Y1: 100, X2: 400, Y2: 300}
		c := b.Center()
		if c.X != 250 || c.Y != 200 {
			t.Errorf("expected center (250,200), got (%f,%f)", c.X, c.Y)
		}
		if b.Width() != 300 || b.Height() != 200 {
			t.Errorf("expected 300x200, got %fx%f", b.Width(), b.Height())
		}
	})

	t.Run("valid rejects unordered and non-finite boxes", func(t *testing.T) {
		tests := []struct {
			name string
			box  BBox
			want bool
		}{
			{"ordered", BBox{X1: 1, Y1: 1, X2: 2, Y2: 2}, true},
			{"degenerate", BBox{X1: 1, Y1: 1, X2: 1, Y2: 1}, true},
			{"x reversed", BBox{X1: 5, Y1: 1, X2: 2, Y2: 2}, false},
			{"y reversed", BBox{X1: 1, Y1: 5, X2: 2, Y2: 2}, false},
			{"nan", BBox{X1: math.NaN(), Y1: 1, X2: 2, Y2: 2}, false},
			{"inf", BBox{X1: 1, Y1: 1, X2: math.Inf(1), Y2: 2}, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := tt.box.Valid(); got != tt.want {
					t.Errorf("Valid() = %v, want %v", got, tt.want)
				}
			})
		}
	})

	t.Run("clamp limits to frame", func(t *testing.T) {
		b := BBox{X1: -10, Y1: -5, X2: 700, Y2: 500}.Clamp(640, 480)
		want := BBox{X1: 0, Y1: 0, X2: 640, Y2: 480}
		if b != want {
			t.Errorf("expected %+v, got %+v", want, b)
		}
	})

	t.Run("point rounds to image point", func(t *testing.T) {
		p := Point2D{X: 10.6, Y: 3.4}.Image()
		if p.X != 11 || p.Y != 3 {
			t.Errorf("expected (11,3), got %v", p)
		}
	})
}

func TestCOCO91To80(t *testing.T) {
	tests := []struct {
		ssd  int
		want int
		name string
	}{
		{1, 0, "person"},
		{27, 24, "backpack"},
		{31, 26, "handbag"},
		{43, 38, "tennis racket"},
		{44, 39, "bottle"},
		{47, 41, "cup"},
		{50, 44, "spoon"},
		{67, 60, "dining table"},
		{90, 79, "toothbrush"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := COCO91To80(tt.ssd)
			if !ok {
				t.Fatalf("expected id %d to map", tt.ssd)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
			if COCO80[got] != tt.name {
				t.Errorf("expected label %q, got %q", tt.name, COCO80[got])
			}
		})
	}

	t.Run("gaps do not map", func(t *testing.T) {
		for _, id := range []int{0, 12, 26, 45, 66, 83, 91} {
			if _, ok := COCO91To80(id); ok {
				t.Errorf("expected id %d to be unmapped", id)
			}
		}
	})

	t.Run("class set has 80 entries", func(t *testing.T) {
		if len(COCOClasses()) != 80 {
			t.Errorf("expected 80 classes, got %d", len(COCOClasses()))
		}
	})
}

func TestHandLandmarks(t *testing.T) {
	t.Run("anchor is the denormalized wrist", func(t *testing.T) {
		hand := HandAt(0.25, 0.5)
		a := hand.Anchor(640, 480)
		if math.Abs(a.X-160) > epsilon || math.Abs(a.Y-240) > epsilon {
			t.Errorf("expected anchor (160,240), got (%f,%f)", a.X, a.Y)
		}
	})

	t.Run("denormalize covers all landmarks", func(t *testing.T) {
		hand := HandAt(0.5, 0.8)
		points := hand.Denormalize(100, 100)
		if len(points) != NumLandmarks {
			t.Fatalf("expected %d points, got %d", NumLandmarks, len(points))
		}
		if math.Abs(points[Wrist].X-50) > epsilon {
			t.Errorf("expected wrist x 50, got %f", points[Wrist].X)
		}
	})

	t.Run("nil hand denormalizes to nil", func(t *testing.T) {
		var hand *HandLandmarks
		if hand.Denormalize(10, 10) != nil {
			t.Error("expected nil result for nil input")
		}
	})

	t.Run("valid checks the wrist only", func(t *testing.T) {
		hand := HandAt(0.5, 0.05)
		if !hand.Valid() {
			t.Error("expected hand with in-frame wrist to be valid")
		}
		hand.Points[Wrist].X = 1.2
		if hand.Valid() {
			t.Error("expected hand with wrist outside frame to be invalid")
		}
	})
}

func TestIdentityAssigner(t *testing.T) {
	t.Run("moving box keeps its id", func(t *testing.T) {
		a := NewIdentityAssigner(5, 0.1)

		var ids []int
		for i := 0; i < 4; i++ {
			dets := []Detection{{ClassID: 0, Box: BBox{X1: 100 + float64(i)*5, Y1: 100, X2: 200 + float64(i)*5, Y2: 300}}}
			if err := a.Assign(dets); err != nil {
				t.Fatalf("frame %d: %v", i, err)
			}
			ids = append(ids, dets[0].TrackID)
		}

		for i, id := range ids {
			if id != ids[0] {
				t.Errorf("frame %d: expected id %d, got %d", i, ids[0], id)
			}
		}
		if ids[0] != 1 {
			t.Errorf("expected first id to be 1, got %d", ids[0])
		}
	})

	t.Run("distinct objects get distinct ids", func(t *testing.T) {
		a := NewIdentityAssigner(5, 0.1)
		dets := []Detection{
			{ClassID: 0, Box: BBox{X1: 10, Y1: 10, X2: 50, Y2: 90}},
			{ClassID: 0, Box: BBox{X1: 500, Y1: 10, X2: 540, Y2: 90}},
			{ClassID: 41, Box: BBox{X1: 12, Y1: 12, X2: 30, Y2: 30}},
		}
		if err := a.Assign(dets); err != nil {
			t.Fatal(err)
		}

		seen := make(map[int]bool)
		for _, d := range dets {
			if d.TrackID < 1 {
				t.Errorf("expected positive id, got %d", d.TrackID)
			}
			if seen[d.TrackID] {
				t.Errorf("duplicate id %d", d.TrackID)
			}
			seen[d.TrackID] = true
		}
	})

	t.Run("empty frame is fine", func(t *testing.T) {
		a := NewIdentityAssigner(5, 0.1)
		if err := a.Assign(nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestMockObjectDetector(t *testing.T) {
	t.Run("replays script then returns nothing", func(t *testing.T) {
		failure := errors.New("inference failed")
		mock := NewMockObjectDetector().
			Then(Detection{TrackID: 1, ClassID: 0}).
			ThenError(failure)

		dets, err := mock.DetectAndTrack(nil)
		if err != nil || len(dets) != 1 {
			t.Fatalf("step 1: got %v, %v", dets, err)
		}

		if _, err := mock.DetectAndTrack(nil); !errors.Is(err, failure) {
			t.Errorf("step 2: expected %v, got %v", failure, err)
		}

		dets, err = mock.DetectAndTrack(nil)
		if err != nil || dets != nil {
			t.Errorf("step 3: expected nothing, got %v, %v", dets, err)
		}

		if mock.Calls() != 3 {
			t.Errorf("expected 3 calls, got %d", mock.Calls())
		}
	})

	t.Run("close is recorded", func(t *testing.T) {
		mock := NewMockObjectDetector()
		if err := mock.Close(); err != nil {
			t.Fatal(err)
		}
		if !mock.Closed() {
			t.Error("expected mock to be closed")
		}
	})

	t.Run("implements ObjectDetector interface", func(t *testing.T) {
		var _ ObjectDetector = (*MockObjectDetector)(nil)
		var _ ObjectDetector = (*DNNDetector)(nil)
		var _ ObjectDetector = (*SidecarTracker)(nil)
	})
}

func TestMockHandDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockHandDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockHandDetector()
		mock.SetHands([]HandLandmarks{HandAt(0.2, 0.5), HandAt(0.7, 0.5)})

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockHandDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("implements HandDetector interface", func(t *testing.T) {
		var _ HandDetector = (*MockHandDetector)(nil)
		var _ HandDetector = (*MediaPipeDetector)(nil)
	})
}

func TestHandAt(t *testing.T) {
	hand := HandAt(0.5, 0.8)

	if hand.Points[IndexTip].Y >= hand.Points[IndexMCP].Y {
		t.Error("index tip should be above index MCP (lower Y value)")
	}
	if hand.Points[ThumbTip].X <= hand.Points[ThumbMCP].X {
		t.Error("thumb tip should be to the right of thumb MCP")
	}
}
