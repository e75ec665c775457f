package selector

import (
	"image"
	"testing"

	"github.com/golang/geo/r2"
)

func det(classID, x1, y1, x2, y2 int) Detection {
	return Detection{
		ClassID:    classID,
		Box:        image.Rect(x1, y1, x2, y2),
		Confidence: 0.9,
	}
}

func TestSelectLargestQualifying(t *testing.T) {
	f := Filter{AllowedClasses: map[int]bool{0: true}}
	detections := []Detection{
		det(0, 0, 0, 10, 10),   // area 100
		det(0, 0, 0, 30, 30),   // area 900
		det(0, 0, 0, 20, 20),   // area 400
	}

	target, ok := Select(detections, f)
	if !ok {
		t.Fatal("expected a target")
	}
	if target.Area != 900 {
		t.Errorf("expected area 900, got %d", target.Area)
	}
	if target.Center.X != 15 || target.Center.Y != 15 {
		t.Errorf("expected center (15, 15), got (%f, %f)", target.Center.X, target.Center.Y)
	}
}

func TestSelectStrictGreaterTieBreak(t *testing.T) {
	f := Filter{AllowedClasses: map[int]bool{0: true}}

	// Identical area: the earlier detection wins.
	target, ok := Select([]Detection{
		det(0, 0, 0, 10, 10),    // area 100, centered at (5, 5)
		det(0, 100, 100, 110, 110), // area 100, centered at (105, 105)
	}, f)
	if !ok {
		t.Fatal("expected a target")
	}
	if target.Center.X != 5 || target.Center.Y != 5 {
		t.Errorf("equal-area tie should keep the first detection, got center (%f, %f)", target.Center.X, target.Center.Y)
	}

	// Strictly larger area: the later detection replaces the first.
	target, ok = Select([]Detection{
		det(0, 0, 0, 10, 10),       // area 100
		det(0, 100, 100, 110, 110), // area 100
		det(0, 200, 200, 210, 210), // area 100
		{ClassID: 0, Box: image.Rect(300, 300, 401, 301), Confidence: 0.9}, // area 101
	}, f)
	if !ok {
		t.Fatal("expected a target")
	}
	if target.Area != 101 {
		t.Errorf("strictly larger detection should replace the best, got area %d", target.Area)
	}
}

func TestSelectClassFilter(t *testing.T) {
	const (
		catClass    = 0
		personClass = 1
	)
	f := Filter{AllowedClasses: map[int]bool{catClass: true}}
	detections := []Detection{
		det(personClass, 0, 0, 100, 50), // area 5000, wrong class
		det(catClass, 0, 0, 10, 10),     // area 100
	}

	target, ok := Select(detections, f)
	if !ok {
		t.Fatal("expected the cat to be selected")
	}
	if target.ClassID != catClass {
		t.Errorf("expected class %d, got %d", catClass, target.ClassID)
	}
	if target.Area != 100 {
		t.Errorf("expected area 100, got %d", target.Area)
	}
}

func TestSelectMinSize(t *testing.T) {
	f := Filter{AllowedClasses: map[int]bool{0: true}, MinWidth: 20, MinHeight: 20}
	detections := []Detection{
		det(0, 0, 0, 19, 40), // too narrow
		det(0, 0, 0, 40, 19), // too short
		det(0, 0, 0, 20, 20), // exactly big enough
	}

	target, ok := Select(detections, f)
	if !ok {
		t.Fatal("expected a target")
	}
	if target.Area != 400 {
		t.Errorf("expected the 20x20 box, got area %d", target.Area)
	}
}

func TestSelectNoQualifier(t *testing.T) {
	f := Filter{AllowedClasses: map[int]bool{0: true}, MinWidth: 50, MinHeight: 50}

	if _, ok := Select(nil, f); ok {
		t.Error("empty detection list should select nothing")
	}
	if _, ok := Select([]Detection{det(1, 0, 0, 100, 100)}, f); ok {
		t.Error("disallowed class should select nothing")
	}
	if _, ok := Select([]Detection{det(0, 0, 0, 10, 10)}, f); ok {
		t.Error("undersized box should select nothing")
	}
}

func TestSelectDeterministic(t *testing.T) {
	f := Filter{AllowedClasses: map[int]bool{0: true, 1: true}}
	detections := []Detection{
		det(1, 5, 5, 45, 45),
		det(0, 0, 0, 30, 30),
		det(0, 10, 10, 50, 50),
	}

	first, ok := Select(detections, f)
	if !ok {
		t.Fatal("expected a target")
	}
	for i := 0; i < 10; i++ {
		again, ok := Select(detections, f)
		if !ok || again != first {
			t.Fatalf("selection is not deterministic: run %d got %+v, want %+v", i, again, first)
		}
	}
}

func TestCenterError(t *testing.T) {
	cases := []struct {
		name           string
		cx, cy         float64
		width, height  float64
		wantX, wantY   float64
	}{
		{"centered", 320, 240, 640, 480, 0, 0},
		{"bottom right corner", 640, 480, 640, 480, 1, 1},
		{"top left corner", 0, 0, 640, 480, -1, -1},
		{"right of center", 480, 240, 640, 480, 0.5, 0},
		{"tiny frame divisor guard", 1, 1, 1, 1, 0.5, 0.5},
	}
	for _, tc := range cases {
		got := CenterError(Target{Center: r2.Point{X: tc.cx, Y: tc.cy}}, tc.width, tc.height)
		if got.X != tc.wantX || got.Y != tc.wantY {
			t.Errorf("%s: got (%f, %f), want (%f, %f)", tc.name, got.X, got.Y, tc.wantX, tc.wantY)
		}
	}
}
