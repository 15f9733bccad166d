package viewer

import (
	"image"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"

	"marioenv.ai/internal/sim/stages"
)

// The concrete viewer must keep satisfying the selector's injection point.
var _ stages.Viewer = (*Viewer)(nil)

func TestUpdate_CopiesOnlyMatchingFrames(t *testing.T) {
	v := New("t", 4, 3, 1)

	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for i := range img.Pix {
		img.Pix[i] = byte(i + 1)
	}
	v.Update(img)
	for i := range img.Pix {
		if v.frame[i] != byte(i+1) {
			t.Fatalf("frame byte %d = %d, want %d", i, v.frame[i], i+1)
		}
	}

	// Wrong dimensions and nil frames are dropped.
	v.Update(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	v.Update(nil)
	if v.frame[0] != 1 {
		t.Fatalf("mismatched frame overwrote the buffer")
	}
}

func TestClose_StopsTheGameLoop(t *testing.T) {
	v := New("t", 4, 3, 0)
	g := &game{v: v}

	if err := g.Update(); err != nil {
		t.Fatalf("Update before close: %v", err)
	}
	if err := v.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := v.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := g.Update(); err != ebiten.Termination {
		t.Fatalf("Update after close: got %v, want termination", err)
	}
	if w, h := g.Layout(999, 999); w != 4 || h != 3 {
		t.Fatalf("Layout = %dx%d, want 4x3", w, h)
	}
}
