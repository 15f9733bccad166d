// Package viewer shows environment frames in a desktop window for human
// render mode. Run must be called from the main goroutine (an ebiten
// requirement); Update and Close are safe to call from the env loop.
package viewer

import (
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

type Viewer struct {
	title  string
	w, h   int
	scale  int

	mu    sync.Mutex
	frame []byte

	closed    chan struct{}
	closeOnce sync.Once
}

func New(title string, w, h, scale int) *Viewer {
	if scale < 1 {
		scale = 1
	}
	return &Viewer{
		title:  title,
		w:      w,
		h:      h,
		scale:  scale,
		frame:  make([]byte, 4*w*h),
		closed: make(chan struct{}),
	}
}

// Update replaces the displayed frame. The image must match the viewer
// dimensions.
func (v *Viewer) Update(img *image.RGBA) {
	if img == nil || img.Bounds().Dx() != v.w || img.Bounds().Dy() != v.h {
		return
	}
	v.mu.Lock()
	copy(v.frame, img.Pix)
	v.mu.Unlock()
}

func (v *Viewer) Close() error {
	v.closeOnce.Do(func() { close(v.closed) })
	return nil
}

// Run opens the window and blocks until the viewer is closed or the window
// is dismissed.
func (v *Viewer) Run() error {
	ebiten.SetWindowSize(v.w*v.scale, v.h*v.scale)
	ebiten.SetWindowTitle(v.title)
	err := ebiten.RunGame(&game{v: v})
	if err == ebiten.Termination {
		return nil
	}
	return err
}

type game struct {
	v *Viewer
}

func (g *game) Update() error {
	select {
	case <-g.v.closed:
		return ebiten.Termination
	default:
		return nil
	}
}

func (g *game) Draw(screen *ebiten.Image) {
	g.v.mu.Lock()
	screen.WritePixels(g.v.frame)
	g.v.mu.Unlock()
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.v.w, g.v.h
}
