package level

import (
	"image"
	"image/color"
	"math"
)

// Per-world sky/ground palettes. Downworld rom mode swaps in the
// underground palette for every world.
var skyColors = []color.RGBA{
	{R: 0x5c, G: 0x94, B: 0xfc, A: 0xff}, // overworld blue
	{R: 0x00, G: 0x00, B: 0x00, A: 0xff}, // underground black
	{R: 0x24, G: 0x18, B: 0x8c, A: 0xff}, // night
	{R: 0x9c, G: 0xfc, B: 0xf0, A: 0xff}, // ice
}

var groundColors = []color.RGBA{
	{R: 0xc8, G: 0x4c, B: 0x0c, A: 0xff},
	{R: 0x00, G: 0x88, B: 0x88, A: 0xff},
	{R: 0x88, G: 0x88, B: 0x88, A: 0xff},
	{R: 0xfc, G: 0xfc, B: 0xfc, A: 0xff},
}

var (
	playerColor = color.RGBA{R: 0xb5, G: 0x31, B: 0x20, A: 0xff}
	enemyColor  = color.RGBA{R: 0x88, G: 0x50, B: 0x00, A: 0xff}
	poleColor   = color.RGBA{R: 0x00, G: 0xa8, B: 0x00, A: 0xff}
	flagColor   = color.RGBA{R: 0xfc, G: 0xfc, B: 0xfc, A: 0xff}
)

// Render redraws the screen buffer for the current frame and returns it.
func (e *Env) Render() (*image.RGBA, error) {
	if e.closed {
		return nil, ErrClosed
	}
	pi := (e.cfg.World - 1) / 2 % len(skyColors)
	if e.cfg.RomMode == "downworld" {
		pi = 1
	}
	sky := skyColors[pi]
	ground := groundColors[pi]

	// Camera keeps the player a third of the way in, clamped to the course.
	camX := e.x - 96
	if camX < 0 {
		camX = 0
	}
	if max := e.flagX + 64 - ScreenWidth; camX > max {
		camX = max
	}

	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			wx := camX + float64(x)
			c := sky
			if float64(y) >= groundY+16 && !e.pitAt(wx) {
				c = ground
			}
			e.screen.SetRGBA(x, y, c)
		}
	}

	e.drawFlag(camX)
	for _, en := range e.enemies {
		if en.alive {
			e.drawRect(en.x-camX-6, groundY+4, 12, 12, enemyColor)
		}
	}
	e.drawRect(e.x-camX-6, e.y-12, 12, 28, playerColor)
	return e.screen, nil
}

func (e *Env) pitAt(wx float64) bool {
	for _, p := range e.pits {
		if wx >= p[0] && wx <= p[1] {
			return true
		}
	}
	return false
}

func (e *Env) drawFlag(camX float64) {
	px := e.flagX - camX
	if px < -16 || px > ScreenWidth+16 {
		return
	}
	e.drawRect(px, groundY-136, 3, 152, poleColor)
	e.drawRect(px-14, groundY-136, 14, 10, flagColor)
}

func (e *Env) drawRect(x, y, w, h float64, c color.RGBA) {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	for dy := 0; dy < int(h); dy++ {
		for dx := 0; dx < int(w); dx++ {
			px, py := x0+dx, y0+dy
			if px < 0 || px >= ScreenWidth || py < 0 || py >= ScreenHeight {
				continue
			}
			e.screen.SetRGBA(px, py, c)
		}
	}
}
