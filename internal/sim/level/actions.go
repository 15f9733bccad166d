package level

import "strings"

// Controller bitmap bits, one per NES button.
const (
	BtnRight  = 1 << 0
	BtnLeft   = 1 << 1
	BtnDown   = 1 << 2
	BtnUp     = 1 << 3
	BtnA      = 1 << 4 // jump
	BtnB      = 1 << 5 // run
	BtnStart  = 1 << 6
	BtnSelect = 1 << 7
)

// ActionSpace is the number of distinct controller bitmaps.
const ActionSpace = 256

var buttonNames = []string{"right", "left", "down", "up", "A", "B", "start", "select"}

// ActionMeanings returns a human-readable name for every controller bitmap,
// in action order. Index 0 is NOOP.
func ActionMeanings() []string {
	out := make([]string, ActionSpace)
	for a := 0; a < ActionSpace; a++ {
		var pressed []string
		for bit, name := range buttonNames {
			if a&(1<<bit) != 0 {
				pressed = append(pressed, name)
			}
		}
		if len(pressed) == 0 {
			out[a] = "NOOP"
			continue
		}
		out[a] = strings.Join(pressed, "+")
	}
	return out
}

// KeysToAction maps keyboard key names to single-button bitmaps. Callers
// OR the values of all held keys together to form one action.
func KeysToAction() map[string]int {
	return map[string]int{
		"ArrowRight": BtnRight,
		"ArrowLeft":  BtnLeft,
		"ArrowDown":  BtnDown,
		"ArrowUp":    BtnUp,
		"KeyX":       BtnA,
		"KeyZ":       BtnB,
		"Enter":      BtnStart,
		"ShiftRight": BtnSelect,
	}
}
