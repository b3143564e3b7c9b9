package scene

import (
	"fmt"
	"math"

	"github.com/crazy3lf/colorconv"

	"github.com/cybre/birthday-visualizer/internal/utils"
)

// HSL is a colour with every channel in [0,1].
type HSL struct {
	H, S, L float64
}

// NewHSL wraps the hue into [0,1) and clamps saturation and lightness.
func NewHSL(h, s, l float64) HSL {
	return HSL{H: utils.WrapUnit(h), S: utils.Clamp01(s), L: utils.Clamp01(l)}
}

// HSV converts to hue in degrees with saturation and value in [0,1].
func (c HSL) HSV() (h, s, v float64) {
	v = c.L + c.S*math.Min(c.L, 1-c.L)
	if v > 0 {
		s = 2 * (1 - c.L/v)
	}
	return utils.WrapUnit(c.H) * 360, utils.Clamp01(s), utils.Clamp01(v)
}

// RGB converts to 8-bit channels.
func (c HSL) RGB() (r, g, b uint8) {
	h, s, v := c.HSV()
	r, g, b, err := colorconv.HSVToRGB(h, s, v)
	if err != nil {
		return 0, 0, 0
	}
	return r, g, b
}

// Hex renders the colour as #rrggbb.
func (c HSL) Hex() string {
	r, g, b := c.RGB()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
