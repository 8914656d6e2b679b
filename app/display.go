package app

import (
	"image/color"
	"unicode/utf8"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"tickos/hal"
)

var (
	colorBG      = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
	colorFG      = color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
	colorDim     = color.RGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}
	colorHeadBG  = color.RGBA{R: 0x18, G: 0x18, B: 0x18, A: 0xff}
	colorCurrent = color.RGBA{R: 0xff, G: 0xdd, B: 0x66, A: 0xff}
	colorLEDOff  = color.RGBA{R: 0x24, G: 0x24, B: 0x24, A: 0xff}

	colorFaultBG = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	colorFaultFG = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}

	// Discovery LED colours, in hal.LEDPins order.
	colorLEDs = []color.RGBA{
		{R: 0x4a, G: 0xdf, B: 0x6a, A: 0xff},
		{R: 0xff, G: 0x99, B: 0x22, A: 0xff},
		{R: 0xff, G: 0x44, B: 0x44, A: 0xff},
		{R: 0x44, G: 0x88, B: 0xff, A: 0xff},
	}
)

// panelFont is the one font the panel and the fault screen use.
var panelFont tinyfont.Fonter = &proggy.TinySZ8pt7b

const (
	lineHeight = 10
	baseline   = 8
)

// fbDisplay adapts a hal.Framebuffer to drivers.Displayer.
type fbDisplay struct {
	fb hal.Framebuffer
}

var _ drivers.Displayer = (*fbDisplay)(nil)

func newFBDisplay(fb hal.Framebuffer) *fbDisplay {
	return &fbDisplay{fb: fb}
}

func (d *fbDisplay) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	if buf == nil {
		return
	}

	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}

	pixel := rgb565From888(c.R, c.G, c.B)
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d *fbDisplay) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return nil
	}
	buf := d.fb.Buffer()
	if buf == nil {
		return nil
	}

	w, h := d.fb.Width(), d.fb.Height()
	x0 := clampInt(int(x), 0, w)
	y0 := clampInt(int(y), 0, h)
	x1 := clampInt(int(x)+int(width), 0, w)
	y1 := clampInt(int(y)+int(height), 0, h)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	pixel := rgb565From888(c.R, c.G, c.B)
	lo, hi := byte(pixel), byte(pixel>>8)
	stride := d.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		row := py * stride
		for px := x0; px < x1; px++ {
			off := row + px*2
			if off+1 >= len(buf) {
				continue
			}
			buf[off] = lo
			buf[off+1] = hi
		}
	}
	return nil
}

func (d *fbDisplay) SetRotation(drivers.Rotation) error { return nil }

// text writes s with its top-left corner at (x, y).
func (d *fbDisplay) text(x, y int16, s string, c color.RGBA) {
	tinyfont.WriteLine(d, panelFont, x, y+baseline, s, c)
}

// columns returns how many characters of the panel font fit in a line.
func (d *fbDisplay) columns() int16 {
	_, w := tinyfont.LineWidth(panelFont, "0")
	if w == 0 {
		return 1
	}
	sw, _ := d.Size()
	if n := sw / int16(w); n > 0 {
		return n
	}
	return 1
}

func rgb565From888(r, g, b uint8) uint16 {
	return uint16((uint16(r>>3)&0x1F)<<11 | (uint16(g>>2)&0x3F)<<5 | (uint16(b>>3) & 0x1F))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// takeRunes splits s after at most n runes.
func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
