//go:build !baremetal

package hal

import "sync"

// hostFramebuffer is a virtual RGB565 panel. Drawing goes to the back
// buffer; Present publishes it as the frame the window shows.
type hostFramebuffer struct {
	width  int
	height int
	back   []byte

	mu     sync.Mutex
	front  []byte
	frames uint64
}

func newHostFramebuffer(width, height int) *hostFramebuffer {
	n := width * height * 2
	return &hostFramebuffer{
		width:  width,
		height: height,
		back:   make([]byte, n),
		front:  make([]byte, n),
	}
}

func (f *hostFramebuffer) Width() int          { return f.width }
func (f *hostFramebuffer) Height() int         { return f.height }
func (f *hostFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *hostFramebuffer) StrideBytes() int    { return f.width * 2 }
func (f *hostFramebuffer) Buffer() []byte      { return f.back }

func (f *hostFramebuffer) ClearRGB(r, g, b uint8) {
	pixel := rgb565(r, g, b)
	for i := 0; i+1 < len(f.back); i += 2 {
		f.back[i] = byte(pixel)
		f.back[i+1] = byte(pixel >> 8)
	}
}

func (f *hostFramebuffer) Present() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.front, f.back)
	f.frames++
	return nil
}

// latest copies the presented frame into dst unless it is frame seen. It
// returns the current frame number and whether dst was written.
func (f *hostFramebuffer) latest(dst []byte, seen uint64) (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frames == seen {
		return seen, false
	}
	copy(dst, f.front)
	return f.frames, true
}
