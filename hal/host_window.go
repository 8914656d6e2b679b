//go:build !tinygo && cgo

package hal

import (
	"errors"
	"image"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"tickos/internal/buildinfo"
)

// WindowConfig controls the desktop runner.
type WindowConfig struct {
	// TickHz is the tick rate in wall-clock time.
	TickHz int
	// Scale multiplies the framebuffer size for the window. Zero means 2.
	Scale    int
	EchoLEDs bool
}

// RunWindow starts a desktop window that displays the framebuffer.
// It blocks until the window closes or the app is done.
func RunWindow(newApp func(HAL) func() error, cfg WindowConfig) error {
	d, err := tickPeriod(cfg.TickHz)
	if err != nil {
		return err
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 2
	}
	h := newHost(os.Stdout, d, cfg.EchoLEDs)
	step := newApp(h)

	g := &hostGame{h: h, step: step}
	ebiten.SetWindowTitle("tickos (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*cfg.Scale, h.fb.height*cfg.Scale)
	ebiten.SetTPS(60)
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

type hostGame struct {
	h       *hostHAL
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	frame   uint64
	step    func() error
}

func (g *hostGame) Update() error {
	g.h.t.catchUp(time.Now())
	if g.step == nil {
		return nil
	}
	if err := g.step(); err != nil {
		if errors.Is(err, ErrDone) {
			return ebiten.Termination
		}
		return err
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
		g.scratch = make([]byte, len(fb.front))
	}

	if frame, ok := fb.latest(g.scratch, g.frame); ok {
		g.frame = frame
		rgbaFrom565(g.img.Pix, g.scratch)
		g.fbImg.WritePixels(g.img.Pix)
	}
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
