// Package hal is the boundary between the kernel's host process and the
// board it drives: log output, LED pins, the tick source and an optional
// framebuffer.
package hal

import "errors"

// ErrDone is returned by an app step function that has finished. Runners
// treat it as a clean exit.
var ErrDone = errors.New("hal: done")

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a pixel buffer. Drawing is only shown after Present.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides the framebuffer. Boards without a panel return a nil
// Display.
type Display interface {
	Framebuffer() Framebuffer
}

// Time provides the tick stream that drives SysTick.
//
// The tick rate is fixed by the platform runner.
type Time interface {
	Ticks() <-chan uint64
}

// HAL provides the only contact point between the kernel and the outside world.
type HAL interface {
	Logger() Logger
	GPIO() GPIO
	Display() Display
	Time() Time
}

// Pin names of the four user LEDs on the STM32F4-Discovery.
const (
	PinLEDGreen  = "PD12"
	PinLEDOrange = "PD13"
	PinLEDRed    = "PD14"
	PinLEDBlue   = "PD15"
)

// LEDPins lists the user LED pins in board order.
var LEDPins = []string{PinLEDGreen, PinLEDOrange, PinLEDRed, PinLEDBlue}
