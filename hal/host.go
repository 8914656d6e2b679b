//go:build !baremetal

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type hostHAL struct {
	logger *hostLogger
	gpio   GPIO
	fb     *hostFramebuffer
	t      *hostTicker
}

// New returns a host HAL ticking once per second.
func New() HAL {
	return newHost(os.Stdout, time.Second, false)
}

// HostConfig describes a virtual Discovery board.
type HostConfig struct {
	// Output receives log lines; nil means stdout.
	Output io.Writer
	// Tick is the wall-clock tick period; zero means one second.
	Tick     time.Duration
	EchoLEDs bool
}

// NewHost returns a virtual board whose ticks are only emitted by a runner.
func NewHost(cfg HostConfig) HAL {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	return newHost(cfg.Output, cfg.Tick, cfg.EchoLEDs)
}

// newHost builds the virtual Discovery board. With echo set, every LED write
// is logged as a line.
func newHost(w io.Writer, tick time.Duration, echo bool) *hostHAL {
	logger := &hostLogger{w: w}
	bank := newLEDBank()
	for _, name := range LEDPins {
		if err := bank.bind(name, &hostLED{name: name, logger: logger, echo: echo}); err != nil {
			panic(err)
		}
	}
	return &hostHAL{
		logger: logger,
		gpio:   bank,
		fb:     newHostFramebuffer(320, 240),
		t:      newHostTicker(tick),
	}
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) GPIO() GPIO       { return h.gpio }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time       { return h.t }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

type hostLED struct {
	name   string
	logger *hostLogger
	echo   bool
}

func (l *hostLED) High() { l.write("HIGH") }
func (l *hostLED) Low()  { l.write("LOW") }

func (l *hostLED) write(level string) {
	if l.echo {
		l.logger.WriteLineString("led " + l.name + ": " + level)
	}
}

func tickPeriod(hz int) (time.Duration, error) {
	if hz <= 0 {
		return 0, fmt.Errorf("hal: invalid tick rate: %d Hz", hz)
	}
	d := time.Second / time.Duration(hz)
	if d <= 0 {
		return 0, fmt.Errorf("hal: invalid tick rate: %d Hz", hz)
	}
	return d, nil
}
