//go:build tinygo && baremetal

package hal

import (
	"machine"
	"time"
)

// discoveryHAL is the STM32F4-Discovery itself: USART2 for log lines, the
// four user LEDs on port D and no display.
type discoveryHAL struct {
	logger *uartLogger
	gpio   *ledBank
	t      *boardTicker
}

// New returns the Discovery HAL ticking once per second.
func New() HAL {
	return NewWithTick(time.Second)
}

// NewWithTick is New with a different tick period.
func NewWithTick(tick time.Duration) HAL {
	uart := machine.DefaultUART
	uart.Configure(machine.UARTConfig{BaudRate: 115200})

	bank := newLEDBank()
	leds := []machine.Pin{machine.LED_GREEN, machine.LED_ORANGE, machine.LED_RED, machine.LED_BLUE}
	for i, p := range leds {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		_ = bank.bind(LEDPins[i], pinLED(p))
	}

	return &discoveryHAL{
		logger: &uartLogger{uart: uart},
		gpio:   bank,
		t:      startBoardTicker(tick),
	}
}

func (h *discoveryHAL) Logger() Logger { return h.logger }
func (h *discoveryHAL) GPIO() GPIO     { return h.gpio }
func (h *discoveryHAL) Time() Time     { return h.t }

// Display is nil: the board has no panel.
func (h *discoveryHAL) Display() Display { return nil }

type pinLED machine.Pin

func (l pinLED) High() { machine.Pin(l).High() }
func (l pinLED) Low()  { machine.Pin(l).Low() }

var crlf = []byte{'\r', '\n'}

type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineString(s string) { l.WriteLineBytes([]byte(s)) }

func (l *uartLogger) WriteLineBytes(b []byte) {
	l.uart.Write(b)
	l.uart.Write(crlf)
}

// boardTicker forwards a time.Ticker as tick sequence numbers, dropping
// ticks the kernel has not taken yet.
type boardTicker struct {
	ch chan uint64
}

func startBoardTicker(period time.Duration) *boardTicker {
	t := &boardTicker{ch: make(chan uint64, 16)}
	go t.run(period)
	return t
}

func (t *boardTicker) run(period time.Duration) {
	tk := time.NewTicker(period)
	defer tk.Stop()
	var seq uint64
	for range tk.C {
		seq++
		select {
		case t.ch <- seq:
		default:
		}
	}
}

func (t *boardTicker) Ticks() <-chan uint64 { return t.ch }
