package hal

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// GPIOMode is the MODER setting of a pin.
type GPIOMode uint8

const (
	GPIOModeInput GPIOMode = iota
	GPIOModeOutput
)

// GPIO is a bank of digital pins addressed by STM32 name, such as PD12.
type GPIO interface {
	// Pins lists the bound pin names in board order.
	Pins() []string
	// Pin returns the named pin, or nil if the board does not bind it.
	Pin(name string) GPIOPin
}

// GPIOPin is a single digital IO pin.
type GPIOPin interface {
	Name() string
	Configure(mode GPIOMode) error
	Read() (level bool, err error)
	Write(level bool) error
}

// ErrNotOutput is returned when writing a pin that is not configured as an
// output.
var ErrNotOutput = errors.New("gpio: pin is not an output")

// ParsePin splits an STM32 pin name into its port letter and bit number.
func ParsePin(name string) (port byte, bit uint8, err error) {
	if len(name) < 3 || len(name) > 4 || name[0] != 'P' || name[1] < 'A' || name[1] > 'K' {
		return 0, 0, fmt.Errorf("gpio: bad pin name %q", name)
	}
	n, err := strconv.ParseUint(name[2:], 10, 8)
	if err != nil || n > 15 {
		return 0, 0, fmt.Errorf("gpio: bad pin name %q", name)
	}
	return name[1], uint8(n), nil
}

// Lookup returns the pin called name, or nil when g is nil or lacks it.
func Lookup(g GPIO, name string) GPIOPin {
	if g == nil {
		return nil
	}
	return g.Pin(name)
}

// ledBank models the MODER and ODR registers of the ports that carry LEDs.
// Every bound pin mirrors its ODR bit onto an LED.
type ledBank struct {
	mu    sync.Mutex
	moder map[byte]uint16
	odr   map[byte]uint16
	pins  map[string]*bankPin
	names []string
}

func newLEDBank() *ledBank {
	return &ledBank{
		moder: make(map[byte]uint16),
		odr:   make(map[byte]uint16),
		pins:  make(map[string]*bankPin),
	}
}

func (b *ledBank) bind(name string, led LED) error {
	port, bit, err := ParsePin(name)
	if err != nil {
		return err
	}
	if _, ok := b.pins[name]; ok {
		return fmt.Errorf("gpio: pin %s bound twice", name)
	}
	b.pins[name] = &bankPin{bank: b, name: name, port: port, mask: 1 << bit, led: led}
	b.names = append(b.names, name)
	return nil
}

func (b *ledBank) Pins() []string { return append([]string(nil), b.names...) }

func (b *ledBank) Pin(name string) GPIOPin {
	if p, ok := b.pins[name]; ok {
		return p
	}
	return nil
}

type bankPin struct {
	bank *ledBank
	name string
	port byte
	mask uint16
	led  LED
}

func (p *bankPin) Name() string { return p.name }

func (p *bankPin) Configure(mode GPIOMode) error {
	p.bank.mu.Lock()
	defer p.bank.mu.Unlock()
	switch mode {
	case GPIOModeOutput:
		p.bank.moder[p.port] |= p.mask
		return nil
	case GPIOModeInput:
		return fmt.Errorf("gpio: pin %s drives an LED and cannot be an input", p.name)
	default:
		return fmt.Errorf("gpio: pin %s: unknown mode %d", p.name, mode)
	}
}

func (p *bankPin) Read() (bool, error) {
	p.bank.mu.Lock()
	defer p.bank.mu.Unlock()
	return p.bank.odr[p.port]&p.mask != 0, nil
}

func (p *bankPin) Write(level bool) error {
	p.bank.mu.Lock()
	defer p.bank.mu.Unlock()
	if p.bank.moder[p.port]&p.mask == 0 {
		return fmt.Errorf("%w: %s", ErrNotOutput, p.name)
	}
	if level {
		p.bank.odr[p.port] |= p.mask
		p.led.High()
	} else {
		p.bank.odr[p.port] &^= p.mask
		p.led.Low()
	}
	return nil
}
