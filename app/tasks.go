package app

import (
	"fmt"

	"tickos/hal"
	"tickos/internal/config"
	"tickos/kernel"
)

// Blinker toggles its pin, then delays, forever.
type Blinker struct {
	Pin   hal.GPIOPin
	Delay uint32

	level bool
}

func (b *Blinker) Run(c *kernel.Context) {
	for {
		b.level = !b.level
		if err := b.Pin.Write(b.level); err != nil {
			panic(err)
		}
		c.Delay(b.Delay)
	}
}

// Faulter delays once, then reads Addr. On the reference board that read is
// a bus error, which ends the run.
type Faulter struct {
	Delay uint32
	Addr  uint32
}

func (f *Faulter) Run(c *kernel.Context) {
	c.Delay(f.Delay)
	c.Load32(f.Addr)
	for {
		c.Delay(f.Delay)
	}
}

// buildTasks turns the profile's task list into task routines, configuring
// the pins they drive.
func buildTasks(g hal.GPIO, tasks []config.Task) ([]kernel.Task, error) {
	out := make([]kernel.Task, 0, len(tasks))
	for _, t := range tasks {
		switch t.Kind {
		case config.KindBlink:
			pin, err := outputPin(g, t.Pin)
			if err != nil {
				return nil, fmt.Errorf("app: task %q: %w", t.Name, err)
			}
			out = append(out, &Blinker{Pin: pin, Delay: t.Delay})
		case config.KindFault:
			out = append(out, &Faulter{Delay: t.Delay, Addr: config.FaultAddr})
		default:
			return nil, fmt.Errorf("app: task %q: unknown kind %q", t.Name, t.Kind)
		}
	}
	return out, nil
}

func outputPin(g hal.GPIO, name string) (hal.GPIOPin, error) {
	pin := hal.Lookup(g, name)
	if pin == nil {
		return nil, fmt.Errorf("no pin %s", name)
	}
	if err := pin.Configure(hal.GPIOModeOutput); err != nil {
		return nil, err
	}
	return pin, nil
}
