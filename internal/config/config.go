// Package config loads board profiles: the clock, memory map and task set a
// kernel instance is built from. Profiles are HCL files; an absent profile
// means the reference STM32F4-Discovery deployment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tickos/armv7m"
	"tickos/hal"
	"tickos/kernel"
)

// Task kinds.
const (
	KindBlink = "blink"
	KindFault = "fault"
)

// FaultAddr is the address a fault task reads: unmapped on the reference
// board, so the read is a precise bus error.
const FaultAddr = 0x3FFF0000

var ErrInvalid = errors.New("config: invalid profile")

// Profile is a board plus the tasks it runs.
type Profile struct {
	Board Board
	Tasks []Task
}

type Board struct {
	Name       string
	ClockHz    uint32
	TickHz     uint32
	RAMStart   uint32
	RAMSize    uint32
	TaskStack  uint32
	SchedStack uint32
	WakePolicy kernel.WakePolicy
	// FaultPin is latched high once the kernel faults. Empty disables it.
	FaultPin string
}

// Task is one user task. Blink tasks toggle Pin and delay Delay ticks,
// forever. Fault tasks delay Delay ticks once, then read FaultAddr.
type Task struct {
	Name  string
	Kind  string
	Pin   string
	Delay uint32
}

// Default returns the reference deployment: four blinkers on the
// Discovery LEDs with periods of 2, 4, 6 and 8 ticks at one tick per second.
func Default() Profile {
	return Profile{
		Board: Board{
			Name:       "stm32f4disco",
			ClockHz:    kernel.DefaultClockHz,
			TickHz:     kernel.DefaultTickHz,
			RAMStart:   kernel.DefaultRAMBase,
			RAMSize:    kernel.DefaultRAMSize,
			TaskStack:  kernel.DefaultTaskStack,
			SchedStack: kernel.DefaultSchedStack,
			WakePolicy: kernel.WakeReached,
			FaultPin:   "PD13",
		},
		Tasks: []Task{
			{Name: "green", Kind: KindBlink, Pin: "PD12", Delay: 2},
			{Name: "orange", Kind: KindBlink, Pin: "PD13", Delay: 4},
			{Name: "red", Kind: KindBlink, Pin: "PD14", Delay: 6},
			{Name: "blue", Kind: KindBlink, Pin: "PD15", Delay: 8},
		},
	}
}

// Layout returns the kernel memory layout of the board.
func (p Profile) Layout() kernel.Layout {
	return kernel.Layout{
		RAMBase:    p.Board.RAMStart,
		RAMSize:    p.Board.RAMSize,
		TaskStack:  p.Board.TaskStack,
		SchedStack: p.Board.SchedStack,
	}
}

// Validate reports every problem with the profile in one error.
func (p Profile) Validate() error {
	var errs []error
	b := p.Board

	var st armv7m.SysTick
	if b.ClockHz == 0 || b.TickHz == 0 {
		errs = append(errs, fmt.Errorf("%w: clock_hz and tick_hz must be positive", ErrInvalid))
	} else if err := st.Configure(b.ClockHz, b.TickHz); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}

	if len(p.Tasks) == 0 {
		errs = append(errs, fmt.Errorf("%w: no tasks", ErrInvalid))
	}
	if err := p.Layout().Validate(len(p.Tasks) + 1); err != nil {
		errs = append(errs, err)
	}

	if b.FaultPin != "" {
		if _, _, err := hal.ParsePin(b.FaultPin); err != nil {
			errs = append(errs, fmt.Errorf("%w: fault_pin: %w", ErrInvalid, err))
		}
	}

	names := make(map[string]bool)
	pins := make(map[string]string)
	for i, t := range p.Tasks {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("%w: task %d has no name", ErrInvalid, i+1))
		} else if names[t.Name] {
			errs = append(errs, fmt.Errorf("%w: duplicate task %q", ErrInvalid, t.Name))
		}
		names[t.Name] = true

		switch t.Kind {
		case KindBlink:
			if t.Pin == "" {
				errs = append(errs, fmt.Errorf("%w: task %q has no pin", ErrInvalid, t.Name))
			} else if _, _, err := hal.ParsePin(t.Pin); err != nil {
				errs = append(errs, fmt.Errorf("%w: task %q: %w", ErrInvalid, t.Name, err))
			} else if other, ok := pins[t.Pin]; ok {
				errs = append(errs, fmt.Errorf("%w: tasks %q and %q share pin %s", ErrInvalid, other, t.Name, t.Pin))
			} else {
				pins[t.Pin] = t.Name
			}
		case KindFault:
		default:
			errs = append(errs, fmt.Errorf("%w: task %q: unknown kind %q", ErrInvalid, t.Name, t.Kind))
			continue
		}
		if t.Delay == 0 && b.WakePolicy == kernel.WakeExact {
			errs = append(errs, fmt.Errorf("%w: task %q: a zero delay never wakes with wake_policy %q", ErrInvalid, t.Name, kernel.WakeExact))
		}
	}
	return errors.Join(errs...)
}

func parseWakePolicy(s string) (kernel.WakePolicy, error) {
	switch strings.ToLower(s) {
	case "", kernel.WakeReached.String():
		return kernel.WakeReached, nil
	case kernel.WakeExact.String():
		return kernel.WakeExact, nil
	default:
		return 0, fmt.Errorf("%w: unknown wake_policy %q", ErrInvalid, s)
	}
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: address %q: %w", ErrInvalid, s, err)
	}
	return uint32(v), nil
}
