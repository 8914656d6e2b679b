package kernel

import (
	"errors"
	"fmt"
)

// Reference memory map: 128 KiB of SRAM at 0x20000000, 1 KiB per stack.
const (
	DefaultRAMBase    = 0x20000000
	DefaultRAMSize    = 128 * 1024
	DefaultTaskStack  = 1024
	DefaultSchedStack = 1024
)

var ErrLayout = errors.New("kernel: invalid memory layout")

// Region is a stack region [Bottom, Top). Stacks grow down from Top.
type Region struct {
	Bottom uint32
	Top    uint32
}

// Contains reports whether addr lies in the region. Top itself counts: it is
// the value of an empty stack.
func (r Region) Contains(addr uint32) bool {
	return addr >= r.Bottom && addr <= r.Top
}

func (r Region) Size() uint32 { return r.Top - r.Bottom }

func (r Region) String() string {
	return fmt.Sprintf("[0x%08x, 0x%08x)", r.Bottom, r.Top)
}

// Layout places the task stacks downward from the top of RAM: task 1 first,
// then tasks 2..N-1, then idle, then the scheduler (MSP) stack.
type Layout struct {
	RAMBase    uint32
	RAMSize    uint32
	TaskStack  uint32
	SchedStack uint32
}

// DefaultLayout returns the reference memory map.
func DefaultLayout() Layout {
	return Layout{
		RAMBase:    DefaultRAMBase,
		RAMSize:    DefaultRAMSize,
		TaskStack:  DefaultTaskStack,
		SchedStack: DefaultSchedStack,
	}
}

// RAMEnd returns the first address past RAM.
func (l Layout) RAMEnd() uint32 { return l.RAMBase + l.RAMSize }

func (l Layout) slot(n int, id TaskID) uint32 {
	if id == IdleTask {
		return uint32(n - 1)
	}
	return uint32(id - 1)
}

// TaskRegion returns the stack region of task id in an n-task system.
func (l Layout) TaskRegion(n int, id TaskID) Region {
	top := l.RAMEnd() - l.slot(n, id)*l.TaskStack
	return Region{Bottom: top - l.TaskStack, Top: top}
}

// SchedRegion returns the MSP stack region, directly below the task stacks.
func (l Layout) SchedRegion(n int) Region {
	top := l.RAMEnd() - uint32(n)*l.TaskStack
	return Region{Bottom: top - l.SchedStack, Top: top}
}

// Validate checks that n task stacks and the scheduler stack fit in RAM
// without overlap, aligned for exception stacking.
func (l Layout) Validate(n int) error {
	var errs []error
	if n < 1 || n > MaxTasks {
		errs = append(errs, fmt.Errorf("%w: %d tasks (max %d)", ErrTooManyTasks, n, MaxTasks))
	}
	if l.RAMBase%8 != 0 || l.RAMSize%8 != 0 {
		errs = append(errs, fmt.Errorf("%w: RAM base and size must be 8-byte aligned", ErrLayout))
	}
	if uint64(l.RAMBase)+uint64(l.RAMSize) >= 1<<32 {
		errs = append(errs, fmt.Errorf("%w: RAM must end below the top of the address space", ErrLayout))
	}
	if l.TaskStack%8 != 0 || l.TaskStack < 2*FrameBytes {
		errs = append(errs, fmt.Errorf("%w: task stack %d must be a multiple of 8 and at least %d bytes", ErrLayout, l.TaskStack, 2*FrameBytes))
	}
	if l.SchedStack%8 != 0 || l.SchedStack < 64 {
		errs = append(errs, fmt.Errorf("%w: scheduler stack %d must be a multiple of 8 and at least 64 bytes", ErrLayout, l.SchedStack))
	}
	if n > 0 {
		need := uint64(n)*uint64(l.TaskStack) + uint64(l.SchedStack)
		if need > uint64(l.RAMSize) {
			errs = append(errs, fmt.Errorf("%w: stacks need %d bytes, RAM has %d", ErrLayout, need, l.RAMSize))
		}
	}
	return errors.Join(errs...)
}
