package kernel

import (
	"errors"

	"tickos/armv7m"
)

const (
	// InitialXPSR has only the Thumb bit set.
	InitialXPSR = armv7m.XPSRThumb
	// InitialLR is the EXC_RETURN a fresh frame carries in its LR slot:
	// return to thread mode on the process stack.
	InitialLR = armv7m.ExcReturnThreadPSP

	// FrameWords is a full saved context: the hardware frame (R0-R3, R12, LR,
	// PC, xPSR) plus R4-R11 pushed by the switch handler.
	FrameWords = armv7m.HardwareFrameWords + softwareFrameWords
	FrameBytes = 4 * FrameWords

	softwareFrameWords = 8
	zeroedWords        = 13
)

var ErrStacksInitialized = errors.New("kernel: task stacks already initialized")

// Frame is a decoded saved context.
type Frame struct {
	R    [13]uint32
	LR   uint32
	PC   uint32
	XPSR uint32
}

// BuildFrame writes the initial saved context of a task whose stack starts at
// top and returns the saved stack pointer. Going down from top: xPSR, the
// entry address as PC, InitialLR, then 13 zero words for R12, R3-R0 and
// R11-R4. The result is exactly what the switch handler's restore path and
// exception return consume.
func BuildFrame(mem *armv7m.Memory, top, entry uint32) (uint32, error) {
	sp := top

	sp -= 4
	if err := mem.Store32(sp, InitialXPSR); err != nil {
		return top, err
	}
	sp -= 4
	if err := mem.Store32(sp, entry); err != nil {
		return top, err
	}
	sp -= 4
	if err := mem.Store32(sp, InitialLR); err != nil {
		return top, err
	}
	for i := 0; i < zeroedWords; i++ {
		sp -= 4
		if err := mem.Store32(sp, 0); err != nil {
			return top, err
		}
	}
	return sp, nil
}

// ReadFrame decodes the saved context at sp.
func ReadFrame(mem *armv7m.Memory, sp uint32) (Frame, error) {
	var words [FrameWords]uint32
	if _, err := mem.LDMIA(sp, words[:]); err != nil {
		return Frame{}, err
	}
	var f Frame
	copy(f.R[4:12], words[0:8])
	copy(f.R[0:4], words[8:12])
	f.R[12] = words[12]
	f.LR = words[13]
	f.PC = words[14]
	f.XPSR = words[15]
	return f, nil
}

// InitStacks writes the initial frame of every task and points each record
// at it. It runs once, before scheduling starts.
func (k *Kernel) InitStacks() error {
	if k.stacksReady {
		return ErrStacksInitialized
	}
	n := k.table.Len()
	for id := TaskID(0); int(id) < n; id++ {
		rec := k.table.At(id)
		rec.State = Running

		sp, err := BuildFrame(k.core.Mem, k.layout.TaskRegion(n, id).Top, rec.entry)
		if err != nil {
			return err
		}
		rec.SP = sp
	}
	k.stacksReady = true
	return nil
}
