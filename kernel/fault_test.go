package kernel

import (
	"errors"
	"testing"

	"tickos/armv7m"
)

type faultLog struct {
	NopObserver
	seen []*FaultError
}

func (l *faultLog) OnFault(err *FaultError) { l.seen = append(l.seen, err) }

// runToFault steps k until it faults and returns the fault.
func runToFault(t *testing.T, k *Kernel, maxTicks int) *FaultError {
	t.Helper()
	for i := 0; i <= maxTicks; i++ {
		if i > 0 {
			k.Tick()
		}
		if err := k.RunUntilIdle(); err != nil {
			var fe *FaultError
			if !errors.As(err, &fe) {
				t.Fatalf("RunUntilIdle() = %v, want *FaultError", err)
			}
			return fe
		}
	}
	t.Fatalf("no fault after %d ticks", maxTicks)
	return nil
}

// patchFrame overwrites word i of the saved frame of task id.
func patchFrame(t *testing.T, k *Kernel, id TaskID, i int, v uint32) {
	t.Helper()
	if err := k.core.Mem.Store32(k.table.At(id).SP+uint32(4*i), v); err != nil {
		t.Fatalf("patch frame: %v", err)
	}
}

const (
	framePC   = 14
	frameXPSR = 15
)

func TestTaskReturnFaults(t *testing.T) {
	var handled int
	var got *FaultError
	obs := &faultLog{}
	k := newBooted(t, Config{
		Observer: obs,
		OnFault: func(err *FaultError) {
			handled++
			got = err
		},
	}, blinker(new(int), 5), TaskFunc(func(*Context) {}))

	fe := runToFault(t, k, 0)

	if !errors.Is(fe, ErrTaskReturned) {
		t.Fatalf("fault = %v, want ErrTaskReturned", fe)
	}
	if fe.Kind != armv7m.MemManage || fe.Task != 2 {
		t.Fatalf("fault kind %v in task %d, want MemManage in task 2", fe.Kind, fe.Task)
	}
	if fe.Fault == nil || fe.Fault.CFSR&armv7m.CFSRIAccViol == 0 || fe.Fault.Addr != InitialLR&^1 {
		t.Fatalf("fault status = %+v, want IACCVIOL at %#x", fe.Fault, uint32(InitialLR&^1))
	}

	if _, err := k.Step(); err != fe {
		t.Fatalf("Step() after fault = %v, want the same fault", err)
	}
	if err := k.RunUntilIdle(); err != fe {
		t.Fatalf("RunUntilIdle() after fault = %v, want the same fault", err)
	}
	if handled != 1 || got != fe {
		t.Fatalf("fault handler called %d times with %v", handled, got)
	}
	if len(obs.seen) != 1 {
		t.Fatalf("observer saw %d faults, want 1", len(obs.seen))
	}
	if k.Fault() != fe {
		t.Fatalf("Fault() = %v, want %v", k.Fault(), fe)
	}
}

func TestTaskPanicFaults(t *testing.T) {
	k := newBooted(t, Config{}, TaskFunc(func(c *Context) {
		c.Delay(1)
		panic("boom")
	}))

	fe := runToFault(t, k, 3)

	if !errors.Is(fe, ErrTaskPanicked) {
		t.Fatalf("fault = %v, want ErrTaskPanicked", fe)
	}
	if fe.Panic != "boom" {
		t.Fatalf("Panic = %v, want boom", fe.Panic)
	}
	if fe.Kind != armv7m.HardFault || fe.Task != 1 || fe.Tick != 1 {
		t.Fatalf("fault = %v in task %d at tick %d", fe.Kind, fe.Task, fe.Tick)
	}
}

func TestCorruptFrameFaults(t *testing.T) {
	tests := []struct {
		name  string
		patch func(t *testing.T, k *Kernel)
		kind  armv7m.FaultKind
		err   error
		cfsr  uint32
	}{
		{
			name:  "thumb bit clear",
			patch: func(t *testing.T, k *Kernel) { patchFrame(t, k, 2, frameXPSR, 0) },
			kind:  armv7m.UsageFault,
			cfsr:  armv7m.CFSRInvState,
		},
		{
			name:  "pc outside code",
			patch: func(t *testing.T, k *Kernel) { patchFrame(t, k, 2, framePC, FlashBase) },
			kind:  armv7m.BusFault,
			cfsr:  armv7m.CFSRIBusErr,
		},
		{
			name:  "pc mid routine",
			patch: func(t *testing.T, k *Kernel) { patchFrame(t, k, 2, framePC, k.code.entry(2)+4) },
			kind:  armv7m.BusFault,
			cfsr:  armv7m.CFSRIBusErr,
		},
		{
			name:  "entry of started task",
			patch: func(t *testing.T, k *Kernel) { patchFrame(t, k, 2, framePC, k.code.entry(1)) },
			kind:  armv7m.HardFault,
			err:   ErrEntryReentered,
		},
		{
			name:  "resume of fresh task",
			patch: func(t *testing.T, k *Kernel) { patchFrame(t, k, 2, framePC, k.code.resume(3)) },
			kind:  armv7m.HardFault,
			err:   ErrBadResume,
		},
		{
			name:  "saved sp outside ram",
			patch: func(t *testing.T, k *Kernel) { k.table.At(2).SP = 0x30000000 },
			kind:  armv7m.BusFault,
			cfsr:  armv7m.CFSRPreciseErr,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newBooted(t, Config{}, blinker(new(int), 1), blinker(new(int), 1), blinker(new(int), 1))
			tt.patch(t, k)

			fe := runToFault(t, k, 0)

			if fe.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v (%v)", fe.Kind, tt.kind, fe)
			}
			if tt.err != nil && !errors.Is(fe, tt.err) {
				t.Fatalf("fault = %v, want %v", fe, tt.err)
			}
			if tt.cfsr != 0 && (fe.Fault == nil || fe.Fault.CFSR&tt.cfsr == 0) {
				t.Fatalf("fault status = %+v, want CFSR %#x", fe.Fault, tt.cfsr)
			}
		})
	}
}

func TestDisabledFaultEscalates(t *testing.T) {
	k := newBooted(t, Config{}, blinker(new(int), 1), blinker(new(int), 1))
	k.core.SCS.SHCSR = 0
	patchFrame(t, k, 2, frameXPSR, 0)

	fe := runToFault(t, k, 0)

	if fe.Kind != armv7m.HardFault {
		t.Fatalf("Kind = %v, want HardFault", fe.Kind)
	}
	if fe.Fault == nil || fe.Fault.HFSR&armv7m.HFSRForced == 0 {
		t.Fatalf("fault status = %+v, want FORCED", fe.Fault)
	}
}

func TestTaskDataAccessFaults(t *testing.T) {
	k := newBooted(t, Config{}, TaskFunc(func(c *Context) {
		c.Store32(DefaultRAMBase, 0xCAFE)
		if v := c.Load32(DefaultRAMBase); v != 0xCAFE {
			panic("RAM word lost")
		}
		c.Delay(2)
		c.Load32(0x3FFF0000)
		panic("unreachable")
	}))

	fe := runToFault(t, k, 4)

	if fe.Kind != armv7m.BusFault || fe.Tick != 2 || fe.Task != 1 {
		t.Fatalf("fault = %v", fe)
	}
	if fe.Fault == nil || fe.Fault.Addr != 0x3FFF0000 || fe.Fault.CFSR&armv7m.CFSRPreciseErr == 0 {
		t.Fatalf("fault status = %+v, want precise bus error at 0x3FFF0000", fe.Fault)
	}
	if fe.Panic != nil {
		t.Fatalf("Panic = %v, want none", fe.Panic)
	}
}
