package kernel

import (
	"errors"
	"fmt"

	"tickos/armv7m"
)

var (
	ErrTaskReturned   = errors.New("kernel: task routine returned")
	ErrEntryReentered = errors.New("kernel: task entry reached twice")
	ErrBadResume      = errors.New("kernel: resume of a task that never started")
	ErrTaskPanicked   = errors.New("kernel: task routine panicked")
)

// FaultError reports that the kernel entered its terminal fault state.
// Nothing runs after it; every later Step or Run returns the same error.
type FaultError struct {
	// Kind is the fault exception the failure was delivered on.
	Kind armv7m.FaultKind
	// Fault holds the core's fault status, nil for kernel-detected faults.
	Fault *armv7m.Fault
	Task  TaskID
	Tick  uint32

	// Panic and Stack are set when a task routine panicked on the host.
	Panic any
	Stack []byte

	Err error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("kernel: terminal fault (%s) in task %d at tick %d: %v", e.Kind, e.Task, e.Tick, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// FaultHandler is called once, with the kernel already halted, when the
// kernel enters its terminal fault state. It must not call into the kernel.
type FaultHandler func(*FaultError)

// raise moves the kernel into the terminal fault state.
func (k *Kernel) raise(err error) *FaultError {
	if k.fault != nil {
		return k.fault
	}

	fe := &FaultError{Kind: armv7m.HardFault, Task: k.current, Tick: k.tick, Err: err}
	var f *armv7m.Fault
	var pe *panicError
	switch {
	case errors.As(err, &f):
		taken := k.core.Escalate(f)
		fe.Kind = taken.Kind
		fe.Fault = taken
		if taken != f {
			fe.Err = fmt.Errorf("%w (escalated from %v)", taken, f)
		}
	case errors.As(err, &pe):
		fe.Panic = pe.value
		fe.Stack = pe.stack
	}

	k.fault = fe
	k.Halt()
	k.obs.OnFault(fe)
	k.faultOnce.Do(func() {
		if k.onFault != nil {
			k.onFault(fe)
		}
	})
	return fe
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrTaskPanicked, e.value)
}

func (e *panicError) Unwrap() error { return ErrTaskPanicked }
