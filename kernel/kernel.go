// Package kernel is a tick-driven round-robin kernel for a single ARMv7-M core.
//
// A fixed table of tasks shares the core. The idle task sits at index 0 and
// runs only when nothing else can. Tasks block with Context.Delay; the SysTick
// handler advances the tick counter, wakes tasks whose wake tick has come and
// pends PendSV; the PendSV handler saves R4-R11 of the outgoing task on its
// own stack, picks the next task and restores the incoming one. Every task
// stack is seeded with a frame that exception return accepts, so a task's
// first dispatch takes the same path as any later one.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"tickos/armv7m"
)

// Reference timing: 16 MHz HSI, one tick per second.
const (
	DefaultClockHz = 16_000_000
	DefaultTickHz  = 1
)

var (
	ErrNotBooted     = errors.New("kernel: not booted")
	ErrAlreadyBooted = errors.New("kernel: already booted")
	ErrHalted        = errors.New("kernel: halted")
	ErrNilTask       = errors.New("kernel: nil task")
)

// Config describes a kernel instance. Zero fields take the reference values.
type Config struct {
	Layout     Layout
	ClockHz    uint32
	TickHz     uint32
	WakePolicy WakePolicy
	Observer   Observer
	OnFault    FaultHandler
}

// Kernel owns the task table, the tick counter, the current-task index and
// the core they run on. Only the goroutine calling Step or Run, and the task
// routine it has dispatched, touch that state; Tick is the one entry point
// safe to call from elsewhere.
type Kernel struct {
	layout  Layout
	clockHz uint32
	tickHz  uint32
	wake    WakePolicy
	obs     Observer
	onFault FaultHandler

	core    *armv7m.Core
	code    codeMap
	table   Table
	current TaskID
	tick    uint32

	threads [MaxTasks]*thread
	running *thread
	yield   chan yield

	halt     chan struct{}
	haltOnce sync.Once

	booted      bool
	stacksReady bool
	ticking     atomic.Bool

	fault     *FaultError
	faultOnce sync.Once
}

// New creates a kernel for the given task routines. They get ids 1..len(tasks);
// id 0 is the built-in idle task.
func New(cfg Config, tasks ...Task) (*Kernel, error) {
	n := len(tasks) + 1
	if cfg.Layout == (Layout{}) {
		cfg.Layout = DefaultLayout()
	}
	if err := cfg.Layout.Validate(n); err != nil {
		return nil, err
	}
	table, err := newTable(n)
	if err != nil {
		return nil, err
	}
	if cfg.ClockHz == 0 {
		cfg.ClockHz = DefaultClockHz
	}
	if cfg.TickHz == 0 {
		cfg.TickHz = DefaultTickHz
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}

	k := &Kernel{
		layout:  cfg.Layout,
		clockHz: cfg.ClockHz,
		tickHz:  cfg.TickHz,
		wake:    cfg.WakePolicy,
		obs:     cfg.Observer,
		onFault: cfg.OnFault,
		core:    armv7m.NewCore(armv7m.NewMemory(cfg.Layout.RAMBase, cfg.Layout.RAMSize)),
		code:    codeMap{n: n},
		table:   table,
		yield:   make(chan yield),
		halt:    make(chan struct{}),
	}

	all := append([]Task{idleTask{}}, tasks...)
	for i, t := range all {
		if t == nil {
			return nil, fmt.Errorf("%w: task %d", ErrNilTask, i)
		}
		id := TaskID(i)
		k.table.At(id).entry = k.code.entry(id)
		th := &thread{id: id, task: t, resume: make(chan struct{})}
		th.ctx = Context{k: k, th: th}
		k.threads[id] = th
	}
	return k, nil
}

// Boot runs the start-up sequence: scheduler stack, exception priorities and
// fault enables, SysTick, task stack frames, the switch of thread mode to
// PSP, and finally the first task's entry, entered directly.
func (k *Kernel) Boot() error {
	if k.booted {
		return ErrAlreadyBooted
	}
	c := k.core
	n := k.table.Len()

	c.MSP = k.layout.SchedRegion(n).Top
	c.SCS.EnableFaults()
	c.SCS.SetPRI_14(PendSVPriority)
	c.SCS.SetPRI_15(SysTickPriority)
	if err := c.SysTick.Configure(k.clockHz, k.tickHz); err != nil {
		return err
	}
	if err := k.InitStacks(); err != nil {
		return err
	}

	k.current = firstRunnable(&k.table)
	c.PSP = k.table.At(k.current).SP
	c.Control = armv7m.ControlSPSEL

	c.Regs.PC = k.code.entry(k.current)
	k.running = k.threads[k.current]
	k.booted = true
	k.ticking.Store(true)
	return nil
}

// Tick pends the SysTick exception, as the timer does when it wraps. It is
// safe to call from any goroutine. Ticks before Boot are dropped.
func (k *Kernel) Tick() {
	if k.ticking.Load() {
		k.core.SCS.SetPENDSTSET()
	}
}

// Step takes the highest-priority pending exception or, if there is none,
// runs the current task up to its next preemption point. It reports idle
// when the idle task is waiting for an interrupt and nothing is pending.
func (k *Kernel) Step() (idle bool, err error) {
	if k.fault != nil {
		return false, k.fault
	}
	if !k.booted {
		return false, ErrNotBooted
	}
	select {
	case <-k.halt:
		return false, ErrHalted
	default:
	}

	if exc := k.core.NextPending(); exc != armv7m.NoException {
		if err := k.exception(exc); err != nil {
			return false, k.raise(err)
		}
		return false, nil
	}

	y := k.dispatch()
	switch y.kind {
	case yieldPreempt:
		return false, nil
	case yieldWFI:
		return k.core.NextPending() == armv7m.NoException, nil
	case yieldReturn:
		lr := k.core.Regs.LR
		f := &armv7m.Fault{Kind: armv7m.MemManage, CFSR: armv7m.CFSRIAccViol, Addr: lr &^ 1}
		return false, k.raise(fmt.Errorf("%w: %w", ErrTaskReturned, f))
	default:
		return false, k.raise(y.err)
	}
}

// RunUntilIdle steps until the idle task waits with nothing pending.
func (k *Kernel) RunUntilIdle() error {
	for {
		idle, err := k.Step()
		if err != nil {
			return err
		}
		if idle {
			return nil
		}
	}
}

// Run steps the kernel until ctx is done or a fault occurs, pending one
// SysTick for every value received on ticks. The kernel is halted on return.
func (k *Kernel) Run(ctx context.Context, ticks <-chan uint64) error {
	if !k.booted {
		return ErrNotBooted
	}
	defer k.Halt()

	if ticks != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-k.halt:
					return
				case _, ok := <-ticks:
					if !ok {
						return
					}
					k.Tick()
				}
			}
		}()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		idle, err := k.Step()
		if err != nil {
			return err
		}
		if idle {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-k.core.SCS.Kick():
			}
		}
	}
}

// Halt stops the kernel and releases the goroutines of suspended tasks.
func (k *Kernel) Halt() {
	k.haltOnce.Do(func() { close(k.halt) })
}

func (k *Kernel) dispatch() yield {
	th := k.running
	k.core.Regs.PC = k.code.resume(th.id)
	if !th.started {
		th.started = true
		go th.main(k)
	}
	th.resume <- struct{}{}
	return <-k.yield
}

// exception takes exc and every exception tail-chained after it, then lands
// on whatever thread the popped PC belongs to.
func (k *Kernel) exception(exc armv7m.Exception) error {
	c := k.core
	if err := c.Enter(exc); err != nil {
		return err
	}
	for exc != armv7m.NoException {
		lr, err := k.handle(exc)
		if err != nil {
			return err
		}
		if exc, err = c.Return(lr); err != nil {
			return err
		}
	}
	return k.land()
}

func (k *Kernel) land() error {
	pc := k.core.Regs.PC
	id, kind := k.code.decode(pc)
	th := k.threads[id]
	switch kind {
	case codeEntry:
		if th.started {
			return fmt.Errorf("%w: task %d", ErrEntryReentered, id)
		}
	case codeResume:
		if !th.started {
			return fmt.Errorf("%w: task %d", ErrBadResume, id)
		}
	default:
		return &armv7m.Fault{Kind: armv7m.BusFault, CFSR: armv7m.CFSRIBusErr, Addr: pc}
	}
	k.running = th
	return nil
}

// Snapshot is a copy of the scheduler state.
type Snapshot struct {
	Tick    uint32
	Current TaskID
	PSP     uint32
	MSP     uint32
	Tasks   []TCB
	Regions []Region
}

// Snapshot copies the scheduler state. It must not run concurrently with
// Step or Run.
func (k *Kernel) Snapshot() Snapshot {
	n := k.table.Len()
	s := Snapshot{
		Tick:    k.tick,
		Current: k.current,
		PSP:     k.core.PSP,
		MSP:     k.core.MSP,
		Tasks:   make([]TCB, n),
		Regions: make([]Region, n),
	}
	for id := TaskID(0); int(id) < n; id++ {
		s.Tasks[id] = *k.table.At(id)
		s.Regions[id] = k.layout.TaskRegion(n, id)
	}
	return s
}

// SavedFrame decodes the context saved on a suspended task's stack.
func (k *Kernel) SavedFrame(id TaskID) (Frame, error) {
	return ReadFrame(k.core.Mem, k.table.At(id).SP)
}

// Layout returns the memory layout in use.
func (k *Kernel) Layout() Layout { return k.layout }

// NumTasks returns N, idle included.
func (k *Kernel) NumTasks() int { return k.table.Len() }

// Core exposes the simulated core, for inspection.
func (k *Kernel) Core() *armv7m.Core { return k.core }

// Fault returns the terminal fault, or nil.
func (k *Kernel) Fault() *FaultError { return k.fault }
