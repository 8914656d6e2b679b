package kernel

import (
	"runtime"

	"tickos/armv7m"
)

// Task is a task routine. Run is entered once, on the task's first dispatch,
// and must never return.
type Task interface {
	Run(*Context)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(*Context)

func (f TaskFunc) Run(c *Context) { f(c) }

type idleTask struct{}

func (idleTask) Run(c *Context) {
	for {
		c.WaitForInterrupt()
	}
}

type yieldKind uint8

const (
	yieldPreempt yieldKind = iota + 1
	yieldWFI
	yieldReturn
	yieldPanic
	yieldFault
)

type yield struct {
	kind yieldKind
	err  error
}

// thread runs one task routine on its own goroutine. Only the goroutine that
// holds the baton executes; the kernel hands it over on dispatch and gets it
// back at the next preemption point.
type thread struct {
	id      TaskID
	task    Task
	started bool
	exited  bool
	resume  chan struct{}
	ctx     Context
}

func (th *thread) main(k *Kernel) {
	select {
	case <-th.resume:
	case <-k.halt:
		return
	}

	y := yield{kind: yieldReturn}
	defer func() {
		r := recover()
		if r == nil && th.exited {
			return
		}
		if r != nil {
			y = yield{kind: yieldPanic, err: &panicError{value: r, stack: captureStack()}}
		}
		select {
		case k.yield <- y:
		case <-k.halt:
		}
	}()
	th.task.Run(&th.ctx)
}

// Context is a task's handle on the kernel. Its methods may only be called
// from the task routine it was passed to.
type Context struct {
	k  *Kernel
	th *thread
}

// TaskID returns the calling task's index.
func (c *Context) TaskID() TaskID { return c.th.id }

// Now returns the global tick counter.
func (c *Context) Now() uint32 { return c.k.tick }

// Delay blocks the calling task for ticks ticks and returns once the task is
// dispatched again. It is a no-op for the idle task.
func (c *Context) Delay(ticks uint32) {
	c.k.delay(c.th.id, ticks)
	c.Checkpoint()
}

// Checkpoint takes any pending exception. Task bodies that run for long
// stretches without calling Delay should call it to stay preemptible.
func (c *Context) Checkpoint() {
	if c.k.core.NextPending() != armv7m.NoException {
		c.suspend(yieldPreempt)
	}
}

// WaitForInterrupt suspends the caller until the next exception has been
// taken and the caller is dispatched again.
func (c *Context) WaitForInterrupt() {
	c.suspend(yieldWFI)
}

// Load32 reads a word of RAM. An access fault is taken at once; the caller
// does not continue.
func (c *Context) Load32(addr uint32) uint32 {
	v, err := c.k.core.Mem.Load32(addr)
	if err != nil {
		c.fault(err)
	}
	return v
}

// Store32 writes a word of RAM, faulting like Load32.
func (c *Context) Store32(addr, v uint32) {
	if err := c.k.core.Mem.Store32(addr, v); err != nil {
		c.fault(err)
	}
}

// Reg returns general-purpose register Rn of the running context.
func (c *Context) Reg(n int) uint32 { return c.k.core.Regs.R[n] }

// SetReg sets general-purpose register Rn of the running context.
func (c *Context) SetReg(n int, v uint32) { c.k.core.Regs.R[n] = v }

func (c *Context) fault(err error) {
	k := c.k
	select {
	case k.yield <- yield{kind: yieldFault, err: err}:
	case <-k.halt:
	}
	c.exit()
}

// exit ends the task goroutine without reporting a return.
func (c *Context) exit() {
	c.th.exited = true
	runtime.Goexit()
}

func (c *Context) suspend(kind yieldKind) {
	k := c.k
	select {
	case k.yield <- yield{kind: kind}:
	case <-k.halt:
		c.exit()
	}
	select {
	case <-c.th.resume:
	case <-k.halt:
		c.exit()
	}
}
