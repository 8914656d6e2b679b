// Package armv7m models the parts of an ARMv7-M core that a context-switching
// kernel depends on: the register file, the banked stack pointers, exception
// entry and return with hardware stacking, PRIMASK, the SysTick timer and the
// fault status registers.
//
// Nothing here executes instructions. Handlers are Go functions that drive the
// core through the same steps the assembly would (MRS/MSR, STMDB/LDMIA,
// PUSH/POP, BX LR), so a stack frame written by software must match what
// exception entry and return expect word for word.
package armv7m

// Exception is an ARMv7-M exception number.
type Exception uint8

const (
	NoException   Exception = 0
	ExcReset      Exception = 1
	ExcNMI        Exception = 2
	ExcHardFault  Exception = 3
	ExcMemManage  Exception = 4
	ExcBusFault   Exception = 5
	ExcUsageFault Exception = 6
	ExcSVCall     Exception = 11
	ExcPendSV     Exception = 14
	ExcSysTick    Exception = 15
)

func (e Exception) String() string {
	switch e {
	case NoException:
		return "thread"
	case ExcReset:
		return "Reset"
	case ExcNMI:
		return "NMI"
	case ExcHardFault:
		return "HardFault"
	case ExcMemManage:
		return "MemManage"
	case ExcBusFault:
		return "BusFault"
	case ExcUsageFault:
		return "UsageFault"
	case ExcSVCall:
		return "SVCall"
	case ExcPendSV:
		return "PendSV"
	case ExcSysTick:
		return "SysTick"
	default:
		return "IRQ"
	}
}

// EXC_RETURN values loaded into LR on exception entry.
const (
	ExcReturnHandlerMSP uint32 = 0xFFFFFFF1
	ExcReturnThreadMSP  uint32 = 0xFFFFFFF9
	ExcReturnThreadPSP  uint32 = 0xFFFFFFFD
)

const (
	// XPSRThumb is the EPSR T bit; it must be set in every stacked xPSR.
	XPSRThumb uint32 = 1 << 24
	// XPSRStackAlign marks a frame that was padded to 8-byte alignment.
	XPSRStackAlign uint32 = 1 << 9

	xpsrIPSRMask uint32 = 0x1FF

	// ControlSPSEL selects PSP as the thread-mode stack pointer.
	ControlSPSEL uint32 = 1 << 1
	// ControlNPRIV drops thread mode to unprivileged.
	ControlNPRIV uint32 = 1 << 0
)

// HardwareFrameWords is the number of words stacked by exception entry:
// R0, R1, R2, R3, R12, LR, PC, xPSR.
const HardwareFrameWords = 8

// threadPriority is the execution priority of thread mode, below every exception.
const threadPriority = 256

// Registers is the general-purpose register file plus LR, PC and xPSR.
type Registers struct {
	R    [13]uint32
	LR   uint32
	PC   uint32
	XPSR uint32
}

// Core is a single ARMv7-M core.
//
// A Core is owned by one goroutine at a time. The only exception is
// SCS.WriteICSR, which asynchronous interrupt sources may call concurrently.
type Core struct {
	Regs    Registers
	MSP     uint32
	PSP     uint32
	Control uint32
	PRIMASK uint32

	Mem     *Memory
	SCS     SCS
	SysTick SysTick

	active Exception
	nested []Exception
}

// NewCore returns a core in its reset state attached to mem.
func NewCore(mem *Memory) *Core {
	c := &Core{Mem: mem}
	c.Regs.XPSR = XPSRThumb
	c.SCS.init()
	return c
}

// Active returns the exception being handled, or NoException in thread mode.
func (c *Core) Active() Exception { return c.active }

// HandlerMode reports whether the core is executing an exception handler.
func (c *Core) HandlerMode() bool { return c.active != NoException }

func (c *Core) spRef() *uint32 {
	if c.active == NoException && c.Control&ControlSPSEL != 0 {
		return &c.PSP
	}
	return &c.MSP
}

// SP returns the stack pointer currently in use.
func (c *Core) SP() uint32 { return *c.spRef() }

// Push stores v on the active stack (PUSH {reg}).
func (c *Core) Push(v uint32) error {
	sp := c.spRef()
	addr := *sp - 4
	if err := c.Mem.Store32(addr, v); err != nil {
		return err
	}
	*sp = addr
	return nil
}

// Pop loads one word from the active stack (POP {reg}).
func (c *Core) Pop() (uint32, error) {
	sp := c.spRef()
	v, err := c.Mem.Load32(*sp)
	if err != nil {
		return 0, err
	}
	*sp += 4
	return v, nil
}

// DisableInterrupts sets PRIMASK and returns the previous state.
func (c *Core) DisableInterrupts() uint32 {
	state := c.PRIMASK
	c.PRIMASK = 1
	return state
}

// EnableInterrupts restores a PRIMASK state returned by DisableInterrupts.
func (c *Core) EnableInterrupts(state uint32) {
	c.PRIMASK = state & 1
}

// Priority returns the configured priority of exc. Lower values win.
func (c *Core) Priority(exc Exception) int {
	switch exc {
	case ExcReset:
		return -3
	case ExcNMI:
		return -2
	case ExcHardFault:
		return -1
	case ExcPendSV:
		return int(c.SCS.GetPRI_14())
	case ExcSysTick:
		return int(c.SCS.GetPRI_15())
	default:
		return 0
	}
}

func (c *Core) executionPriority(active Exception) int {
	if active == NoException {
		return threadPriority
	}
	return c.Priority(active)
}

// NextPending returns the pending exception that would be taken now, or
// NoException if none can preempt the current execution priority.
func (c *Core) NextPending() Exception {
	return c.nextPendingAbove(c.executionPriority(c.active))
}

func (c *Core) nextPendingAbove(level int) Exception {
	if c.PRIMASK&1 != 0 {
		return NoException
	}
	icsr := c.SCS.ICSR()
	best := NoException
	bestPri := level
	// Ascending exception number so ties go to the lower number.
	for _, exc := range [...]Exception{ExcPendSV, ExcSysTick} {
		if !pendingIn(icsr, exc) {
			continue
		}
		if p := c.Priority(exc); p < bestPri {
			best, bestPri = exc, p
		}
	}
	return best
}

func pendingIn(icsr uint32, exc Exception) bool {
	switch exc {
	case ExcPendSV:
		return icsr&ICSRPendSVSet != 0
	case ExcSysTick:
		return icsr&ICSRPendSTSet != 0
	}
	return false
}

func (c *Core) clearPending(exc Exception) {
	switch exc {
	case ExcPendSV:
		c.SCS.WriteICSR(ICSRPendSVClr)
	case ExcSysTick:
		c.SCS.WriteICSR(ICSRPendSTClr)
	}
}

// Pend marks exc pending.
func (c *Core) Pend(exc Exception) {
	switch exc {
	case ExcPendSV:
		c.SCS.SetPENDSVSET()
	case ExcSysTick:
		c.SCS.SetPENDSTSET()
	}
}

// Enter performs exception entry for exc: the caller-saved registers, LR, PC
// and xPSR are stacked on the interrupted context's stack, LR receives the
// matching EXC_RETURN and the core switches to handler mode on MSP.
func (c *Core) Enter(exc Exception) error {
	var sp *uint32
	var excReturn uint32
	switch {
	case c.active != NoException:
		sp, excReturn = &c.MSP, ExcReturnHandlerMSP
	case c.Control&ControlSPSEL != 0:
		sp, excReturn = &c.PSP, ExcReturnThreadPSP
	default:
		sp, excReturn = &c.MSP, ExcReturnThreadMSP
	}

	xpsr := c.Regs.XPSR &^ XPSRStackAlign
	frame := *sp - 4*HardwareFrameWords
	if frame&4 != 0 {
		frame &^= 4
		xpsr |= XPSRStackAlign
	}
	words := [HardwareFrameWords]uint32{
		c.Regs.R[0], c.Regs.R[1], c.Regs.R[2], c.Regs.R[3],
		c.Regs.R[12], c.Regs.LR, c.Regs.PC, xpsr,
	}
	if _, err := c.Mem.STMDB(frame+4*HardwareFrameWords, words[:]); err != nil {
		return err
	}

	*sp = frame
	c.nested = append(c.nested, c.active)
	c.active = exc
	c.clearPending(exc)
	c.Regs.LR = excReturn
	c.Regs.XPSR = (xpsr &^ (xpsrIPSRMask | XPSRStackAlign)) | uint32(exc)
	return nil
}

// Return performs an exception return to excReturn (BX LR with an EXC_RETURN
// value). If another exception is pending that may run before the
// interrupted context resumes, it is tail-chained instead: the stacked frame
// is left in place, the new exception becomes active and is returned.
func (c *Core) Return(excReturn uint32) (Exception, error) {
	if c.active == NoException {
		return NoException, &Fault{Kind: UsageFault, CFSR: CFSRInvPC, Addr: excReturn}
	}

	var sp *uint32
	toThread := true
	switch excReturn {
	case ExcReturnHandlerMSP:
		sp, toThread = &c.MSP, false
	case ExcReturnThreadMSP:
		sp = &c.MSP
	case ExcReturnThreadPSP:
		sp = &c.PSP
	default:
		return NoException, &Fault{Kind: UsageFault, CFSR: CFSRInvPC, Addr: excReturn}
	}

	prev := c.nested[len(c.nested)-1]
	if toThread != (prev == NoException) {
		return NoException, &Fault{Kind: UsageFault, CFSR: CFSRInvPC, Addr: excReturn}
	}
	if next := c.nextPendingAbove(c.executionPriority(prev)); next != NoException {
		c.active = next
		c.clearPending(next)
		c.Regs.LR = excReturn
		c.Regs.XPSR = (c.Regs.XPSR &^ xpsrIPSRMask) | uint32(next)
		return next, nil
	}

	var words [HardwareFrameWords]uint32
	top, err := c.Mem.LDMIA(*sp, words[:])
	if err != nil {
		return NoException, err
	}
	xpsr := words[7]
	if xpsr&XPSRThumb == 0 {
		return NoException, &Fault{Kind: UsageFault, CFSR: CFSRInvState, Addr: words[6]}
	}
	if xpsr&XPSRStackAlign != 0 {
		top |= 4
	}

	*sp = top
	c.Regs.R[0], c.Regs.R[1], c.Regs.R[2], c.Regs.R[3] = words[0], words[1], words[2], words[3]
	c.Regs.R[12], c.Regs.LR, c.Regs.PC = words[4], words[5], words[6]
	c.Regs.XPSR = xpsr &^ XPSRStackAlign

	c.nested = c.nested[:len(c.nested)-1]
	c.active = prev
	if toThread {
		if excReturn == ExcReturnThreadPSP {
			c.Control |= ControlSPSEL
		} else {
			c.Control &^= ControlSPSEL
		}
	}
	return NoException, nil
}
