package kernel

import "tickos/armv7m"

// WakePolicy decides when a blocked task's wake tick has been reached.
type WakePolicy uint8

const (
	// WakeReached wakes a task once the counter is at or past its wake tick,
	// compared modulo 2^32. A zero delay wakes on the next tick.
	WakeReached WakePolicy = iota
	// WakeExact wakes a task only when the counter equals its wake tick.
	WakeExact
)

func (p WakePolicy) String() string {
	switch p {
	case WakeReached:
		return "reached"
	case WakeExact:
		return "exact"
	default:
		return "unknown"
	}
}

func (p WakePolicy) due(wake, now uint32) bool {
	if p == WakeExact {
		return wake == now
	}
	return int32(now-wake) >= 0
}

// Exception priorities. SysTick must preempt and be taken before PendSV.
const (
	SysTickPriority = 0x00
	PendSVPriority  = 0xFF
)

// sysTick is the tick service: advance the counter, wake due tasks and pend
// a context switch.
func (k *Kernel) sysTick() (uint32, error) {
	k.tick++
	k.obs.OnTick(k.tick)

	for id := TaskID(0); int(id) < k.table.Len(); id++ {
		rec := k.table.At(id)
		if rec.State == Blocked && k.wake.due(rec.WakeTick, k.tick) {
			rec.State = Running
			k.obs.OnWake(id, k.tick)
		}
	}

	k.core.SCS.SetPENDSVSET()
	return k.core.Regs.LR, nil
}

// pendSV is the context switch. R0 is the working register, as in the
// assembly handler; the caller-saved registers are already in the hardware
// frame on the outgoing task's stack.
func (k *Kernel) pendSV() (uint32, error) {
	c := k.core
	r := &c.Regs

	// PUSH {LR}
	if err := c.Push(r.LR); err != nil {
		return 0, err
	}

	// MRS R0, PSP; STMDB R0!, {R4-R11}
	r.R[0] = c.PSP
	sp, err := c.Mem.STMDB(r.R[0], r.R[4:12])
	if err != nil {
		return 0, err
	}
	r.R[0] = sp

	from := k.current
	k.table.At(from).SP = r.R[0]
	k.current = NextTask(&k.table, from)
	r.R[0] = k.table.At(k.current).SP

	// LDMIA R0!, {R4-R11}; MSR PSP, R0
	if r.R[0], err = c.Mem.LDMIA(r.R[0], r.R[4:12]); err != nil {
		return 0, err
	}
	c.PSP = r.R[0]

	// POP {LR}
	if r.LR, err = c.Pop(); err != nil {
		return 0, err
	}
	k.obs.OnSwitch(from, k.current, k.tick)

	// BX LR
	return r.LR, nil
}

// delay blocks id until tick+ticks and pends a context switch. The record is
// updated with interrupts masked so a tick cannot observe it half written.
func (k *Kernel) delay(id TaskID, ticks uint32) {
	if id == IdleTask {
		return
	}

	state := k.core.DisableInterrupts()
	rec := k.table.At(id)
	rec.WakeTick = k.tick + ticks
	rec.State = Blocked
	k.core.SCS.SetPENDSVSET()
	k.core.EnableInterrupts(state)

	k.obs.OnBlock(id, rec.WakeTick)
}

func (k *Kernel) handle(exc armv7m.Exception) (uint32, error) {
	switch exc {
	case armv7m.ExcSysTick:
		return k.sysTick()
	case armv7m.ExcPendSV:
		return k.pendSV()
	default:
		return 0, &armv7m.Fault{Kind: armv7m.HardFault, HFSR: armv7m.HFSRVectTbl, Addr: uint32(exc)}
	}
}
