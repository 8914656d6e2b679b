package armv7m

import "fmt"

// FaultKind names the ARMv7-M fault exception a Fault is delivered to.
type FaultKind uint8

const (
	HardFault FaultKind = iota + 1
	MemManage
	BusFault
	UsageFault
)

func (k FaultKind) String() string {
	switch k {
	case HardFault:
		return "hard fault"
	case MemManage:
		return "memory management fault"
	case BusFault:
		return "bus fault"
	case UsageFault:
		return "usage fault"
	default:
		return "unknown fault"
	}
}

// Exception returns the exception number the fault is taken on.
func (k FaultKind) Exception() Exception {
	switch k {
	case MemManage:
		return ExcMemManage
	case BusFault:
		return ExcBusFault
	case UsageFault:
		return ExcUsageFault
	default:
		return ExcHardFault
	}
}

// CFSR bits (MMFSR in [7:0], BFSR in [15:8], UFSR in [31:16]).
const (
	CFSRIAccViol  uint32 = 1 << 0
	CFSRDAccViol  uint32 = 1 << 1
	CFSRMMARValid uint32 = 1 << 7

	CFSRIBusErr    uint32 = 1 << 8
	CFSRPreciseErr uint32 = 1 << 9
	CFSRBFARValid  uint32 = 1 << 15

	CFSRUndefInstr uint32 = 1 << 16
	CFSRInvState   uint32 = 1 << 17
	CFSRInvPC      uint32 = 1 << 18
	CFSRUnaligned  uint32 = 1 << 24
)

// HFSR bits.
const (
	HFSRVectTbl uint32 = 1 << 1
	HFSRForced  uint32 = 1 << 30
)

// Fault is a synchronous fault raised by the core.
type Fault struct {
	Kind FaultKind
	CFSR uint32
	HFSR uint32
	Addr uint32
}

func (f *Fault) Error() string {
	s := f.Kind.String()
	if f.HFSR&HFSRForced != 0 {
		s += " (forced)"
	}
	switch {
	case f.CFSR&CFSRInvPC != 0:
		s += ": invalid EXC_RETURN"
	case f.CFSR&CFSRInvState != 0:
		s += ": invalid state (thumb bit clear)"
	case f.CFSR&CFSRUnaligned != 0:
		s += ": unaligned access"
	case f.CFSR&(CFSRIAccViol|CFSRIBusErr) != 0:
		s += ": instruction fetch"
	case f.CFSR&(CFSRPreciseErr|CFSRDAccViol) != 0:
		s += ": data access"
	}
	return fmt.Sprintf("%s at 0x%08x", s, f.Addr)
}

// Escalate records the fault status in the SCS and returns the fault that is
// actually taken: configurable faults that are not enabled in SHCSR become a
// forced HardFault.
func (c *Core) Escalate(f *Fault) *Fault {
	c.SCS.CFSR |= f.CFSR
	if f.Kind == HardFault || c.SCS.FaultEnabled(f.Kind) {
		c.SCS.HFSR |= f.HFSR
		return f
	}
	forced := &Fault{
		Kind: HardFault,
		CFSR: f.CFSR,
		HFSR: f.HFSR | HFSRForced,
		Addr: f.Addr,
	}
	c.SCS.HFSR |= forced.HFSR
	return forced
}
