package armv7m

import "sync/atomic"

// ICSR bits.
const (
	ICSRPendSVSet uint32 = 1 << 28
	ICSRPendSVClr uint32 = 1 << 27
	ICSRPendSTSet uint32 = 1 << 26
	ICSRPendSTClr uint32 = 1 << 25
)

// SHCSR fault enable bits.
const (
	SHCSRMemFaultEna uint32 = 1 << 16
	SHCSRBusFaultEna uint32 = 1 << 17
	SHCSRUsgFaultEna uint32 = 1 << 18
)

// SCS is the subset of the System Control Space the kernel touches.
//
// ICSR may be written from any goroutine (it is how asynchronous interrupt
// sources pend exceptions); the other registers belong to the core's owner.
type SCS struct {
	icsr  atomic.Uint32
	kick  chan struct{}
	SHPR3 uint32
	SHCSR uint32
	CFSR  uint32
	HFSR  uint32
}

func (s *SCS) init() {
	s.kick = make(chan struct{}, 1)
}

// ICSR returns the current pending state.
func (s *SCS) ICSR() uint32 { return s.icsr.Load() }

// WriteICSR applies set/clear bits the way the hardware register does.
func (s *SCS) WriteICSR(v uint32) {
	for {
		old := s.icsr.Load()
		next := old
		if v&ICSRPendSVSet != 0 {
			next |= ICSRPendSVSet
		}
		if v&ICSRPendSVClr != 0 {
			next &^= ICSRPendSVSet
		}
		if v&ICSRPendSTSet != 0 {
			next |= ICSRPendSTSet
		}
		if v&ICSRPendSTClr != 0 {
			next &^= ICSRPendSTSet
		}
		if s.icsr.CompareAndSwap(old, next) {
			break
		}
	}
	if v&(ICSRPendSVSet|ICSRPendSTSet) != 0 {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

// SetPENDSVSET pends the PendSV exception.
func (s *SCS) SetPENDSVSET() { s.WriteICSR(ICSRPendSVSet) }

// SetPENDSTSET pends the SysTick exception.
func (s *SCS) SetPENDSTSET() { s.WriteICSR(ICSRPendSTSet) }

// Kick is signalled whenever an exception becomes pending.
func (s *SCS) Kick() <-chan struct{} { return s.kick }

func (s *SCS) GetPRI_14() uint8 { return uint8(s.SHPR3 >> 16) }

func (s *SCS) SetPRI_14(value uint8) {
	s.SHPR3 &^= 0xFF << 16
	s.SHPR3 |= uint32(value) << 16
}

func (s *SCS) GetPRI_15() uint8 { return uint8(s.SHPR3 >> 24) }

func (s *SCS) SetPRI_15(value uint8) {
	s.SHPR3 &^= 0xFF << 24
	s.SHPR3 |= uint32(value) << 24
}

// EnableFaults turns on the memory management, bus and usage fault handlers.
func (s *SCS) EnableFaults() {
	s.SHCSR |= SHCSRMemFaultEna | SHCSRBusFaultEna | SHCSRUsgFaultEna
}

// FaultEnabled reports whether a configurable fault is taken on its own vector.
func (s *SCS) FaultEnabled(k FaultKind) bool {
	switch k {
	case MemManage:
		return s.SHCSR&SHCSRMemFaultEna != 0
	case BusFault:
		return s.SHCSR&SHCSRBusFaultEna != 0
	case UsageFault:
		return s.SHCSR&SHCSRUsgFaultEna != 0
	default:
		return true
	}
}
