package armv7m

import (
	"errors"
	"fmt"
	"time"
)

// SYST_CSR bits.
const (
	SysTickEnable    uint32 = 1 << 0
	SysTickTickInt   uint32 = 1 << 1
	SysTickClkSource uint32 = 1 << 2
	SysTickCountFlag uint32 = 1 << 16
)

// SysTickMaxReload is the widest value SYST_RVR holds.
const SysTickMaxReload = 0x00FFFFFF

var ErrSysTickRate = errors.New("systick: tick rate cannot be produced from clock")

// SysTick models the SYST_* timer registers.
type SysTick struct {
	CSR     uint32
	RVR     uint32
	CVR     uint32
	clockHz uint32
}

// Configure programs the timer to fire tickHz times per second from the core
// clock and enables the counter and its interrupt.
func (s *SysTick) Configure(clockHz, tickHz uint32) error {
	if clockHz == 0 || tickHz == 0 || tickHz > clockHz {
		return fmt.Errorf("%w: clock %d Hz, tick %d Hz", ErrSysTickRate, clockHz, tickHz)
	}
	reload := clockHz/tickHz - 1
	if reload == 0 || reload > SysTickMaxReload {
		return fmt.Errorf("%w: reload %d out of range", ErrSysTickRate, reload)
	}

	s.RVR &^= SysTickMaxReload
	s.RVR |= reload
	s.CVR = 0
	s.clockHz = clockHz
	s.CSR |= SysTickEnable | SysTickTickInt | SysTickClkSource
	return nil
}

// Reload returns the programmed reload value.
func (s *SysTick) Reload() uint32 { return s.RVR & SysTickMaxReload }

// Enabled reports whether the counter runs with its interrupt enabled.
func (s *SysTick) Enabled() bool {
	return s.CSR&(SysTickEnable|SysTickTickInt) == SysTickEnable|SysTickTickInt
}

// Period returns the time between two wraps of the counter.
func (s *SysTick) Period() time.Duration {
	if s.clockHz == 0 {
		return 0
	}
	cycles := uint64(s.Reload()) + 1
	return time.Duration(cycles * uint64(time.Second) / uint64(s.clockHz))
}
