package armv7m

import "encoding/binary"

// Memory is a little-endian RAM region starting at Base.
type Memory struct {
	base uint32
	buf  []byte
}

// NewMemory allocates size bytes of zeroed RAM mapped at base.
func NewMemory(base, size uint32) *Memory {
	return &Memory{base: base, buf: make([]byte, size)}
}

func (m *Memory) Base() uint32 { return m.base }
func (m *Memory) Size() uint32 { return uint32(len(m.buf)) }

// End returns the first address past the region.
func (m *Memory) End() uint32 { return m.base + uint32(len(m.buf)) }

// Contains reports whether [addr, addr+n) lies inside the region.
func (m *Memory) Contains(addr, n uint32) bool {
	if addr < m.base {
		return false
	}
	off := uint64(addr-m.base) + uint64(n)
	return off <= uint64(len(m.buf))
}

func (m *Memory) check(addr uint32) error {
	if addr&3 != 0 {
		return &Fault{Kind: UsageFault, CFSR: CFSRUnaligned, Addr: addr}
	}
	if !m.Contains(addr, 4) {
		return &Fault{Kind: BusFault, CFSR: CFSRPreciseErr | CFSRBFARValid, Addr: addr}
	}
	return nil
}

// Load32 reads one word.
func (m *Memory) Load32(addr uint32) (uint32, error) {
	if err := m.check(addr); err != nil {
		return 0, err
	}
	off := addr - m.base
	return binary.LittleEndian.Uint32(m.buf[off : off+4]), nil
}

// Store32 writes one word.
func (m *Memory) Store32(addr, v uint32) error {
	if err := m.check(addr); err != nil {
		return err
	}
	off := addr - m.base
	binary.LittleEndian.PutUint32(m.buf[off:off+4], v)
	return nil
}

// STMDB stores regs below base (store multiple, decrement before) and returns
// the written-back base. regs[0] lands at the lowest address.
func (m *Memory) STMDB(base uint32, regs []uint32) (uint32, error) {
	start := base - 4*uint32(len(regs))
	for i, v := range regs {
		if err := m.Store32(start+4*uint32(i), v); err != nil {
			return base, err
		}
	}
	return start, nil
}

// LDMIA loads len(dst) words starting at base (load multiple, increment after)
// and returns the written-back base.
func (m *Memory) LDMIA(base uint32, dst []uint32) (uint32, error) {
	var tmp [16]uint32
	vals := tmp[:0]
	for i := range dst {
		v, err := m.Load32(base + 4*uint32(i))
		if err != nil {
			return base, err
		}
		vals = append(vals, v)
	}
	copy(dst, vals)
	return base + 4*uint32(len(dst)), nil
}
