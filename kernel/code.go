package kernel

// Task routines are given addresses in a simulated flash region so the task
// table and stack frames hold code addresses, never Go function values. Each
// routine owns one slot: the entry address starts it, the resume address is
// the point inside its body where a suspended routine continues.
const (
	FlashBase = 0x08000000

	codeStart  = FlashBase + 0x100
	codeSlot   = 0x40
	resumeSkew = 0x20
)

type codeKind uint8

const (
	codeInvalid codeKind = iota
	codeEntry
	codeResume
)

type codeMap struct {
	n int
}

func (m codeMap) entry(id TaskID) uint32 {
	return codeStart + uint32(id)*codeSlot
}

func (m codeMap) resume(id TaskID) uint32 {
	return m.entry(id) + resumeSkew
}

// decode maps a program counter back to the routine it belongs to.
func (m codeMap) decode(pc uint32) (TaskID, codeKind) {
	pc &^= 1
	if pc < codeStart {
		return 0, codeInvalid
	}
	off := pc - codeStart
	id := off / codeSlot
	if id >= uint32(m.n) {
		return 0, codeInvalid
	}
	switch off % codeSlot {
	case 0:
		return TaskID(id), codeEntry
	case resumeSkew:
		return TaskID(id), codeResume
	default:
		return 0, codeInvalid
	}
}
