package kernel

import (
	"errors"
	"testing"

	"tickos/armv7m"
)

func TestBuildFrameLayout(t *testing.T) {
	mem := armv7m.NewMemory(DefaultRAMBase, 4096)
	top := uint32(DefaultRAMBase + 4096)
	entry := uint32(0x08000140)

	sp, err := BuildFrame(mem, top, entry)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	if sp != top-FrameBytes {
		t.Fatalf("BuildFrame() sp = %#x, want %#x", sp, top-FrameBytes)
	}

	words := map[uint32]uint32{
		top - 4:  InitialXPSR,
		top - 8:  entry,
		top - 12: InitialLR,
	}
	for off := uint32(16); off <= FrameBytes; off += 4 {
		words[top-off] = 0
	}
	for addr, want := range words {
		got, err := mem.Load32(addr)
		if err != nil {
			t.Fatalf("Load32(%#x): %v", addr, err)
		}
		if got != want {
			t.Fatalf("word at %#x = %#x, want %#x", addr, got, want)
		}
	}
}

func TestReadFrameDecodesRestoreOrder(t *testing.T) {
	mem := armv7m.NewMemory(DefaultRAMBase, 4096)
	top := uint32(DefaultRAMBase + 4096)

	// Lay a context down the way exception entry and the switch handler do.
	hw := []uint32{0, 1, 2, 3, 12, 0x0800_0123, 0x0800_0160, InitialXPSR}
	sp, err := mem.STMDB(top, hw)
	if err != nil {
		t.Fatal(err)
	}
	sw := []uint32{4, 5, 6, 7, 8, 9, 10, 11}
	if sp, err = mem.STMDB(sp, sw); err != nil {
		t.Fatal(err)
	}

	f, err := ReadFrame(mem, sp)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	for i := 0; i < 13; i++ {
		if f.R[i] != uint32(i) {
			t.Fatalf("R%d = %d, want %d", i, f.R[i], i)
		}
	}
	if f.LR != 0x0800_0123 || f.PC != 0x0800_0160 || f.XPSR != InitialXPSR {
		t.Fatalf("LR, PC, xPSR = %#x, %#x, %#x", f.LR, f.PC, f.XPSR)
	}
}

func TestBuildFrameMatchesExceptionReturn(t *testing.T) {
	mem := armv7m.NewMemory(DefaultRAMBase, 4096)
	top := uint32(DefaultRAMBase + 4096)
	entry := uint32(0x08000180)

	sp, err := BuildFrame(mem, top, entry)
	if err != nil {
		t.Fatal(err)
	}

	// Restore path of the switch handler followed by exception return.
	c := armv7m.NewCore(mem)
	c.MSP = DefaultRAMBase + 1024
	for i := range c.Regs.R {
		c.Regs.R[i] = 0xFFFF0000 | uint32(i)
	}
	if err := c.Enter(armv7m.ExcPendSV); err != nil {
		t.Fatal(err)
	}
	if sp, err = mem.LDMIA(sp, c.Regs.R[4:12]); err != nil {
		t.Fatal(err)
	}
	c.PSP = sp
	if _, err := c.Return(armv7m.ExcReturnThreadPSP); err != nil {
		t.Fatalf("Return: %v", err)
	}

	if c.PSP != top {
		t.Fatalf("PSP = %#x, want stack top %#x", c.PSP, top)
	}
	if c.Regs.PC != entry {
		t.Fatalf("PC = %#x, want entry %#x", c.Regs.PC, entry)
	}
	if c.Regs.LR != InitialLR {
		t.Fatalf("LR = %#x, want %#x", c.Regs.LR, InitialLR)
	}
	for i, v := range c.Regs.R {
		if v != 0 {
			t.Fatalf("R%d = %#x, want 0", i, v)
		}
	}
	if c.Control&armv7m.ControlSPSEL == 0 {
		t.Fatal("expected thread mode on PSP")
	}
}

func TestBuildFrameOutsideRAM(t *testing.T) {
	mem := armv7m.NewMemory(DefaultRAMBase, 4096)
	_, err := BuildFrame(mem, DefaultRAMBase+8192, 0x08000100)
	var f *armv7m.Fault
	if !errors.As(err, &f) || f.Kind != armv7m.BusFault {
		t.Fatalf("BuildFrame() err = %v, want bus fault", err)
	}
}

func TestInitStacksOnce(t *testing.T) {
	k, err := New(Config{}, TaskFunc(func(*Context) {}), TaskFunc(func(*Context) {}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer k.Halt()

	if err := k.InitStacks(); err != nil {
		t.Fatalf("InitStacks: %v", err)
	}
	n := k.NumTasks()
	for id := TaskID(0); int(id) < n; id++ {
		rec := k.table.At(id)
		region := k.layout.TaskRegion(n, id)
		if rec.SP != region.Top-FrameBytes {
			t.Fatalf("task %d SP = %#x, want %#x", id, rec.SP, region.Top-FrameBytes)
		}
		f, err := k.SavedFrame(id)
		if err != nil {
			t.Fatalf("SavedFrame(%d): %v", id, err)
		}
		if f.PC != rec.Entry() {
			t.Fatalf("task %d frame PC = %#x, want entry %#x", id, f.PC, rec.Entry())
		}
	}

	if err := k.InitStacks(); !errors.Is(err, ErrStacksInitialized) {
		t.Fatalf("second InitStacks() = %v, want ErrStacksInitialized", err)
	}
}
