package kernel

import (
	"errors"
	"testing"
)

func TestDefaultLayoutRegions(t *testing.T) {
	l := DefaultLayout()
	const n = DefaultTasks

	want := map[TaskID]Region{
		1: {Bottom: 0x2001FC00, Top: 0x20020000},
		2: {Bottom: 0x2001F800, Top: 0x2001FC00},
		3: {Bottom: 0x2001F400, Top: 0x2001F800},
		4: {Bottom: 0x2001F000, Top: 0x2001F400},
		0: {Bottom: 0x2001EC00, Top: 0x2001F000},
	}
	for id, w := range want {
		if got := l.TaskRegion(n, id); got != w {
			t.Fatalf("TaskRegion(%d) = %s, want %s", id, got, w)
		}
	}
	if got := l.SchedRegion(n); got != (Region{Bottom: 0x2001E800, Top: 0x2001EC00}) {
		t.Fatalf("SchedRegion() = %s", got)
	}
	if err := l.Validate(n); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLayoutRegionsDisjoint(t *testing.T) {
	l := DefaultLayout()
	for n := 1; n <= MaxTasks; n++ {
		regions := []Region{l.SchedRegion(n)}
		for id := TaskID(0); int(id) < n; id++ {
			regions = append(regions, l.TaskRegion(n, id))
		}
		for i, a := range regions {
			if a.Bottom < l.RAMBase || a.Top > l.RAMEnd() {
				t.Fatalf("n=%d: region %s outside RAM", n, a)
			}
			for j, b := range regions {
				if i != j && a.Bottom < b.Top && b.Bottom < a.Top {
					t.Fatalf("n=%d: regions %s and %s overlap", n, a, b)
				}
			}
		}
	}
}

func TestLayoutValidate(t *testing.T) {
	l := DefaultLayout()
	if err := l.Validate(MaxTasks + 1); !errors.Is(err, ErrTooManyTasks) {
		t.Fatalf("Validate(MaxTasks+1) = %v, want ErrTooManyTasks", err)
	}

	small := l
	small.RAMSize = 4 * 1024
	if err := small.Validate(5); !errors.Is(err, ErrLayout) {
		t.Fatalf("Validate(small RAM) = %v, want ErrLayout", err)
	}

	top := l
	top.RAMBase = 0xFFFE0000
	top.RAMSize = 0x20000
	if err := top.Validate(5); !errors.Is(err, ErrLayout) {
		t.Fatalf("Validate(RAM ending at 2^32) = %v, want ErrLayout", err)
	}
	top.RAMSize -= 8
	if err := top.Validate(5); err != nil {
		t.Fatalf("Validate(RAM ending below 2^32) = %v", err)
	}
	if r := top.TaskRegion(5, 1); !r.Contains(r.Top-FrameBytes) || r.Top < r.Bottom {
		t.Fatalf("TaskRegion(5, 1) = %s, want a region holding its initial frame", r)
	}

	odd := l
	odd.TaskStack = 1020
	if err := odd.Validate(5); !errors.Is(err, ErrLayout) {
		t.Fatalf("Validate(odd stack) = %v, want ErrLayout", err)
	}

	tiny := l
	tiny.TaskStack = FrameBytes
	if err := tiny.Validate(5); !errors.Is(err, ErrLayout) {
		t.Fatalf("Validate(tiny stack) = %v, want ErrLayout", err)
	}
}
