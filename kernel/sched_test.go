package kernel

import "testing"

func tableWith(t *testing.T, states ...State) *Table {
	t.Helper()
	tbl, err := newTable(len(states))
	if err != nil {
		t.Fatalf("newTable: %v", err)
	}
	for i, s := range states {
		tbl.At(TaskID(i)).State = s
	}
	return &tbl
}

func TestNextTaskRoundRobin(t *testing.T) {
	tbl := tableWith(t, Running, Running, Running, Running, Running)

	cur := TaskID(1)
	want := []TaskID{2, 3, 4, 1, 2, 3, 4, 1}
	for i, w := range want {
		cur = NextTask(tbl, cur)
		if cur != w {
			t.Fatalf("selection %d = %d, want %d", i, cur, w)
		}
	}
}

func TestNextTaskIdleFallback(t *testing.T) {
	tbl := tableWith(t, Running, Blocked, Blocked, Blocked, Blocked)
	for cur := TaskID(0); cur < 5; cur++ {
		if got := NextTask(tbl, cur); got != IdleTask {
			t.Fatalf("NextTask(%d) = %d, want idle", cur, got)
		}
	}
}

func TestNextTaskSkipsBlocked(t *testing.T) {
	tbl := tableWith(t, Running, Running, Blocked, Blocked, Running)

	if got := NextTask(tbl, 1); got != 4 {
		t.Fatalf("NextTask(1) = %d, want 4", got)
	}
	if got := NextTask(tbl, 4); got != 1 {
		t.Fatalf("NextTask(4) = %d, want 1 (idle is skipped in rotation)", got)
	}
	if got := NextTask(tbl, IdleTask); got != 1 {
		t.Fatalf("NextTask(idle) = %d, want 1", got)
	}
}

func TestNextTaskSingleRunnerKeepsRunning(t *testing.T) {
	tbl := tableWith(t, Running, Blocked, Running, Blocked)
	if got := NextTask(tbl, 2); got != 2 {
		t.Fatalf("NextTask(2) = %d, want 2", got)
	}
}

func TestNextTaskIdleOnly(t *testing.T) {
	tbl := tableWith(t, Running)
	if got := NextTask(tbl, IdleTask); got != IdleTask {
		t.Fatalf("NextTask() = %d, want idle", got)
	}
	if got := firstRunnable(tbl); got != IdleTask {
		t.Fatalf("firstRunnable() = %d, want idle", got)
	}
}

func TestTableAtOutOfRangePanics(t *testing.T) {
	tbl := tableWith(t, Running, Running)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range id")
		}
	}()
	tbl.At(2)
}
