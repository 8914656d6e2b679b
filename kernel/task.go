package kernel

import (
	"errors"
	"fmt"
)

// MaxTasks is the compiled size of the task table, idle task included.
const MaxTasks = 8

// DefaultTasks is the reference deployment: idle plus four blinkers.
const DefaultTasks = 5

// Fails to compile if the default task set does not fit the table.
const _ = uint(MaxTasks - DefaultTasks)

// TaskID indexes the task table.
type TaskID uint8

// IdleTask is the fallback task, always at index 0.
const IdleTask TaskID = 0

var ErrTooManyTasks = errors.New("kernel: too many tasks for task table")

// State is a task's dispatch eligibility.
type State uint8

const (
	// Blocked tasks are skipped until their wake tick.
	Blocked State = iota
	// Running tasks are eligible for dispatch.
	Running
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// TCB is one task control record.
type TCB struct {
	// SP is the saved top of the task's context. Stale while the task runs.
	SP uint32
	// State decides dispatch eligibility.
	State State
	// WakeTick is the tick at which a Blocked task becomes Running.
	WakeTick uint32

	// entry is the code address of the task routine.
	entry uint32
}

// Entry returns the address of the task routine.
func (r *TCB) Entry() uint32 { return r.entry }

// Table is the fixed task table. Index 0 is the idle task.
type Table struct {
	n    int
	recs [MaxTasks]TCB
}

func newTable(n int) (Table, error) {
	if n < 1 || n > MaxTasks {
		return Table{}, fmt.Errorf("%w: %d (max %d)", ErrTooManyTasks, n, MaxTasks)
	}
	t := Table{n: n}
	for i := 0; i < n; i++ {
		t.recs[i].State = Running
	}
	return t, nil
}

// Len returns N, the number of tasks including idle.
func (t *Table) Len() int { return t.n }

// At returns the record for id. Out-of-range ids panic.
func (t *Table) At(id TaskID) *TCB {
	if int(id) >= t.n {
		panic(fmt.Sprintf("kernel: task id %d out of range [0, %d)", id, t.n))
	}
	return &t.recs[id]
}
