package kernel

// NextTask picks the task to dispatch after current: the first Running task
// other than idle in the order current+1, current+2, ... (mod N), or idle if
// there is none. Idle is only ever the fallback, never part of the rotation.
func NextTask(t *Table, current TaskID) TaskID {
	n := t.Len()
	next := int(current)
	for i := 0; i < n; i++ {
		next = (next + 1) % n
		if TaskID(next) != IdleTask && t.At(TaskID(next)).State == Running {
			return TaskID(next)
		}
	}
	return IdleTask
}

// firstRunnable returns the task the boot sequence starts: the first Running
// task after idle, or idle itself.
func firstRunnable(t *Table) TaskID {
	return NextTask(t, IdleTask)
}
