package kernel

// Observer receives scheduling events. Callbacks run on whichever context
// produced the event (a handler or a task) and must not call back into the
// kernel.
type Observer interface {
	OnTick(tick uint32)
	OnWake(id TaskID, tick uint32)
	OnBlock(id TaskID, wake uint32)
	OnSwitch(from, to TaskID, tick uint32)
	OnFault(err *FaultError)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnTick(uint32)                   {}
func (NopObserver) OnWake(TaskID, uint32)           {}
func (NopObserver) OnBlock(TaskID, uint32)          {}
func (NopObserver) OnSwitch(TaskID, TaskID, uint32) {}
func (NopObserver) OnFault(*FaultError)             {}

// Observers fans events out to every member in order.
type Observers []Observer

func (o Observers) OnTick(tick uint32) {
	for _, x := range o {
		x.OnTick(tick)
	}
}

func (o Observers) OnWake(id TaskID, tick uint32) {
	for _, x := range o {
		x.OnWake(id, tick)
	}
}

func (o Observers) OnBlock(id TaskID, wake uint32) {
	for _, x := range o {
		x.OnBlock(id, wake)
	}
}

func (o Observers) OnSwitch(from, to TaskID, tick uint32) {
	for _, x := range o {
		x.OnSwitch(from, to, tick)
	}
}

func (o Observers) OnFault(err *FaultError) {
	for _, x := range o {
		x.OnFault(err)
	}
}
