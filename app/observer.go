package app

import (
	"context"
	"log/slog"

	"tickos/kernel"
)

// logObserver logs scheduling events at debug level and faults at error.
type logObserver struct {
	log   *slog.Logger
	names []string
}

func (o *logObserver) name(id kernel.TaskID) string {
	if int(id) < len(o.names) {
		return o.names[id]
	}
	return "?"
}

func (o *logObserver) OnTick(tick uint32) {
	o.log.Debug("tick", "tick", tick)
}

func (o *logObserver) OnWake(id kernel.TaskID, tick uint32) {
	o.log.Debug("wake", "task", o.name(id), "tick", tick)
}

func (o *logObserver) OnBlock(id kernel.TaskID, wake uint32) {
	o.log.Debug("block", "task", o.name(id), "wake", wake)
}

func (o *logObserver) OnSwitch(from, to kernel.TaskID, tick uint32) {
	if !o.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	o.log.Debug("switch", "from", o.name(from), "to", o.name(to), "tick", tick)
}

func (o *logObserver) OnFault(err *kernel.FaultError) {
	attrs := []any{
		"kind", err.Kind.String(),
		"exception", int(err.Kind.Exception()),
		"task", o.name(err.Task),
		"tick", err.Tick,
		"err", err.Err,
	}
	if f := err.Fault; f != nil {
		attrs = append(attrs, "addr", f.Addr, "cfsr", f.CFSR, "hfsr", f.HFSR)
	}
	if err.Panic != nil {
		attrs = append(attrs, "panic", err.Panic)
	}
	o.log.Error("kernel fault", attrs...)
}

// stopAt cancels the run once the tick counter reaches tick.
type stopAt struct {
	kernel.NopObserver
	tick   uint32
	cancel context.CancelCauseFunc
}

func (s *stopAt) OnTick(tick uint32) {
	if tick == s.tick && s.cancel != nil {
		s.cancel(errTickLimit)
	}
}
