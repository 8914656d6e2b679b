// Package app wires the kernel to a board: blinker tasks from a profile,
// slog logging of kernel events, the status panel and the fault report.
package app

import (
	"context"
	"errors"

	"tickos/hal"
	"tickos/internal/config"
	"tickos/kernel"
)

// New builds a System on h, starts it on its own goroutine and returns the
// step function hal runners call once per frame. Each step draws the panel;
// it returns hal.ErrDone once the run ends cleanly and the run's error
// otherwise.
func New(h hal.HAL, cfg Config) func() error {
	s, err := NewSystem(h, cfg)
	if err != nil {
		return func() error { return err }
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	var result error
	finished := false
	return func() error {
		if !finished {
			select {
			case result = <-done:
				finished = true
			default:
			}
		}
		if err := s.Render(); err != nil {
			return err
		}
		if !finished {
			return nil
		}

		var fe *kernel.FaultError
		if errors.As(result, &fe) && cfg.HoldOnFault {
			return nil
		}
		if result == nil {
			return hal.ErrDone
		}
		return result
	}
}

// Run starts the reference deployment and blocks forever (TinyGo/native
// entrypoint). A fault leaves the fault LED lit and the fault screen up.
func Run(h hal.HAL) {
	s, err := NewSystem(h, Config{Profile: config.Default()})
	if err != nil {
		h.Logger().WriteLineString("tickos: " + err.Error())
		select {}
	}
	if err := s.Run(context.Background()); err != nil {
		_ = s.Render()
	}
	select {}
}
