//go:build !baremetal

package hal

import (
	"context"
	"errors"
	"io"
	"os"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	// Hz is the tick rate; every timer fire emits one tick.
	Hz int
	// EchoLEDs logs every LED write.
	EchoLEDs bool
	// Output receives log lines; nil means stdout.
	Output io.Writer
}

// RunHeadless runs the app without opening a window. The step function
// returned by newApp is called once per timer fire, after the tick.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 1
	}
	d, err := tickPeriod(cfg.Hz)
	if err != nil {
		return err
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	h := newHost(cfg.Output, d, cfg.EchoLEDs)
	step := newApp(h)

	t := time.NewTicker(d)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			h.t.emit(1)
			if step != nil {
				if err := step(); err != nil {
					if errors.Is(err, ErrDone) {
						return nil
					}
					return err
				}
			}
		}
	}
}
