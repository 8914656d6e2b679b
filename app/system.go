package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"tickos/hal"
	"tickos/internal/config"
	"tickos/kernel"
)

var errTickLimit = errors.New("app: tick limit reached")

// Config selects what a System runs.
type Config struct {
	Profile config.Profile
	// Logger defaults to a text logger over the board's log lines.
	Logger *slog.Logger
	// MaxTicks ends Run cleanly once the tick counter reaches it. Zero runs
	// until the context ends or the kernel faults.
	MaxTicks uint32
	// Observers receive every kernel event after the built-in ones.
	Observers []kernel.Observer
	// HoldOnFault keeps the app step function returning nil after a fault,
	// so a window stays open on the fault screen.
	HoldOnFault bool
}

// System is a kernel wired to a board: the profile's tasks on the board's
// pins, logging, the status panel and the fault LED.
type System struct {
	h        hal.HAL
	prof     config.Profile
	log      *slog.Logger
	k        *kernel.Kernel
	panel    *Panel
	stop     *stopAt
	names    []string
	faultPin hal.GPIOPin
	maxTicks uint32
	booted   bool
}

// NewSystem validates the profile and builds the kernel.
func NewSystem(h hal.HAL, cfg Config) (*System, error) {
	if err := cfg.Profile.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(lineWriter{l: h.Logger()}, nil))
	}

	tasks, err := buildTasks(h.GPIO(), cfg.Profile.Tasks)
	if err != nil {
		return nil, err
	}
	names := []string{"idle"}
	for _, t := range cfg.Profile.Tasks {
		names = append(names, t.Name)
	}

	s := &System{
		h:        h,
		prof:     cfg.Profile,
		log:      cfg.Logger,
		names:    names,
		maxTicks: cfg.MaxTicks,
		panel:    NewPanel(cfg.Profile.Board.Name, h.GPIO(), names),
		stop:     &stopAt{tick: cfg.MaxTicks},
	}
	if name := cfg.Profile.Board.FaultPin; name != "" {
		if s.faultPin, err = outputPin(h.GPIO(), name); err != nil {
			return nil, fmt.Errorf("app: fault pin: %w", err)
		}
	}

	obs := kernel.Observers{&logObserver{log: s.log, names: names}, s.panel}
	if cfg.MaxTicks > 0 {
		obs = append(obs, s.stop)
	}
	obs = append(obs, cfg.Observers...)

	b := cfg.Profile.Board
	s.k, err = kernel.New(kernel.Config{
		Layout:     cfg.Profile.Layout(),
		ClockHz:    b.ClockHz,
		TickHz:     b.TickHz,
		WakePolicy: b.WakePolicy,
		Observer:   obs,
		OnFault:    s.onFault,
	}, tasks...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *System) onFault(fe *kernel.FaultError) {
	writeFault(s.h.Logger(), fe, s.names)
	latchFaultLED(s.faultPin)
}

func (s *System) boot() error {
	if s.booted {
		return nil
	}
	if err := s.k.Boot(); err != nil {
		return err
	}
	s.booted = true

	b := s.prof.Board
	s.log.Info("kernel booted",
		"board", b.Name,
		"tasks", len(s.names),
		"tick_hz", b.TickHz,
		"reload", s.k.Core().SysTick.Reload(),
		"wake_policy", b.WakePolicy.String(),
	)
	return nil
}

// Run boots the kernel and runs it on the board's tick stream until ctx
// ends, the tick limit is reached or the kernel faults. Reaching the tick
// limit is a clean exit.
func (s *System) Run(ctx context.Context) error {
	if err := s.boot(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	s.stop.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	ticks := make(chan uint64)
	g.Go(func() error { return s.pumpTicks(gctx, ticks) })
	g.Go(func() error { return s.k.Run(gctx, ticks) })

	err := g.Wait()
	if errors.Is(context.Cause(runCtx), errTickLimit) {
		s.log.Info("tick limit reached", "tick", s.maxTicks)
		return nil
	}
	return err
}

// pumpTicks forwards board ticks to the kernel.
func (s *System) pumpTicks(ctx context.Context, out chan<- uint64) error {
	var src <-chan uint64
	if t := s.h.Time(); t != nil {
		src = t.Ticks()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case seq, ok := <-src:
			if !ok {
				return nil
			}
			select {
			case out <- seq:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Advance runs the kernel in simulated time: it boots if needed, drains
// pending work, then delivers n ticks, draining after each.
func (s *System) Advance(n int) error {
	if err := s.boot(); err != nil {
		return err
	}
	if err := s.k.RunUntilIdle(); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		s.k.Tick()
		if err := s.k.RunUntilIdle(); err != nil {
			return err
		}
	}
	return nil
}

// Render draws the status panel onto the board's framebuffer, if it has one.
func (s *System) Render() error {
	d := s.h.Display()
	if d == nil {
		return nil
	}
	return s.panel.Render(d.Framebuffer())
}

// Names returns the task names by id, idle first.
func (s *System) Names() []string { return append([]string(nil), s.names...) }

func (s *System) Kernel() *kernel.Kernel { return s.k }
func (s *System) Panel() *Panel          { return s.panel }

// Close stops the kernel and releases its task goroutines.
func (s *System) Close() { s.k.Halt() }

// lineWriter feeds slog output to a hal.Logger, one record per line.
type lineWriter struct {
	l hal.Logger
}

func (w lineWriter) Write(p []byte) (int, error) {
	if w.l == nil {
		return len(p), nil
	}
	n := len(p)
	for len(p) > 0 && p[len(p)-1] == '\n' {
		p = p[:len(p)-1]
	}
	w.l.WriteLineBytes(p)
	return n, nil
}

var _ io.Writer = lineWriter{}
