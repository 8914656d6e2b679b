package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"tickos/kernel"
)

type hclFile struct {
	Board *hclBoard  `hcl:"board,block"`
	Tasks []*hclTask `hcl:"task,block"`
}

type hclBoard struct {
	Name       string  `hcl:"name,label"`
	ClockHz    *uint32 `hcl:"clock_hz,optional"`
	TickHz     *uint32 `hcl:"tick_hz,optional"`
	RAMStart   *string `hcl:"ram_start,optional"`
	RAMSize    *uint32 `hcl:"ram_size,optional"`
	TaskStack  *uint32 `hcl:"task_stack,optional"`
	SchedStack *uint32 `hcl:"sched_stack,optional"`
	WakePolicy *string `hcl:"wake_policy,optional"`
	FaultPin   *string `hcl:"fault_pin,optional"`
}

type hclTask struct {
	Name  string  `hcl:"name,label"`
	Kind  *string `hcl:"kind,optional"`
	Pin   *string `hcl:"pin,optional"`
	Delay uint32  `hcl:"delay"`
}

// evalContext holds the constants profiles may use in expressions, such
// as ram_size = 128 * KiB.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"KiB":    cty.NumberIntVal(1024),
			"MHz":    cty.NumberIntVal(1_000_000),
			"HSI_HZ": cty.NumberIntVal(kernel.DefaultClockHz),
		},
	}
}

// Load reads and validates the profile at path. An empty path returns the
// default profile.
func Load(path string) (Profile, error) {
	if path == "" {
		return Default(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("config: %w", err)
	}
	return Parse(src, path)
}

// Parse decodes and validates a profile. Attributes the profile leaves out
// keep their default values; a profile without task blocks keeps the
// default tasks.
func Parse(src []byte, filename string) (Profile, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return Profile{}, fmt.Errorf("config: failed to parse %s: %w", filename, diags)
	}

	var f hclFile
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &f); diags.HasErrors() {
		return Profile{}, fmt.Errorf("config: failed to decode %s: %w", filename, diags)
	}

	p := Default()
	var errs []error
	if b := f.Board; b != nil {
		p.Board.Name = b.Name
		set(&p.Board.ClockHz, b.ClockHz)
		set(&p.Board.TickHz, b.TickHz)
		set(&p.Board.RAMSize, b.RAMSize)
		set(&p.Board.TaskStack, b.TaskStack)
		set(&p.Board.SchedStack, b.SchedStack)
		set(&p.Board.FaultPin, b.FaultPin)
		if b.RAMStart != nil {
			addr, err := parseAddr(*b.RAMStart)
			errs = append(errs, err)
			p.Board.RAMStart = addr
		}
		if b.WakePolicy != nil {
			wp, err := parseWakePolicy(*b.WakePolicy)
			errs = append(errs, err)
			p.Board.WakePolicy = wp
		}
	}

	if len(f.Tasks) > 0 {
		p.Tasks = p.Tasks[:0:0]
		for _, t := range f.Tasks {
			task := Task{Name: t.Name, Kind: KindBlink, Delay: t.Delay}
			set(&task.Kind, t.Kind)
			set(&task.Pin, t.Pin)
			p.Tasks = append(p.Tasks, task)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Profile{}, fmt.Errorf("config: %s: %w", filename, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("config: %s: %w", filename, err)
	}
	return p, nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
