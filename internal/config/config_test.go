package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tickos/kernel"
)

func TestDefaultIsValid(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	require.Len(t, p.Tasks, kernel.DefaultTasks-1)
	require.Equal(t, kernel.DefaultLayout(), p.Layout())
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), p)
}

func TestLoadReferenceBoard(t *testing.T) {
	p, err := Load(filepath.Join("..", "..", "boards", "stm32f4disco.hcl"))
	require.NoError(t, err)
	require.Equal(t, Default(), p)
}

func TestLoadOverrides(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "fast.hcl"))
	require.NoError(t, err)

	require.Equal(t, Board{
		Name:       "fast",
		ClockHz:    168_000_000,
		TickHz:     1000,
		RAMStart:   0x20000000,
		RAMSize:    64 * 1024,
		TaskStack:  512,
		SchedStack: kernel.DefaultSchedStack,
		WakePolicy: kernel.WakeExact,
		FaultPin:   "",
	}, p.Board)
	require.Equal(t, []Task{
		{Name: "a", Kind: KindBlink, Pin: "PD12", Delay: 1},
		{Name: "b", Kind: KindBlink, Pin: "PD14", Delay: 3},
	}, p.Tasks)
}

func TestParseKeepsDefaultTasks(t *testing.T) {
	p, err := Parse([]byte(`board "x" { tick_hz = 10 }`), "x.hcl")
	require.NoError(t, err)
	require.Equal(t, uint32(10), p.Board.TickHz)
	require.Equal(t, Default().Tasks, p.Tasks)
}

func TestParseFaultTask(t *testing.T) {
	src := `
task "crash" {
  kind  = "fault"
  delay = 5
}
`
	p, err := Parse([]byte(src), "crash.hcl")
	require.NoError(t, err)
	require.Equal(t, []Task{{Name: "crash", Kind: KindFault, Delay: 5}}, p.Tasks)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"syntax", `board "x" {`, "failed to parse"},
		{"unknown attribute", `board "x" { colour = "red" }`, "failed to decode"},
		{"bad address", `board "x" { ram_start = "SRAM" }`, `address "SRAM"`},
		{"bad wake policy", `board "x" { wake_policy = "eventually" }`, "unknown wake_policy"},
		{"reload overflow", `board "x" { clock_hz = 100 * MHz }`, "reload"},
		{"stacks exceed ram", `board "x" { ram_size = 4 * KiB }`, "stacks need"},
		{"duplicate name", `
task "a" {
  pin   = "PD12"
  delay = 1
}
task "a" {
  pin   = "PD13"
  delay = 1
}`, `duplicate task "a"`},
		{"shared pin", `
task "a" {
  pin   = "PD12"
  delay = 1
}
task "b" {
  pin   = "PD12"
  delay = 2
}`, "share pin PD12"},
		{"bad pin", `
task "a" {
  pin   = "PD16"
  delay = 1
}`, `bad pin name "PD16"`},
		{"bad fault pin", `board "x" { fault_pin = "LED3" }`, "fault_pin"},
		{"missing pin", `
task "a" {
  delay = 1
}`, "has no pin"},
		{"unknown kind", `
task "a" {
  kind  = "sing"
  delay = 1
}`, `unknown kind "sing"`},
		{"zero delay never wakes", `
board "x" { wake_policy = "exact" }
task "a" {
  pin   = "PD12"
  delay = 0
}`, "never wakes"},
		{"zero delay fault task never wakes", `
board "x" { wake_policy = "exact" }
task "crash" {
  kind  = "fault"
  delay = 0
}`, `task "crash": a zero delay never wakes`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "test.hcl")
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestTooManyTasks(t *testing.T) {
	p := Default()
	for len(p.Tasks) < kernel.MaxTasks {
		p.Tasks = append(p.Tasks, Task{Name: string(rune('a' + len(p.Tasks))), Kind: KindFault, Delay: 1})
	}
	require.ErrorIs(t, p.Validate(), kernel.ErrTooManyTasks)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.hcl"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
