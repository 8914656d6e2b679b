//go:build !tinygo

package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tickos/armv7m"
	"tickos/hal"
	"tickos/internal/config"
	"tickos/internal/trace"
	"tickos/kernel"
)

func newBoard(out *bytes.Buffer) hal.HAL {
	return hal.NewHost(hal.HostConfig{Output: out})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func pinLevel(t *testing.T, h hal.HAL, name string) bool {
	t.Helper()
	level, err := hal.Lookup(h.GPIO(), name).Read()
	require.NoError(t, err)
	return level
}

func TestReferenceDeploymentLEDs(t *testing.T) {
	var out bytes.Buffer
	h := newBoard(&out)
	rec := trace.NewRecorder()
	s, err := NewSystem(h, Config{Profile: config.Default(), Logger: quietLogger(), Observers: []kernel.Observer{rec}})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Advance(8))

	// Toggles through tick 8: green 5, orange 3, red 2, blue 2.
	require.True(t, pinLevel(t, h, hal.PinLEDGreen))
	require.True(t, pinLevel(t, h, hal.PinLEDOrange))
	require.False(t, pinLevel(t, h, hal.PinLEDRed))
	require.False(t, pinLevel(t, h, hal.PinLEDBlue))

	require.Equal(t, []string{"idle", "green", "orange", "red", "blue"}, s.Names())
	require.Equal(t, []string{"8:0->1", "8:1->2", "8:2->4", "8:4->0"}, rec.Switches()[len(rec.Switches())-4:])

	lines := s.Panel().Lines()
	require.Contains(t, lines[1], "tick 8")
	require.Regexp(t, `^1\s+green\s+blocked\s+10\s+5$`, lines[5])
	require.Regexp(t, `^2\s+orange\s+blocked\s+12\s+3$`, lines[6])
	require.Regexp(t, `^3\s+red\s+blocked\s+12\s+2$`, lines[7])
	require.Regexp(t, `^4\s+blue\s+blocked\s+16\s+2$`, lines[8])
	require.Regexp(t, `^0\s+idle\s+running\s+-\s+0$`, lines[4])
}

func TestPanelRender(t *testing.T) {
	h := newBoard(&bytes.Buffer{})
	s, err := NewSystem(h, Config{Profile: config.Default(), Logger: quietLogger()})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Advance(1))

	require.NoError(t, s.Render())
	buf := h.Display().Framebuffer().Buffer()
	head := rgb565From888(colorHeadBG.R, colorHeadBG.G, colorHeadBG.B)
	require.Equal(t, []byte{byte(head), byte(head >> 8)}, buf[:2])
}

func TestFaultProfile(t *testing.T) {
	var out bytes.Buffer
	h := newBoard(&out)
	prof, err := config.Load(filepath.Join("..", "boards", "crash.hcl"))
	require.NoError(t, err)

	var logs bytes.Buffer
	s, err := NewSystem(h, Config{Profile: prof, Logger: slog.New(slog.NewJSONHandler(&logs, nil))})
	require.NoError(t, err)
	defer s.Close()

	err = s.Advance(10)
	var fe *kernel.FaultError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, armv7m.BusFault, fe.Kind)
	require.Equal(t, kernel.TaskID(3), fe.Task)
	require.Equal(t, uint32(5), fe.Tick)
	require.Equal(t, uint32(config.FaultAddr), fe.Fault.Addr)

	require.True(t, pinLevel(t, h, hal.PinLEDOrange), "fault LED latched")
	require.Contains(t, out.String(), "tickos fault: BusFault\ntask: 3 (crash)\ntick: 5\n")
	require.Contains(t, logs.String(), `"msg":"kernel fault"`)

	require.NoError(t, s.Render())
	buf := h.Display().Framebuffer().Buffer()
	require.Equal(t, []byte{0xFF, 0xFF}, buf[len(buf)-2:], "fault screen background")

	require.ErrorIs(t, s.Advance(1), fe)
}

func TestNewSystemRejects(t *testing.T) {
	h := newBoard(&bytes.Buffer{})

	prof := config.Default()
	prof.Tasks[0].Pin = "PA5"
	_, err := NewSystem(h, Config{Profile: prof, Logger: quietLogger()})
	require.ErrorContains(t, err, "no pin PA5")

	prof = config.Default()
	prof.Board.FaultPin = "PB0"
	_, err = NewSystem(h, Config{Profile: prof, Logger: quietLogger()})
	require.ErrorContains(t, err, "fault pin")

	prof = config.Default()
	prof.Tasks = nil
	_, err = NewSystem(h, Config{Profile: prof, Logger: quietLogger()})
	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestRunStopsAtTickLimit(t *testing.T) {
	var out bytes.Buffer
	var logs bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := hal.RunHeadless(ctx, func(h hal.HAL) func() error {
		return New(h, Config{
			Profile:  config.Default(),
			Logger:   slog.New(slog.NewTextHandler(&logs, nil)),
			MaxTicks: 4,
		})
	}, hal.HeadlessConfig{Hz: 500, Output: &out})
	require.NoError(t, err)
	require.Contains(t, logs.String(), "tick limit reached")
}

func TestRunReportsFault(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	prof := config.Default()
	prof.Tasks = append(prof.Tasks, config.Task{Name: "crash", Kind: config.KindFault, Delay: 2})

	err := hal.RunHeadless(ctx, func(h hal.HAL) func() error {
		return New(h, Config{Profile: prof, Logger: quietLogger()})
	}, hal.HeadlessConfig{Hz: 500, Output: &bytes.Buffer{}})

	var fe *kernel.FaultError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, kernel.TaskID(5), fe.Task)
}

func TestFaultLines(t *testing.T) {
	fe := &kernel.FaultError{
		Kind:  armv7m.HardFault,
		Task:  1,
		Tick:  7,
		Panic: "boom",
		Stack: []byte("goroutine 1\n\nmain.go:1\n"),
		Err:   errors.New("kernel: task routine panicked: boom"),
	}
	require.Equal(t, []string{
		"tickos fault: HardFault",
		"task: 1 (green)",
		"tick: 7",
		"error: kernel: task routine panicked: boom",
		"panic: boom",
		"stack:",
		"goroutine 1",
		"main.go:1",
	}, faultLines(fe, []string{"idle", "green"}))

	for kind, want := range map[armv7m.FaultKind]string{
		armv7m.MemManage:  "tickos fault: MemManage",
		armv7m.BusFault:   "tickos fault: BusFault",
		armv7m.UsageFault: "tickos fault: UsageFault",
	} {
		fe := &kernel.FaultError{Kind: kind, Err: errors.New("x")}
		require.Equal(t, want, faultLines(fe, nil)[0])
	}
}

func TestLineWriter(t *testing.T) {
	var out bytes.Buffer
	w := lineWriter{l: hal.NewHost(hal.HostConfig{Output: &out}).Logger()}
	n, err := w.Write([]byte("level=INFO msg=hi\n"))
	require.NoError(t, err)
	require.Equal(t, 18, n)
	require.Equal(t, "level=INFO msg=hi\n", out.String())
	require.False(t, strings.Contains(out.String(), "\n\n"))
}
