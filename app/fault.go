package app

import (
	"fmt"
	"strings"

	"tickos/hal"
	"tickos/kernel"
)

// faultLines describes a terminal fault for the log and the fault screen.
func faultLines(fe *kernel.FaultError, names []string) []string {
	task := fmt.Sprintf("%d", fe.Task)
	if int(fe.Task) < len(names) {
		task = fmt.Sprintf("%d (%s)", fe.Task, names[fe.Task])
	}
	lines := []string{
		"tickos fault: " + fe.Kind.Exception().String(),
		"task: " + task,
		fmt.Sprintf("tick: %d", fe.Tick),
		"error: " + fe.Err.Error(),
	}
	if f := fe.Fault; f != nil {
		lines = append(lines,
			fmt.Sprintf("addr: 0x%08x", f.Addr),
			fmt.Sprintf("cfsr: 0x%08x hfsr: 0x%08x", f.CFSR, f.HFSR),
		)
	}
	if fe.Panic != nil {
		lines = append(lines, fmt.Sprintf("panic: %v", fe.Panic))
	}
	if len(fe.Stack) > 0 {
		lines = append(lines, "stack:")
		for _, line := range strings.Split(string(fe.Stack), "\n") {
			if line == "" {
				continue
			}
			lines = append(lines, line)
		}
	}
	return lines
}

// writeFault sends the fault report to the board's log line by line.
func writeFault(l hal.Logger, fe *kernel.FaultError, names []string) {
	if l == nil {
		return
	}
	for _, line := range faultLines(fe, names) {
		l.WriteLineString(line)
	}
}

// latchFaultLED drives pin high and leaves it there.
func latchFaultLED(pin hal.GPIOPin) {
	if pin != nil {
		_ = pin.Write(true)
	}
}

func drawFaultScreen(d *fbDisplay, fe *kernel.FaultError) {
	w, h := d.Size()
	_ = d.FillRectangle(0, 0, w, h, colorFaultBG)

	cols := d.columns()
	y := int16(0)
	for _, line := range faultLines(fe, nil) {
		for len(line) > 0 {
			if y+lineHeight > h {
				return
			}
			chunk, rest := takeRunes(line, cols)
			d.text(0, y, chunk, colorFaultFG)
			y += lineHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
}

