package app

import (
	"fmt"
	"sync"

	"tickos/hal"
	"tickos/internal/buildinfo"
	"tickos/kernel"
)

// panelRow mirrors one task table record.
type panelRow struct {
	name  string
	state kernel.State
	wake  uint32
	runs  int
}

// Panel keeps a copy of the scheduler state, fed by kernel events, and draws
// it onto a framebuffer. Events and Render may come from different
// goroutines.
type Panel struct {
	kernel.NopObserver

	mu      sync.Mutex
	board   string
	gpio    hal.GPIO
	rows    []panelRow
	tick    uint32
	current kernel.TaskID
	fault   *kernel.FaultError
}

// NewPanel returns a panel for the named tasks; names[0] is idle.
func NewPanel(board string, g hal.GPIO, names []string) *Panel {
	p := &Panel{board: board, gpio: g, current: 1}
	for _, n := range names {
		p.rows = append(p.rows, panelRow{name: n, state: kernel.Running})
	}
	if len(p.rows) == 1 {
		p.current = kernel.IdleTask
	}
	return p
}

func (p *Panel) OnTick(tick uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tick = tick
}

func (p *Panel) OnWake(id kernel.TaskID, _ uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[id].state = kernel.Running
}

func (p *Panel) OnBlock(id kernel.TaskID, wake uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[id].state = kernel.Blocked
	p.rows[id].wake = wake
	p.rows[id].runs++
}

func (p *Panel) OnSwitch(_, to kernel.TaskID, _ uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = to
}

func (p *Panel) OnFault(err *kernel.FaultError) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fault = err
}

// Lines returns the panel's text, one entry per line.
func (p *Panel) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	lines := []string{
		fmt.Sprintf("tickos %s  %s", buildinfo.Short(), p.board),
		fmt.Sprintf("tick %d  running %s", p.tick, p.rows[p.current].name),
		"",
		fmt.Sprintf("%-2s %-8s %-7s %6s %5s", "ID", "NAME", "STATE", "WAKE", "RUNS"),
	}
	for id, r := range p.rows {
		wake := "-"
		if r.state == kernel.Blocked {
			wake = fmt.Sprint(r.wake)
		}
		lines = append(lines, fmt.Sprintf("%-2d %-8s %-7s %6s %5d", id, r.name, r.state, wake, r.runs))
	}
	return lines
}

// Render draws the panel, or the fault screen once the kernel has faulted,
// and presents the framebuffer.
func (p *Panel) Render(fb hal.Framebuffer) error {
	if fb == nil || fb.Buffer() == nil {
		return nil
	}
	p.mu.Lock()
	fault, current := p.fault, p.current
	p.mu.Unlock()

	d := newFBDisplay(fb)
	if fault != nil {
		drawFaultScreen(d, fault)
		return d.Display()
	}

	w, _ := d.Size()
	_ = d.FillRectangle(0, 0, w, int16(fb.Height()), colorBG)
	_ = d.FillRectangle(0, 0, w, 2*lineHeight+2, colorHeadBG)

	y := int16(1)
	for i, line := range p.Lines() {
		c := colorFG
		switch {
		case i == 3:
			c = colorDim
		case i > 3 && kernel.TaskID(i-4) == current:
			c = colorCurrent
		}
		d.text(2, y, line, c)
		y += lineHeight
	}

	y += lineHeight
	x := int16(2)
	for i, name := range hal.LEDPins {
		c := colorLEDOff
		if pin := hal.Lookup(p.gpio, name); pin != nil {
			if on, err := pin.Read(); err == nil && on {
				c = colorLEDs[i]
			}
		}
		_ = d.FillRectangle(x, y, 3*lineHeight, 2*lineHeight, c)
		d.text(x, y+2*lineHeight+2, name, colorDim)
		x += 4 * lineHeight
	}
	return d.Display()
}
