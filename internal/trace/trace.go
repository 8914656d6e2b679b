// Package trace records kernel events and writes them out as YAML.
package trace

import (
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"tickos/kernel"
)

// Kind names an event.
type Kind string

const (
	Tick   Kind = "tick"
	Wake   Kind = "wake"
	Block  Kind = "block"
	Switch Kind = "switch"
	Fault  Kind = "fault"
)

// Event is one recorded kernel event. Fields not meaningful for a kind are
// left zero and omitted from the YAML form.
type Event struct {
	Seq  int            `yaml:"seq"`
	Kind Kind           `yaml:"kind"`
	Tick uint32         `yaml:"tick"`
	Task *kernel.TaskID `yaml:"task,omitempty"`
	From *kernel.TaskID `yaml:"from,omitempty"`
	To   *kernel.TaskID `yaml:"to,omitempty"`
	Wake *uint32        `yaml:"wake,omitempty"`
	Err  string         `yaml:"error,omitempty"`
}

func (e Event) String() string {
	switch e.Kind {
	case Switch:
		return fmt.Sprintf("%d:%d->%d", e.Tick, *e.From, *e.To)
	case Block:
		return fmt.Sprintf("%d:block %d until %d", e.Tick, *e.Task, *e.Wake)
	case Wake:
		return fmt.Sprintf("%d:wake %d", e.Tick, *e.Task)
	case Fault:
		return fmt.Sprintf("%d:fault %s", e.Tick, e.Err)
	default:
		return fmt.Sprintf("%d:%s", e.Tick, e.Kind)
	}
}

// Recorder is a kernel.Observer keeping the most recent events. It is safe
// to read while the kernel runs.
type Recorder struct {
	mu     sync.Mutex
	names  []string
	limit  int
	seq    int
	tick   uint32
	ticks  bool
	events []Event
}

type Option func(*Recorder)

// WithLimit keeps only the last n events. Zero keeps everything.
func WithLimit(n int) Option { return func(r *Recorder) { r.limit = n } }

// WithTicks records a tick event for every SysTick. Off by default: ticks
// are implied by the other events.
func WithTicks() Option { return func(r *Recorder) { r.ticks = true } }

// WithNames labels task ids in the YAML output. names[0] is the idle task.
func WithNames(names ...string) Option { return func(r *Recorder) { r.names = names } }

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	e.Seq = r.seq
	r.events = append(r.events, e)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append(r.events[:0], r.events[len(r.events)-r.limit:]...)
	}
}

func (r *Recorder) now() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tick
}

func (r *Recorder) OnTick(tick uint32) {
	r.mu.Lock()
	r.tick = tick
	record := r.ticks
	r.mu.Unlock()
	if record {
		r.add(Event{Kind: Tick, Tick: tick})
	}
}

func (r *Recorder) OnWake(id kernel.TaskID, tick uint32) {
	r.add(Event{Kind: Wake, Tick: tick, Task: &id})
}

func (r *Recorder) OnBlock(id kernel.TaskID, wake uint32) {
	r.add(Event{Kind: Block, Tick: r.now(), Task: &id, Wake: &wake})
}

func (r *Recorder) OnSwitch(from, to kernel.TaskID, tick uint32) {
	r.add(Event{Kind: Switch, Tick: tick, From: &from, To: &to})
}

func (r *Recorder) OnFault(err *kernel.FaultError) {
	task := err.Task
	r.add(Event{Kind: Fault, Tick: err.Tick, Task: &task, Err: err.Error()})
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Switches returns the context switches as "tick:from->to" strings.
func (r *Recorder) Switches() []string {
	var out []string
	for _, e := range r.Events() {
		if e.Kind == Switch {
			out = append(out, e.String())
		}
	}
	return out
}

type document struct {
	Tasks  []taskName `yaml:"tasks,omitempty"`
	Events []Event    `yaml:"events"`
}

type taskName struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

// WriteYAML writes the task names and recorded events as one YAML document.
func (r *Recorder) WriteYAML(w io.Writer) error {
	doc := document{Events: r.Events()}
	for i, n := range r.names {
		doc.Tasks = append(doc.Tasks, taskName{ID: i, Name: n})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	return enc.Close()
}

// ReadYAML decodes a document written by WriteYAML.
func ReadYAML(rd io.Reader) ([]Event, error) {
	var doc document
	if err := yaml.NewDecoder(rd).Decode(&doc); err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	return doc.Events, nil
}
