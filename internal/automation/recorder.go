package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vonxq/voice-to-cursor/internal/protocol"
)

// Step names recorded by Recorder.
const (
	StepWriteClipboard = "write_clipboard"
	StepReadClipboard  = "read_clipboard"
	StepPaste          = "paste"
	StepSelectAll      = "select_all"
	StepSubmit         = "submit"
	StepClearLine      = "clear_line"
	StepCopyLine       = "copy_line"
)

// Step is one recorded call. Arg holds the text for clipboard writes.
type Step struct {
	Name string
	Arg  string
}

func (s Step) String() string {
	if s.Arg == "" {
		return s.Name
	}
	return fmt.Sprintf("%s(%q)", s.Name, s.Arg)
}

// Recorder is an in-memory Surface. It keeps its own clipboard, records every
// step, and can be told to fail specific steps. It backs --dry-run and tests.
type Recorder struct {
	mu        sync.Mutex
	clipboard string
	// line is what CopyLine puts on the clipboard.
	line  string
	steps []Step
	fail  map[string]error
	// readOverride, when set, is returned by ReadClipboard instead of the
	// stored clipboard.
	readOverride *string
	logf         func(format string, args ...any)
}

var _ Surface = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{fail: make(map[string]error)}
}

// WithLogger makes the recorder print each step.
func (r *Recorder) WithLogger(logf func(format string, args ...any)) *Recorder {
	r.logf = logf
	return r
}

// FailOn makes the named step return err until cleared with a nil err.
func (r *Recorder) FailOn(step string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, step)
		return
	}
	r.fail[step] = err
}

// SetClipboard sets the clipboard without recording a step.
func (r *Recorder) SetClipboard(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clipboard = text
}

// SetLine sets the text CopyLine will copy.
func (r *Recorder) SetLine(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.line = text
}

// CorruptReadBack makes every ReadClipboard return text.
func (r *Recorder) CorruptReadBack(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readOverride = &text
}

// Clipboard returns the current clipboard.
func (r *Recorder) Clipboard() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clipboard
}

// Steps returns a copy of the recorded steps.
func (r *Recorder) Steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Names returns the recorded step names in order.
func (r *Recorder) Names() []string {
	steps := r.Steps()
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name
	}
	return out
}

// Count returns how many times the named step ran.
func (r *Recorder) Count(name string) int {
	n := 0
	for _, s := range r.Steps() {
		if s.Name == name {
			n++
		}
	}
	return n
}

// Reset forgets recorded steps.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = nil
}

func (r *Recorder) record(name, arg string) error {
	r.mu.Lock()
	r.steps = append(r.steps, Step{Name: name, Arg: arg})
	err := r.fail[name]
	logf := r.logf
	r.mu.Unlock()

	if logf != nil {
		logf("automation: %s", Step{Name: name, Arg: protocol.Preview(arg, 50)})
	}
	return err
}

func (r *Recorder) WriteClipboard(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.record(StepWriteClipboard, text); err != nil {
		return err
	}
	r.SetClipboard(text)
	return nil
}

func (r *Recorder) ReadClipboard(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := r.record(StepReadClipboard, ""); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readOverride != nil {
		return *r.readOverride, nil
	}
	return r.clipboard, nil
}

func (r *Recorder) Paste(ctx context.Context) error     { return r.simple(ctx, StepPaste) }
func (r *Recorder) SelectAll(ctx context.Context) error { return r.simple(ctx, StepSelectAll) }
func (r *Recorder) Submit(ctx context.Context) error    { return r.simple(ctx, StepSubmit) }
func (r *Recorder) ClearLine(ctx context.Context) error { return r.simple(ctx, StepClearLine) }

func (r *Recorder) CopyLine(ctx context.Context) error {
	if err := r.simple(ctx, StepCopyLine); err != nil {
		return err
	}
	r.mu.Lock()
	r.clipboard = r.line
	r.mu.Unlock()
	return nil
}

func (r *Recorder) simple(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.record(name, "")
}

// ErrInjected is a convenience failure for FailOn.
var ErrInjected = errors.New("injected failure")

