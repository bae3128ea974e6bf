package livesync

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/vonxq/voice-to-cursor/internal/automation"
	"github.com/vonxq/voice-to-cursor/internal/protocol"
	"github.com/vonxq/voice-to-cursor/internal/session"
)

// Default delays.
const (
	DefaultDebounce        = 50 * time.Millisecond
	DefaultSelectAllSettle = 30 * time.Millisecond
)

// Timing holds the fixed waits the engine uses.
type Timing struct {
	// Debounce is how long the stage must be quiet before an apply.
	Debounce time.Duration
	// SelectAllSettle separates select-all from the replacing paste.
	SelectAllSettle time.Duration
}

// DefaultTiming returns the production delays.
func DefaultTiming() Timing {
	return Timing{
		Debounce:        DefaultDebounce,
		SelectAllSettle: DefaultSelectAllSettle,
	}
}

// Mode says which paste path an apply took.
type Mode string

const (
	ModeFresh   Mode = "fresh"
	ModeReplace Mode = "replace"
)

// Result describes one apply attempt.
type Result struct {
	SessionID string
	Render    string
	Mode      Mode
	Err       error
}

// pending is a debounce timer for one session.
type pending struct {
	timer *time.Timer
	gen   uint64
}

// Engine debounces stage mutations per session and applies the latest render
// when a session goes quiet.
type Engine struct {
	surface automation.Surface
	// surfaceMu is shared with the dispatcher so keystroke sequences from
	// different callers never interleave.
	surfaceMu *sync.Mutex
	timing    Timing

	mu      sync.Mutex
	pending map[string]*pending
	gen     uint64
	closed  bool

	// onApply observes every apply attempt. Used by tests and the status page.
	onApply func(Result)
}

// NewEngine creates an engine. surfaceMu must be the same lock the dispatcher
// holds while driving the surface.
func NewEngine(surface automation.Surface, surfaceMu *sync.Mutex, timing Timing) *Engine {
	if surfaceMu == nil {
		surfaceMu = &sync.Mutex{}
	}
	return &Engine{
		surface:   surface,
		surfaceMu: surfaceMu,
		timing:    timing,
		pending:   make(map[string]*pending),
	}
}

// OnApply registers an observer for apply results. It replaces any earlier one.
func (e *Engine) OnApply(fn func(Result)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onApply = fn
}

// Schedule restarts the debounce timer for sess. A pending apply for the same
// session is superseded and never runs.
func (e *Engine) Schedule(sess *session.Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	if p, ok := e.pending[sess.ID]; ok {
		p.timer.Stop()
	}
	e.gen++
	gen := e.gen
	p := &pending{gen: gen}
	p.timer = time.AfterFunc(e.timing.Debounce, func() {
		e.fire(sess, gen)
	})
	e.pending[sess.ID] = p
}

// Cancel drops any pending apply for the session. It reports whether one
// was pending.
func (e *Engine) Cancel(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pending[sessionID]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(e.pending, sessionID)
	return true
}

// Pending reports whether an apply is waiting for the session.
func (e *Engine) Pending(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[sessionID]
	return ok
}

// Close stops all timers. Later Schedule calls are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for id, p := range e.pending {
		p.timer.Stop()
		delete(e.pending, id)
	}
}

func (e *Engine) fire(sess *session.Session, gen uint64) {
	// The pending entry is only consumed under the surface lock, so a Cancel
	// that lands while this timer waits for the lock still wins.
	e.surfaceMu.Lock()
	e.mu.Lock()
	p, ok := e.pending[sess.ID]
	if !ok || p.gen != gen || e.closed {
		// Superseded or cancelled after the timer had already fired.
		e.mu.Unlock()
		e.surfaceMu.Unlock()
		return
	}
	delete(e.pending, sess.ID)
	onApply := e.onApply
	e.mu.Unlock()

	res, applied := e.apply(context.Background(), sess)
	e.surfaceMu.Unlock()

	if applied && onApply != nil {
		onApply(res)
	}
}

// apply writes the current render and pastes it. It returns false when the
// stage was empty and nothing was attempted. The caller holds surfaceMu.
func (e *Engine) apply(ctx context.Context, sess *session.Session) (Result, bool) {
	snap := sess.Stage.Snapshot()
	if snap.Empty() {
		return Result{}, false
	}

	res := Result{SessionID: sess.ID, Render: Render(snap.Text, snap.Images)}
	if snap.FirstSync {
		res.Mode = ModeFresh
	} else {
		res.Mode = ModeReplace
	}

	res.Err = e.paste(ctx, res.Render, res.Mode)
	if res.Err != nil {
		log.Printf("livesync: apply for %s failed: %v", sess.ID, res.Err)
		return res, true
	}

	sess.Stage.MarkSynced()
	log.Printf("livesync: applied %s (%s): %s", sess.ID, res.Mode, protocol.Preview(res.Render, 50))
	return res, true
}

func (e *Engine) paste(ctx context.Context, render string, mode Mode) error {
	if err := e.surface.WriteClipboard(ctx, render); err != nil {
		return err
	}
	if mode == ModeReplace {
		if err := e.surface.SelectAll(ctx); err != nil {
			return err
		}
		if err := automation.Sleep(ctx, e.timing.SelectAllSettle); err != nil {
			return err
		}
	}
	return e.surface.Paste(ctx)
}

