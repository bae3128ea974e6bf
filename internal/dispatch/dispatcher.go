// Package dispatch turns inbound phone commands into ordered clipboard and
// keystroke steps and the frames that answer them.
package dispatch

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vonxq/voice-to-cursor/internal/automation"
	apperrors "github.com/vonxq/voice-to-cursor/internal/errors"
	"github.com/vonxq/voice-to-cursor/internal/livesync"
	"github.com/vonxq/voice-to-cursor/internal/protocol"
	"github.com/vonxq/voice-to-cursor/internal/session"
	"github.com/vonxq/voice-to-cursor/internal/workspace"
)

// Variant selects which desktop flavour is running.
type Variant string

const (
	// VariantStandalone works with any focused application and can read the
	// current terminal line.
	VariantStandalone Variant = "standalone"
	// VariantIntegrated runs alongside an editor and live-syncs into its
	// chat box.
	VariantIntegrated Variant = "integrated"
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	return v == VariantStandalone || v == VariantIntegrated
}

// Timing holds the fixed waits between dependent steps.
type Timing struct {
	ClipboardSettle time.Duration // clipboard write to read-back
	SelectAllSettle time.Duration // select-all to paste
	SubmitSettle    time.Duration // paste to commit key
	ReplaceLineGap  time.Duration // clear-line to paste
	CopyLineSettle  time.Duration // copy-line to clipboard read
}

// DefaultTiming returns the production delays.
func DefaultTiming() Timing {
	return Timing{
		ClipboardSettle: 100 * time.Millisecond,
		SelectAllSettle: livesync.DefaultSelectAllSettle,
		SubmitSettle:    50 * time.Millisecond,
		ReplaceLineGap:  50 * time.Millisecond,
		CopyLineSettle:  100 * time.Millisecond,
	}
}

// Options configures a Dispatcher.
type Options struct {
	Variant Variant
	Wrapper PromptWrapper
	Timing  Timing
	// LiveSync mirrors stage edits into the surface as they arrive. When off,
	// staged content only reaches the surface on paste_only or submit.
	LiveSync bool
}

// Dispatcher maps each command to its step sequence. Commands for one
// connection arrive in order from that connection's read loop; the surface
// lock keeps sequences from different sources apart.
type Dispatcher struct {
	surface   automation.Surface
	surfaceMu *sync.Mutex
	engine    *livesync.Engine
	registry  *session.Registry
	images    *workspace.ImageStore
	inbox     *workspace.Inbox

	variant  Variant
	wrapper  PromptWrapper
	timing   Timing
	liveSync bool

	now func() time.Time
}

// New creates a dispatcher. surfaceMu must be shared with engine.
func New(surface automation.Surface, surfaceMu *sync.Mutex, engine *livesync.Engine, registry *session.Registry, images *workspace.ImageStore, inbox *workspace.Inbox, opts Options) *Dispatcher {
	if opts.Wrapper == nil {
		opts.Wrapper = SummaryWrapper{}
	}
	if !opts.Variant.Valid() {
		opts.Variant = VariantIntegrated
	}
	return &Dispatcher{
		surface:   surface,
		surfaceMu: surfaceMu,
		engine:    engine,
		registry:  registry,
		images:    images,
		inbox:     inbox,
		variant:   opts.Variant,
		wrapper:   opts.Wrapper,
		timing:    opts.Timing,
		liveSync:  opts.LiveSync,
		now:       time.Now,
	}
}

// Variant returns the configured variant.
func (d *Dispatcher) Variant() Variant { return d.variant }

// Handle runs one command for sess and returns the frames to send back to
// the originating connection. Errors never escape; they become error frames.
func (d *Dispatcher) Handle(ctx context.Context, sess *session.Session, msg protocol.Message) []protocol.Frame {
	if session.IsMutating(msg.Type) {
		if ok, owner := d.registry.Claim(sess.ID); !ok {
			log.Printf("dispatch: %s from %s refused, surface owned by %s", msg.Type, sess.ID, owner)
			return []protocol.Frame{errorFrame(apperrors.SessionClaimed(owner))}
		}
	}

	switch msg.Type {
	case protocol.TypeSyncText:
		return d.syncText(sess, msg)
	case protocol.TypeSyncImageAdd:
		return d.syncImageAdd(sess, msg)
	case protocol.TypeSyncImageRemove:
		return d.syncImageRemove(sess, msg)
	case protocol.TypePasteOnly:
		return d.pasteStaged(ctx, sess, msg, false)
	case protocol.TypeSubmit:
		return d.pasteStaged(ctx, sess, msg, true)
	case protocol.TypeGetClipboard:
		return d.getClipboard(ctx)
	case protocol.TypeGetCurrentLine:
		return d.getCurrentLine(ctx)
	case protocol.TypeReplaceLine:
		return d.replaceLine(ctx, sess)
	case protocol.TypeText, protocol.TypeImage:
		return d.legacyInsert(ctx, msg)
	default:
		log.Printf("dispatch: unknown message type %q from %s", msg.Type, sess.ID)
		return []protocol.Frame{errorFrame(apperrors.UnknownType(string(msg.Type)))}
	}
}

func (d *Dispatcher) syncText(sess *session.Session, msg protocol.Message) []protocol.Frame {
	sess.Stage.ApplyText(msg.Content)
	log.Printf("dispatch: sync_text %s: %s", sess.ID, protocol.Preview(msg.Content, 50))
	d.schedule(sess)
	return []protocol.Frame{protocol.NewAck(protocol.TypeSyncText)}
}

func (d *Dispatcher) syncImageAdd(sess *session.Session, msg protocol.Message) []protocol.Frame {
	if msg.ID == "" {
		return []protocol.Frame{errorFrame(apperrors.InvalidMessage("sync_image_add requires an id"))}
	}
	ref, err := d.images.Save(msg.ID, msg.Base64, msg.MimeType)
	if err != nil {
		log.Printf("dispatch: image %s not saved: %v", msg.ID, err)
		return []protocol.Frame{errorFrame(err)}
	}
	sess.Stage.AddImage(msg.ID, ref)
	log.Printf("dispatch: image %s staged at %s", msg.ID, ref)
	d.schedule(sess)
	return []protocol.Frame{protocol.NewAckWithID(protocol.TypeSyncImageAdd, msg.ID)}
}

func (d *Dispatcher) syncImageRemove(sess *session.Session, msg protocol.Message) []protocol.Frame {
	if ref, ok := sess.Stage.RemoveImage(msg.ID); ok {
		if err := d.images.Remove(ref); err != nil {
			log.Printf("dispatch: image %s not deleted: %v", msg.ID, err)
		}
		d.schedule(sess)
	}
	return []protocol.Frame{protocol.NewAckWithID(protocol.TypeSyncImageRemove, msg.ID)}
}

func (d *Dispatcher) schedule(sess *session.Session) {
	if d.liveSync && d.engine != nil {
		d.engine.Schedule(sess)
	}
}

// pasteStaged implements paste_only and, with commit set, submit.
func (d *Dispatcher) pasteStaged(ctx context.Context, sess *session.Session, msg protocol.Message, commit bool) []protocol.Frame {
	if d.engine != nil {
		d.engine.Cancel(sess.ID)
	}

	d.surfaceMu.Lock()
	defer d.surfaceMu.Unlock()

	snap := sess.Stage.Snapshot()
	text := d.wrapper.Wrap(snap.Text, msg.NeedAIReply)
	render := livesync.Render(text, snap.Images)
	log.Printf("dispatch: %s %s (needAiReply=%v): %s", msg.Type, sess.ID, msg.NeedAIReply, protocol.Preview(render, 50))

	confirmed := true
	pasted := false
	writeOK := true
	if render != "" {
		if err := automation.WriteVerified(ctx, d.surface, render, d.timing.ClipboardSettle); err != nil {
			log.Printf("dispatch: %s clipboard: %v", msg.Type, err)
			confirmed = false
			writeOK = !apperrors.IsCode(err, apperrors.CodeAutomationStepFailed)
		}
	}

	// Once something has been applied, the clipboard holds an old render and
	// an empty stage must not paste it again.
	stale := render == "" && !snap.FirstSync
	if stale {
		log.Printf("dispatch: %s %s: stage cleared after sync, skipping paste", msg.Type, sess.ID)
	}

	if writeOK && !stale {
		// Content already live-synced into the surface is replaced, not
		// pasted a second time.
		var err error
		if !snap.FirstSync {
			err = d.replaceAll(ctx)
		} else {
			err = d.surface.Paste(ctx)
		}
		if err != nil {
			log.Printf("dispatch: %s paste: %v", msg.Type, err)
			confirmed = false
		} else {
			pasted = true
		}
	}

	if commit {
		if err := automation.Sleep(ctx, d.timing.SubmitSettle); err != nil {
			confirmed = false
		} else if err := d.surface.Submit(ctx); err != nil {
			log.Printf("dispatch: submit key: %v", err)
			confirmed = false
		}
		sess.Stage.Reset()
	} else if pasted && render != "" {
		sess.Stage.MarkSynced()
	}

	ack := protocol.NewAck(msg.Type)
	if !confirmed {
		ack = ack.Unconfirmed()
	}
	return []protocol.Frame{ack}
}

func (d *Dispatcher) replaceAll(ctx context.Context) error {
	if err := d.surface.SelectAll(ctx); err != nil {
		return err
	}
	if err := automation.Sleep(ctx, d.timing.SelectAllSettle); err != nil {
		return err
	}
	return d.surface.Paste(ctx)
}

func (d *Dispatcher) getClipboard(ctx context.Context) []protocol.Frame {
	d.surfaceMu.Lock()
	defer d.surfaceMu.Unlock()

	content, err := d.surface.ReadClipboard(ctx)
	if err != nil {
		log.Printf("dispatch: clipboard read: %v", err)
		content = ""
	}
	log.Printf("dispatch: clipboard -> %s", protocol.Preview(content, 50))
	return []protocol.Frame{protocol.NewClipboardContent(content)}
}

func (d *Dispatcher) getCurrentLine(ctx context.Context) []protocol.Frame {
	if d.variant != VariantStandalone {
		return []protocol.Frame{errorFrame(apperrors.CommandUnsupported(string(protocol.TypeGetCurrentLine), string(d.variant)))}
	}

	d.surfaceMu.Lock()
	defer d.surfaceMu.Unlock()

	var content string
	if err := d.surface.CopyLine(ctx); err != nil {
		log.Printf("dispatch: copy line: %v", err)
	} else if err := automation.Sleep(ctx, d.timing.CopyLineSettle); err == nil {
		line, err := d.surface.ReadClipboard(ctx)
		if err != nil {
			log.Printf("dispatch: clipboard read: %v", err)
		}
		content = strings.TrimSpace(line)
	}
	log.Printf("dispatch: current line -> %s", protocol.Preview(content, 50))
	return []protocol.Frame{protocol.NewCurrentLineContent(content)}
}

// replaceLine clears the focused line and pastes whatever the clipboard holds.
func (d *Dispatcher) replaceLine(ctx context.Context, sess *session.Session) []protocol.Frame {
	if d.engine != nil {
		d.engine.Cancel(sess.ID)
	}

	d.surfaceMu.Lock()
	defer d.surfaceMu.Unlock()

	ack := protocol.NewAck(protocol.TypeReplaceLine)
	if err := d.surface.ClearLine(ctx); err != nil {
		log.Printf("dispatch: clear line: %v", err)
		return []protocol.Frame{ack.Unconfirmed()}
	}
	if err := automation.Sleep(ctx, d.timing.ReplaceLineGap); err != nil {
		return []protocol.Frame{ack.Unconfirmed()}
	}
	if err := d.surface.Paste(ctx); err != nil {
		log.Printf("dispatch: replace line paste: %v", err)
		return []protocol.Frame{ack.Unconfirmed()}
	}
	return []protocol.Frame{ack}
}

// legacyInsert handles the one-shot text and image frames. It tries an editor
// insert, then clipboard plus paste, then the inbox file.
func (d *Dispatcher) legacyInsert(ctx context.Context, msg protocol.Message) []protocol.Frame {
	content := msg.Content
	if msg.Type == protocol.TypeImage {
		id := strconv.FormatInt(d.now().UnixMilli(), 10)
		ref, err := d.images.Save(id, msg.Base64, msg.MimeType)
		if err != nil {
			log.Printf("dispatch: legacy image not saved: %v", err)
			return []protocol.Frame{errorFrame(err)}
		}
		content = livesync.ImageMarkdown(ref)
	}

	d.surfaceMu.Lock()
	defer d.surfaceMu.Unlock()

	ack := protocol.NewAck(msg.Type)

	if sp, ok := d.surface.(automation.StructuredPaster); ok {
		err := sp.InsertText(ctx, content)
		if err == nil {
			return []protocol.Frame{ack}
		}
		log.Printf("dispatch: editor insert failed, falling back to paste: %v", err)
	}

	err := d.surface.WriteClipboard(ctx, content)
	if err == nil {
		err = d.surface.Paste(ctx)
	}
	if err == nil {
		return []protocol.Frame{ack}
	}
	log.Printf("dispatch: paste failed, falling back to inbox: %v", err)

	if err := d.inbox.Append(content); err != nil {
		log.Printf("dispatch: inbox append failed: %v", err)
		return []protocol.Frame{errorFrame(err)}
	}
	log.Printf("dispatch: content written to %s", workspace.InboxFile)
	return []protocol.Frame{ack}
}

func errorFrame(err error) protocol.Error {
	code, message := apperrors.ToCodeAndMessage(err)
	return protocol.NewError(code, message)
}
