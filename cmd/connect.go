package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vonxq/voice-to-cursor/internal/client"
	"github.com/vonxq/voice-to-cursor/internal/config"
	"github.com/vonxq/voice-to-cursor/internal/mdns"
	"github.com/vonxq/voice-to-cursor/internal/protocol"
	"github.com/vonxq/voice-to-cursor/internal/storage"
)

const connectHelp = `Type text to replace the draft. Commands:
  /paste           paste the draft without submitting
  /submit          paste, submit, and ask for a reply
  /send            paste and submit without asking for a reply
  /clip            append the desktop clipboard to the draft
  /line            load the focused line into the draft (standalone)
  /replace         replace the focused line with the desktop clipboard
  /image <path>    attach an image
  /rm <id>         remove an attached image
  /legacy <text>   one-shot insert without staging
  /draft           show the draft
  /chat            show the conversation
  /reconnect       reconnect to the last agent
  /help            show this help
  /quit            exit
`

// connectOptions configures a terminal phone session.
type connectOptions struct {
	URL             string
	StateDB         string
	Discover        bool
	DiscoverTimeout time.Duration
}

// runConnect implements "voice-to-cursor connect": a terminal stand-in for
// the phone app.
func runConnect(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts connectOptions
	fs.StringVar(&opts.StateDB, "state-db", "", "Where the last URL is remembered (default: ~/.voice-to-cursor/state.db)")
	fs.BoolVar(&opts.Discover, "discover", false, "Find an agent on the LAN via mDNS when no URL is known")
	fs.DurationVar(&opts.DiscoverTimeout, "discover-timeout", 3*time.Second, "How long to browse for agents")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: voice-to-cursor connect [ws://host:port/ws] [options]

Act as the phone: compose a draft in the terminal and push it to the agent.
Without a URL the last successful one is used.

%s
Options:
`, connectHelp)
		fs.PrintDefaults()
	}

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if len(positional) > 1 {
		fmt.Fprintf(stderr, "Error: expected at most one URL, got %d arguments\n", len(positional))
		return 1
	}
	if len(positional) == 1 {
		opts.URL = positional[0]
	}

	if opts.StateDB == "" {
		cfg, err := config.Load("")
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		cfg.ApplyDefaults()
		opts.StateDB = cfg.StateDB
	}

	return connectSession(context.Background(), opts, os.Stdin, stdout, stderr)
}

// connectSession connects, then reads commands from in until EOF or /quit.
func connectSession(ctx context.Context, opts connectOptions, in io.Reader, stdout, stderr io.Writer) int {
	out := &syncWriter{w: stdout}

	var store *storage.SQLiteStore
	if opts.StateDB != "" {
		if err := os.MkdirAll(filepath.Dir(opts.StateDB), 0755); err != nil {
			fmt.Fprintf(stderr, "Error: failed to create state directory: %v\n", err)
			return 1
		}
		s, err := storage.NewSQLiteStore(opts.StateDB)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer s.Close()
		store = s
	}

	var m *client.Manager
	if store != nil {
		m = client.NewManager(store, client.Options{})
	} else {
		m = client.NewManager(nil, client.Options{})
	}
	router := client.NewRouter(nil)

	m.OnOpen(func() {
		fmt.Fprintf(out, "Connected to %s\n", m.URL())
	})
	m.OnClose(func() {
		fmt.Fprintln(out, "Disconnected. Type /reconnect to retry.")
	})
	m.OnError(func(err error) {
		fmt.Fprintf(out, "Error: %v\n", err)
	})
	m.OnMessage(func(msg protocol.Message) {
		ev := router.Handle(msg)
		printEvent(out, ev)
		if ev.Kind == client.EventClipboard || ev.Kind == client.EventCurrentLine {
			if err := m.SyncText(ev.Text); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
		}
	})

	if !establish(ctx, m, router, store, opts, out) {
		fmt.Fprintln(stderr, "Error: no agent to connect to. Pass a URL or use --discover.")
		return 1
	}
	defer m.Disconnect()

	fmt.Fprint(out, connectHelp)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if quit := handleLine(ctx, m, router, scanner.Text(), out); quit {
			break
		}
	}
	return 0
}

// establish opens the first connection: an explicit URL, then the saved one,
// then mDNS when allowed.
func establish(ctx context.Context, m *client.Manager, router *client.Router, store *storage.SQLiteStore, opts connectOptions, out io.Writer) bool {
	if opts.URL != "" {
		return m.Connect(ctx, opts.URL) == nil
	}
	if m.Foreground(ctx, router.Draft()) {
		return true
	}
	if !opts.Discover {
		return false
	}

	fmt.Fprintln(out, "Looking for agents on the LAN...")
	discoverCtx, cancel := context.WithTimeout(ctx, opts.DiscoverTimeout)
	defer cancel()
	hosts, err := mdns.Discover(discoverCtx)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return false
	}
	for _, h := range hosts {
		if m.Connect(ctx, h.URL()) != nil {
			continue
		}
		if store != nil {
			if err := store.TouchHost(h.URL(), h.Name); err != nil {
				fmt.Fprintf(out, "Warning: %v\n", err)
			}
		}
		return true
	}
	return false
}

// handleLine runs one line of input. It reports whether the session should end.
func handleLine(ctx context.Context, m *client.Manager, router *client.Router, line string, out io.Writer) bool {
	if !strings.HasPrefix(line, "/") {
		router.SetText(line)
		report(out, m.SyncText(line))
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprint(out, connectHelp)
	case "/paste":
		router.BeginPaste()
		report(out, m.PasteOnly(false))
	case "/submit", "/send":
		router.BeginSubmit()
		report(out, m.Submit(cmd == "/submit"))
	case "/clip":
		report(out, m.GetClipboard())
	case "/line":
		report(out, m.GetCurrentLine())
	case "/replace":
		report(out, m.ReplaceLine())
	case "/image":
		img, err := loadDraftImage(arg)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return false
		}
		router.AddImage(img)
		if report(out, m.AddImage(img.ID, img.Base64, img.MimeType)) {
			fmt.Fprintf(out, "Attached image %s\n", img.ID)
		}
	case "/rm":
		if !router.RemoveImage(arg) {
			fmt.Fprintf(out, "No image %q in the draft\n", arg)
			return false
		}
		report(out, m.RemoveImage(arg))
	case "/legacy":
		report(out, m.SendText(arg))
	case "/draft":
		printDraft(out, router.Draft())
	case "/chat":
		printChat(out, router.Chat().Messages())
	case "/reconnect":
		if err := m.Reconnect(ctx); err != nil {
			fmt.Fprintf(out, "Reconnect failed: %v\n", err)
			return false
		}
		report(out, m.Replay(router.Draft()))
	default:
		fmt.Fprintf(out, "Unknown command %s (try /help)\n", cmd)
	}
	return false
}

// report prints a send error. It reports whether the send succeeded.
func report(out io.Writer, err error) bool {
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return false
	}
	return true
}

func printEvent(out io.Writer, ev client.Event) {
	switch ev.Kind {
	case client.EventPasted:
		if ev.Unconfirmed {
			fmt.Fprintln(out, "Pasted (unconfirmed, check the desktop).")
		} else {
			fmt.Fprintln(out, "Pasted.")
		}
	case client.EventSubmitted:
		if ev.Unconfirmed {
			fmt.Fprintln(out, "Submitted (unconfirmed, check the desktop).")
		} else {
			fmt.Fprintln(out, "Submitted.")
		}
	case client.EventError:
		fmt.Fprintf(out, "Desktop error [%s]: %s\n", ev.Code, ev.Message)
	case client.EventReply:
		fmt.Fprintf(out, "Assistant: %s\n", ev.Reply.Summary)
		if ev.Reply.Content != ev.Reply.Summary {
			fmt.Fprintf(out, "  %s\n", strings.ReplaceAll(ev.Reply.Content, "\n", "\n  "))
		}
	case client.EventClipboard:
		fmt.Fprintf(out, "Draft: %s\n", ev.Text)
	case client.EventClipboardEmpty:
		fmt.Fprintln(out, "Clipboard is empty.")
	case client.EventCurrentLine:
		fmt.Fprintf(out, "Current line: %s\n", ev.Text)
	}
}

func printDraft(out io.Writer, d client.Draft) {
	if d.Empty() {
		fmt.Fprintln(out, "Draft is empty.")
		return
	}
	fmt.Fprintf(out, "Text: %s\n", d.Text)
	for _, img := range d.Images {
		fmt.Fprintf(out, "Image: %s (%s)\n", img.ID, img.MimeType)
	}
}

func printChat(out io.Writer, msgs []client.ChatMessage) {
	if len(msgs) == 0 {
		fmt.Fprintln(out, "No messages yet.")
		return
	}
	for _, msg := range msgs {
		fmt.Fprintf(out, "[%s] %s: %s\n", msg.Timestamp.Format("15:04:05"), msg.Role, protocol.Preview(msg.Content, 80))
	}
}

// loadDraftImage reads an image file and gives it a short random id.
func loadDraftImage(path string) (client.DraftImage, error) {
	if path == "" {
		return client.DraftImage{}, fmt.Errorf("usage: /image <path>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return client.DraftImage{}, err
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/png"
	}
	return client.DraftImage{
		ID:       uuid.NewString()[:8],
		Base64:   base64.StdEncoding.EncodeToString(data),
		MimeType: mimeType,
	}, nil
}
