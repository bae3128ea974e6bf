package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vonxq/voice-to-cursor/internal/automation"
	"github.com/vonxq/voice-to-cursor/internal/client"
	"github.com/vonxq/voice-to-cursor/internal/storage"
)

// runSession starts connectSession fed from a pipe. The returned channel
// yields its exit code.
func runSession(t *testing.T, opts connectOptions) (*io.PipeWriter, *lockedBuffer, <-chan int) {
	t.Helper()
	in, w := io.Pipe()
	out := &lockedBuffer{}
	done := make(chan int, 1)
	go func() {
		done <- connectSession(context.Background(), opts, in, out, out)
	}()
	t.Cleanup(func() { w.Close() })
	return w, out, done
}

func waitExit(t *testing.T, done <-chan int) int {
	t.Helper()
	select {
	case code := <-done:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("connect session did not exit")
		return -1
	}
}

func TestConnectSessionPastesAndRemembersURL(t *testing.T) {
	a, _ := startTestAgent(t)
	stateDB := filepath.Join(t.TempDir(), "state", "state.db")

	w, out, done := runSession(t, connectOptions{URL: a.url, StateDB: stateDB})
	waitForOutput(t, out, "Connected to "+a.url)

	io.WriteString(w, "fix the flaky test\n")
	io.WriteString(w, "/paste\n")
	waitForOutput(t, out, "Pasted.")

	io.WriteString(w, "/draft\n")
	waitForOutput(t, out, "Text: fix the flaky test")

	io.WriteString(w, "/quit\n")
	if code := waitExit(t, done); code != 0 {
		t.Fatalf("exit code %d, output:\n%s", code, out.String())
	}

	rec := a.surface.(*automation.Recorder)
	if rec.Clipboard() != "fix the flaky test" {
		t.Fatalf("desktop clipboard = %q", rec.Clipboard())
	}

	store, err := storage.NewSQLiteStore(stateDB)
	if err != nil {
		t.Fatalf("open state: %v", err)
	}
	defer store.Close()
	if got, _ := store.LastURL(); got != a.url {
		t.Fatalf("LastURL = %q, want %q", got, a.url)
	}
}

func TestConnectSessionAutoConnectsToSavedURL(t *testing.T) {
	a, _ := startTestAgent(t)
	stateDB := filepath.Join(t.TempDir(), "state.db")

	store, err := storage.NewSQLiteStore(stateDB)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveLastURL(a.url); err != nil {
		t.Fatal(err)
	}
	store.Close()

	w, out, done := runSession(t, connectOptions{StateDB: stateDB})
	waitForOutput(t, out, "Connected to "+a.url)
	io.WriteString(w, "/quit\n")
	if code := waitExit(t, done); code != 0 {
		t.Fatalf("exit code %d", code)
	}
}

func TestConnectSessionNoAgent(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := connectSession(context.Background(), connectOptions{StateDB: filepath.Join(t.TempDir(), "state.db")},
		strings.NewReader(""), &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "no agent to connect to") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestHandleLineOffline(t *testing.T) {
	m := client.NewManager(nil, client.Options{})
	r := client.NewRouter(nil)

	tests := []struct {
		line     string
		want     string
		wantQuit bool
	}{
		{line: "/draft", want: "Draft is empty."},
		{line: "draft text", want: "Error:"},
		{line: "/rm nope", want: `No image "nope"`},
		{line: "/chat", want: "No messages yet."},
		{line: "/bogus", want: "Unknown command /bogus"},
		{line: "/image", want: "usage: /image <path>"},
		{line: "/quit", wantQuit: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			var out bytes.Buffer
			quit := handleLine(context.Background(), m, r, tt.line, &out)
			if quit != tt.wantQuit {
				t.Fatalf("quit = %v, want %v", quit, tt.wantQuit)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Fatalf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}

	if r.Draft().Text != "draft text" {
		t.Fatalf("offline typing should still update the draft, got %q", r.Draft().Text)
	}
}

func TestPrintEvent(t *testing.T) {
	reply := client.ChatMessage{Summary: "Done", Content: "Done\nwith details"}
	tests := []struct {
		name string
		ev   client.Event
		want string
	}{
		{"pasted", client.Event{Kind: client.EventPasted}, "Pasted."},
		{"unconfirmed submit", client.Event{Kind: client.EventSubmitted, Unconfirmed: true}, "Submitted (unconfirmed"},
		{"error", client.Event{Kind: client.EventError, Code: "session.claimed", Message: "busy"}, "Desktop error [session.claimed]: busy"},
		{"reply", client.Event{Kind: client.EventReply, Reply: &reply}, "Assistant: Done\n  Done\n  with details"},
		{"clipboard empty", client.Event{Kind: client.EventClipboardEmpty}, "Clipboard is empty."},
		{"current line", client.Event{Kind: client.EventCurrentLine, Text: "ls -la"}, "Current line: ls -la"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			printEvent(&out, tt.ev)
			if !strings.Contains(out.String(), tt.want) {
				t.Fatalf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestLoadDraftImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.jpg")
	data := []byte{0xff, 0xd8, 0xff, 0xe0}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	img, err := loadDraftImage(path)
	if err != nil {
		t.Fatalf("loadDraftImage: %v", err)
	}
	if img.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q", img.MimeType)
	}
	if len(img.ID) != 8 {
		t.Errorf("ID = %q, want 8 characters", img.ID)
	}
	decoded, err := base64.StdEncoding.DecodeString(img.Base64)
	if err != nil || !bytes.Equal(decoded, data) {
		t.Errorf("payload does not round trip: %v", err)
	}

	if _, err := loadDraftImage(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for a missing file")
	}
}
