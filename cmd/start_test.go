package main

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vonxq/voice-to-cursor/internal/automation"
	"github.com/vonxq/voice-to-cursor/internal/config"
	"github.com/vonxq/voice-to-cursor/internal/dispatch"
	"github.com/vonxq/voice-to-cursor/internal/protocol"
)

// lockedBuffer is a bytes.Buffer safe to poll while callbacks write to it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, out *lockedBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output:\n%s", want, out.String())
}

// isolateHome points the default config location at an empty directory.
func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VTC_PORT", "")
	t.Setenv("PORT", "")
}

// startTestAgent runs a dry-run agent on a free loopback port.
func startTestAgent(t *testing.T) (*agent, *lockedBuffer) {
	t.Helper()
	cfg := &config.Config{
		Host:         "127.0.0.1",
		Port:         0,
		PortAttempts: 1,
		Variant:      config.VariantStandalone,
		ReplyMode:    config.ReplyModeSummary,
		Workspace:    t.TempDir(),
		DryRun:       true,
	}
	out := &lockedBuffer{}
	a, err := startAgent(cfg, out, io.Discard)
	if err != nil {
		t.Fatalf("startAgent: %v", err)
	}
	t.Cleanup(a.shutdown)
	return a, out
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatalf("writeConfig: %v", err)
	}
	return p
}

func TestRunStart_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runStart([]string{"--help"}, &stdout, &stderr)
	if code != 0 {
		t.Errorf("runStart(--help) = %d, want 0", code)
	}

	output := stderr.String()
	for _, want := range []string{"Usage: voice-to-cursor start", "-variant", "-live-sync", "-port", "-qr", "-reply-mode"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q, got: %s", want, output)
		}
	}
}

func TestRunStart_InvalidFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := runStart([]string{"--invalid-flag"}, &stdout, &stderr); code != 1 {
		t.Errorf("runStart(--invalid-flag) = %d, want 1", code)
	}
}

func TestRunStart_InvalidConfigValues(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"port zero", []string{"--port", "0"}, "out of range"},
		{"unknown variant", []string{"--variant", "vscode"}, "unknown variant"},
		{"unknown reply mode", []string{"--reply-mode", "loud"}, "unknown reply_mode"},
		{"stray argument", []string{"now"}, "unexpected argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := runStart(tt.args, &stdout, &stderr); code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Fatalf("stderr = %q, want %q", stderr.String(), tt.want)
			}
		})
	}
}

func TestRunStart_IntegratedFailsFastWhenPortTaken(t *testing.T) {
	isolateHome(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	var stdout, stderr bytes.Buffer
	code := runStart([]string{
		"--host", "127.0.0.1",
		"--port", fmt.Sprint(port),
		"--variant", "integrated",
		"--dry-run",
		"--workspace", t.TempDir(),
	}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "already in use") {
		t.Fatalf("stderr should name the busy address, got %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "Another agent may already be running") {
		t.Fatalf("stderr should carry the hint, got %q", stderr.String())
	}
}

func TestLoadStartConfigPrecedence(t *testing.T) {
	isolateHome(t)
	path := writeConfig(t, `
port = 1111
variant = "integrated"
live_sync = false
qr = true
`)
	env := map[string]string{"VTC_PORT": "2222", "VTC_WORKSPACE": "/tmp/ws"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	tests := []struct {
		name         string
		flags        startFlags
		explicit     map[string]bool
		wantPort     int
		wantLiveSync bool
		wantQR       bool
		wantVariant  string
	}{
		{
			name:         "file then env",
			flags:        startFlags{Config: path},
			explicit:     map[string]bool{"config": true},
			wantPort:     2222,
			wantLiveSync: false,
			wantQR:       true,
			wantVariant:  config.VariantIntegrated,
		},
		{
			name:         "flags win",
			flags:        startFlags{Config: path, Port: 3333, LiveSync: true, QR: false, Variant: "standalone"},
			explicit:     map[string]bool{"config": true, "port": true, "live-sync": true, "qr": true, "variant": true},
			wantPort:     3333,
			wantLiveSync: true,
			wantQR:       false,
			wantVariant:  config.VariantStandalone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadStartConfig(tt.flags, tt.explicit, lookup)
			if err != nil {
				t.Fatalf("loadStartConfig: %v", err)
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", cfg.Port, tt.wantPort)
			}
			if cfg.LiveSyncEnabled() != tt.wantLiveSync {
				t.Errorf("LiveSync = %v, want %v", cfg.LiveSyncEnabled(), tt.wantLiveSync)
			}
			if cfg.QR != tt.wantQR {
				t.Errorf("QR = %v, want %v", cfg.QR, tt.wantQR)
			}
			if cfg.Variant != tt.wantVariant {
				t.Errorf("Variant = %q, want %q", cfg.Variant, tt.wantVariant)
			}
			if cfg.Workspace != "/tmp/ws" {
				t.Errorf("Workspace = %q, want env value", cfg.Workspace)
			}
		})
	}
}

func TestLoadStartConfigDefaults(t *testing.T) {
	isolateHome(t)
	cfg, err := loadStartConfig(startFlags{}, map[string]bool{}, func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("loadStartConfig: %v", err)
	}
	if cfg.Port != config.DefaultPort || cfg.Variant != config.VariantStandalone {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	wd, _ := os.Getwd()
	if cfg.Workspace != wd {
		t.Fatalf("Workspace = %q, want cwd %q", cfg.Workspace, wd)
	}
}

func TestLoadStartConfigEnvFile(t *testing.T) {
	isolateHome(t)
	t.Setenv("VTC_VARIANT", "")
	os.Unsetenv("VTC_VARIANT")

	envFile := filepath.Join(t.TempDir(), "agent.env")
	if err := os.WriteFile(envFile, []byte("VTC_VARIANT=integrated\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadStartConfig(startFlags{EnvFile: envFile}, map[string]bool{"env-file": true}, os.LookupEnv)
	if err != nil {
		t.Fatalf("loadStartConfig: %v", err)
	}
	if cfg.Variant != config.VariantIntegrated {
		t.Fatalf("Variant = %q, want integrated from env file", cfg.Variant)
	}

	if _, err := loadStartConfig(startFlags{EnvFile: envFile + ".missing"}, nil, os.LookupEnv); err == nil {
		t.Fatal("expected error for a missing --env-file")
	}
}

func TestStartAgentPastesFromPhone(t *testing.T) {
	a, out := startTestAgent(t)
	if !strings.Contains(out.String(), "Connect:    "+a.url) {
		t.Fatalf("banner missing url %s:\n%s", a.url, out.String())
	}

	conn, _, err := websocket.DefaultDialer.Dial(a.url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForOutput(t, out, "Phone connected (1 connected)")

	for _, raw := range []string{
		`{"type":"sync_text","content":"hello desktop"}`,
		`{"type":"paste_only"}`,
	} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == protocol.TypeAck && msg.Action == string(protocol.TypePasteOnly) {
			break
		}
	}

	rec, ok := a.surface.(*automation.Recorder)
	if !ok {
		t.Fatalf("dry run surface is %T, want *automation.Recorder", a.surface)
	}
	if rec.Clipboard() != "hello desktop" {
		t.Fatalf("clipboard = %q", rec.Clipboard())
	}
	if rec.Count(automation.StepPaste) == 0 {
		t.Fatal("expected a paste step")
	}

	conn.Close()
	waitForOutput(t, out, "Phone disconnected (0 connected)")
}

func TestPromptWrapper(t *testing.T) {
	cfg := &config.Config{ReplyMode: config.ReplyModeCommand, ReplyCommand: "vtc"}
	w, ok := promptWrapper(cfg, 9600).(dispatch.CommandWrapper)
	if !ok {
		t.Fatalf("command mode wrapper is %T", promptWrapper(cfg, 9600))
	}
	if w.Command != "vtc" || w.Port != 9600 || w.DefaultPort != config.DefaultPort {
		t.Fatalf("wrapper = %+v", w)
	}

	cfg.ReplyMode = config.ReplyModeSummary
	if _, ok := promptWrapper(cfg, 9600).(dispatch.SummaryWrapper); !ok {
		t.Fatal("summary mode should use SummaryWrapper")
	}
}

func TestDisplayQRCode(t *testing.T) {
	var buf bytes.Buffer
	DisplayQRCode(&buf, "ws://192.168.1.20:9527/ws")
	out := buf.String()
	if !strings.Contains(out, "SCAN TO CONNECT") || !strings.Contains(out, "ws://192.168.1.20:9527/ws") {
		t.Fatalf("unexpected QR output:\n%s", out)
	}
}

func TestAddressHelpers(t *testing.T) {
	if got := displayHost("192.168.1.5"); got != "192.168.1.5" {
		t.Errorf("displayHost(explicit) = %q", got)
	}
	if got := displayHost("0.0.0.0"); got == "0.0.0.0" || got == "" {
		t.Errorf("displayHost(wildcard) = %q, want a dialable address", got)
	}
	if got := agentURL("::1", 9527); got != "ws://[::1]:9527/ws" {
		t.Errorf("agentURL(ipv6) = %q", got)
	}
	if got := localAddrCandidates("10.0.0.2", 9527); len(got) != 1 || got[0] != "10.0.0.2:9527" {
		t.Errorf("localAddrCandidates(explicit) = %v", got)
	}
	if got := localAddrCandidates("", 9527); got[0] != "127.0.0.1:9527" {
		t.Errorf("localAddrCandidates should try loopback first, got %v", got)
	}
}
