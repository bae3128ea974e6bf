package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/vonxq/voice-to-cursor/internal/automation"
	"github.com/vonxq/voice-to-cursor/internal/config"
	"github.com/vonxq/voice-to-cursor/internal/dispatch"
	apperrors "github.com/vonxq/voice-to-cursor/internal/errors"
	"github.com/vonxq/voice-to-cursor/internal/livesync"
	"github.com/vonxq/voice-to-cursor/internal/mdns"
	"github.com/vonxq/voice-to-cursor/internal/protocol"
	"github.com/vonxq/voice-to-cursor/internal/server"
	"github.com/vonxq/voice-to-cursor/internal/session"
	"github.com/vonxq/voice-to-cursor/internal/workspace"
)

// startFlags holds the raw command-line values for "start".
type startFlags struct {
	Config       string
	EnvFile      string
	Host         string
	Port         int
	PortAttempts int
	Variant      string
	Workspace    string
	LiveSync     bool
	Mdns         bool
	QR           bool
	ReplyMode    string
	ReplyCommand string
	DryRun       bool
	LogFile      string
}

// runStart implements the "voice-to-cursor start" command. It runs the
// desktop agent until interrupted.
func runStart(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f startFlags
	fs.StringVar(&f.Config, "config", "", "Path to config file (default: ~/.voice-to-cursor/config.toml)")
	fs.StringVar(&f.EnvFile, "env-file", "", "Load environment variables from this file (default: .env if present)")
	fs.StringVar(&f.Host, "host", "", "Bind address (default: 0.0.0.0)")
	fs.IntVar(&f.Port, "port", 0, "Preferred port (default: 9527, or VTC_PORT / PORT)")
	fs.IntVar(&f.Port, "p", 0, "Shorthand for --port")
	fs.IntVar(&f.PortAttempts, "port-attempts", 0, "Consecutive ports to try in standalone mode (default: 10)")
	fs.StringVar(&f.Variant, "variant", "", "Desktop variant: standalone or integrated (default: standalone)")
	fs.StringVar(&f.Workspace, "workspace", "", "Directory for pasted images and the legacy inbox (default: current directory)")
	fs.BoolVar(&f.LiveSync, "live-sync", true, "Mirror the phone's draft into the focused input as it changes")
	fs.BoolVar(&f.Mdns, "mdns", false, "Advertise the agent on the LAN via mDNS")
	fs.BoolVar(&f.QR, "qr", false, "Print the connection URL as a QR code")
	fs.StringVar(&f.ReplyMode, "reply-mode", "", "How reply requests are phrased: summary or command (default: summary)")
	fs.StringVar(&f.ReplyCommand, "reply-command", "", "CLI name used in command reply mode (default: voice-to-cursor)")
	fs.BoolVar(&f.DryRun, "dry-run", false, "Log automation steps instead of pressing keys")
	fs.StringVar(&f.LogFile, "log-file", "", "Append logs to this file instead of stderr")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: voice-to-cursor start [options]

Start the desktop agent. Phones connect over WebSocket and their text lands
wherever the cursor is focused.

The standalone variant scans upward from the preferred port when it is busy.
The integrated variant fails fast so it never runs next to a stale copy.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected argument %q\n", fs.Arg(0))
		return 1
	}

	// Track which flags were explicitly set so file and env values only
	// fill in what the command line left alone.
	explicitFlags := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) {
		explicitFlags[fl.Name] = true
	})
	if explicitFlags["p"] {
		explicitFlags["port"] = true
	}

	cfg, err := loadStartConfig(f, explicitFlags, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	a, err := startAgent(cfg, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if apperrors.IsCode(err, apperrors.CodeServerAddressInUse) {
			fmt.Fprintln(stderr, "Another agent may already be running. Stop it or pass --port.")
		}
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigCh
	signal.Stop(sigCh)
	fmt.Fprintf(a.out, "\nReceived signal %v, stopping...\n", sig)

	a.shutdown()
	return 0
}

// loadStartConfig merges, lowest first: defaults, the config file, the
// environment (after loading .env), and explicitly set flags.
func loadStartConfig(f startFlags, explicit map[string]bool, lookup func(string) (string, bool)) (*config.Config, error) {
	var envFiles []string
	if f.EnvFile != "" {
		if _, err := os.Stat(f.EnvFile); err != nil {
			return nil, fmt.Errorf("env file: %w", err)
		}
		envFiles = append(envFiles, f.EnvFile)
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg, err := config.Load(f.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	if explicit["host"] {
		cfg.Host = f.Host
	}
	if explicit["port"] {
		cfg.Port = f.Port
	}
	if explicit["port-attempts"] {
		cfg.PortAttempts = f.PortAttempts
	}
	if explicit["variant"] {
		cfg.Variant = f.Variant
	}
	if explicit["workspace"] {
		cfg.Workspace = f.Workspace
	}
	if explicit["reply-mode"] {
		cfg.ReplyMode = f.ReplyMode
	}
	if explicit["reply-command"] {
		cfg.ReplyCommand = f.ReplyCommand
	}
	if explicit["log-file"] {
		cfg.LogFile = f.LogFile
	}
	// Boolean flags: the file value applies only when the flag was not set.
	if explicit["live-sync"] {
		liveSync := f.LiveSync
		cfg.LiveSync = &liveSync
	}
	if explicit["mdns"] {
		cfg.MdnsEnabled = f.Mdns
	}
	if explicit["qr"] {
		cfg.QR = f.QR
	}
	if explicit["dry-run"] {
		cfg.DryRun = f.DryRun
	}

	cfg.ApplyDefaults()
	if cfg.Workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		cfg.Workspace = wd
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// agent is a running desktop agent and everything that must be torn down
// with it.
type agent struct {
	cfg        *config.Config
	srv        *server.Server
	engine     *livesync.Engine
	surface    automation.Surface
	advertiser *mdns.Advertiser
	logFile    *os.File
	out        io.Writer
	url        string
}

// startAgent binds the listener, wires the pipeline, and prints the banner.
// The returned agent is already serving.
func startAgent(cfg *config.Config, stdout, stderr io.Writer) (*agent, error) {
	a := &agent{cfg: cfg, out: &syncWriter{w: stdout}}

	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		log.SetOutput(logFile)
		a.logFile = logFile
	}

	if cfg.DryRun {
		a.surface = automation.NewRecorder().WithLogger(log.Printf)
	} else {
		sys := automation.NewSystem()
		if err := sys.Available(); err != nil {
			fmt.Fprintf(stderr, "Warning: %v\n", err)
		}
		a.surface = sys
	}

	// The engine and the dispatcher share one lock so a debounced apply
	// never interleaves with a paste or submit.
	surfaceMu := &sync.Mutex{}
	a.engine = livesync.NewEngine(a.surface, surfaceMu, livesync.DefaultTiming())

	ln, err := server.Listen(cfg.Host, cfg.Port, cfg.ListenAttempts())
	if err != nil {
		a.shutdown()
		return nil, err
	}
	port := cfg.Port
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}

	registry := session.NewRegistry()
	d := dispatch.New(a.surface, surfaceMu, a.engine, registry,
		workspace.NewImageStore(cfg.Workspace),
		workspace.NewInbox(cfg.Workspace),
		dispatch.Options{
			Variant:  dispatch.Variant(cfg.Variant),
			Wrapper:  promptWrapper(cfg, port),
			Timing:   dispatch.DefaultTiming(),
			LiveSync: cfg.LiveSyncEnabled(),
		})

	a.srv = server.NewServer(server.Options{
		Host:      cfg.Host,
		Port:      port,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	}, registry, d)
	a.srv.SetStatusHandler(server.NewStatusHandler(a.srv, cfg.Variant, cfg.Workspace, cfg.LiveSyncEnabled()))
	a.srv.SetConnectionObserver(func(_ string, ev protocol.Connection, count int) {
		if ev.Connected {
			fmt.Fprintf(a.out, "Phone connected (%d connected)\n", count)
		} else {
			fmt.Fprintf(a.out, "Phone disconnected (%d connected)\n", count)
		}
	})

	if err := <-a.srv.StartOn(ln); err != nil {
		ln.Close()
		a.shutdown()
		return nil, err
	}

	a.url = agentURL(displayHost(cfg.Host), port)
	printBanner(a.out, cfg, a.url)
	if cfg.QR {
		DisplayQRCode(a.out, a.url)
	}

	if cfg.MdnsEnabled {
		a.advertiser = mdns.NewAdvertiser(mdns.Config{
			Port:    port,
			Path:    mdns.DefaultPath,
			Variant: cfg.Variant,
		})
		if err := a.advertiser.Start(); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to start mDNS discovery: %v\n", err)
			a.advertiser = nil
		} else {
			fmt.Fprintln(a.out, "mDNS discovery: ENABLED (visible on LAN)")
		}
	}

	return a, nil
}

// shutdown stops everything in reverse order of creation.
func (a *agent) shutdown() {
	if a.advertiser != nil {
		a.advertiser.Stop()
	}
	if a.srv != nil {
		if err := a.srv.Stop(); err != nil {
			log.Printf("start: server stop: %v", err)
		}
	}
	if a.engine != nil {
		a.engine.Close()
	}
	if a.logFile != nil {
		log.SetOutput(os.Stderr)
		a.logFile.Close()
	}
}

// promptWrapper picks how submit asks the assistant for a reply.
func promptWrapper(cfg *config.Config, port int) dispatch.PromptWrapper {
	if cfg.ReplyMode == config.ReplyModeCommand {
		return dispatch.CommandWrapper{
			Command:     cfg.ReplyCommand,
			Port:        port,
			DefaultPort: config.DefaultPort,
		}
	}
	return dispatch.SummaryWrapper{}
}

func printBanner(w io.Writer, cfg *config.Config, url string) {
	liveSync := "on"
	if !cfg.LiveSyncEnabled() {
		liveSync = "off"
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "  voice-to-cursor agent")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintf(w, "  Connect:    %s\n", url)
	fmt.Fprintf(w, "  Variant:    %s\n", cfg.Variant)
	fmt.Fprintf(w, "  Live sync:  %s\n", liveSync)
	fmt.Fprintf(w, "  Workspace:  %s\n", cfg.Workspace)
	if cfg.DryRun {
		fmt.Fprintln(w, "  Dry run:    keystrokes are logged, not sent")
	}
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "")
}

// DisplayQRCode prints url as a terminal QR code with a plain-text fallback.
func DisplayQRCode(w io.Writer, url string) {
	// Medium error correction keeps the code small enough for a terminal.
	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		fmt.Fprintf(w, "Error generating QR code: %v\n", err)
		fmt.Fprintf(w, "Connect manually: %s\n", url)
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "         SCAN TO CONNECT")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "")
	fmt.Fprint(w, qr.ToSmallString(false))
	fmt.Fprintln(w, "-------------------------------------------")
	fmt.Fprintf(w, "  URL: %s\n", url)
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "")
}

// syncWriter serializes writes from connection callbacks and the main
// goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
