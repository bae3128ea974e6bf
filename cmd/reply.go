package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vonxq/voice-to-cursor/internal/client"
	"github.com/vonxq/voice-to-cursor/internal/config"
	"github.com/vonxq/voice-to-cursor/internal/protocol"
	"github.com/vonxq/voice-to-cursor/internal/relay"
)

// runReply implements "voice-to-cursor reply". An assistant running on the
// desktop calls it to push a short summary to every connected phone.
func runReply(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("reply", flag.ContinueOnError)
	fs.SetOutput(stderr)

	content := fs.String("content", "", "Full reply text shown when the summary is expanded")
	host := fs.String("host", "", "Agent address (default: localhost, then Tailscale/LAN)")
	port := fs.Int("port", 0, "Agent port (default: 9527, or VTC_PORT / PORT)")
	extract := fs.Bool("extract", false, "Derive the summary from the reply text ([Summary: ...] or its first 100 characters)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: voice-to-cursor reply "<summary>" [options]

Send a reply to every phone connected to the local agent.

Options:
`)
		fs.PrintDefaults()
	}

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	summary := strings.TrimSpace(strings.Join(positional, " "))
	body := *content
	if *extract {
		text := body
		if text == "" {
			text = summary
			body = summary
		}
		summary = relay.ExtractSummary(text)
	}
	if summary == "" {
		fmt.Fprintln(stderr, "Error: summary is required")
		fs.Usage()
		return 1
	}

	agentPort := *port
	if agentPort == 0 {
		cfg := &config.Config{}
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		cfg.ApplyDefaults()
		agentPort = cfg.Port
	}
	if agentPort < 1 || agentPort > 65535 {
		fmt.Fprintf(stderr, "Error: port %d out of range 1-65535\n", agentPort)
		return 1
	}

	var lastErr error
	for _, addr := range localAddrCandidates(*host, agentPort) {
		lastErr = client.SendReply(context.Background(), "ws://"+addr+"/ws", summary, body)
		if lastErr == nil {
			fmt.Fprintf(stdout, "Sent to phone: %s\n", protocol.Preview(summary, 50))
			return 0
		}
	}
	fmt.Fprintf(stderr, "Error: %v\n", lastErr)
	fmt.Fprintln(stderr, "Is the agent running? Start it with: voice-to-cursor start")
	return 1
}

// parseInterspersed parses flags that may appear before or after positional
// arguments, returning the positionals in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}
