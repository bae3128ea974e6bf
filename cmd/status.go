package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/vonxq/voice-to-cursor/internal/config"
	"github.com/vonxq/voice-to-cursor/internal/server"
)

// runStatus implements "voice-to-cursor status".
func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)

	addr := fs.String("addr", "", "Agent address to query, host:port (default: localhost, then Tailscale/LAN)")
	port := fs.Int("port", 0, "Port to query when auto-selecting address (default: 9527, or VTC_PORT / PORT)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: voice-to-cursor status [options]\n\nShow the status of the running agent.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	explicitFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		explicitFlags[f.Name] = true
	})

	var addrs []string
	if *addr != "" {
		if explicitFlags["port"] {
			fmt.Fprintf(stderr, "Warning: --addr overrides --port; using %s\n", *addr)
		}
		addrs = []string{*addr}
	} else {
		p := *port
		if p == 0 {
			cfg := &config.Config{}
			if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			cfg.ApplyDefaults()
			p = cfg.Port
		}
		if p < 1 || p > 65535 {
			fmt.Fprintf(stderr, "Error: port %d out of range 1-65535\n", p)
			return 1
		}
		addrs = localAddrCandidates("", p)
	}

	var status *server.StatusResponse
	var err error
	for _, target := range addrs {
		status, err = queryAgentStatus(target)
		if err == nil {
			break
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	writeStatusOutput(stdout, status)
	return 0
}

// writeStatusOutput renders human-readable agent status.
func writeStatusOutput(stdout io.Writer, status *server.StatusResponse) {
	owner := status.SurfaceOwner
	if owner == "" {
		owner = "none"
	}
	fmt.Fprintf(stdout, "Agent Status\n")
	fmt.Fprintf(stdout, "============\n")
	fmt.Fprintf(stdout, "Listening:    %s\n", status.ListeningAddress)
	fmt.Fprintf(stdout, "Variant:      %s\n", status.Variant)
	fmt.Fprintf(stdout, "Live sync:    %v\n", status.LiveSync)
	fmt.Fprintf(stdout, "Workspace:    %s\n", status.Workspace)
	fmt.Fprintf(stdout, "Clients:      %d connected\n", status.ConnectedClients)
	fmt.Fprintf(stdout, "Input owner:  %s\n", owner)
	fmt.Fprintf(stdout, "Uptime:       %s\n", formatUptime(status.UptimeSeconds))
}

// queryAgentStatus makes an HTTP GET request to the /status endpoint.
func queryAgentStatus(addr string) (*server.StatusResponse, error) {
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://%s/status", addr))
	if err != nil {
		return nil, fmt.Errorf("agent is not running at %s (or not reachable)", addr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var status server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &status, nil
}

// formatUptime formats an uptime in seconds as a human-readable string.
// Examples: "45s", "5m 23s", "2h 15m", "3d 4h"
func formatUptime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Minute {
		return fmt.Sprintf("%ds", seconds)
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
