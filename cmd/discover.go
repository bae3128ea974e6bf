package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vonxq/voice-to-cursor/internal/config"
	"github.com/vonxq/voice-to-cursor/internal/mdns"
	"github.com/vonxq/voice-to-cursor/internal/storage"
)

// runDiscover implements "voice-to-cursor discover".
func runDiscover(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)

	timeout := fs.Duration("timeout", 3*time.Second, "How long to browse the LAN")
	known := fs.Bool("known", false, "List previously connected agents instead of browsing")
	stateDB := fs.String("state-db", "", "State database for --known (default: ~/.voice-to-cursor/state.db)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: voice-to-cursor discover [options]\n\nList agents advertising on the LAN via mDNS.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if *known {
		return listKnownHosts(*stateDB, stdout, stderr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	hosts, err := mdns.Discover(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	writeDiscoveredHosts(stdout, hosts)
	return 0
}

func writeDiscoveredHosts(w io.Writer, hosts []mdns.DiscoveredHost) {
	if len(hosts) == 0 {
		fmt.Fprintln(w, "No agents found.")
		return
	}
	fmt.Fprintf(w, "Agents (%d):\n", len(hosts))
	for _, h := range hosts {
		variant := h.Variant
		if variant == "" {
			variant = "unknown"
		}
		fmt.Fprintf(w, "  - %s  %s  (%s)\n", h.Name, h.URL(), variant)
	}
}

func listKnownHosts(path string, stdout, stderr io.Writer) int {
	if path == "" {
		p, err := config.DefaultStateDB()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		path = p
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(stdout, "No known agents.")
		return 0
	}

	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	hosts, err := store.KnownHosts()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(hosts) == 0 {
		fmt.Fprintln(stdout, "No known agents.")
		return 0
	}
	fmt.Fprintf(stdout, "Known agents (%d):\n", len(hosts))
	for _, h := range hosts {
		name := h.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(stdout, "  - %s  %s  last connected %s\n", name, h.URL, h.LastConnected.Local().Format("2006-01-02 15:04"))
	}
	return 0
}
