// Package mdns advertises the desktop agent on the local network and lets a
// phone client find it without typing an IP address.
//
// The advertisement uses service type _voicetocursor._tcp with TXT records
// carrying the protocol version, a display name, the websocket path, and the
// agent variant. Discovery only reveals presence; it grants nothing.
package mdns

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service type for voice-to-cursor agents.
const ServiceType = "_voicetocursor._tcp"

// ProtocolVersion identifies the wire protocol for compatibility checks.
const ProtocolVersion = "1"

// DefaultPath is the websocket path advertised when Config.Path is empty.
const DefaultPath = "/ws"

// Config holds configuration for mDNS advertisement.
type Config struct {
	// Port is the bound server port.
	Port int

	// Name is a human-readable name for this agent.
	// Defaults to the system hostname if empty.
	Name string

	// Path is the websocket path phones should dial.
	Path string

	// Variant is "standalone" or "integrated".
	Variant string
}

// Advertiser manages mDNS/DNS-SD service registration.
type Advertiser struct {
	config Config
	server *zeroconf.Server
	mu     sync.Mutex
}

// NewAdvertiser creates a new mDNS advertiser with the given configuration.
func NewAdvertiser(cfg Config) *Advertiser {
	return &Advertiser{
		config: cfg,
	}
}

// instanceName resolves the advertised instance name.
func (a *Advertiser) instanceName() string {
	if a.config.Name != "" {
		return a.config.Name
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "voice-to-cursor"
	}
	return hostname
}

// txtRecords builds the TXT metadata. DNS TXT strings are capped at 255 bytes.
func (a *Advertiser) txtRecords(name string) []string {
	path := a.config.Path
	if path == "" {
		path = DefaultPath
	}
	records := []string{
		"version=" + ProtocolVersion,
		"name=" + name,
		"path=" + path,
	}
	if a.config.Variant != "" {
		records = append(records, "variant="+a.config.Variant)
	}
	return records
}

// Start begins advertising the service via mDNS.
//
// Start is safe to call multiple times; subsequent calls are no-ops
// if already running.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	name := a.instanceName()
	server, err := zeroconf.Register(
		name,
		ServiceType,
		"local.",
		a.config.Port,
		a.txtRecords(name),
		nil, // Network interfaces (nil = all)
	)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}

	a.server = server
	return nil
}

// Stop stops the mDNS advertisement and unregisters the service.
// It is safe to call Stop multiple times or on an advertiser that
// was never started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// IsRunning returns true if the advertiser is currently running.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// DiscoveredHost is an agent found via mDNS.
type DiscoveredHost struct {
	Name    string
	Host    string
	Port    int
	Path    string
	Variant string
	Version string
}

// URL returns the websocket URL a phone should dial.
func (h DiscoveredHost) URL() string {
	path := h.Path
	if path == "" {
		path = DefaultPath
	}
	return "ws://" + net.JoinHostPort(h.Host, strconv.Itoa(h.Port)) + path
}

// applyTXT fills host fields from TXT records. Unknown keys are ignored.
func (h *DiscoveredHost) applyTXT(records []string) {
	for _, txt := range records {
		key, value, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch key {
		case "version":
			h.Version = value
		case "name":
			h.Name = value
		case "path":
			h.Path = value
		case "variant":
			h.Variant = value
		}
	}
}

func hostFromEntry(entry *zeroconf.ServiceEntry) DiscoveredHost {
	host := DiscoveredHost{
		Name: entry.Instance,
		Port: entry.Port,
	}
	// Prefer IPv4 address
	if len(entry.AddrIPv4) > 0 {
		host.Host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		host.Host = entry.AddrIPv6[0].String()
	}
	host.applyTXT(entry.Text)
	return host
}

// Discover browses for agents until ctx is done and returns what it found.
func Discover(ctx context.Context) ([]DiscoveredHost, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	var (
		hosts []DiscoveredHost
		wg    sync.WaitGroup
	)

	entries := make(chan *zeroconf.ServiceEntry)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			host := hostFromEntry(entry)
			if host.Host == "" {
				continue
			}
			hosts = append(hosts, host)
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-ctx.Done()

	// zeroconf closes entries once ctx is done.
	wg.Wait()

	return hosts, nil
}
