// Package main provides the voice-to-cursor CLI.
// This file centralizes address selection for the banner, QR code, and
// local commands that talk to a running agent.
package main

import (
	"fmt"
	"net"
	"strconv"
)

// displayHost picks the address a phone should dial for an agent bound to
// bindHost. Wildcard binds are replaced by a reachable interface address.
func displayHost(bindHost string) string {
	switch bindHost {
	case "", "0.0.0.0", "::", "[::]":
	default:
		return bindHost
	}
	if ip := GetPreferredOutboundIP(); ip != "" {
		return ip
	}
	if ip := GetTailscaleIP(); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

// agentURL builds the WebSocket URL for host and port.
func agentURL(host string, port int) string {
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/ws"
}

// localAddrCandidates lists where a local command should look for the agent:
// loopback first, then the Tailscale and LAN addresses it may be bound to.
func localAddrCandidates(host string, port int) []string {
	if host != "" {
		return []string{net.JoinHostPort(host, strconv.Itoa(port))}
	}
	portStr := fmt.Sprintf("%d", port)
	addrs := []string{"127.0.0.1:" + portStr}
	if ip := GetTailscaleIP(); ip != "" {
		addrs = append(addrs, ip+":"+portStr)
	}
	if ip := GetPreferredOutboundIP(); ip != "" {
		addrs = append(addrs, ip+":"+portStr)
	}
	return addrs
}

// GetPreferredOutboundIP returns the machine's preferred outbound IPv4 address.
// It dials a UDP socket (no packets are sent) and reads back the local
// address the routing table chose. Returns "" if detection fails.
func GetPreferredOutboundIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return localAddr.IP.String()
}

// tailscaleNet is the CGNAT range used by Tailscale (100.64.0.0/10).
var tailscaleNet = &net.IPNet{
	IP:   net.IPv4(100, 64, 0, 0),
	Mask: net.CIDRMask(10, 32),
}

// GetTailscaleIP scans network interfaces for a Tailscale IP address.
// Returns "" if none is found.
func GetTailscaleIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip != nil && tailscaleNet.Contains(ip) {
				return ip.String()
			}
		}
	}

	return ""
}
