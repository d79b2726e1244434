// Package netiface enumerates usable IPv4 network interfaces and scores
// them for the "best" default, per spec §4.2.
package netiface

import (
	"net"
	"strings"
)

// Type classifies a candidate interface for display purposes.
type Type int

const (
	TypeNetwork Type = iota
	TypeEthernet
	TypeWiFi
)

func (t Type) String() string {
	switch t {
	case TypeEthernet:
		return "Ethernet"
	case TypeWiFi:
		return "WiFi"
	default:
		return "Network"
	}
}

// Candidate is one interface offered for user selection.
type Candidate struct {
	IP    net.IP
	Name  string
	Type  Type
	Index int
	score int
}

// excludedSubstrings are common virtual-adapter name fragments; matching
// is case-insensitive (spec §4.2).
var excludedSubstrings = []string{
	"virtual", "vmware", "vbox", "docker", "wsl", "hyper-v", "vethernet",
}

// excludedPrefixes are virtual-adapter name prefixes.
var excludedPrefixes = []string{"vmnet", "vboxnet", "virbr", "br-"}

var ethernetHints = []string{"eth", "en", "ethernet"}
var wifiHints = []string{"wlan", "wifi", "wi-fi", "wl"}

// isVirtualName reports whether name looks like a virtual adapter.
// Loopback is not matched here; it is detected via the interface flags.
func isVirtualName(name string) bool {
	lower := strings.ToLower(name)
	for _, sub := range excludedSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func isLinkLocal(ip net.IP) bool {
	return ip.IsLinkLocalUnicast()
}

func isPrivate(ip net.IP) bool {
	return ip.IsPrivate()
}

func scoreName(name string) int {
	lower := strings.ToLower(name)
	for _, hint := range ethernetHints {
		if strings.Contains(lower, hint) {
			return 5
		}
	}
	for _, hint := range wifiHints {
		if strings.Contains(lower, hint) {
			return 3
		}
	}
	return 0
}

func classify(name string) Type {
	lower := strings.ToLower(name)
	for _, hint := range wifiHints {
		if strings.Contains(lower, hint) {
			return TypeWiFi
		}
	}
	for _, hint := range ethernetHints {
		if strings.Contains(lower, hint) {
			return TypeEthernet
		}
	}
	return TypeNetwork
}

// interfaceLister abstracts net.Interfaces so tests can substitute a
// fixed topology without touching the host's real adapters.
type interfaceLister func() ([]net.Interface, error)

// Enumerator lists usable IPv4 interfaces and scores a "best" default.
type Enumerator struct {
	list interfaceLister
}

// NewEnumerator returns an Enumerator backed by the host's real
// interfaces.
func NewEnumerator() *Enumerator {
	return &Enumerator{list: net.Interfaces}
}

// newEnumeratorForTest is used by tests to inject a fixed topology.
func newEnumeratorForTest(list interfaceLister) *Enumerator {
	return &Enumerator{list: list}
}

// Candidates enumerates every usable IPv4 interface and returns them
// alongside the highest-scoring one as "best". Falls back to 127.0.0.1
// only if no candidate survives (spec §4.2).
func (e *Enumerator) Candidates() (all []Candidate, best Candidate) {
	ifaces, err := e.list()
	if err != nil {
		return nil, fallback()
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if isVirtualName(iface.Name) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ip := extractIPv4(addr)
			if ip == nil || isLinkLocal(ip) {
				continue
			}

			score := scoreName(iface.Name)
			if isPrivate(ip) {
				score += 10
			}

			all = append(all, Candidate{
				IP:    ip,
				Name:  iface.Name,
				Type:  classify(iface.Name),
				Index: iface.Index,
				score: score,
			})
		}
	}

	if len(all) == 0 {
		return nil, fallback()
	}

	best = all[0]
	for _, c := range all[1:] {
		if c.score > best.score {
			best = c
		}
	}
	return all, best
}

func extractIPv4(addr net.Addr) net.IP {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return nil
	}
	return ip.To4()
}

func fallback() Candidate {
	return Candidate{IP: net.IPv4(127, 0, 0, 1), Name: "loopback", Type: TypeNetwork}
}

// BroadcastAddr computes the directed broadcast address for a candidate,
// assuming a /24 LAN (the common case for the home/office networks this
// core targets). Used when the user has pinned a specific interface for
// discovery (spec §4.3).
func (c Candidate) BroadcastAddr() net.IP {
	ip4 := c.IP.To4()
	if ip4 == nil {
		return net.IPv4bcast
	}
	b := make(net.IP, net.IPv4len)
	copy(b, ip4)
	b[3] = 255
	return b
}
