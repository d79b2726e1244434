package netiface

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// net.Interface.Addrs() is a method with no injectable state, so a fake
// topology with addresses cannot be fed to Candidates(). These tests
// exercise the pure helper functions and the lister-failure fallback.

func TestIsVirtualName(t *testing.T) {
	cases := map[string]bool{
		"eth0":               false,
		"Wi-Fi":              false,
		"VMware Network Adapter": true,
		"vboxnet0":           true,
		"docker0":            true,
		"br-4a2f":            true,
		"vEthernet (WSL)":    true,
		"virbr0":             true,
	}
	for name, want := range cases {
		assert.Equalf(t, want, isVirtualName(name), "name=%q", name)
	}
}

func TestScoreAndClassify(t *testing.T) {
	assert.Equal(t, 5, scoreName("eth0"))
	assert.Equal(t, 3, scoreName("wlan0"))
	assert.Equal(t, 0, scoreName("tun0"))

	assert.Equal(t, TypeEthernet, classify("eth0"))
	assert.Equal(t, TypeWiFi, classify("wlan0"))
	assert.Equal(t, TypeNetwork, classify("tun0"))
}

func TestBroadcastAddrAssumesSlash24(t *testing.T) {
	c := Candidate{IP: net.IPv4(192, 168, 1, 42)}
	assert.Equal(t, net.IPv4(192, 168, 1, 255).String(), c.BroadcastAddr().String())
}

func TestCandidatesFallsBackToLoopbackWhenListerFails(t *testing.T) {
	e := newEnumeratorForTest(func() ([]net.Interface, error) {
		return nil, assertErr
	})
	all, best := e.Candidates()
	require.Empty(t, all)
	assert.Equal(t, "127.0.0.1", best.IP.String())
}

var assertErr = &net.OpError{Op: "test", Err: errNoInterfaces{}}

type errNoInterfaces struct{}

func (errNoInterfaces) Error() string { return "no interfaces" }
