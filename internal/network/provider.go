package network

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os/exec"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// IPInfo is the address configuration of an up link.
type IPInfo struct {
	Interface string
	Address   netip.Prefix
}

func (i IPInfo) String() string {
	if !i.Address.IsValid() {
		return i.Interface
	}
	return fmt.Sprintf("%s %s", i.Interface, i.Address)
}

// Link is the handle returned by a successful Connect.
type Link struct {
	IP IPInfo
}

// Provider establishes and tears down link-layer connectivity.
type Provider interface {
	Connect(ctx context.Context) (Link, error)
	IsLinkUp() bool
	IPConfig() (IPInfo, bool)
	Disconnect() error
}

// InterfaceState is the observed state of one network interface.
type InterfaceState struct {
	Up    bool
	Addrs []netip.Prefix
}

// InterfaceLookup reports the state of an interface by name.
type InterfaceLookup func(name string) (InterfaceState, error)

// Commands are the optional programs that start and stop the link, each
// given as argv (for example ["ip", "link", "set", "wlan0", "up"]).
type Commands struct {
	// Up runs at the start of every Connect, before polling.
	Up []string

	// Down runs on Disconnect.
	Down []string
}

type commandFunc func(ctx context.Context, argv []string) ([]byte, error)

// InterfaceProvider watches a Linux network interface.
type InterfaceProvider struct {
	name         string
	pollInterval time.Duration
	commands     Commands
	clock        clockwork.Clock
	lookup       InterfaceLookup
	run          commandFunc

	mu sync.Mutex
	ip IPInfo
	up bool
}

// NewInterfaceProvider creates a provider for the named interface.
func NewInterfaceProvider(name string, pollInterval time.Duration, commands Commands, clock clockwork.Clock) *InterfaceProvider {
	return &InterfaceProvider{
		name:         name,
		pollInterval: pollInterval,
		commands:     commands,
		clock:        clock,
		lookup:       systemLookup,
		run:          execCommand,
	}
}

// WithLookup replaces the interface lookup. Intended for tests.
func (p *InterfaceProvider) WithLookup(lookup InterfaceLookup) *InterfaceProvider {
	p.lookup = lookup
	return p
}

// Connect runs the up command, if any, then polls until the interface is
// up with an IPv4 address.
func (p *InterfaceProvider) Connect(ctx context.Context) (Link, error) {
	if len(p.commands.Up) > 0 {
		if out, err := p.run(ctx, p.commands.Up); err != nil {
			return Link{}, fmt.Errorf("%w: %s: up command: %w: %s", ErrConnectFailed, p.name, err, out)
		}
	}

	for {
		ip, ok, err := p.probe()
		if err == nil && ok {
			return Link{IP: ip}, nil
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return Link{}, fmt.Errorf("%w: %s: %w", ErrConnectFailed, p.name, err)
			}
			return Link{}, fmt.Errorf("%w: %s: %w", ErrConnectFailed, p.name, ctx.Err())
		case <-p.clock.After(p.pollInterval):
		}
	}
}

// IsLinkUp re-checks the interface.
func (p *InterfaceProvider) IsLinkUp() bool {
	_, ok, _ := p.probe()
	return ok
}

// IPConfig returns the address seen by the last successful check.
func (p *InterfaceProvider) IPConfig() (IPInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ip, p.up
}

// Disconnect runs the down command, if any.
func (p *InterfaceProvider) Disconnect() error {
	p.mu.Lock()
	p.up = false
	p.mu.Unlock()

	if len(p.commands.Down) == 0 {
		return nil
	}
	if out, err := p.run(context.Background(), p.commands.Down); err != nil {
		return fmt.Errorf("%w: %w: %s", ErrDisconnectFailed, err, out)
	}
	return nil
}

func (p *InterfaceProvider) probe() (IPInfo, bool, error) {
	st, err := p.lookup(p.name)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.up = false
	if err != nil {
		return IPInfo{}, false, err
	}
	if !st.Up {
		return IPInfo{}, false, nil
	}
	for _, a := range st.Addrs {
		if a.Addr().Is4() {
			p.ip = IPInfo{Interface: p.name, Address: a}
			p.up = true
			return p.ip, true, nil
		}
	}
	return IPInfo{}, false, nil
}

func execCommand(ctx context.Context, argv []string) ([]byte, error) {
	return exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
}

func systemLookup(name string) (InterfaceState, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return InterfaceState{}, err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return InterfaceState{}, err
	}

	st := InterfaceState{Up: iface.Flags&net.FlagUp != 0}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		ones, _ := ipNet.Mask.Size()
		st.Addrs = append(st.Addrs, netip.PrefixFrom(addr.Unmap(), ones))
	}
	return st, nil
}
