package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
)

const (
	DefaultServiceType = "_serial-file._tcp"
	DefaultDomain      = "local"
)

var ErrNoPeer = errors.New("no peer found")

// ServiceInfo describes a peer reachable over a serial-over-TCP bridge.
type ServiceInfo struct {
	Name   string // instance name
	Type   string // service type, e.g. "_serial-file._tcp"
	Domain string // domain, e.g. "local"
	Addr   net.IP
	Port   int
}

// Address returns the peer in the tcp://host:port form accepted by link.Open.
func (s ServiceInfo) Address() string {
	host := "localhost"
	if s.Addr != nil {
		host = s.Addr.String()
	}
	return "tcp://" + net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// DiscoveryResult carries either a snapshot of known peers or an error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, serviceType string) <-chan DiscoveryResult
}

// FirstPeer browses until at least one peer is seen or ctx ends.
func FirstPeer(ctx context.Context, adapter Adapter, serviceType string) (ServiceInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for result := range adapter.Discover(ctx, serviceType) {
		if result.Error != nil {
			return ServiceInfo{}, result.Error
		}
		if len(result.Services) > 0 {
			return result.Services[0], nil
		}
	}
	if err := ctx.Err(); err != nil {
		return ServiceInfo{}, errors.Join(ErrNoPeer, err)
	}
	return ServiceInfo{}, ErrNoPeer
}

// Query returns the browse name for a service type, e.g.
// "_serial-file._tcp.local.".
func Query(serviceType, domain string) string {
	return serviceType + "." + domain + "."
}
