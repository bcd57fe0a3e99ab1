// Package discovery advertises the device's HTTP API over mDNS, per
// spec §6: "_kwartiwi-p1._tcp" on port 80 with the configured hostname and
// instance name.
package discovery

import (
	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type advertised, per spec §6.
const ServiceType = "_kwartiwi-p1._tcp"

// Advertisement wraps the registered zeroconf server so it can be shut
// down on exit.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers instance on the local network under ServiceType,
// bound to port and the given hostname. The returned Advertisement must be
// closed on shutdown to send the mDNS goodbye packets.
//
// RegisterProxy (rather than plain Register) is used because spec §6
// requires the configured hostname, not whatever os.Hostname() reports for
// the process running the core.
func Advertise(instance, hostname string, port int) (*Advertisement, error) {
	server, err := zeroconf.RegisterProxy(
		instance,
		ServiceType,
		"local.",
		port,
		hostname,
		nil,
		[]string{"txtvers=1"},
		nil,
	)
	if err != nil {
		return nil, err
	}
	return &Advertisement{server: server}, nil
}

// Close unregisters the service, announcing its departure.
func (a *Advertisement) Close() {
	a.server.Shutdown()
}
