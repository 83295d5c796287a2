// Package discovery advertises running servers over optional
// backends. The registry is built once at startup, priority ordered;
// a backend that fails to initialize is skipped, never fatal.
package discovery

import (
	"dev.c0redev.viewlink/internal/config"

	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// Publisher advertises one service instance.
type Publisher interface {
	// Publish announces instance as reachable on addr.
	Publish(instance, addr string) error
	Close() error
}

// Backend: one advertisement mechanism. Probe initializes it; a
// probe failure only disables this backend.
type Backend struct {
	Name    string
	Enabled bool
	Probe   func() (Publisher, error)
}

// Registry: immutable, priority-ordered backend list.
type Registry struct {
	backends []Backend
}

// NewRegistry builds the default registry from settings:
// mdns first (DISCOVERY_MDNS, default on), then the directory
// backend (DISCOVERY_DIRECTORY + DISCOVERY_DIRECTORY_ADDR, default
// off).
func NewRegistry(settings config.Settings) *Registry {
	dirAddr := settings.String("DISCOVERY_DIRECTORY_ADDR", "")
	return &Registry{backends: []Backend{
		{
			Name:    "mdns",
			Enabled: settings.Bool("DISCOVERY_MDNS", true),
			Probe:   probeMDNS,
		},
		{
			Name:    "directory",
			Enabled: settings.Bool("DISCOVERY_DIRECTORY", false) && dirAddr != "",
			Probe:   func() (Publisher, error) { return probeDirectory(dirAddr) },
		},
	}}
}

// NewRegistryWith builds a registry over an explicit backend list,
// in priority order.
func NewRegistryWith(backends ...Backend) *Registry {
	return &Registry{backends: backends}
}

// GetPublisher returns the first enabled backend that initializes.
// ok is false when none do: discovery is simply unavailable.
func (r *Registry) GetPublisher() (Publisher, bool) {
	for _, b := range r.backends {
		if !b.Enabled {
			continue
		}
		p, err := b.Probe()
		if err != nil {
			logger.WithError(err).Warnf("discovery: backend %s unavailable", b.Name)
			continue
		}
		logger.Debugf("discovery: using backend %s", b.Name)
		return p, true
	}
	return nil, false
}
