package app

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Capability names an optional facility the application can use.
type Capability string

const (
	// CapabilityFrames is a host that provides presentation frame callbacks.
	CapabilityFrames Capability = "frames"

	// CapabilityEventSource is a publish/subscribe transport for the router.
	CapabilityEventSource Capability = "event-source"

	// CapabilityConfigFile is a configuration file on disk that can be
	// watched for changes.
	CapabilityConfigFile Capability = "config-file"

	// CapabilitySystemd is a service manager notification socket.
	CapabilitySystemd Capability = "systemd"
)

// ErrCapabilityMissing is returned by Require when a capability is absent.
var ErrCapabilityMissing = errors.New("capability missing")

// Capabilities records which optional facilities were detected at
// bootstrap, together with the value that provides each one.
type Capabilities struct {
	mu       sync.RWMutex
	provided map[Capability]any
}

// NewCapabilities creates an empty capability set.
func NewCapabilities() *Capabilities {
	return &Capabilities{provided: make(map[Capability]any)}
}

// Provide records c as available, backed by v.
func (c *Capabilities) Provide(name Capability, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provided[name] = v
}

// Has reports whether name is available.
func (c *Capabilities) Has(name Capability) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.provided[name]
	return ok
}

// Get returns the value backing name.
func (c *Capabilities) Get(name Capability) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.provided[name]
	return v, ok
}

// Require returns an error wrapping ErrCapabilityMissing that lists every
// absent name.
func (c *Capabilities) Require(names ...Capability) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var missing []string
	for _, n := range names {
		if _, ok := c.provided[n]; !ok {
			missing = append(missing, string(n))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrCapabilityMissing, strings.Join(missing, ", "))
}

// List returns the available capability names, sorted.
func (c *Capabilities) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.provided))
	for n := range c.provided {
		out = append(out, string(n))
	}
	sort.Strings(out)
	return out
}

// detectEnvironment adds the capabilities that depend on the process
// environment.
func detectEnvironment(caps *Capabilities, configPath string) {
	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && !info.IsDir() {
			caps.Provide(CapabilityConfigFile, configPath)
		}
	}
	if socket := os.Getenv("NOTIFY_SOCKET"); socket != "" {
		caps.Provide(CapabilitySystemd, socket)
	}
}
