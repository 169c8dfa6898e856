// Package config loads the switch topology a cmd/ binary starts from: its
// physical ports, the memory devices attached to them, and the virtual CXL
// switch layout to provision on top. It is a thin yaml.v3 contract adapter,
// not a feature of the fabric emulator core.
package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// PortSpec describes one physical port's static identity.
type PortSpec struct {
	Index    uint8  `yaml:"index"`
	Type     string `yaml:"type"` // "upstream" or "downstream"
	VendorID uint16 `yaml:"vendor_id"`
	DeviceID uint16 `yaml:"device_id"`
	// LogicalDevices is the number of LDs hosted behind this port; 0 or 1
	// means a single-logical-device endpoint.
	LogicalDevices uint8 `yaml:"logical_devices,omitempty"`
	// MemorySize is the device's advertised DPA range in bytes.
	MemorySize uint64 `yaml:"memory_size,omitempty"`
	// BackingFile is a sparse file path backing the device's memory. Load
	// stores it as written; a relative path is not resolved.
	BackingFile string `yaml:"backing_file,omitempty"`
}

// VirtualSwitchSpec describes one virtual CXL switch to create at
// startup.
type VirtualSwitchSpec struct {
	ID         uint8 `yaml:"id"`
	VppbCount  uint8 `yaml:"vppb_count"`
	UpstreamID uint8 `yaml:"upstream_port"`
}

// Topology is the complete static description of a switch instance.
type Topology struct {
	ListenAddress   string              `yaml:"listen_address"`
	ManagementAddress string            `yaml:"management_address,omitempty"`
	MetricsAddress  string              `yaml:"metrics_address,omitempty"`
	Ports           []PortSpec          `yaml:"ports"`
	VirtualSwitches []VirtualSwitchSpec `yaml:"virtual_switches,omitempty"`
}

// Load parses a Topology from r.
func Load(r io.Reader) (*Topology, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	return &t, nil
}

// Validate checks the topology for obvious inconsistencies: duplicate port
// indices, more than one upstream port, and virtual switches referencing a
// non-upstream or unknown port.
func (t *Topology) Validate() error {
	seen := make(map[uint8]PortSpec, len(t.Ports))
	upstreamCount := 0
	for _, p := range t.Ports {
		if _, dup := seen[p.Index]; dup {
			return fmt.Errorf("duplicate port index %d", p.Index)
		}
		seen[p.Index] = p
		if p.Type == "upstream" {
			upstreamCount++
		} else if p.Type != "downstream" {
			return fmt.Errorf("port %d: unknown type %q", p.Index, p.Type)
		}
	}
	if upstreamCount > 1 {
		return fmt.Errorf("topology has %d upstream ports, want at most 1", upstreamCount)
	}

	for _, vs := range t.VirtualSwitches {
		up, ok := seen[vs.UpstreamID]
		if !ok {
			return fmt.Errorf("virtual switch %d: unknown upstream port %d", vs.ID, vs.UpstreamID)
		}
		if up.Type != "upstream" {
			return fmt.Errorf("virtual switch %d: port %d is not an upstream port", vs.ID, vs.UpstreamID)
		}
	}
	return nil
}
