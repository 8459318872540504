// Package identity defines the device/module naming used to address endpoints
// on the fabric. A module is always owned by a device; methods and telemetry
// are attributed to the (device, module) pair.
package identity

import (
	"fmt"
	"strings"
)

// ModuleIdentity names one module instance on one device. Values are plain
// identifiers; neither part may be empty or contain '/'. ModuleIdentity is a
// value type and is never mutated after construction.
type ModuleIdentity struct {
	DeviceID string
	ModuleID string
}

// New builds a ModuleIdentity from its parts. Call Validate when the parts
// come from configuration or the wire.
func New(deviceID, moduleID string) ModuleIdentity {
	return ModuleIdentity{DeviceID: deviceID, ModuleID: moduleID}
}

// Parse splits a "device/module" string into a ModuleIdentity.
func Parse(s string) (ModuleIdentity, error) {
	i := strings.IndexByte(s, '/')
	if i < 0 {
		return ModuleIdentity{}, fmt.Errorf("identity: missing '/' in %q", s)
	}
	id := ModuleIdentity{DeviceID: s[:i], ModuleID: s[i+1:]}
	if err := id.Validate(); err != nil {
		return ModuleIdentity{}, err
	}
	return id, nil
}

// String renders the canonical "device/module" form.
func (m ModuleIdentity) String() string { return m.DeviceID + "/" + m.ModuleID }

// IsZero reports whether both parts are unset.
func (m ModuleIdentity) IsZero() bool { return m.DeviceID == "" && m.ModuleID == "" }

// Validate checks both parts are present and free of the separator.
func (m ModuleIdentity) Validate() error {
	if strings.TrimSpace(m.DeviceID) == "" {
		return fmt.Errorf("identity: empty device id")
	}
	if strings.TrimSpace(m.ModuleID) == "" {
		return fmt.Errorf("identity: empty module id")
	}
	if strings.ContainsRune(m.DeviceID, '/') || strings.ContainsRune(m.ModuleID, '/') {
		return fmt.Errorf("identity: %q must not contain '/'", m.String())
	}
	return nil
}
