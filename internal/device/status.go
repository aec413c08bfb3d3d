package device

// Snapshot is the read-only status a Device reports to statusserver.
type Snapshot struct {
	State         string
	Introspection string
	LastError     string
	Connected     bool
}

// Snapshot returns the device's current state for the debug HTTP endpoint.
func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	state := d.state
	var lastErr string
	if d.lastErr != nil {
		lastErr = d.lastErr.Error()
	}
	d.mu.Unlock()
	return Snapshot{
		State:         state.String(),
		Introspection: d.introspection.String(),
		LastError:     lastErr,
		Connected:     state == Connected,
	}
}
