//go:build !cgo

package hotkey

// Start returns ErrUnsupported when built without cgo.
func (m *Manager) Start() error {
	return ErrUnsupported
}

// Stop is a no-op when built without cgo.
func (m *Manager) Stop() {}
