//go:build cgo

package hotkey

import (
	"fmt"
	"log/slog"

	hook "github.com/robotn/gohook"
)

// Start registers every binding and begins listening in the background.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrRunning
	}

	for _, b := range m.bindings {
		keys, err := ParseCombo(b.Combo)
		if err != nil {
			return fmt.Errorf("register hotkey: %w", err)
		}
		hook.Register(hook.KeyDown, keys, func(hook.Event) {
			// The hook loop must not block on the action.
			go m.fire(b)
		})
		slog.Debug("hotkey registered", "combo", b.Combo)
	}

	events := hook.Start()
	go func() {
		<-hook.Process(events)
		slog.Debug("hotkey listener stopped")
	}()
	m.running = true
	slog.Info("hotkeys enabled", "count", len(m.bindings))
	return nil
}

// Stop ends listening. Safe to call when not running.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	hook.End()
	m.running = false
}
