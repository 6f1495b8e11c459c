// Package hotkey registers global keyboard shortcuts.
package hotkey

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnsupported is returned when the binary was built without hook support.
	ErrUnsupported = errors.New("hotkey: unsupported platform")
	// ErrRunning is returned by Start when the manager is already listening.
	ErrRunning = errors.New("hotkey: already running")
)

// Default shortcuts.
const (
	ComboToggle = "ctrl+shift+s"
	ComboReset  = "ctrl+shift+n"
)

// repeatGuard suppresses auto-repeat while a combo is held down.
const repeatGuard = 400 * time.Millisecond

var modifiers = []string{"ctrl", "shift", "alt", "cmd"}

// Binding maps a key combination such as "ctrl+shift+s" to an action.
type Binding struct {
	Combo  string
	Action func()
}

// Manager listens for its bindings system-wide between Start and Stop.
type Manager struct {
	bindings []Binding

	mu      sync.Mutex
	running bool
	last    map[string]time.Time
	now     func() time.Time
}

// NewManager creates a Manager for the given bindings.
func NewManager(bindings ...Binding) *Manager {
	return &Manager{
		bindings: bindings,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// ParseCombo turns "Ctrl+Shift+S" into the hook key list: the main key
// first, then the modifiers in a fixed order.
func ParseCombo(combo string) ([]string, error) {
	var key string
	var mods []string
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			return nil, fmt.Errorf("empty key in %q", combo)
		case part == "control":
			part = "ctrl"
			fallthrough
		case slices.Contains(modifiers, part):
			if !slices.Contains(mods, part) {
				mods = append(mods, part)
			}
		case key != "":
			return nil, fmt.Errorf("more than one key in %q", combo)
		default:
			key = part
		}
	}
	if key == "" {
		return nil, fmt.Errorf("no key in %q", combo)
	}
	if len(mods) == 0 {
		return nil, fmt.Errorf("no modifier in %q", combo)
	}
	slices.SortFunc(mods, func(a, b string) int {
		return slices.Index(modifiers, a) - slices.Index(modifiers, b)
	})
	return append([]string{key}, mods...), nil
}

// fire runs the action for combo unless it already fired within repeatGuard.
func (m *Manager) fire(b Binding) {
	m.mu.Lock()
	now := m.now()
	if prev, ok := m.last[b.Combo]; ok && now.Sub(prev) < repeatGuard {
		m.mu.Unlock()
		return
	}
	m.last[b.Combo] = now
	m.mu.Unlock()

	b.Action()
}
