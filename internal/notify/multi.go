package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hostpulse/hostpulse/internal/models"
)

// Dispatcher is one delivery channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.AlertEvent, rule *models.AlertRule)
}

// Multi routes event transitions to the channels a rule names. A rule with
// no channels goes to every registered channel. Registration is safe
// alongside dispatch, so channels can be swapped on config reload.
type Multi struct {
	mu       sync.RWMutex
	channels map[string]Dispatcher
	order    []string
}

// NewMulti creates an empty router.
func NewMulti() *Multi {
	return &Multi{channels: make(map[string]Dispatcher)}
}

// Register adds a named channel. Registering the same name twice replaces
// the earlier channel.
func (m *Multi) Register(name string, d Dispatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[name]; !ok {
		m.order = append(m.order, name)
	}
	m.channels[name] = d
}

// Dispatch fans the transition out to the rule's channels in registration
// order. Unknown channel names are logged and skipped.
func (m *Multi) Dispatch(ctx context.Context, event *models.AlertEvent, rule *models.AlertRule) {
	m.mu.RLock()
	var targets []Dispatcher
	if len(rule.Channels) == 0 {
		targets = make([]Dispatcher, 0, len(m.order))
		for _, name := range m.order {
			targets = append(targets, m.channels[name])
		}
	} else {
		targets = make([]Dispatcher, 0, len(rule.Channels))
		for _, name := range rule.Channels {
			d, ok := m.channels[name]
			if !ok {
				slog.Warn("notify: rule names unknown channel — skipping",
					"rule", rule.Name, "channel", name)
				continue
			}
			targets = append(targets, d)
		}
	}
	m.mu.RUnlock()

	for _, d := range targets {
		d.Dispatch(ctx, event, rule)
	}
}
