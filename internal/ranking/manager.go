// Package ranking: ModelManager is a registry of named models, grounded on
// the map+RWMutex+Register/Route shape of a shard router, repurposed here
// so an admin endpoint can swap the active ranking model without a restart.
package ranking

import (
	"fmt"
	"log/slog"
	"sync"
)

// ModelManager holds a set of named Models plus the currently active one.
type ModelManager struct {
	mu     sync.RWMutex
	models map[string]Model
	active string
	logger *slog.Logger
}

// NewModelManager creates an empty manager.
func NewModelManager() *ModelManager {
	return &ModelManager{
		models: make(map[string]Model),
		logger: slog.Default().With("component", "model-manager"),
	}
}

// Register adds or replaces a named model. If no model is active yet, name
// becomes the active model.
func (m *ModelManager) Register(name string, model Model) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models[name] = model
	if m.active == "" {
		m.active = name
	}
	m.logger.Info("model registered", "name", name)
}

// Activate switches the active model to name, which must already be
// registered.
func (m *ModelManager) Activate(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.models[name]; !ok {
		return fmt.Errorf("unknown ranking model %q", name)
	}
	m.active = name
	m.logger.Info("model activated", "name", name)
	return nil
}

// Active returns the currently active Model and its name.
func (m *ModelManager) Active() (Model, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.models[m.active], m.active
}

// Names returns every registered model name.
func (m *ModelManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.models))
	for name := range m.models {
		names = append(names, name)
	}
	return names
}
