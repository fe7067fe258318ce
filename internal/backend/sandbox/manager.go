package sandbox

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/agentfs/agentfs/internal/shared/id"
)

// Manager tracks live executors by ID.
type Manager struct {
	mu        sync.RWMutex
	executors map[string]*Executor
	cfg       Config
	newRunner func() Runner
	logger    *zap.Logger
}

// NewManager creates an empty manager. All executors it creates share cfg
// and run on the host unless WithDocker is set.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		executors: make(map[string]*Executor),
		cfg:       cfg,
		newRunner: NewLocalRunner,
		logger:    logger,
	}
}

// WithDocker makes new executors run inside disposable containers of the
// given image.
func (m *Manager) WithDocker(image string) *Manager {
	m.newRunner = func() Runner {
		return NewDockerRunner(image, string(id.NewSandboxID()))
	}
	return m
}

// Create starts a new executor and registers it.
func (m *Manager) Create(ctx context.Context) (*Executor, error) {
	e, err := New(ctx, m.cfg, m.newRunner(), m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.executors[e.ID()] = e
	m.mu.Unlock()
	return e, nil
}

// Get returns the executor with the given ID.
func (m *Manager) Get(id string) (*Executor, error) {
	m.mu.RLock()
	e, ok := m.executors[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sandbox %s not found", id)
	}
	return e, nil
}

// Stop stops the executor with the given ID and removes it.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	e, ok := m.executors[id]
	delete(m.executors, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("sandbox %s not found", id)
	}
	return e.Stop()
}

// IDs returns the IDs of all live executors, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.executors))
	for id := range m.executors {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Count returns the number of live executors.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.executors)
}

// CloseAll stops every executor. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	executors := m.executors
	m.executors = make(map[string]*Executor)
	m.mu.Unlock()

	for id, e := range executors {
		if err := e.Stop(); err != nil {
			m.logger.Warn("sandbox stop failed", zap.String("id", id), zap.Error(err))
		}
	}
}
