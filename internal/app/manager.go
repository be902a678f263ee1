package app

import (
	"context"
	"log/slog"
	"sync/atomic"

	"slackalert/internal/clock"
	"slackalert/internal/config"
	"slackalert/internal/dispatch"
	"slackalert/internal/domain"
)

// Manager routes ingested alerts into the dispatcher over the current
// configuration snapshot.
// Params: initial config, logger, and clock.
// Returns: alert sink shared by both ingest transports.
type Manager struct {
	current    atomic.Pointer[config.Config]
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher
}

// NewManager creates a manager with the initial configuration.
// Params: initial config, logger, and clock.
// Returns: initialized manager.
func NewManager(cfg config.Config, logger *slog.Logger, clk clock.Clock) *Manager {
	manager := &Manager{logger: logger}
	manager.current.Store(&cfg)
	manager.dispatcher = dispatch.NewDispatcher(manager.Snapshot, logger, clk)
	return manager
}

// Snapshot returns the configuration snapshot current at call time.
// Params: none.
// Returns: copy of the active config.
func (m *Manager) Snapshot() config.Config {
	return *m.current.Load()
}

// ApplyConfig swaps in a new configuration snapshot.
// Params: validated next config.
// Returns: in-flight sends keep the snapshot they started with.
func (m *Manager) ApplyConfig(cfg config.Config) {
	m.current.Store(&cfg)
}

// Push dispatches one ingested alert.
// Params: context and decoded alert.
// Returns: dispatch error; permanent-marked errors must not be retried.
func (m *Manager) Push(ctx context.Context, alert domain.StatusAlert) error {
	return m.dispatcher.Dispatch(ctx, alert)
}
