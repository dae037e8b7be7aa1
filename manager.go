package mvtree

import (
	"sync"
	"time"

	"github.com/alexhholmes/mvtree/internal/readslots"
)

// Manager coordinates transactions over any number of trees. At most one
// write transaction is active at a time; read transactions run concurrently
// with it and with each other, each pinned to the version that was committed
// when it began.
type Manager struct {
	mu      sync.Mutex
	closed  bool
	version uint64 // Last committed version
	nextTx  uint64 // Monotonic transaction id counter

	writer  *Tx              // Current write transaction (nil if none)
	readers *readslots.Slots // Snapshot versions of active readers

	// Trees that have committed through this manager. Old versions are
	// pruned from them once no reader can see those versions.
	trees map[uint64]participant

	logger  Logger
	metrics *Metrics
}

// NewManager creates a transaction manager.
func NewManager(options ...ManagerOption) *Manager {
	opts := defaultManagerOptions()
	for _, opt := range options {
		opt(&opts)
	}
	if opts.logger == nil {
		opts.logger = DiscardLogger{}
	}
	if opts.metrics == nil {
		opts.metrics = NewMetrics()
	}

	return &Manager{
		readers: readslots.New(opts.maxReaders),
		trees:   make(map[uint64]participant),
		logger:  opts.logger,
		metrics: opts.metrics,
	}
}

// Begin starts a new transaction. Only one write transaction may be active
// at a time; a second returns ErrTxInProgress.
func (m *Manager) Begin(writable bool) (*Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	// Enforce single writer rule
	if writable && m.writer != nil {
		return nil, ErrTxInProgress
	}

	m.nextTx++
	tx := &Tx{
		id:       m.nextTx,
		mgr:      m,
		writable: writable,
		snapshot: m.version,
		slot:     -1,
		started:  time.Now(),
	}

	if writable {
		m.writer = tx
		return tx, nil
	}

	slot, err := m.readers.Register(m.version)
	if err != nil {
		m.logger.Warn("read transaction refused", "active", m.readers.Active(), "max", m.readers.Cap())
		return nil, err
	}
	tx.slot = slot
	m.metrics.ActiveReaders.Inc()
	return tx, nil
}

// View executes a function within a read-only transaction.
// The transaction is always rolled back.
func (m *Manager) View(fn func(*Tx) error) error {
	tx, err := m.Begin(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	return fn(tx)
}

// Update executes a function within a read-write transaction.
// If the function returns an error, the transaction is rolled back.
// If the function returns nil, the transaction is committed.
func (m *Manager) Update(fn func(*Tx) error) error {
	tx, err := m.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// Version returns the last committed version.
func (m *Manager) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Close refuses new transactions. Transactions already begun may still
// finish.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.logger.Info("manager closed", "version", m.version, "readers", m.readers.Active())
	return nil
}

// commit resolves every enlisted tree and publishes the new generation.
func (m *Manager) commit(tx *Tx) error {
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	version := m.version + 1
	enlisted := tx.enlisted
	for _, p := range enlisted {
		p.commit(tx, version)
		m.trees[p.objectID()] = p
	}
	m.version = version
	m.writer = nil
	layers := tx.shadows()
	tx.finish()
	m.pruneLocked()

	m.metrics.Commits.Inc()
	m.metrics.CommitLatency.Observe(time.Since(start).Seconds())
	m.logger.Debug("transaction committed",
		"tx", tx.id, "version", version, "trees", len(enlisted), "layers", layers)
	return nil
}

// rollback discards the transaction. A read transaction releases its
// snapshot, which may let older versions be pruned.
func (m *Manager) rollback(tx *Tx) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.writable {
		if m.writer == tx {
			m.writer = nil
		}
		tx.finish()
		m.metrics.Rollbacks.Inc()
		return
	}

	tx.finish()
	m.readers.Release(tx.slot)
	m.metrics.ActiveReaders.Dec()
	m.pruneLocked()
}

// pruneLocked drops retained versions no active reader can see.
// Caller must hold m.mu.
func (m *Manager) pruneLocked() {
	minVersion, ok := m.readers.Min()
	if !ok {
		minVersion = m.version
	}
	for _, p := range m.trees {
		p.prune(minVersion)
	}
}
