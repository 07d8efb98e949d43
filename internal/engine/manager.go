package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corvid-labs/eventindex/pkg/resilience"
	"github.com/corvid-labs/eventindex/pkg/tracing"
)

// ManagerConfig controls the document index manager's maintenance cadence,
// capacity, and snapshot behavior.
type ManagerConfig struct {
	InitialBuckets     int
	MaxExpireSize      int
	ApplyInterval      time.Duration
	CompactionInterval int // maintenance ticks between compaction passes
	RestoreOnStartup   bool
	DumpOnExit         bool
	SnapshotPrefix     string
}

// Manager owns the EventIndex, runs the periodic maintenance task, and
// implements snapshot dump/restore. It is the top-level component a
// deployment constructs and shuts down.
type Manager struct {
	cfg     ManagerConfig
	index   *EventIndex
	logger  *slog.Logger
	breaker *resilience.CircuitBreaker

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	onTick func(applied, expired int)
}

// SetOnTick registers a callback invoked once per maintenance tick with the
// applied and expired counts, whether or not either is nonzero. Intended
// for a caller-owned analytics collector; Manager itself never depends on
// one. Must be called before StartMaintain.
func (m *Manager) SetOnTick(fn func(applied, expired int)) {
	m.onTick = fn
}

// NewManager constructs a Manager. If cfg.RestoreOnStartup is set, it
// attempts to restore from cfg.SnapshotPrefix; on any restore failure it
// logs a warning and falls back to an empty index rather than risking
// partial state.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		cfg:     cfg,
		index:   NewEventIndex(cfg.InitialBuckets, cfg.MaxExpireSize),
		logger:  slog.Default().With("component", "index-manager"),
		breaker: resilience.NewCircuitBreaker("snapshot-dump", resilience.CircuitBreakerConfig{}),
	}
	if cfg.RestoreOnStartup && cfg.SnapshotPrefix != "" {
		if err := m.Restore(cfg.SnapshotPrefix); err != nil {
			m.logger.Warn("restore failed, starting with an empty index", "error", err)
			m.index = NewEventIndex(cfg.InitialBuckets, cfg.MaxExpireSize)
		}
	}
	return m
}

// Index returns the underlying EventIndex.
func (m *Manager) Index() *EventIndex {
	return m.index
}

// StartMaintain spawns the maintenance goroutine: every ApplyInterval it
// samples wall clock and calls Apply; every CompactionInterval ticks it
// additionally runs a writer-exclusive compaction pass.
func (m *Manager) StartMaintain() {
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.maintainLoop()
}

func (m *Manager) maintainLoop() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.cfg.ApplyInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-ticker.C:
			ctx, span := tracing.StartSpan(context.Background(), "maintenance.tick", fmt.Sprintf("tick-%d", tick))
			_, applySpan := tracing.StartChildSpan(ctx, "maintenance.apply")
			applied, expired := m.index.Apply(ExpireTime(now.Unix()))
			applySpan.SetAttr("applied", applied)
			applySpan.SetAttr("expired", expired)
			applySpan.End()
			span.End()
			if applied > 0 || expired > 0 {
				m.logger.Debug("maintenance apply", "applied", applied, "expired", expired)
				span.Log()
			}
			if m.onTick != nil {
				m.onTick(applied, expired)
			}
			tick++
			if m.cfg.CompactionInterval > 0 && tick%m.cfg.CompactionInterval == 0 {
				pruned := m.index.Compact()
				if pruned > 0 {
					m.logger.Debug("compaction pass", "pruned_terms", pruned)
				}
			}
		}
	}
}

// StopMaintain signals the maintenance goroutine to stop and waits for it
// to exit. If cfg.DumpOnExit is set, it dumps to cfg.SnapshotPrefix after
// the goroutine has stopped.
func (m *Manager) StopMaintain() error {
	m.stopOnce.Do(func() {
		if m.stopCh != nil {
			close(m.stopCh)
		}
	})
	if m.doneCh != nil {
		<-m.doneCh
	}
	if m.cfg.DumpOnExit && m.cfg.SnapshotPrefix != "" {
		return m.Dump(m.cfg.SnapshotPrefix)
	}
	return nil
}

// Dump quiesces the writer and writes the index to <prefix>.idx and
// <prefix>.exp, each via an atomic temp-file-then-rename so a crash mid-
// write never leaves a corrupt snapshot in place.
func (m *Manager) Dump(prefix string) error {
	return m.breaker.Execute(func() error { return m.dumpOnce(prefix) })
}

func (m *Manager) dumpOnce(prefix string) error {
	idxPath := prefix + ".idx"
	expPath := prefix + ".exp"

	idxFile, idxTmp, err := createTemp(idxPath)
	if err != nil {
		return fmt.Errorf("creating postings snapshot temp file: %w", err)
	}
	defer os.Remove(idxTmp)

	expFile, expTmp, err := createTemp(expPath)
	if err != nil {
		idxFile.Close()
		return fmt.Errorf("creating expiration snapshot temp file: %w", err)
	}
	defer os.Remove(expTmp)

	dumpErr := m.index.Dump(idxFile, expFile)
	syncErr1 := idxFile.Sync()
	syncErr2 := expFile.Sync()
	idxFile.Close()
	expFile.Close()
	if dumpErr != nil {
		return fmt.Errorf("dumping index: %w", dumpErr)
	}
	if syncErr1 != nil {
		return fmt.Errorf("syncing postings snapshot: %w", syncErr1)
	}
	if syncErr2 != nil {
		return fmt.Errorf("syncing expiration snapshot: %w", syncErr2)
	}

	if err := os.Rename(idxTmp, idxPath); err != nil {
		return fmt.Errorf("renaming postings snapshot: %w", err)
	}
	if err := os.Rename(expTmp, expPath); err != nil {
		return fmt.Errorf("renaming expiration snapshot: %w", err)
	}
	m.logger.Info("snapshot dumped", "prefix", prefix)
	return nil
}

// Restore replaces the index's contents from <prefix>.idx and
// <prefix>.exp. On any failure the index's contents are left unchanged:
// NewManager then starts from an empty index, and the admin restore
// handler reports the error and keeps serving the current contents.
func (m *Manager) Restore(prefix string) error {
	idxFile, err := os.Open(prefix + ".idx")
	if err != nil {
		return fmt.Errorf("opening postings snapshot: %w", err)
	}
	defer idxFile.Close()

	expFile, err := os.Open(prefix + ".exp")
	if err != nil {
		return fmt.Errorf("opening expiration snapshot: %w", err)
	}
	defer expFile.Close()

	if err := m.index.Load(idxFile, expFile); err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	m.logger.Info("snapshot restored", "prefix", prefix)
	return nil
}

// createTemp creates path+".tmp" in path's directory, creating the
// directory first if necessary.
func createTemp(path string) (*os.File, string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", err
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, "", err
	}
	return f, tmp, nil
}

// Stats is the observable-state counter set the spec requires.
type Stats struct {
	PostingCount    int
	ExpireTableSize int
	UpdatesApplied  uint64
	UpdatesExpired  uint64
	QueueDepth      int
}

// Stats reports the manager's current observable state. queueDepth is
// supplied by the caller since the pipeline is owned outside the manager.
func (m *Manager) Stats(queueDepth int) Stats {
	applied, expired := m.index.Stats()
	return Stats{
		PostingCount:    m.index.PostingCount(),
		ExpireTableSize: m.index.ExpireTableSize(),
		UpdatesApplied:  applied,
		UpdatesExpired:  expired,
		QueueDepth:      queueDepth,
	}
}
