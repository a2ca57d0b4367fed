package polling

import (
	"context"
	"sort"
	"sync"
	"time"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/metrics"
	"prawnik-web/internal/pkg/logger"
)

// Admission releases the concurrency slot held by a query.
type Admission interface {
	Remove(id string)
}

// Sink receives poll state changes of one session.
type Sink interface {
	PollStateChanged(sessionID string, state dto.PollState)
	PollFinished(sessionID string, state dto.PollState)
}

type ManagerConfig struct {
	SessionID string
	Backend   Backend
	Fast      FastConfig
	Accurate  AccurateConfig
	Admission Admission
	Sink      Sink
	Metrics   *metrics.Collectors
	Logger    logger.ILogger
	Now       func() time.Time
}

// KeepFinished bounds how many finished runs of each kind a manager keeps
// for Snapshot. Older ones are dropped; their state lives on in the backend.
const KeepFinished = 20

type run struct {
	seq    uint64
	poller Poller
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Manager owns the pollers of one session. The most recent finished
// pollers are kept so their last state can still be read.
type Manager struct {
	cfg    ManagerConfig
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	fast     map[string]*run
	accurate map[string]*run
	seq      uint64
	wg       sync.WaitGroup
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		fast:     make(map[string]*run),
		accurate: make(map[string]*run),
	}
}

// StartFast begins polling the fast answer of queryID. A second call for
// the same id while the first is still running is a no-op.
func (m *Manager) StartFast(queryID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return
	}
	if existing, ok := m.fast[queryID]; ok && !existing.finished() {
		return
	}
	m.startFastLocked(queryID)
}

// RestartFast polls the fast answer of queryID again once the previous run
// ended. admit is asked for a concurrency slot first; it reports false to
// refuse. RestartFast reports whether a run is now in flight.
func (m *Manager) RestartFast(queryID string, admit func() bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return false
	}
	if existing, ok := m.fast[queryID]; ok && !existing.finished() {
		return true
	}
	if admit != nil && !admit() {
		return false
	}
	m.startFastLocked(queryID)
	return true
}

func (m *Manager) startFastLocked(queryID string) {
	poller := NewFastPoller(queryID, m.cfg.Backend, m.cfg.Fast)
	m.fast[queryID] = m.launch(poller, func(state dto.PollState) {
		if m.cfg.Admission != nil {
			m.cfg.Admission.Remove(queryID)
		}
		m.finish("fast", state)
	})
	pruneFinished(m.fast, KeepFinished)
}

// StartAccurate starts the accurate answer flow from the request step.
// Any previous accurate run for the same query is canceled first, which
// makes this the retry path as well.
func (m *Manager) StartAccurate(queryID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return
	}
	if existing, ok := m.accurate[queryID]; ok {
		existing.cancel()
	}

	poller := NewAccuratePoller(queryID, m.cfg.Backend, m.cfg.Accurate)
	m.accurate[queryID] = m.launch(poller, func(state dto.PollState) {
		m.finish("accurate", state)
	})
	pruneFinished(m.accurate, KeepFinished)
}

// pruneFinished drops the oldest finished runs beyond keep. Runs still in
// flight are never dropped.
func pruneFinished(runs map[string]*run, keep int) {
	var finished []string
	for id, r := range runs {
		if r.finished() {
			finished = append(finished, id)
		}
	}
	if len(finished) <= keep {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return runs[finished[i]].seq < runs[finished[j]].seq
	})
	for _, id := range finished[:len(finished)-keep] {
		delete(runs, id)
	}
}

func (m *Manager) launch(p Poller, onDone func(dto.PollState)) *run {
	ctx, cancel := context.WithCancel(m.ctx)
	m.seq++
	r := &run{seq: m.seq, poller: p, cancel: cancel, done: make(chan struct{})}

	runner := NewRunner(p, m.cfg.Now, func(state dto.PollState) {
		if m.cfg.Sink != nil {
			m.cfg.Sink.PollStateChanged(m.cfg.SessionID, state)
		}
	}, onDone)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(r.done)
		defer cancel()
		runner.Run(ctx)
	}()
	return r
}

func (m *Manager) finish(poller string, state dto.PollState) {
	m.cfg.Metrics.ObservePollOutcome(poller, state.Phase)
	if m.cfg.Logger != nil && state.ErrorCode != "" {
		m.cfg.Logger.Warn("PollManager", "Poller finished with error", map[string]interface{}{
			"session_id": m.cfg.SessionID,
			"query_id":   state.QueryId,
			"poller":     poller,
			"phase":      state.Phase,
			"error_code": state.ErrorCode,
		})
	}
	if m.cfg.Sink != nil {
		m.cfg.Sink.PollFinished(m.cfg.SessionID, state)
	}
}

// Cancel stops both pollers of a query. A canceled fast poller gives its
// admission slot back without publishing anything.
func (m *Manager) Cancel(queryID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.fast[queryID]; ok {
		if !r.finished() && m.cfg.Admission != nil {
			m.cfg.Admission.Remove(queryID)
		}
		r.cancel()
		delete(m.fast, queryID)
	}
	if r, ok := m.accurate[queryID]; ok {
		r.cancel()
		delete(m.accurate, queryID)
	}
}

// CancelAll stops every poller; the manager accepts no new work afterwards.
func (m *Manager) CancelAll() {
	m.cancel()
}

// Wait blocks until every runner goroutine has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Snapshot returns the latest states for queryID; nil when no such poller
// was started.
func (m *Manager) Snapshot(queryID string) (fast, accurate *dto.PollState) {
	m.mu.Lock()
	fr, hasFast := m.fast[queryID]
	ar, hasAccurate := m.accurate[queryID]
	m.mu.Unlock()

	if hasFast {
		s := fr.poller.Snapshot()
		fast = &s
	}
	if hasAccurate {
		s := ar.poller.Snapshot()
		accurate = &s
	}
	return fast, accurate
}

// FastRunning reports whether a fast run for queryID is in flight.
func (m *Manager) FastRunning(queryID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.fast[queryID]
	return ok && !r.finished()
}

// AccurateRunning reports whether an accurate run for queryID is in flight.
func (m *Manager) AccurateRunning(queryID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.accurate[queryID]
	return ok && !r.finished()
}
