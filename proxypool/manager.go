package proxypool

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"lokipool/internal/shared/logger"
	"lokipool/internal/shared/types"
	"lokipool/proxypool/model"
	"lokipool/proxypool/prober"
	"lokipool/proxypool/scraper"
	"lokipool/proxypool/storage"
)

// Prober abstracts the single-candidate probe so the pool can be
// exercised without the network.
type Prober interface {
	Probe(ctx context.Context, addr string) (time.Duration, error)
}

var _ Prober = (*prober.Prober)(nil)

// Manager owns the record map and the latency-ordered view derived
// from it. Sweeps are serialized with each other; readers only take a
// brief read lock.
type Manager struct {
	cfg      *types.Config
	prober   Prober
	storage  storage.Storage
	scrapers []scraper.Scraper
	selector *Selector

	mu      sync.RWMutex
	records map[string]*model.ProxyRecord
	// ordered is the derived view: alive addresses ascending by
	// latency, unmeasured records last, ties broken lexically.
	ordered []string

	sweepMu sync.Mutex

	healthTicker *time.Ticker
	rotateTicker *time.Ticker
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

// NewManager creates the pool manager. Candidate sources are attached
// separately with AddScraper.
func NewManager(cfg *types.Config, st storage.Storage, pr Prober) *Manager {
	return &Manager{
		cfg:      cfg,
		prober:   pr,
		storage:  st,
		records:  make(map[string]*model.ProxyRecord),
		stopChan: make(chan struct{}),
	}
}

// AddScraper attaches a candidate source to the manager.
func (m *Manager) AddScraper(s scraper.Scraper) {
	m.scrapers = append(m.scrapers, s)
}

// Ingest adds records for addresses not yet present. Malformed
// entries are skipped, duplicates are no-ops and leave the existing
// record untouched. Returns the number of records added.
func (m *Manager) Ingest(addresses []string) int {
	l := logger.WithComponent("ProxyPool/Manager")

	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for _, addr := range addresses {
		host, _, err := net.SplitHostPort(addr)
		if err != nil || host == "" {
			l.Warn().Str("address", addr).Msg("Invalid address format, skipping.")
			continue
		}
		if _, exists := m.records[addr]; exists {
			continue
		}
		m.records[addr] = model.NewProxyRecord(addr)
		added++
	}
	return added
}

// Sweep runs one full health-check pass over every current record,
// bounded by the configured probing concurrency. Records that cross
// the retry limit are evicted; afterwards the ordered view is
// recomputed and the surviving addresses are persisted.
func (m *Manager) Sweep() {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	l := logger.WithComponent("ProxyPool/Manager")

	m.mu.RLock()
	candidates := make([]string, 0, len(m.records))
	for addr := range m.records {
		candidates = append(candidates, addr)
	}
	m.mu.RUnlock()

	if len(candidates) == 0 {
		l.Debug().Msg("Sweep skipped, pool is empty.")
		return
	}

	concurrency := m.cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	l.Info().Int("count", len(candidates)).Int("concurrency", concurrency).Msg("Starting sweep...")

	type probeResult struct {
		addr    string
		latency time.Duration
		err     error
	}

	resultsChan := make(chan probeResult, len(candidates))
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, addr := range candidates {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(addr string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			latency, err := m.prober.Probe(context.Background(), addr)
			resultsChan <- probeResult{addr: addr, latency: latency, err: err}
		}(addr)
	}

	wg.Wait()
	close(resultsChan)

	degraded := time.Duration(m.cfg.DegradedThresholdMs) * time.Millisecond

	m.mu.Lock()
	healthy, evicted := 0, 0
	for res := range resultsChan {
		rec, ok := m.records[res.addr]
		if !ok {
			continue
		}
		if res.err == nil {
			rec.ApplySuccess(res.latency, degraded)
			healthy++
			continue
		}
		var pf *prober.ProbeFailure
		if errors.As(res.err, &pf) {
			l.Debug().Str("address", res.addr).Str("kind", pf.Kind.String()).Int("failures", rec.Failures+1).Msg("Probe failed.")
		}
		if rec.ApplyFailure(m.cfg.RetryTimes) {
			delete(m.records, res.addr)
			evicted++
			l.Info().Str("address", res.addr).Int("failures", rec.Failures).Msg("Proxy evicted from pool after consecutive failures.")
		}
	}
	m.recomputeViewLocked()
	remaining := len(m.records)
	m.mu.Unlock()

	if err := m.persist(); err != nil {
		l.Error().Err(err).Msg("Failed to persist proxy file after sweep.")
	}

	l.Info().Int("healthy", healthy).Int("evicted", evicted).Int("remaining", remaining).Msg("Sweep finished.")

	if m.selector != nil {
		m.selector.EnsureValid()
	}
}

// recomputeViewLocked rebuilds the ordered view. Must be called with
// the write lock held. Dead records never reach this point, they are
// already deleted from the map.
func (m *Manager) recomputeViewLocked() {
	addrs := make([]string, 0, len(m.records))
	for addr := range m.records {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		a, b := m.records[addrs[i]], m.records[addrs[j]]
		aMeasured, bMeasured := a.Latency > 0, b.Latency > 0
		if aMeasured != bMeasured {
			return aMeasured
		}
		if aMeasured && a.Latency != b.Latency {
			return a.Latency < b.Latency
		}
		return a.Address < b.Address
	})
	m.ordered = addrs
}

// Snapshot returns a point-in-time copy of the ordered view.
func (m *Manager) Snapshot() []model.ProxyRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.ProxyRecord, 0, len(m.ordered))
	for _, addr := range m.ordered {
		if rec, ok := m.records[addr]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// OrderedAddresses returns a copy of the ordered view's addresses.
func (m *Manager) OrderedAddresses() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// Lookup resolves an address against the live pool.
func (m *Manager) Lookup(addr string) (model.ProxyRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[addr]
	if !ok {
		return model.ProxyRecord{}, false
	}
	return *rec, true
}

// Len returns the number of records in the pool.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Refill asks every attached candidate source for new addresses and
// ingests whatever they return. It fails only when every source
// fails; a pool left empty afterwards is a valid state.
func (m *Manager) Refill() error {
	l := logger.WithComponent("ProxyPool/Manager")

	if len(m.scrapers) == 0 {
		return errors.New("no candidate sources configured")
	}

	var addresses []string
	anyOK := false
	for _, s := range m.scrapers {
		addrs, err := s.Scrape()
		if err != nil {
			l.Warn().Err(err).Str("source", s.Name()).Msg("Candidate source failed.")
			continue
		}
		anyOK = true
		addresses = append(addresses, addrs...)
	}
	if !anyOK {
		return errors.New("all candidate sources failed")
	}

	added := m.Ingest(addresses)
	l.Info().Int("fetched", len(addresses)).Int("added", added).Msg("Refill finished.")

	if err := m.persist(); err != nil {
		l.Error().Err(err).Msg("Failed to persist proxy file after refill.")
	}
	return nil
}

// persist writes the current live addresses back to storage so the
// proxy file only ever contains records that are still in the pool.
func (m *Manager) persist() error {
	m.mu.RLock()
	addrs := make([]string, 0, len(m.records))
	for addr := range m.records {
		addrs = append(addrs, addr)
	}
	m.mu.RUnlock()

	sort.Strings(addrs)
	return m.storage.Save(addrs)
}

// Start launches the background schedulers: the periodic health-check
// sweep and the rotation tick.
func (m *Manager) Start() {
	l := logger.WithComponent("ProxyPool/Manager")

	healthInterval := time.Duration(m.cfg.HealthCheckInterval) * time.Second
	if healthInterval <= 0 {
		healthInterval = 300 * time.Second
	}
	m.healthTicker = time.NewTicker(healthInterval)
	m.rotateTicker = time.NewTicker(time.Second)

	l.Info().
		Dur("health_check_interval", healthInterval).
		Bool("auto_switch", m.cfg.AutoSwitch).
		Msg("Schedulers initialized.")

	m.wg.Add(1)
	go m.schedulerLoop()
}

func (m *Manager) schedulerLoop() {
	defer m.wg.Done()
	l := logger.WithComponent("ProxyPool/Manager")

	for {
		select {
		case <-m.healthTicker.C:
			l.Debug().Msg("Health check ticker triggered.")
			go m.runHealthCycle()

		case <-m.rotateTicker.C:
			if m.selector != nil {
				m.selector.RotateIfDue(time.Now())
			}

		case <-m.stopChan:
			l.Info().Msg("Stop signal received. Shutting down schedulers.")
			m.healthTicker.Stop()
			m.rotateTicker.Stop()
			return
		}
	}
}

// runHealthCycle refills the pool first when it has gone empty, then
// runs a sweep. Sweeps triggered while one is in flight queue up on
// the sweep lock.
func (m *Manager) runHealthCycle() {
	if m.Len() == 0 {
		if err := m.Refill(); err != nil {
			l := logger.WithComponent("ProxyPool/Manager")
			l.Warn().Err(err).Msg("Pool is empty and refill failed.")
		}
	}
	m.Sweep()
}

// Stop shuts down the schedulers and persists the pool one last time.
func (m *Manager) Stop() {
	close(m.stopChan)
	m.wg.Wait()
	if err := m.persist(); err != nil {
		logger.Error().Err(err).Msg("Failed to persist proxy file on shutdown.")
	}
	logger.Info().Msg("ProxyPool manager stopped.")
}
