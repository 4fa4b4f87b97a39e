package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/logger"
	"github.com/oshikatsu-collection/oshidata/internal/service"
	"github.com/robfig/cron/v3"
)

// Importer is what the scheduler runs on each tick.
type Importer interface {
	ImportAll(ctx context.Context, opts service.ImportOptions) ([]service.ImportResult, error)
}

type Manager struct {
	cron     *cron.Cron
	importer Importer
	opts     service.ImportOptions
	timeout  time.Duration

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewManager 创建定时同步管理器. spec is a cron expression or descriptor
// such as "@every 6h".
func NewManager(spec string, importer Importer, opts service.ImportOptions) (*Manager, error) {
	m := &Manager{
		cron:     cron.New(),
		importer: importer,
		opts:     opts,
		timeout:  time.Hour,
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	if _, err := m.cron.AddFunc(spec, m.SyncYouTube); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return m, nil
}

func (m *Manager) Start() {
	m.cron.Start()
	logger.L().Infof("Scheduler: started, %d job(s)", len(m.cron.Entries()))
}

// Stop cancels a running sync and waits for it to return.
func (m *Manager) Stop() {
	m.cancel()
	<-m.cron.Stop().Done()
	logger.L().Info("Scheduler: stopped")
}

// SyncYouTube imports every active celebrity. Overlapping runs are skipped.
func (m *Manager) SyncYouTube() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		logger.L().Warn("Scheduler: previous YouTube sync still running, skipping")
		return
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
	defer cancel()

	logger.L().Info("Scheduler: YouTube sync started")
	results, err := m.importer.ImportAll(ctx, m.opts)
	newEpisodes := 0
	for _, r := range results {
		newEpisodes += r.New
	}
	if err != nil {
		logger.L().Errorf("Scheduler: YouTube sync stopped after %d celebrities: %v", len(results), err)
		return
	}
	logger.L().Infof("Scheduler: YouTube sync done, %d celebrities, %d new episodes", len(results), newEpisodes)
}
