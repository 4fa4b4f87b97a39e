package worker

import (
	"context"
	"sync"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
	"github.com/oshikatsu-collection/oshidata/internal/service"
)

const dedupTimeout = 2 * time.Minute

// DedupWorker 在导入新 episode 后自动去重
type DedupWorker struct {
	bus     event.Bus
	deduper *service.Deduper
	subID   string

	mu      sync.Mutex // one dedup pass at a time
	running sync.WaitGroup

	stateMu sync.Mutex // guards stopped and running.Add
	stopped bool
}

func NewDedupWorker(bus event.Bus, deduper *service.Deduper) *DedupWorker {
	return &DedupWorker{bus: bus, deduper: deduper}
}

// Start subscribes to EventEpisodesImported.
func (w *DedupWorker) Start() {
	w.stateMu.Lock()
	w.stopped = false
	w.stateMu.Unlock()
	w.subID = w.bus.Subscribe(event.EventEpisodesImported, w.handle)
	logger.L().Info("Worker: dedup worker subscribed")
}

// Stop unsubscribes and waits for a running pass to finish.
func (w *DedupWorker) Stop() {
	// handlers already spawned by Publish see stopped and return
	w.stateMu.Lock()
	w.stopped = true
	w.stateMu.Unlock()

	if w.subID != "" {
		w.bus.Unsubscribe(event.EventEpisodesImported, w.subID)
		w.subID = ""
	}
	w.running.Wait()
}

func (w *DedupWorker) handle(e event.Event) {
	payload, ok := e.Payload.(event.EpisodesImported)
	if !ok || payload.CelebrityID == "" || payload.Count == 0 {
		return
	}
	w.stateMu.Lock()
	if w.stopped {
		w.stateMu.Unlock()
		return
	}
	w.running.Add(1)
	w.stateMu.Unlock()
	defer w.running.Done()

	w.mu.Lock()
	defer w.mu.Unlock()

	logger.L().Infof("Worker: %d %s episodes imported for %s, running dedup", payload.Count, payload.Source, payload.CelebrityID)

	ctx, cancel := context.WithTimeout(context.Background(), dedupTimeout)
	defer cancel()
	report, err := w.deduper.DedupEpisodes(ctx, service.DedupOptions{CelebrityID: payload.CelebrityID})
	if err != nil {
		logger.L().Errorf("Worker: dedup for %s failed: %v", payload.CelebrityID, err)
		return
	}
	if report.Deleted > 0 {
		logger.L().Infof("Worker: removed %d duplicate episodes for %s", report.Deleted, payload.CelebrityID)
	}
}
