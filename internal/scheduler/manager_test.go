package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubImporter struct {
	calls atomic.Int32
	opts  service.ImportOptions
	block chan struct{}
	mu    sync.Mutex
}

func (s *stubImporter) ImportAll(ctx context.Context, opts service.ImportOptions) ([]service.ImportResult, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []service.ImportResult{{CelebrityID: "c1", New: 3}}, nil
}

func TestNewManager_InvalidSpec(t *testing.T) {
	_, err := NewManager("not a schedule", &stubImporter{}, service.ImportOptions{})
	assert.Error(t, err)
}

func TestManager_SyncYouTube(t *testing.T) {
	imp := &stubImporter{}
	m, err := NewManager("@every 6h", imp, service.ImportOptions{MaxVideos: 50})
	require.NoError(t, err)

	m.SyncYouTube()
	assert.Equal(t, int32(1), imp.calls.Load())
	assert.Equal(t, 50, imp.opts.MaxVideos)
}

func TestManager_SkipsOverlappingRuns(t *testing.T) {
	imp := &stubImporter{block: make(chan struct{})}
	m, err := NewManager("@every 6h", imp, service.ImportOptions{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		m.SyncYouTube()
		close(done)
	}()
	require.Eventually(t, func() bool { return imp.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	m.SyncYouTube() // returns at once
	assert.Equal(t, int32(1), imp.calls.Load())

	close(imp.block)
	<-done
}

func TestManager_StopCancelsRunningSync(t *testing.T) {
	imp := &stubImporter{block: make(chan struct{})}
	m, err := NewManager("@every 6h", imp, service.ImportOptions{})
	require.NoError(t, err)
	m.Start()

	done := make(chan struct{})
	go func() {
		m.SyncYouTube()
		close(done)
	}()
	require.Eventually(t, func() bool { return imp.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	m.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sync did not stop")
	}
}
