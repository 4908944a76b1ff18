package async

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SyncFunc is the function signature for the actual reconciliation work.
type SyncFunc func(ctx context.Context, progress *SyncProgress) error

// SyncerConfig configures the BackgroundSyncer.
type SyncerConfig struct {
	DataDir string
}

// BackgroundSyncer runs catalog synchronization in a background
// goroutine with progress tracking.
type BackgroundSyncer struct {
	config   SyncerConfig
	progress *SyncProgress

	// SyncFunc is the actual reconciliation function to run.
	// This can be injected for testing.
	SyncFunc SyncFunc

	// Lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
	err     error
}

// NewBackgroundSyncer creates a new background syncer.
func NewBackgroundSyncer(cfg SyncerConfig) *BackgroundSyncer {
	return &BackgroundSyncer{
		config:   cfg,
		progress: NewSyncProgress(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the progress tracker for this syncer.
func (b *BackgroundSyncer) Progress() *SyncProgress {
	return b.progress
}

// IsRunning returns true if the syncer is currently running.
func (b *BackgroundSyncer) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start begins synchronization in a background goroutine.
// This is non-blocking and returns immediately.
// Use Wait() to block until completion.
func (b *BackgroundSyncer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *BackgroundSyncer) run(ctx context.Context) {
	defer close(b.doneCh)
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	// Merged context that respects both parent and stop channel
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-b.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	// An interrupted run leaves the lock file behind; a later startup
	// can detect it and trigger a fresh sync, which is idempotent.
	lockPath := filepath.Join(b.config.DataDir, "sync.lock")
	if err := os.MkdirAll(b.config.DataDir, 0755); err != nil {
		b.fail(err)
		return
	}
	if err := os.WriteFile(lockPath, []byte(time.Now().Format(time.RFC3339)), 0644); err != nil {
		b.fail(err)
		return
	}
	defer func() { _ = os.Remove(lockPath) }()

	if b.SyncFunc != nil {
		if err := b.SyncFunc(ctx, b.progress); err != nil {
			b.fail(err)
			return
		}
	}

	b.progress.SetReady()
}

func (b *BackgroundSyncer) fail(err error) {
	b.progress.SetError(err.Error())
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// Stop signals the syncer to stop and waits for it to finish.
func (b *BackgroundSyncer) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	close(b.stopCh)
	<-b.doneCh
}

// Wait blocks until the syncer completes and returns any error.
func (b *BackgroundSyncer) Wait() error {
	<-b.doneCh
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// HasIncompleteLock checks if there's an incomplete sync lock file.
func HasIncompleteLock(dataDir string) bool {
	lockPath := filepath.Join(dataDir, "sync.lock")
	_, err := os.Stat(lockPath)
	return err == nil
}
