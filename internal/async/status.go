// Package async provides background processing infrastructure for Treedex.
package async

import (
	"sync"
	"time"
)

// SyncStatus represents the overall synchronization state.
type SyncStatus string

const (
	// StatusSyncing indicates synchronization is in progress.
	StatusSyncing SyncStatus = "syncing"
	// StatusReady indicates synchronization completed.
	StatusReady SyncStatus = "ready"
	// StatusError indicates synchronization failed with an error.
	StatusError SyncStatus = "error"
)

// SyncProgressSnapshot is an immutable snapshot of sync progress.
type SyncProgressSnapshot struct {
	Status           string  `json:"status"`
	CatalogsTotal    int     `json:"catalogs_total"`
	CatalogsSynced   int     `json:"catalogs_synced"`
	CurrentCatalog   string  `json:"current_catalog,omitempty"`
	ResourcesIndexed int     `json:"resources_indexed"`
	ResourcesFailed  int     `json:"resources_failed"`
	ProgressPct      float64 `json:"progress_pct"`
	ElapsedSeconds   int     `json:"elapsed_seconds"`
	ErrorMessage     string  `json:"error_message,omitempty"`
}

// SyncProgress provides thread-safe tracking of sync progress.
type SyncProgress struct {
	mu sync.RWMutex

	status           SyncStatus
	catalogsTotal    int
	catalogsSynced   int
	currentCatalog   string
	resourcesIndexed int
	resourcesFailed  int
	startTime        time.Time
	errorMessage     string
}

// NewSyncProgress creates a new progress tracker initialized for syncing.
func NewSyncProgress() *SyncProgress {
	return &SyncProgress{
		status:    StatusSyncing,
		startTime: time.Now(),
	}
}

// SetTotal sets how many catalog instances the run covers.
func (p *SyncProgress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.catalogsTotal = total
}

// StartCatalog records the instance currently being reconciled.
func (p *SyncProgress) StartCatalog(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentCatalog = id
}

// FinishCatalog accumulates one instance's results.
func (p *SyncProgress) FinishCatalog(indexed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.catalogsSynced++
	p.resourcesIndexed += indexed
	p.resourcesFailed += failed
	p.currentCatalog = ""
}

// SetError marks the run as failed with an error message.
func (p *SyncProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
}

// SetReady marks the run as complete.
func (p *SyncProgress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
}

// IsSyncing returns true if the run is still in progress.
func (p *SyncProgress) IsSyncing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusSyncing
}

// Snapshot returns an immutable copy of the current progress state.
func (p *SyncProgress) Snapshot() SyncProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progressPct float64
	if p.catalogsTotal > 0 {
		progressPct = float64(p.catalogsSynced) / float64(p.catalogsTotal) * 100.0
	}

	return SyncProgressSnapshot{
		Status:           string(p.status),
		CatalogsTotal:    p.catalogsTotal,
		CatalogsSynced:   p.catalogsSynced,
		CurrentCatalog:   p.currentCatalog,
		ResourcesIndexed: p.resourcesIndexed,
		ResourcesFailed:  p.resourcesFailed,
		ProgressPct:      progressPct,
		ElapsedSeconds:   int(time.Since(p.startTime).Seconds()),
		ErrorMessage:     p.errorMessage,
	}
}
