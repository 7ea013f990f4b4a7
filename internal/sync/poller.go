// Package sync keeps remote issue links in step with development
// artifacts, such as pull requests, that mention issue keys.
package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/source"
)

// SyncState represents the current state of a source sync operation.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the sync state for a single source.
type SyncStatus struct {
	SourceType source.SourceType
	State      SyncState
	LastSync   time.Time
	LastResult Result
	Error      error
}

// Result counts what one sync of a source did.
type Result struct {
	Created   int
	Updated   int
	Unchanged int
	// Skipped counts links whose issue is missing or that failed
	// validation.
	Skipped int
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// DefaultInterval is used when a source is registered without one.
const DefaultInterval = 5 * time.Minute

// sourceEntry holds a registered source, its polling interval and its
// manual refresh channel.
type sourceEntry struct {
	src      source.LinkSource
	interval time.Duration
	trigger  chan struct{}
}

// Poller orchestrates background polling of registered link sources.
type Poller struct {
	remote    *issuelink.RemoteService
	user      model.User
	log       *logger.Logger
	sources  []sourceEntry
	statuses map[source.SourceType]*SyncStatus
	stopCh   chan struct{}
	wg       gosync.WaitGroup
	mu       gosync.Mutex
	running  bool
}

// New creates a Poller that writes remote links as user.
func New(remote *issuelink.RemoteService, user model.User, log *logger.Logger) *Poller {
	return &Poller{
		remote:   remote,
		user:     user,
		log:      log,
		statuses: make(map[source.SourceType]*SyncStatus),
	}
}

// RegisterSource adds a link source polled every interval.
func (p *Poller) RegisterSource(src source.LinkSource, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if interval <= 0 {
		interval = DefaultInterval
	}
	p.sources = append(p.sources, sourceEntry{src: src, interval: interval, trigger: make(chan struct{}, 1)})
	p.statuses[src.Type()] = &SyncStatus{SourceType: src.Type(), State: SyncIdle}
}

// Start launches one polling goroutine per source. Polling stops when
// ctx is done or Stop is called. A stopped poller can be started again.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	stop := make(chan struct{})
	p.stopCh = stop
	sources := make([]sourceEntry, len(p.sources))
	copy(sources, p.sources)
	p.mu.Unlock()

	for _, entry := range sources {
		p.wg.Add(1)
		go func(entry sourceEntry) {
			defer p.wg.Done()
			p.pollSource(ctx, stop, entry)
		}(entry)
	}
}

// Stop halts all polling goroutines and waits for them to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
}

// RefreshAll triggers an immediate poll of all registered sources.
func (p *Poller) RefreshAll() {
	p.mu.Lock()
	sources := make([]sourceEntry, len(p.sources))
	copy(sources, p.sources)
	p.mu.Unlock()

	for _, entry := range sources {
		requestRefresh(entry)
	}
}

// RefreshSource triggers an immediate poll of one source. It reports
// false when no source of that type is registered.
func (p *Poller) RefreshSource(st source.SourceType) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, entry := range p.sources {
		if entry.src.Type() == st {
			requestRefresh(entry)
			return true
		}
	}
	return false
}

func requestRefresh(entry sourceEntry) {
	select {
	case entry.trigger <- struct{}{}:
	default:
		// A refresh is already pending
	}
}

// GetStatuses returns the current sync status of all registered
// sources ordered by type.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].SourceType < statuses[j].SourceType })
	return statuses
}

// pollSource runs the polling loop for a single source.
func (p *Poller) pollSource(ctx context.Context, stop <-chan struct{}, entry sourceEntry) {
	ticker := time.NewTicker(entry.interval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	p.syncAndRecord(ctx, entry.src)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			p.syncAndRecord(ctx, entry.src)
		case <-entry.trigger:
			p.syncAndRecord(ctx, entry.src)
		}
	}
}

func (p *Poller) syncAndRecord(ctx context.Context, src source.LinkSource) {
	st := src.Type()
	p.setStatus(st, SyncRunning, Result{}, nil)

	result, err := p.SyncOnce(ctx, src)
	if err != nil {
		if source.IsAuthError(err) {
			p.log.Error("link source authentication failed", "source", st, "error", err)
		} else {
			p.log.Warn("link source sync failed", "source", st, "error", err)
		}
		p.setStatus(st, SyncError, result, err)
		return
	}
	p.setStatus(st, SyncIdle, result, nil)
}

// SyncOnce fetches the links of src and creates or updates the matching
// remote issue links.
func (p *Poller) SyncOnce(ctx context.Context, src source.LinkSource) (Result, error) {
	var result Result

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	links, err := src.FetchDevLinks(fetchCtx)
	cancel()
	if err != nil {
		return result, fmt.Errorf("fetching %s links: %w", src.Type(), err)
	}

	for _, l := range links {
		outcome, err := p.apply(ctx, l)
		if err != nil {
			return result, err
		}
		switch outcome {
		case outcomeCreated:
			result.Created++
		case outcomeUpdated:
			result.Updated++
		case outcomeUnchanged:
			result.Unchanged++
		default:
			result.Skipped++
		}
	}

	p.log.Info("link source synced", "source", src.Type(), "created", result.Created,
		"updated", result.Updated, "unchanged", result.Unchanged, "skipped", result.Skipped)
	return result, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCreated
	outcomeUpdated
	outcomeUnchanged
)

func (p *Poller) apply(ctx context.Context, l source.DevLink) (outcome, error) {
	b := issuelink.RemoteBuilder{
		GlobalID:        l.GlobalID,
		URL:             l.URL,
		Title:           l.Title,
		Summary:         l.Summary,
		Relationship:    l.Relationship,
		ApplicationType: l.ApplicationType,
		ApplicationName: l.ApplicationName,
	}

	existing, err := p.remote.GetRemoteLinkByGlobalID(ctx, p.user, l.IssueKey, l.GlobalID)
	if err != nil {
		ec, ok := errs.From(err)
		if !ok {
			return outcomeSkipped, err
		}
		if _, missingLink := ec.Errors()["globalId"]; !missingLink {
			p.log.Debug("skipping link for unavailable issue", "issue", l.IssueKey, "global_id", l.GlobalID)
			return outcomeSkipped, nil
		}

		r := p.remote.ValidateCreate(ctx, p.user, l.IssueKey, b)
		if !r.IsValid() {
			p.log.Warn("skipping invalid link", "issue", l.IssueKey, "global_id", l.GlobalID, "errors", r.Errors().Error())
			return outcomeSkipped, nil
		}
		if _, err := p.remote.Create(ctx, p.user, r); err != nil {
			return outcomeSkipped, err
		}
		return outcomeCreated, nil
	}

	if existing.URL == b.URL && existing.Title == b.Title && existing.Summary == b.Summary {
		return outcomeUnchanged, nil
	}
	r := p.remote.ValidateUpdate(ctx, p.user, l.IssueKey, existing.ID, b)
	if !r.IsValid() {
		p.log.Warn("skipping invalid link update", "issue", l.IssueKey, "global_id", l.GlobalID, "errors", r.Errors().Error())
		return outcomeSkipped, nil
	}
	if _, err := p.remote.Update(ctx, p.user, r); err != nil {
		return outcomeSkipped, err
	}
	return outcomeUpdated, nil
}

// setStatus updates the sync status for a source type.
func (p *Poller) setStatus(st source.SourceType, state SyncState, result Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[st]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
		status.LastResult = result
	}
}
