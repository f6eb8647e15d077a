// Package syncer pulls vaults from the indexer, rebuilds their views and
// stores them.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"yearn-vaults/internal/config"
	"yearn-vaults/internal/kong"
	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/models"
	"yearn-vaults/internal/observability"
	"yearn-vaults/internal/ratelimit"
	"yearn-vaults/internal/repository"
	"yearn-vaults/internal/vault"
)

const EventVaultUpdated = "vault.updated"

var ErrAlreadyRunning = errors.New("sync already running")

// Upstream is the indexer surface the syncer reads.
type Upstream interface {
	ListVaults(ctx context.Context, filter kong.ListFilter) ([]kong.VaultListItem, error)
	GetSnapshot(ctx context.Context, chainID uint64, address string) (*kong.VaultSnapshot, error)
}

// GraphQLUpstream serves snapshots from the GraphQL endpoint instead of REST.
type GraphQLUpstream struct {
	*kong.Client
}

func (g GraphQLUpstream) GetSnapshot(ctx context.Context, chainID uint64, address string) (*kong.VaultSnapshot, error) {
	return g.QuerySnapshot(ctx, chainID, address)
}

// NewUpstream builds the throttled indexer client described by cfg.
func NewUpstream(cfg config.KongConfig, log *logger.Logger) Upstream {
	client := kong.NewClient(kong.Options{
		RESTURL:    cfg.RESTURL,
		GraphQLURL: cfg.GraphQLURL,
		Origin:     cfg.Origin,
		Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		Limiter:    ratelimit.NewLimiter(cfg.RequestsPerSec),
		Logger:     log,
	})
	if cfg.UseGraphQL {
		return GraphQLUpstream{Client: client}
	}
	return client
}

type Publisher interface {
	Publish(event string, data interface{})
}

type Result struct {
	Total    int           `json:"total"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Stale    int64         `json:"stale"`
	Duration time.Duration `json:"duration"`
}

type Status struct {
	Running    bool      `json:"running"`
	LastRun    time.Time `json:"lastRun"`
	LastResult Result    `json:"lastResult"`
	LastError  string    `json:"lastError,omitempty"`
}

type Options struct {
	Chains      []uint64
	Concurrency int
	Publisher   Publisher
	Logger      *logger.Logger
}

type Service struct {
	upstream    Upstream
	repo        repository.VaultRepository
	publisher   Publisher
	log         *logger.Logger
	chains      []uint64
	concurrency int

	running atomic.Bool
	mu      sync.RWMutex
	status  Status
}

func NewService(upstream Upstream, repo repository.VaultRepository, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	return &Service{
		upstream:    upstream,
		repo:        repo,
		publisher:   opts.Publisher,
		log:         log,
		chains:      opts.Chains,
		concurrency: concurrency,
	}
}

// SyncAll runs one full pass. Vaults whose snapshot fails are still built
// from the list item alone.
func (s *Service) SyncAll(ctx context.Context) (result Result, err error) {
	if !s.running.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		observability.Sync().Observe(result.Total, result.Updated, result.Failed, err, result.Duration)
		s.recordStatus(start, result, err)
	}()

	items, err := s.upstream.ListVaults(ctx, kong.ListFilter{ChainIDs: s.chains})
	if err != nil {
		return result, err
	}
	result.Total = len(items)
	s.log.Info("🔄 Syncing %d vaults...", len(items))

	passStart := start.UTC()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		updated int
		failed  int
	)
	sem := make(chan struct{}, s.concurrency)

	for i := range items {
		if ctx.Err() != nil {
			break
		}
		item := &items[i]

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := s.store(ctx, item, passStart)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				s.log.Warn("⚠️ Vault %d/%s not synced: %v", item.ChainID, item.Address, err)
				return
			}
			updated++
		}()
	}
	wg.Wait()

	result.Updated = updated
	result.Failed = failed

	if err := ctx.Err(); err != nil {
		return result, err
	}

	// a partial pass must not flag the vaults it failed to write
	if failed == 0 && len(items) > 0 {
		stale, err := s.repo.MarkStale(passStart)
		if err != nil {
			return result, fmt.Errorf("mark stale vaults: %w", err)
		}
		result.Stale = stale
	}

	s.log.Info("✅ Sync completed: %d updated, %d failed, %d stale", result.Updated, result.Failed, result.Stale)
	return result, nil
}

// SyncVault refreshes a single vault.
func (s *Service) SyncVault(ctx context.Context, chainID uint64, address string) (vault.View, error) {
	items, err := s.upstream.ListVaults(ctx, kong.ListFilter{ChainIDs: []uint64{chainID}})
	if err != nil {
		s.log.Warn("⚠️ List unavailable for %d/%s: %v", chainID, address, err)
	}

	var item *kong.VaultListItem
	for i := range items {
		if items[i].ChainID == chainID && vault.SameAddress(items[i].Address, address) {
			item = &items[i]
			break
		}
	}
	if item == nil {
		item = &kong.VaultListItem{ChainID: chainID, Address: address}
		snap, err := s.snapshot(ctx, item)
		if snap == nil {
			if err == nil {
				err = kong.ErrNotFound
			}
			return vault.View{}, err
		}
		return s.persist(vault.GetVaultView(nil, snap))
	}

	return s.store(ctx, item, time.Now().UTC())
}

func (s *Service) store(ctx context.Context, item *kong.VaultListItem, syncedAt time.Time) (vault.View, error) {
	snap, _ := s.snapshot(ctx, item)
	view, err := vault.GetVaultView(item, snap)
	if err != nil {
		return vault.View{}, err
	}
	return s.persistAt(view, syncedAt)
}

func (s *Service) snapshot(ctx context.Context, item *kong.VaultListItem) (*kong.VaultSnapshot, error) {
	snap, err := s.upstream.GetSnapshot(ctx, item.ChainID, strings.ToLower(item.Address))
	if err != nil {
		if !errors.Is(err, kong.ErrNotFound) {
			s.log.Debug("Snapshot %d/%s unavailable: %v", item.ChainID, item.Address, err)
		}
		return nil, err
	}
	return snap, nil
}

func (s *Service) persist(view vault.View, err error) (vault.View, error) {
	if err != nil {
		return vault.View{}, err
	}
	return s.persistAt(view, time.Now().UTC())
}

func (s *Service) persistAt(view vault.View, syncedAt time.Time) (vault.View, error) {
	record, err := models.NewVaultRecord(view, syncedAt)
	if err != nil {
		return vault.View{}, err
	}
	if err := s.repo.Upsert(record); err != nil {
		return vault.View{}, fmt.Errorf("store %s: %w", view.Key(), err)
	}
	if s.publisher != nil {
		s.publisher.Publish(EventVaultUpdated, view)
	}
	return view, nil
}

func (s *Service) recordStatus(start time.Time, result Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastRun = start.UTC()
	s.status.LastResult = result
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
}

func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := s.status
	status.Running = s.running.Load()
	return status
}
