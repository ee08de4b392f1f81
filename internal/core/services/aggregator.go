package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
	"github.com/custodia-labs/nexus/internal/core/ports/driving"
	"github.com/custodia-labs/nexus/internal/logger"
)

// Ensure Aggregator implements the interface.
var _ driving.SearchService = (*Aggregator)(nil)

// searchTask is one source queried for one request.
type searchTask struct {
	source domain.SourceKind
	name   string
	run    func(ctx context.Context) ([]domain.SearchResult, error)
}

// taskOutcome carries a finished task back to the collector.
type taskOutcome struct {
	slot    int
	results []domain.SearchResult
	err     error
}

// Aggregator fans a query out to the enabled providers and the caller's
// PKB, then merges whatever arrived before the deadline.
type Aggregator struct {
	providers map[domain.SourceKind]driven.SearchProvider
	index     driven.PKBIndex
	pool      *ants.Pool

	timeout       time.Duration
	providerLimit int
	pkbLimit      int
	policy        domain.MergePolicy
}

// NewAggregator creates an aggregator. When two providers answer for the
// same source the first one wins.
func NewAggregator(
	settings domain.SearchSettings,
	index driven.PKBIndex,
	providers ...driven.SearchProvider,
) (*Aggregator, error) {
	defaults := domain.DefaultSettings().Search
	if settings.Timeout <= 0 {
		settings.Timeout = defaults.Timeout
	}
	if settings.ProviderLimit <= 0 {
		settings.ProviderLimit = defaults.ProviderLimit
	}
	if settings.PKBLimit <= 0 {
		settings.PKBLimit = defaults.PKBLimit
	}
	if settings.WorkerPoolSize <= 0 {
		settings.WorkerPoolSize = defaults.WorkerPoolSize
	}
	if !settings.MergePolicy.IsValid() {
		settings.MergePolicy = domain.DefaultMergePolicy
	}

	pool, err := ants.NewPool(settings.WorkerPoolSize)
	if err != nil {
		return nil, fmt.Errorf("creating search worker pool: %w", err)
	}

	byKind := make(map[domain.SourceKind]driven.SearchProvider, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		if _, ok := byKind[p.Kind()]; !ok {
			byKind[p.Kind()] = p
		}
	}

	return &Aggregator{
		providers:     byKind,
		index:         index,
		pool:          pool,
		timeout:       settings.Timeout,
		providerLimit: settings.ProviderLimit,
		pkbLimit:      settings.PKBLimit,
		policy:        settings.MergePolicy,
	}, nil
}

// Close releases the worker pool.
func (a *Aggregator) Close() {
	a.pool.Release()
}

// Policy returns the merge policy in use.
func (a *Aggregator) Policy() domain.MergePolicy {
	return a.policy
}

// Search validates the request, queries every enabled source concurrently
// and merges the results. Failed or late sources contribute nothing.
func (a *Aggregator) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", domain.ErrValidation)
	}
	if req.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	logger.Debug("Query: %q, sources: %v, pkb: %t", query, req.Sources, req.PKB)

	tasks := a.plan(req)
	if len(tasks) == 0 {
		logger.Debug("No sources enabled, returning no results")
		return []domain.SearchResult{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// Buffered so abandoned tasks can always deliver and exit.
	outcomes := make(chan taskOutcome, len(tasks))
	for i, t := range tasks {
		job := func() {
			results, err := t.run(ctx)
			outcomes <- taskOutcome{slot: i, results: results, err: err}
		}
		if err := a.pool.Submit(job); err != nil {
			outcomes <- taskOutcome{slot: i, err: fmt.Errorf("scheduling %s: %w", t.name, err)}
		}
	}

	slots := a.collect(ctx, tasks, outcomes)
	merged := Merge(a.policy, slots)
	logger.Info("Search %q: %d results from %d sources", query, len(merged), len(tasks))
	return merged, nil
}

// plan builds one task per enabled source in toggle order, PKB last.
func (a *Aggregator) plan(req domain.SearchRequest) []searchTask {
	seen := make(map[domain.SourceKind]bool, len(req.Sources))
	includePKB := req.PKB
	userID, query := req.UserID, strings.TrimSpace(req.Query)

	var tasks []searchTask
	for _, src := range req.Sources {
		if seen[src] {
			continue
		}
		seen[src] = true

		if src == domain.SourcePKB {
			includePKB = true
			continue
		}
		provider, ok := a.providers[src]
		if !ok {
			logger.Warn("Source %s enabled but no provider configured", src)
			continue
		}
		tasks = append(tasks, a.providerTask(src, provider, query))
	}

	if includePKB && a.index != nil {
		tasks = append(tasks, searchTask{
			source: domain.SourcePKB,
			name:   "pkb",
			run: func(ctx context.Context) ([]domain.SearchResult, error) {
				return a.index.Query(ctx, userID, query, a.pkbLimit)
			},
		})
	}
	return tasks
}

func (a *Aggregator) providerTask(src domain.SourceKind, p driven.SearchProvider, query string) searchTask {
	return searchTask{
		source: src,
		name:   p.Name(),
		run: func(ctx context.Context) ([]domain.SearchResult, error) {
			return p.Search(ctx, query, a.providerLimit)
		},
	}
}

// collect gathers outcomes until every task reported or the deadline passed.
// Outcomes already buffered when the deadline fires are still kept.
func (a *Aggregator) collect(ctx context.Context, tasks []searchTask, outcomes <-chan taskOutcome) [][]domain.SearchResult {
	slots := make([][]domain.SearchResult, len(tasks))
	reported := make([]bool, len(tasks))

	accept := func(o taskOutcome) {
		reported[o.slot] = true
		t := tasks[o.slot]
		if o.err != nil {
			logSourceError(t, o.err)
			return
		}
		slots[o.slot] = normaliseResults(t.source, o.results, a.limitFor(t.source))
		logger.Debug("Source %s (%s): %d results", t.source, t.name, len(slots[o.slot]))
	}

	for pending := len(tasks); pending > 0; pending-- {
		select {
		case o := <-outcomes:
			accept(o)
		case <-ctx.Done():
			for drained := false; !drained && pending > 0; {
				select {
				case o := <-outcomes:
					accept(o)
					pending--
				default:
					drained = true
				}
			}
			for i, done := range reported {
				if !done {
					logger.Warn("Source %s (%s) abandoned: %v", tasks[i].source, tasks[i].name, ctx.Err())
				}
			}
			return slots
		}
	}
	return slots
}

func (a *Aggregator) limitFor(src domain.SourceKind) int {
	if src == domain.SourcePKB {
		return a.pkbLimit
	}
	return a.providerLimit
}

func logSourceError(t searchTask, err error) {
	var pe *domain.ProviderError
	switch {
	case errors.As(err, &pe):
		logger.Warn("Source %s failed (%s): %v", t.source, pe.Kind, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		logger.Warn("Source %s (%s) timed out: %v", t.source, t.name, err)
	default:
		logger.Warn("Source %s (%s) failed: %v", t.source, t.name, err)
	}
}

// normaliseResults caps a source's results and makes sure each carries the
// source tag it was requested under.
func normaliseResults(src domain.SourceKind, results []domain.SearchResult, limit int) []domain.SearchResult {
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	out := make([]domain.SearchResult, len(results))
	for i, r := range results {
		r.Source = src
		out[i] = r
	}
	return out
}

// Merge combines per-source result lists, given in task order, under policy.
func Merge(policy domain.MergePolicy, slots [][]domain.SearchResult) []domain.SearchResult {
	total := 0
	for _, s := range slots {
		total += len(s)
	}
	merged := make([]domain.SearchResult, 0, total)

	switch policy {
	case domain.MergeInterleave:
		for i := 0; len(merged) < total; i++ {
			for _, s := range slots {
				if i < len(s) {
					merged = append(merged, s[i])
				}
			}
		}
	default:
		for _, s := range slots {
			merged = append(merged, s...)
		}
	}
	return merged
}
