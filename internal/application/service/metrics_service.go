package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/history"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/repository"
)

// PhaseDuration pairs a phase with its average dwell time
type PhaseDuration struct {
	Phase    phase.Name
	AvgHours float64
}

// Metrics aggregates ledger data for dashboards: how long jobs sit in each
// phase, how many reach the terminal phase, and which phases are the
// slowest.
type Metrics struct {
	AvgDurationPerPhase map[phase.Name]time.Duration
	CompletionRate      float64
	BottleneckPhases    []PhaseDuration
	TotalJobs           int
	CompletedJobs       int
}

// MetricsService computes workflow metrics from the history ledger.
// Computation walks the whole window of entries, so results are cached
// with a short TTL and flushed on every successful transition.
type MetricsService struct {
	registry    *phase.Registry
	historyRepo repository.HistoryRepository
	cache       *gocache.Cache
}

const metricsCacheTTL = 5 * time.Minute

// NewMetricsService creates a metrics service over the ledger
func NewMetricsService(registry *phase.Registry, historyRepo repository.HistoryRepository) *MetricsService {
	return &MetricsService{
		registry:    registry,
		historyRepo: historyRepo,
		cache:       gocache.New(metricsCacheTTL, 10*time.Minute),
	}
}

// Invalidate drops all cached metrics
func (s *MetricsService) Invalidate() {
	s.cache.Flush()
}

// GetMetrics returns aggregate metrics over entries recorded at or after
// since. A zero since covers the full ledger.
func (s *MetricsService) GetMetrics(ctx context.Context, since time.Time) (*Metrics, error) {
	key := fmt.Sprintf("metrics/%d", since.Unix())
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*Metrics), nil
	}

	entries, err := s.historyRepo.FindSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	m := s.compute(entries)
	s.cache.Set(key, m, gocache.DefaultExpiration)
	return m, nil
}

// compute walks the ledger per job: the dwell time of a phase is the gap
// between the successful entry that entered it and the next successful
// entry that left it. Rejected and escalation entries do not move the
// clock.
func (s *MetricsService) compute(entries []*history.Entry) *Metrics {
	byJob := make(map[string][]*history.Entry)
	for _, e := range entries {
		if e.Outcome() != model.OutcomeSucceeded {
			continue
		}
		key := e.JobID().String()
		byJob[key] = append(byJob[key], e)
	}

	totals := make(map[phase.Name]time.Duration)
	counts := make(map[phase.Name]int)
	completed := 0

	for _, jobEntries := range byJob {
		sort.Slice(jobEntries, func(i, j int) bool {
			return jobEntries[i].Timestamp().Before(jobEntries[j].Timestamp())
		})
		for i := 0; i+1 < len(jobEntries); i++ {
			p := jobEntries[i].ToPhase()
			d := jobEntries[i+1].Timestamp().Sub(jobEntries[i].Timestamp())
			if d < 0 {
				continue
			}
			totals[p] += d
			counts[p]++
		}
		for _, e := range jobEntries {
			if s.registry.IsTerminal(e.ToPhase()) {
				completed++
				break
			}
		}
	}

	avg := make(map[phase.Name]time.Duration, len(totals))
	bottlenecks := make([]PhaseDuration, 0, len(totals))
	for p, total := range totals {
		a := total / time.Duration(counts[p])
		avg[p] = a
		bottlenecks = append(bottlenecks, PhaseDuration{Phase: p, AvgHours: a.Hours()})
	}
	sort.Slice(bottlenecks, func(i, j int) bool {
		if bottlenecks[i].AvgHours != bottlenecks[j].AvgHours {
			return bottlenecks[i].AvgHours > bottlenecks[j].AvgHours
		}
		return bottlenecks[i].Phase < bottlenecks[j].Phase
	})

	total := len(byJob)
	rate := 0.0
	if total > 0 {
		rate = float64(completed) / float64(total)
	}

	return &Metrics{
		AvgDurationPerPhase: avg,
		CompletionRate:      rate,
		BottleneckPhases:    bottlenecks,
		TotalJobs:           total,
		CompletedJobs:       completed,
	}
}
