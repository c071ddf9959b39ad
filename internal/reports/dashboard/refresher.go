package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"carbon-scribe/verification-engine/internal/emissions"
	"carbon-scribe/verification-engine/internal/trends"
	"carbon-scribe/verification-engine/internal/verification"
)

// SubjectSource reads the data a snapshot is derived from
type SubjectSource interface {
	ListRecords(ctx context.Context, subjectID string) ([]emissions.EmissionRecord, error)
	ListRuns(ctx context.Context, subjectID string, limit int) ([]verification.Run, error)
}

// RefresherConfig configuration for the snapshot refresher
type RefresherConfig struct {
	BatchSize      int
	MaxConcurrent  int
	StaleThreshold time.Duration
	HistoryDepth   int
}

// DefaultRefresherConfig returns default configuration
func DefaultRefresherConfig() RefresherConfig {
	return RefresherConfig{
		BatchSize:      20,
		MaxConcurrent:  5,
		StaleThreshold: 15 * time.Minute,
		HistoryDepth:   24,
	}
}

// Refresher recomputes dashboard snapshots from records and run history
type Refresher struct {
	source SubjectSource
	repo   SnapshotRepository
	trends *trends.Engine
	logger *zap.Logger
	config RefresherConfig
	now    func() time.Time
}

// NewRefresher creates a new snapshot refresher
func NewRefresher(source SubjectSource, repo SnapshotRepository, trendEngine *trends.Engine, logger *zap.Logger, config RefresherConfig) *Refresher {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultRefresherConfig().BatchSize
	}
	return &Refresher{
		source: source,
		repo:   repo,
		trends: trendEngine,
		logger: logger,
		config: config,
		now:    time.Now,
	}
}

// Refresh recomputes and stores the snapshot of one subject
func (r *Refresher) Refresh(ctx context.Context, subjectID string) (*Snapshot, error) {
	records, err := r.source.ListRecords(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	runs, err := r.source.ListRuns(ctx, subjectID, r.config.HistoryDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	now := r.now().UTC()
	summary, err := json.Marshal(emissions.Summarize(records, now))
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	trend, err := json.Marshal(r.trends.Summarize(runs))
	if err != nil {
		return nil, fmt.Errorf("failed to encode trend: %w", err)
	}

	snapshot := &Snapshot{
		SubjectID:  subjectID,
		Summary:    summary,
		Trend:      trend,
		RunCount:   len(runs),
		ComputedAt: now,
	}
	if err := r.repo.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// RefreshStale refreshes up to BatchSize stale snapshots with bounded concurrency and
// returns how many succeeded.
func (r *Refresher) RefreshStale(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.config.StaleThreshold)
	subjects, err := r.repo.ListStale(ctx, cutoff, r.config.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(subjects) == 0 {
		return 0, nil
	}

	r.logger.Info("Refreshing stale snapshots", zap.Int("count", len(subjects)))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
	)
	sem := make(chan struct{}, r.config.MaxConcurrent)

	for _, subjectID := range subjects {
		sem <- struct{}{}
		wg.Add(1)

		go func(subjectID string) {
			defer func() {
				<-sem
				wg.Done()
			}()

			start := time.Now()
			if _, err := r.Refresh(ctx, subjectID); err != nil {
				r.logger.Error("Failed to refresh snapshot",
					zap.String("subject_id", subjectID),
					zap.Error(err))
				return
			}

			mu.Lock()
			refreshed++
			mu.Unlock()

			r.logger.Debug("Snapshot refreshed",
				zap.String("subject_id", subjectID),
				zap.Duration("duration", time.Since(start)))
		}(subjectID)
	}

	wg.Wait()
	return refreshed, nil
}
