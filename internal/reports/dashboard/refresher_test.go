package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/verification-engine/internal/emissions"
	"carbon-scribe/verification-engine/internal/trends"
	"carbon-scribe/verification-engine/internal/verification"
)

// MockSnapshotRepository is a mock implementation of SnapshotRepository
type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) MarkStale(ctx context.Context, subjectID string) error {
	return m.Called(ctx, subjectID).Error(0)
}

func (m *MockSnapshotRepository) ListStale(ctx context.Context, computedBefore time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, computedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSnapshotRepository) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	return m.Called(ctx, snapshot).Error(0)
}

func (m *MockSnapshotRepository) GetSnapshot(ctx context.Context, subjectID string) (*Snapshot, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Snapshot), args.Error(1)
}

func (m *MockSnapshotRepository) RenameSubject(ctx context.Context, from, to string) error {
	return m.Called(ctx, from, to).Error(0)
}

// MockSubjectSource is a mock implementation of SubjectSource
type MockSubjectSource struct {
	mock.Mock
}

func (m *MockSubjectSource) ListRecords(ctx context.Context, subjectID string) ([]emissions.EmissionRecord, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]emissions.EmissionRecord), args.Error(1)
}

func (m *MockSubjectSource) ListRuns(ctx context.Context, subjectID string, limit int) ([]verification.Run, error) {
	args := m.Called(ctx, subjectID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]verification.Run), args.Error(1)
}

func newTestRefresher(source SubjectSource, repo SnapshotRepository) *Refresher {
	r := NewRefresher(source, repo, trends.NewEngine(trends.DefaultDelta), zap.NewNop(), DefaultRefresherConfig())
	r.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestRefreshStoresSummaryAndTrend(t *testing.T) {
	ctx := context.Background()
	source := new(MockSubjectSource)
	repo := new(MockSnapshotRepository)

	records := []emissions.EmissionRecord{
		{SubjectID: "s", Scope: emissions.Scope2, Category: emissions.CategoryElectricity, Co2Kg: 600,
			CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{SubjectID: "s", Scope: emissions.Scope1, Category: emissions.CategoryFuel, Co2Kg: 400,
			CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	runs := []verification.Run{{Assessment: verification.Assessment{TotalCo2Kg: 1000, Score: 0.9, GreenScore: 90}}}

	source.On("ListRecords", ctx, "s").Return(records, nil)
	source.On("ListRuns", ctx, "s", 24).Return(runs, nil)
	repo.On("SaveSnapshot", ctx, mock.AnythingOfType("*dashboard.Snapshot")).Return(nil)

	snapshot, err := newTestRefresher(source, repo).Refresh(ctx, "s")
	require.NoError(t, err)

	var summary emissions.AggregatedSummary
	require.NoError(t, json.Unmarshal(snapshot.Summary, &summary))
	assert.Equal(t, 1000.0, summary.Total)
	assert.Len(t, summary.MonthlyTrend, 6)

	var trend trends.Summary
	require.NoError(t, json.Unmarshal(snapshot.Trend, &trend))
	assert.Equal(t, 1, trend.RunCount)
	assert.Equal(t, 1, snapshot.RunCount)

	repo.AssertExpectations(t)
}

func TestRefreshStaleContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	source := new(MockSubjectSource)
	repo := new(MockSnapshotRepository)

	repo.On("ListStale", ctx, mock.AnythingOfType("time.Time"), 20).Return([]string{"ok", "broken"}, nil)
	source.On("ListRecords", ctx, "ok").Return([]emissions.EmissionRecord{}, nil)
	source.On("ListRuns", ctx, "ok", 24).Return([]verification.Run{}, nil)
	source.On("ListRecords", ctx, "broken").Return(nil, errors.New("connection reset"))
	repo.On("SaveSnapshot", ctx, mock.AnythingOfType("*dashboard.Snapshot")).Return(nil)

	refreshed, err := newTestRefresher(source, repo).RefreshStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)
}
