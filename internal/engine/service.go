package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-scribe/verification-engine/internal/compliance"
	"carbon-scribe/verification-engine/internal/documents"
	"carbon-scribe/verification-engine/internal/emissions"
	"carbon-scribe/verification-engine/internal/notifications"
	"carbon-scribe/verification-engine/internal/reports/dashboard"
	"carbon-scribe/verification-engine/internal/reports/export"
	"carbon-scribe/verification-engine/internal/tiers"
	"carbon-scribe/verification-engine/internal/trends"
	"carbon-scribe/verification-engine/internal/verification"
)

type Service interface {
	// OnRecordsChanged is the single entry point after a subject's records change: it
	// re-evaluates, appends a run, invalidates cached views and publishes a change event.
	OnRecordsChanged(ctx context.Context, subjectID string, tier tiers.Tier) (*verification.Run, error)

	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
	Evaluate(ctx context.Context, req EvaluateOptions) (*verification.Run, error)

	Summary(ctx context.Context, subjectID string) (*emissions.AggregatedSummary, error)
	Runs(ctx context.Context, subjectID string, tier tiers.Tier) ([]verification.Run, error)
	GetRun(ctx context.Context, subjectID string, id uuid.UUID) (*verification.Run, error)
	Trend(ctx context.Context, subjectID string, tier tiers.Tier) (*trends.Summary, error)
	ExportRuns(ctx context.Context, subjectID string, tier tiers.Tier, w io.Writer) error

	Merge(ctx context.Context, req MergeRequest) (*MergeResult, error)

	GetProfile(ctx context.Context, subjectID string) (*compliance.OrganizationProfile, error)
	SaveProfile(ctx context.Context, subjectID string, profile compliance.OrganizationProfile) (*compliance.OrganizationProfile, error)
}

type IngestRequest struct {
	SubjectID   string
	Payload     []byte
	Tier        tiers.Tier
	IoTAdjusted bool
}

type IngestResult struct {
	DocumentID uuid.UUID         `json:"document_id"`
	ArchiveKey string            `json:"archive_key,omitempty"`
	Records    int               `json:"records"`
	Run        *verification.Run `json:"run"`
}

// EvaluateOptions is an explicit re-evaluation. Profile and Frameworks apply to this run
// only and are never stored.
type EvaluateOptions struct {
	SubjectID          string                          `json:"-"`
	Tier               tiers.Tier                      `json:"-"`
	Profile            *compliance.OrganizationProfile `json:"profile,omitempty"`
	Frameworks         []compliance.FrameworkID        `json:"frameworks,omitempty"`
	IoTAdjusted        bool                            `json:"iot_adjusted"`
	ReductionClaim     *verification.ReductionClaim    `json:"reduction_claim,omitempty"`
	ExternalGreenScore *float64                        `json:"external_green_score,omitempty"`
}

type MergeRequest struct {
	FromSubject string
	ToSubject   string
	Tier        tiers.Tier
}

type MergeResult struct {
	Merge *SubjectMerge     `json:"merge"`
	Run   *verification.Run `json:"run"`
}

// Dependencies groups the collaborators of the service. Archive, Snapshots, Publisher
// and Metrics are optional.
type Dependencies struct {
	Repository Repository
	Evaluator  *Evaluator
	Trends     *trends.Engine
	Cache      *dashboard.SummaryCache
	Snapshots  dashboard.SnapshotRepository
	Archive    *documents.StorageProvider
	Publisher  notifications.Publisher
	Metrics    *Metrics
	Logger     *zap.Logger
}

type verificationService struct {
	repo      Repository
	evaluator *Evaluator
	trends    *trends.Engine
	cache     *dashboard.SummaryCache
	snapshots dashboard.SnapshotRepository
	archive   *documents.StorageProvider
	publisher notifications.Publisher
	metrics   *Metrics
	logger    *zap.Logger
	locks     *subjectLocks
	now       func() time.Time
}

func NewService(deps Dependencies) Service {
	s := &verificationService{
		repo:      deps.Repository,
		evaluator: deps.Evaluator,
		trends:    deps.Trends,
		cache:     deps.Cache,
		snapshots: deps.Snapshots,
		archive:   deps.Archive,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		locks:     newSubjectLocks(),
		now:       time.Now,
	}
	if s.evaluator == nil {
		s.evaluator = NewEvaluator(nil, nil)
	}
	if s.trends == nil {
		s.trends = trends.NewEngine(trends.DefaultDelta)
	}
	if s.cache == nil {
		s.cache = dashboard.NewSummaryCache(5 * time.Minute)
	}
	if s.publisher == nil {
		s.publisher = notifications.NopPublisher{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *verificationService) OnRecordsChanged(ctx context.Context, subjectID string, tier tiers.Tier) (*verification.Run, error) {
	return s.Evaluate(ctx, EvaluateOptions{SubjectID: subjectID, Tier: tier})
}

func (s *verificationService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.SubjectID == "" {
		return nil, ErrSubjectRequired
	}

	// quota check through evaluation runs under the subject lock
	unlock := s.locks.Lock(req.SubjectID)
	defer unlock()

	caps := req.Tier.Capabilities()
	if caps.MaxDocumentsPerMonth > 0 {
		now := s.now().UTC()
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		used, err := s.repo.CountDocumentsSince(ctx, req.SubjectID, monthStart)
		if err != nil {
			return nil, err
		}
		if !caps.AllowsDocuments(int(used)) {
			return nil, fmt.Errorf("%w: %d of %d used", ErrQuotaExceeded, used, caps.MaxDocumentsPerMonth)
		}
	}

	doc, err := emissions.ParseExtractedData(req.Payload)
	if err != nil {
		return nil, err
	}

	var archiveKey string
	if s.archive != nil {
		archiveKey, err = s.archive.ArchiveExtraction(ctx, req.SubjectID, doc.ID, req.Payload)
		if err != nil {
			return nil, err
		}
	}

	evidence := emissions.BuildEvidence(doc, req.SubjectID, recordTime(doc, s.now()), nil)
	if err := s.repo.SaveDocument(ctx, doc, req.SubjectID, archiveKey, evidence); err != nil {
		return nil, err
	}
	s.metrics.observeIngest(len(evidence))

	s.logger.Info("Document ingested",
		zap.String("subject_id", req.SubjectID),
		zap.String("document_id", doc.ID.String()),
		zap.Int("records", len(evidence)))
	s.publish(ctx, notifications.EventRecordsIngested, req.SubjectID, map[string]interface{}{
		"document_id": doc.ID,
		"records":     len(evidence),
	})

	run, err := s.evaluateLocked(ctx, EvaluateOptions{
		SubjectID:   req.SubjectID,
		Tier:        req.Tier,
		IoTAdjusted: req.IoTAdjusted,
	})
	if err != nil {
		return nil, err
	}

	return &IngestResult{
		DocumentID: doc.ID,
		ArchiveKey: archiveKey,
		Records:    len(evidence),
		Run:        run,
	}, nil
}

// recordTime dates records by the document when it has a date, otherwise by ingestion
func recordTime(doc *emissions.Document, now time.Time) time.Time {
	if doc.DocumentDate != nil && !doc.DocumentDate.IsZero() && !doc.DocumentDate.After(now) {
		return doc.DocumentDate.UTC()
	}
	return now.UTC()
}

func (s *verificationService) Evaluate(ctx context.Context, req EvaluateOptions) (*verification.Run, error) {
	if req.SubjectID == "" {
		return nil, ErrSubjectRequired
	}
	if len(req.Frameworks) > 0 && !req.Tier.Capabilities().FrameworkOverride {
		return nil, fmt.Errorf("%w: framework override on %s tier", tiers.ErrFeatureNotAvailable, req.Tier)
	}

	unlock := s.locks.Lock(req.SubjectID)
	defer unlock()

	return s.evaluateLocked(ctx, req)
}

// evaluateLocked must be called with the subject's lock held
func (s *verificationService) evaluateLocked(ctx context.Context, req EvaluateOptions) (*verification.Run, error) {
	evidence, err := s.repo.ListEvidence(ctx, req.SubjectID)
	if err != nil {
		s.metrics.observeError()
		return nil, err
	}

	profile, err := s.resolveProfile(ctx, req)
	if err != nil {
		s.metrics.observeError()
		return nil, err
	}

	run, err := s.evaluator.Evaluate(EvaluateRequest{
		SubjectID:          req.SubjectID,
		Evidence:           evidence,
		Profile:            profile,
		Frameworks:         req.Frameworks,
		IoTAdjusted:        req.IoTAdjusted,
		ReductionClaim:     req.ReductionClaim,
		ExternalGreenScore: req.ExternalGreenScore,
		Tier:               req.Tier,
	})
	if err != nil {
		s.metrics.observeError()
		return nil, err
	}

	var credited []uuid.UUID
	if run.Status == verification.StatusVerified {
		credited = creditedRecordIDs(evidence)
	}
	if err := s.repo.CreateRun(ctx, run, credited); err != nil {
		s.metrics.observeError()
		return nil, err
	}
	s.metrics.observeRun(run)

	s.logger.Info("Verification run created",
		zap.String("subject_id", req.SubjectID),
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(run.Status)),
		zap.Float64("score", run.Score),
		zap.Int64("eligible_credits", run.CreditEligibility.EligibleCredits))

	s.invalidate(ctx, req.SubjectID)
	s.publish(ctx, notifications.EventRunCreated, req.SubjectID, run)

	return run, nil
}

func (s *verificationService) resolveProfile(ctx context.Context, req EvaluateOptions) (compliance.OrganizationProfile, error) {
	if req.Profile != nil {
		return *req.Profile, nil
	}
	stored, err := s.repo.GetProfile(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return compliance.OrganizationProfile{}, nil
		}
		return compliance.OrganizationProfile{}, err
	}
	return *stored, nil
}

// invalidate drops cached views and marks the persisted snapshot stale. Failures here
// never fail the evaluation; the worker refreshes old snapshots anyway.
func (s *verificationService) invalidate(ctx context.Context, subjectID string) {
	s.cache.InvalidateSubject(subjectID)
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.MarkStale(ctx, subjectID); err != nil {
		s.logger.Warn("Failed to mark snapshot stale",
			zap.String("subject_id", subjectID),
			zap.Error(err))
	}
}

func (s *verificationService) publish(ctx context.Context, eventType, subjectID string, data interface{}) {
	event, err := notifications.NewEvent(eventType, subjectID, data)
	if err != nil {
		s.logger.Error("Failed to build event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("type", eventType),
			zap.String("subject_id", subjectID),
			zap.Error(err))
	}
}

func (s *verificationService) Summary(ctx context.Context, subjectID string) (*emissions.AggregatedSummary, error) {
	if subjectID == "" {
		return nil, ErrSubjectRequired
	}
	return dashboard.Fetch(s.cache, dashboard.SummaryKey(subjectID), func() (*emissions.AggregatedSummary, error) {
		records, err := s.repo.ListRecords(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		summary := emissions.Summarize(records, s.now().UTC())
		return &summary, nil
	})
}

func (s *verificationService) Runs(ctx context.Context, subjectID string, tier tiers.Tier) ([]verification.Run, error) {
	if subjectID == "" {
		return nil, ErrSubjectRequired
	}
	depth := tier.Capabilities().HistoryDepth
	return dashboard.Fetch(s.cache, dashboard.RunsKey(subjectID, depth), func() ([]verification.Run, error) {
		return s.repo.ListRuns(ctx, subjectID, depth)
	})
}

func (s *verificationService) GetRun(ctx context.Context, subjectID string, id uuid.UUID) (*verification.Run, error) {
	run, err := s.repo.GetRun(ctx, subjectID, id)
	if err != nil {
		return nil, err
	}
	if err := VerifyRun(run); err != nil {
		s.logger.Error("Stored run failed hash verification",
			zap.String("subject_id", subjectID),
			zap.String("run_id", id.String()))
		return nil, err
	}
	return run, nil
}

func (s *verificationService) Trend(ctx context.Context, subjectID string, tier tiers.Tier) (*trends.Summary, error) {
	if subjectID == "" {
		return nil, ErrSubjectRequired
	}
	depth := tier.Capabilities().HistoryDepth
	return dashboard.Fetch(s.cache, dashboard.TrendKey(subjectID, depth), func() (*trends.Summary, error) {
		runs, err := s.repo.ListRuns(ctx, subjectID, depth)
		if err != nil {
			return nil, err
		}
		summary := s.trends.Summarize(runs)
		return &summary, nil
	})
}

func (s *verificationService) ExportRuns(ctx context.Context, subjectID string, tier tiers.Tier, w io.Writer) error {
	if !tier.Capabilities().AuditExport {
		return fmt.Errorf("%w: audit export on %s tier", tiers.ErrFeatureNotAvailable, tier)
	}
	runs, err := s.Runs(ctx, subjectID, tier)
	if err != nil {
		return err
	}
	return export.NewCSVExporter(w, export.DefaultCSVOptions()).WriteRuns(runs)
}

func (s *verificationService) Merge(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	if req.FromSubject == "" || req.ToSubject == "" {
		return nil, ErrSubjectRequired
	}
	if req.FromSubject == req.ToSubject {
		return nil, ErrSameSubject
	}
	if !req.Tier.Capabilities().SessionMerge {
		return nil, fmt.Errorf("%w: session merge on %s tier", tiers.ErrFeatureNotAvailable, req.Tier)
	}

	unlock := s.locks.LockAll(req.FromSubject, req.ToSubject)
	defer unlock()

	merge, err := s.repo.MergeSubjects(ctx, req.FromSubject, req.ToSubject)
	if err != nil {
		return nil, err
	}
	s.metrics.observeMerge()

	s.cache.InvalidateSubject(req.FromSubject)
	if s.snapshots != nil {
		if err := s.snapshots.RenameSubject(ctx, req.FromSubject, req.ToSubject); err != nil {
			s.logger.Warn("Failed to move snapshot",
				zap.String("from", req.FromSubject),
				zap.String("to", req.ToSubject),
				zap.Error(err))
		}
	}

	s.logger.Info("Subjects merged",
		zap.String("from", req.FromSubject),
		zap.String("to", req.ToSubject),
		zap.Int64("records", merge.RecordsMoved),
		zap.Int64("runs", merge.RunsMoved))
	s.publish(ctx, notifications.EventSubjectMerged, req.ToSubject, merge)

	run, err := s.evaluateLocked(ctx, EvaluateOptions{SubjectID: req.ToSubject, Tier: req.Tier})
	if err != nil {
		return nil, err
	}
	return &MergeResult{Merge: merge, Run: run}, nil
}

func (s *verificationService) GetProfile(ctx context.Context, subjectID string) (*compliance.OrganizationProfile, error) {
	if subjectID == "" {
		return nil, ErrSubjectRequired
	}
	return s.repo.GetProfile(ctx, subjectID)
}

func (s *verificationService) SaveProfile(ctx context.Context, subjectID string, profile compliance.OrganizationProfile) (*compliance.OrganizationProfile, error) {
	if subjectID == "" {
		return nil, ErrSubjectRequired
	}
	normalized := profile.Normalize()
	if err := s.repo.SaveProfile(ctx, subjectID, normalized); err != nil {
		return nil, err
	}
	s.cache.InvalidateSubject(subjectID)
	return &normalized, nil
}
