package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carbon-scribe/verification-engine/internal/compliance"
	"carbon-scribe/verification-engine/internal/emissions"
	"carbon-scribe/verification-engine/internal/verification"
)

// Repository is the verification ledger. Runs are append-only: there is no update path
// for a stored run besides re-owning it during a session merge.
type Repository interface {
	SaveDocument(ctx context.Context, doc *emissions.Document, subjectID, archiveKey string, evidence []emissions.Evidence) error
	CountDocumentsSince(ctx context.Context, subjectID string, since time.Time) (int64, error)
	ListEvidence(ctx context.Context, subjectID string) ([]emissions.Evidence, error)
	ListRecords(ctx context.Context, subjectID string) ([]emissions.EmissionRecord, error)

	// CreateRun stores the run and marks the records it credited as verified in one
	// transaction. A record can be credited by at most one run.
	CreateRun(ctx context.Context, run *verification.Run, creditedRecordIDs []uuid.UUID) error
	GetRun(ctx context.Context, subjectID string, id uuid.UUID) (*verification.Run, error)
	ListRuns(ctx context.Context, subjectID string, limit int) ([]verification.Run, error)

	GetProfile(ctx context.Context, subjectID string) (*compliance.OrganizationProfile, error)
	SaveProfile(ctx context.Context, subjectID string, profile compliance.OrganizationProfile) error

	MergeSubjects(ctx context.Context, from, to string) (*SubjectMerge, error)
}

// gormRepository implements Repository with GORM
type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a new GORM-backed repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Migrate creates or updates the ledger tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return nil
}

func (r *gormRepository) SaveDocument(ctx context.Context, doc *emissions.Document, subjectID, archiveKey string, evidence []emissions.Evidence) error {
	row, err := newDocumentRow(doc, subjectID, archiveKey, time.Now().UTC())
	if err != nil {
		return err
	}

	records := make([]RecordRow, 0, len(evidence))
	for _, ev := range evidence {
		if err := emissions.ValidateRecord(ev.Record); err != nil {
			return err
		}
		records = append(records, newRecordRow(ev))
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("failed to create records: %w", err)
		}
		return nil
	})
}

func (r *gormRepository) CountDocumentsSince(ctx context.Context, subjectID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&DocumentRow{}).
		Where("subject_id = ? AND created_at >= ?", subjectID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (r *gormRepository) ListEvidence(ctx context.Context, subjectID string) ([]emissions.Evidence, error) {
	var rows []RecordRow
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	evidence := make([]emissions.Evidence, len(rows))
	for i, row := range rows {
		evidence[i] = row.toEvidence()
	}
	return evidence, nil
}

func (r *gormRepository) ListRecords(ctx context.Context, subjectID string) ([]emissions.EmissionRecord, error) {
	evidence, err := r.ListEvidence(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	records := make([]emissions.EmissionRecord, len(evidence))
	for i, ev := range evidence {
		records[i] = ev.Record
	}
	return records, nil
}

// markVerified flips the verified flag, the only mutable field of a record
func markVerified(tx *gorm.DB, subjectID string, recordIDs []uuid.UUID) (int64, error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}
	result := tx.Model(&RecordRow{}).
		Where("subject_id = ? AND id IN ? AND verified = ?", subjectID, recordIDs, false).
		Update("verified", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark records verified: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *gormRepository) CreateRun(ctx context.Context, run *verification.Run, creditedRecordIDs []uuid.UUID) error {
	row, err := newRunRow(run)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}
		marked, err := markVerified(tx, run.SubjectID, creditedRecordIDs)
		if err != nil {
			return err
		}
		if marked != int64(len(creditedRecordIDs)) {
			return fmt.Errorf("%w: run %s credited %d of %d records",
				ErrAlreadyCredited, run.ID, marked, len(creditedRecordIDs))
		}
		return nil
	})
}

func (r *gormRepository) GetRun(ctx context.Context, subjectID string, id uuid.UUID) (*verification.Run, error) {
	var row RunRow
	err := r.db.WithContext(ctx).First(&row, "id = ? AND subject_id = ?", id, subjectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run, err := row.toRun()
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs newest first; a non-positive limit returns all of them
func (r *gormRepository) ListRuns(ctx context.Context, subjectID string, limit int) ([]verification.Run, error) {
	query := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []RunRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]verification.Run, 0, len(rows))
	for _, row := range rows {
		run, err := row.toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *gormRepository) GetProfile(ctx context.Context, subjectID string) (*compliance.OrganizationProfile, error) {
	var row ProfileRow
	err := r.db.WithContext(ctx).First(&row, "subject_id = ?", subjectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	profile := row.toProfile()
	return &profile, nil
}

func (r *gormRepository) SaveProfile(ctx context.Context, subjectID string, profile compliance.OrganizationProfile) error {
	row := newProfileRow(subjectID, profile)
	row.UpdatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// MergeSubjects re-owns every document, record and run of from to to and writes the
// merge audit row. Either all of it is committed or none of it is. The target keeps its
// own profile when it has one.
func (r *gormRepository) MergeSubjects(ctx context.Context, from, to string) (*SubjectMerge, error) {
	merge := &SubjectMerge{
		ID:          uuid.New(),
		FromSubject: from,
		ToSubject:   to,
		MergedAt:    time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		docs := tx.Model(&DocumentRow{}).Where("subject_id = ?", from).Update("subject_id", to)
		if docs.Error != nil {
			return fmt.Errorf("failed to move documents: %w", docs.Error)
		}
		merge.DocumentsMoved = docs.RowsAffected

		records := tx.Model(&RecordRow{}).Where("subject_id = ?", from).Update("subject_id", to)
		if records.Error != nil {
			return fmt.Errorf("failed to move records: %w", records.Error)
		}
		merge.RecordsMoved = records.RowsAffected

		runs := tx.Model(&RunRow{}).Where("subject_id = ?", from).Update("subject_id", to)
		if runs.Error != nil {
			return fmt.Errorf("failed to move runs: %w", runs.Error)
		}
		merge.RunsMoved = runs.RowsAffected

		var targetProfiles int64
		if err := tx.Model(&ProfileRow{}).Where("subject_id = ?", to).Count(&targetProfiles).Error; err != nil {
			return fmt.Errorf("failed to check profile: %w", err)
		}
		if targetProfiles == 0 {
			err := tx.Model(&ProfileRow{}).Where("subject_id = ?", from).Update("subject_id", to).Error
			if err != nil {
				return fmt.Errorf("failed to move profile: %w", err)
			}
		} else if err := tx.Where("subject_id = ?", from).Delete(&ProfileRow{}).Error; err != nil {
			return fmt.Errorf("failed to drop profile: %w", err)
		}

		if err := tx.Create(merge).Error; err != nil {
			return fmt.Errorf("failed to record merge: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merge, nil
}
