package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"carbon-scribe/verification-engine/internal/compliance"
	"carbon-scribe/verification-engine/internal/emissions"
	"carbon-scribe/verification-engine/internal/verification"
)

// DocumentRow is a stored extraction result
type DocumentRow struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	SubjectID    string         `json:"subject_id" gorm:"not null;index"`
	DocumentType string         `json:"document_type"`
	Vendor       string         `json:"vendor"`
	Amount       float64        `json:"amount"`
	Currency     string         `json:"currency"`
	DocumentDate *time.Time     `json:"document_date"`
	TotalCo2Kg   float64        `json:"total_co2_kg" gorm:"not null"`
	Confidence   float64        `json:"confidence" gorm:"not null"`
	LineItems    datatypes.JSON `json:"line_items"`
	ArchiveKey   string         `json:"archive_key"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null;index"`
}

func (DocumentRow) TableName() string { return "verification_documents" }

// RecordRow is a stored EmissionRecord with its extraction metadata
type RecordRow struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SubjectID      string     `gorm:"not null;index"`
	DocumentID     *uuid.UUID `gorm:"type:uuid;index"`
	Scope          int        `gorm:"not null"`
	Category       string     `gorm:"not null"`
	Co2Kg          float64    `gorm:"not null"`
	ActivityData   *float64
	ActivityUnit   string
	EmissionFactor *float64
	DataQuality    string `gorm:"not null"`
	Verified       bool   `gorm:"not null;default:false"`
	Confidence     float64
	Method         string
	ScopeConflict  bool
	CreatedAt      time.Time `gorm:"not null;index"`
}

func (RecordRow) TableName() string { return "emission_records" }

// RunRow is an append-only VerificationRun. Scalar columns support queries; Payload holds
// the complete run as it was hashed.
type RunRow struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SubjectID   string         `gorm:"not null;index:idx_runs_subject_created,priority:1"`
	Status      string         `gorm:"not null;index"`
	Score       float64        `gorm:"not null"`
	TotalCo2Kg  float64        `gorm:"not null"`
	Grade       string         `gorm:"not null"`
	Credits     int64          `gorm:"not null"`
	Payload     datatypes.JSON `gorm:"not null"`
	ContentHash string         `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null;index:idx_runs_subject_created,priority:2"`
}

func (RunRow) TableName() string { return "verification_runs" }

// ProfileRow is a subject's organization profile
type ProfileRow struct {
	SubjectID        string `gorm:"primaryKey"`
	Country          string
	Size             string
	ExportsToEU      bool
	SeekingFinance   bool
	HasNetZeroTarget bool
	Sector           string
	UpdatedAt        time.Time
}

func (ProfileRow) TableName() string { return "organization_profiles" }

// SubjectMerge is the audit row written with every session merge
type SubjectMerge struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	FromSubject    string    `json:"from_subject" gorm:"not null;index"`
	ToSubject      string    `json:"to_subject" gorm:"not null;index"`
	DocumentsMoved int64     `json:"documents_moved"`
	RecordsMoved   int64     `json:"records_moved"`
	RunsMoved      int64     `json:"runs_moved"`
	MergedAt       time.Time `json:"merged_at" gorm:"not null"`
}

func (SubjectMerge) TableName() string { return "subject_merges" }

// Models lists every table for AutoMigrate
func Models() []interface{} {
	return []interface{}{&DocumentRow{}, &RecordRow{}, &RunRow{}, &ProfileRow{}, &SubjectMerge{}}
}

func newDocumentRow(doc *emissions.Document, subjectID, archiveKey string, createdAt time.Time) (*DocumentRow, error) {
	items, err := json.Marshal(doc.LineItems)
	if err != nil {
		return nil, fmt.Errorf("failed to encode line items: %w", err)
	}
	return &DocumentRow{
		ID:           doc.ID,
		SubjectID:    subjectID,
		DocumentType: doc.DocumentType,
		Vendor:       doc.Vendor,
		Amount:       doc.Amount,
		Currency:     doc.Currency,
		DocumentDate: doc.DocumentDate,
		TotalCo2Kg:   doc.TotalCo2Kg,
		Confidence:   doc.Confidence,
		LineItems:    datatypes.JSON(items),
		ArchiveKey:   archiveKey,
		CreatedAt:    createdAt,
	}, nil
}

func newRecordRow(ev emissions.Evidence) RecordRow {
	r := ev.Record
	return RecordRow{
		ID:             r.ID,
		SubjectID:      r.SubjectID,
		DocumentID:     r.DocumentRef,
		Scope:          int(r.Scope),
		Category:       string(r.Category),
		Co2Kg:          r.Co2Kg,
		ActivityData:   r.ActivityData,
		ActivityUnit:   r.ActivityUnit,
		EmissionFactor: r.EmissionFactor,
		DataQuality:    string(r.DataQuality),
		Verified:       r.Verified,
		Confidence:     ev.Confidence,
		Method:         string(ev.Method),
		ScopeConflict:  ev.ScopeConflict,
		CreatedAt:      r.CreatedAt,
	}
}

func (row RecordRow) toEvidence() emissions.Evidence {
	return emissions.Evidence{
		Record: emissions.EmissionRecord{
			ID:             row.ID,
			SubjectID:      row.SubjectID,
			Scope:          emissions.Scope(row.Scope),
			Category:       emissions.Category(row.Category),
			Co2Kg:          row.Co2Kg,
			ActivityData:   row.ActivityData,
			ActivityUnit:   row.ActivityUnit,
			EmissionFactor: row.EmissionFactor,
			DataQuality:    emissions.DataQuality(row.DataQuality),
			Verified:       row.Verified,
			DocumentRef:    row.DocumentID,
			CreatedAt:      row.CreatedAt,
		},
		Confidence:    row.Confidence,
		Method:        emissions.ClassificationMethod(row.Method),
		ScopeConflict: row.ScopeConflict,
	}
}

func newRunRow(run *verification.Run) (*RunRow, error) {
	payload, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run: %w", err)
	}
	return &RunRow{
		ID:          run.ID,
		SubjectID:   run.SubjectID,
		Status:      string(run.Status),
		Score:       run.Score,
		TotalCo2Kg:  run.TotalCo2Kg,
		Grade:       string(run.CreditEligibility.QualityGrade),
		Credits:     run.CreditEligibility.EligibleCredits,
		Payload:     datatypes.JSON(payload),
		ContentHash: run.ContentHash,
		CreatedAt:   run.CreatedAt,
	}, nil
}

// toRun decodes the payload; the owning subject comes from the row so merged runs
// report their new owner.
func (row RunRow) toRun() (verification.Run, error) {
	var run verification.Run
	if err := json.Unmarshal(row.Payload, &run); err != nil {
		return verification.Run{}, fmt.Errorf("failed to decode run %s: %w", row.ID, err)
	}
	run.SubjectID = row.SubjectID
	return run, nil
}

func newProfileRow(subjectID string, p compliance.OrganizationProfile) ProfileRow {
	return ProfileRow{
		SubjectID:        subjectID,
		Country:          p.Country,
		Size:             p.Size,
		ExportsToEU:      p.ExportsToEU,
		SeekingFinance:   p.SeekingFinance,
		HasNetZeroTarget: p.HasNetZeroTarget,
		Sector:           p.Sector,
	}
}

func (row ProfileRow) toProfile() compliance.OrganizationProfile {
	return compliance.OrganizationProfile{
		Country:          row.Country,
		Size:             row.Size,
		ExportsToEU:      row.ExportsToEU,
		SeekingFinance:   row.SeekingFinance,
		HasNetZeroTarget: row.HasNetZeroTarget,
		Sector:           row.Sector,
	}
}
