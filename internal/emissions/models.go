package emissions

import (
	"time"

	"github.com/google/uuid"
)

// Scope is a GHG Protocol emission scope
type Scope int

const (
	Scope1 Scope = 1
	Scope2 Scope = 2
	Scope3 Scope = 3
)

// Valid reports whether s is one of the three GHG Protocol scopes
func (s Scope) Valid() bool {
	return s == Scope1 || s == Scope2 || s == Scope3
}

// Category is a canonical emission category
type Category string

const (
	CategoryFuel        Category = "fuel"
	CategoryElectricity Category = "electricity"
	CategoryTransport   Category = "transport"
	CategoryMaterials   Category = "materials"
	CategoryWaste       Category = "waste"
	CategoryOther       Category = "other"
)

// DataQuality is the provenance quality of a single record
type DataQuality string

const (
	QualityHigh   DataQuality = "high"
	QualityMedium DataQuality = "medium"
	QualityLow    DataQuality = "low"
)

// Rank orders qualities so they can be compared; unknown values rank as low.
func (q DataQuality) Rank() int {
	switch q {
	case QualityHigh:
		return 2
	case QualityMedium:
		return 1
	default:
		return 0
	}
}

// ClassificationMethod is how the extractor classified a line item
type ClassificationMethod string

const (
	MethodHSN          ClassificationMethod = "HSN"
	MethodKeyword      ClassificationMethod = "KEYWORD"
	MethodUnverifiable ClassificationMethod = "UNVERIFIABLE"
)

// EmissionRecord is an immutable emission fact owned by a subject (user or anonymous session).
// Only Verified may change after creation.
type EmissionRecord struct {
	ID             uuid.UUID   `json:"id"`
	SubjectID      string      `json:"subject_id"`
	Scope          Scope       `json:"scope"`
	Category       Category    `json:"category"`
	Co2Kg          float64     `json:"co2_kg"`
	ActivityData   *float64    `json:"activity_data,omitempty"`
	ActivityUnit   string      `json:"activity_unit,omitempty"`
	EmissionFactor *float64    `json:"emission_factor,omitempty"`
	DataQuality    DataQuality `json:"data_quality"`
	Verified       bool        `json:"verified"`
	DocumentRef    *uuid.UUID  `json:"document_ref,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// HasActivityData reports whether activity provenance was captured
func (r EmissionRecord) HasActivityData() bool {
	return r.ActivityData != nil
}

// HasEmissionFactor reports whether the emission factor was cited
func (r EmissionRecord) HasEmissionFactor() bool {
	return r.EmissionFactor != nil
}

// Evidence is a record together with the extraction metadata the scorer needs.
type Evidence struct {
	Record        EmissionRecord       `json:"record"`
	Confidence    float64              `json:"confidence"`
	Method        ClassificationMethod `json:"classification_method"`
	ScopeConflict bool                 `json:"scope_conflict"`
}

// LineItem is one classified line of an extracted document
type LineItem struct {
	ProductCategory      string               `json:"product_category"`
	EmissionCategory     string               `json:"emission_category,omitempty"`
	Description          string               `json:"description,omitempty"`
	Quantity             *float64             `json:"quantity,omitempty"`
	Unit                 string               `json:"unit,omitempty"`
	Scope                *int                 `json:"scope,omitempty"`
	Co2Kg                float64              `json:"co2_kg"`
	EmissionFactor       *float64             `json:"emission_factor,omitempty"`
	ClassificationMethod ClassificationMethod `json:"classification_method"`
}

// Document is the raw extraction result for one uploaded file
type Document struct {
	ID           uuid.UUID  `json:"id"`
	DocumentType string     `json:"document_type"`
	Vendor       string     `json:"vendor"`
	Amount       float64    `json:"amount"`
	Currency     string     `json:"currency"`
	DocumentDate *time.Time `json:"document_date,omitempty"`
	TotalCo2Kg   float64    `json:"total_co2_kg"`
	LineItems    []LineItem `json:"line_items"`
	Confidence   float64    `json:"confidence"`
}

// ScopeTotals holds per-scope CO2e in kilograms
type ScopeTotals struct {
	Scope1 float64 `json:"scope1"`
	Scope2 float64 `json:"scope2"`
	Scope3 float64 `json:"scope3"`
}

// Total returns the sum of all three scopes
func (t ScopeTotals) Total() float64 {
	return t.Scope1 + t.Scope2 + t.Scope3
}

// Add accumulates kg into the bucket for scope; invalid scopes count as Scope 3.
func (t *ScopeTotals) Add(scope Scope, kg float64) {
	switch scope {
	case Scope1:
		t.Scope1 += kg
	case Scope2:
		t.Scope2 += kg
	default:
		t.Scope3 += kg
	}
}

// MonthlyBucket is one entry of the trailing monthly trend
type MonthlyBucket struct {
	Month  string  `json:"month"`
	Scope1 float64 `json:"scope1"`
	Scope2 float64 `json:"scope2"`
	Scope3 float64 `json:"scope3"`
}

// AggregatedSummary is a derived projection over a subject's EmissionRecords
type AggregatedSummary struct {
	Scope1       float64              `json:"scope1"`
	Scope2       float64              `json:"scope2"`
	Scope3       float64              `json:"scope3"`
	Total        float64              `json:"total"`
	ByCategory   map[Category]float64 `json:"by_category"`
	MonthlyTrend []MonthlyBucket      `json:"monthly_trend"`
	RecordCount  int                  `json:"record_count"`
}
