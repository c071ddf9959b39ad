package emissions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// extractedData is the wire shape produced by the OCR/extraction collaborator.
// Several fields exist under legacy names; the first present one wins.
type extractedData struct {
	Status         string              `json:"status"`
	Error          string              `json:"error"`
	DocumentType   string              `json:"documentType"`
	Vendor         string              `json:"vendor"`
	Amount         *float64            `json:"amount"`
	Currency       string              `json:"currency"`
	Date           string              `json:"date"`
	TotalCO2Kg     *float64            `json:"totalCO2Kg"`
	EstimatedCO2Kg *float64            `json:"estimatedCO2Kg"`
	Confidence     *float64            `json:"confidence"`
	LineItems      []extractedLineItem `json:"lineItems"`
}

type extractedLineItem struct {
	ProductCategory      string     `json:"productCategory"`
	EmissionCategory     string     `json:"emissionCategory"`
	Description          string     `json:"description"`
	HSNCode              string     `json:"hsnCode"`
	Quantity             *float64   `json:"quantity"`
	Unit                 string     `json:"unit"`
	Scope                scopeValue `json:"scope"`
	CO2Kg                *float64   `json:"co2Kg"`
	CO2eKg               *float64   `json:"co2e_kg"`
	EstimatedCO2Kg       *float64   `json:"estimatedCO2Kg"`
	EmissionFactor       *float64   `json:"emissionFactor"`
	ClassificationMethod string     `json:"classificationMethod"`
}

// scopeValue accepts 2, "2", "scope2" or "Scope 2"
type scopeValue struct {
	value *int
}

func (s *scopeValue) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	raw = strings.ToLower(strings.ReplaceAll(raw, " ", ""))
	raw = strings.TrimPrefix(raw, "scope")
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// An unreadable scope is treated as absent; classification still resolves one.
		return nil
	}
	s.value = &n
	return nil
}

var documentDateLayouts = []string{time.RFC3339, "2006-01-02", "02/01/2006", "02-01-2006"}

// ParseExtractedData decodes an ExtractedData payload into a Document.
// Missing optional fields are tolerated; an upstream failure marker yields ErrExtractionFailed.
func ParseExtractedData(data []byte) (*Document, error) {
	var payload extractedData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if payload.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrExtractionFailed, payload.Error)
	}
	if strings.EqualFold(payload.Status, "failed") || strings.EqualFold(payload.Status, "error") {
		return nil, fmt.Errorf("%w: extractor status %q", ErrExtractionFailed, payload.Status)
	}

	doc := &Document{
		ID:           uuid.New(),
		DocumentType: payload.DocumentType,
		Vendor:       payload.Vendor,
		Currency:     payload.Currency,
		TotalCo2Kg:   firstOf(payload.TotalCO2Kg, payload.EstimatedCO2Kg),
		Confidence:   clampUnit(firstOf(payload.Confidence)),
	}
	if payload.Amount != nil {
		doc.Amount = *payload.Amount
	}
	if payload.Date != "" {
		for _, layout := range documentDateLayouts {
			if t, err := time.Parse(layout, payload.Date); err == nil {
				doc.DocumentDate = &t
				break
			}
		}
	}

	for _, li := range payload.LineItems {
		doc.LineItems = append(doc.LineItems, LineItem{
			ProductCategory:      li.ProductCategory,
			EmissionCategory:     li.EmissionCategory,
			Description:          li.Description,
			Quantity:             li.Quantity,
			Unit:                 li.Unit,
			Scope:                li.Scope.value,
			Co2Kg:                nonNegative(firstOf(li.CO2Kg, li.CO2eKg, li.EstimatedCO2Kg)),
			EmissionFactor:       li.EmissionFactor,
			ClassificationMethod: resolveMethod(li),
		})
	}

	// A document total without a breakdown becomes a single unverifiable line.
	if len(doc.LineItems) == 0 && doc.TotalCo2Kg > 0 {
		doc.LineItems = append(doc.LineItems, LineItem{
			ProductCategory:      payload.DocumentType,
			Co2Kg:                doc.TotalCo2Kg,
			ClassificationMethod: MethodUnverifiable,
		})
	}

	return doc, nil
}

// BuildEvidence classifies every line item of doc and turns it into an EmissionRecord
// owned by subjectID, carrying the document confidence and classification method.
func BuildEvidence(doc *Document, subjectID string, createdAt time.Time, classifier *Classifier) []Evidence {
	if classifier == nil {
		classifier = DefaultClassifier()
	}

	docRef := doc.ID
	evidence := make([]Evidence, 0, len(doc.LineItems))
	for _, li := range doc.LineItems {
		c := classifier.Classify(ClassifyInput{
			ProductCategory:  li.ProductCategory,
			EmissionCategory: li.EmissionCategory,
			ExplicitScope:    li.Scope,
		})

		record := EmissionRecord{
			ID:             uuid.New(),
			SubjectID:      subjectID,
			Scope:          c.Scope,
			Category:       c.Category,
			Co2Kg:          nonNegative(li.Co2Kg),
			ActivityData:   li.Quantity,
			ActivityUnit:   li.Unit,
			EmissionFactor: li.EmissionFactor,
			DocumentRef:    &docRef,
			CreatedAt:      createdAt,
		}
		record.DataQuality = EffectiveQuality(record, methodQuality(li.ClassificationMethod))

		evidence = append(evidence, Evidence{
			Record:        record,
			Confidence:    doc.Confidence,
			Method:        li.ClassificationMethod,
			ScopeConflict: c.Conflict,
		})
	}
	return evidence
}

// EffectiveQuality caps a record's data quality by its provenance: a record missing both
// activity data and an emission factor is low quality, missing one caps it at medium.
func EffectiveQuality(r EmissionRecord, claimed DataQuality) DataQuality {
	if claimed == "" {
		claimed = r.DataQuality
	}
	limit := QualityHigh
	switch {
	case !r.HasActivityData() && !r.HasEmissionFactor():
		limit = QualityLow
	case !r.HasActivityData() || !r.HasEmissionFactor():
		limit = QualityMedium
	}
	if claimed.Rank() < limit.Rank() {
		return normalizeQuality(claimed)
	}
	return limit
}

// ValidateRecord checks the data model invariants of a record before it is stored
func ValidateRecord(r EmissionRecord) error {
	if r.SubjectID == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidRecord)
	}
	if !r.Scope.Valid() {
		return fmt.Errorf("%w: scope %d out of range", ErrInvalidRecord, r.Scope)
	}
	if r.Co2Kg < 0 {
		return fmt.Errorf("%w: co2_kg must be non-negative", ErrInvalidRecord)
	}
	return nil
}

func resolveMethod(li extractedLineItem) ClassificationMethod {
	switch ClassificationMethod(strings.ToUpper(strings.TrimSpace(li.ClassificationMethod))) {
	case MethodHSN:
		return MethodHSN
	case MethodKeyword:
		return MethodKeyword
	case MethodUnverifiable:
		return MethodUnverifiable
	}
	if strings.TrimSpace(li.HSNCode) != "" {
		return MethodHSN
	}
	if Classify(ClassifyInput{ProductCategory: li.ProductCategory, EmissionCategory: li.EmissionCategory}).Known {
		return MethodKeyword
	}
	return MethodUnverifiable
}

func methodQuality(m ClassificationMethod) DataQuality {
	switch m {
	case MethodHSN:
		return QualityHigh
	case MethodKeyword:
		return QualityMedium
	default:
		return QualityLow
	}
}

func normalizeQuality(q DataQuality) DataQuality {
	switch q {
	case QualityHigh, QualityMedium:
		return q
	default:
		return QualityLow
	}
}

// firstOf returns the first non-nil value, or 0
func firstOf(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
