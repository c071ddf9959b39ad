package tiers

import (
	"fmt"
	"strings"
)

// Tier is a subscription tier. The set is closed: every switch over Tier must handle
// all four values.
type Tier int

const (
	Free Tier = iota
	Starter
	Professional
	Enterprise
)

// Capabilities is the feature table of a tier
type Capabilities struct {
	// MaxDocumentsPerMonth is the ingestion quota; zero means unlimited.
	MaxDocumentsPerMonth int  `json:"max_documents_per_month"`
	HistoryDepth         int  `json:"history_depth"`
	AuditExport          bool `json:"audit_export"`
	FrameworkOverride    bool `json:"framework_override"`
	RealtimeUpdates      bool `json:"realtime_updates"`
	CCTSAssessment       bool `json:"ccts_assessment"`
	CBAMAssessment       bool `json:"cbam_assessment"`
	SessionMerge         bool `json:"session_merge"`
}

// Capabilities returns the feature table for t
func (t Tier) Capabilities() Capabilities {
	switch t {
	case Free:
		return Capabilities{
			MaxDocumentsPerMonth: 5,
			HistoryDepth:         3,
			SessionMerge:         true,
		}
	case Starter:
		return Capabilities{
			MaxDocumentsPerMonth: 50,
			HistoryDepth:         12,
			RealtimeUpdates:      true,
			CCTSAssessment:       true,
			SessionMerge:         true,
		}
	case Professional:
		return Capabilities{
			MaxDocumentsPerMonth: 500,
			HistoryDepth:         60,
			AuditExport:          true,
			FrameworkOverride:    true,
			RealtimeUpdates:      true,
			CCTSAssessment:       true,
			CBAMAssessment:       true,
			SessionMerge:         true,
		}
	case Enterprise:
		return Capabilities{
			HistoryDepth:      500,
			AuditExport:       true,
			FrameworkOverride: true,
			RealtimeUpdates:   true,
			CCTSAssessment:    true,
			CBAMAssessment:    true,
			SessionMerge:      true,
		}
	default:
		panic(fmt.Sprintf("tiers: unhandled tier %d", int(t)))
	}
}

// String returns the tier name used in headers and config
func (t Tier) String() string {
	switch t {
	case Free:
		return "free"
	case Starter:
		return "starter"
	case Professional:
		return "professional"
	case Enterprise:
		return "enterprise"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// All returns every tier from lowest to highest
func All() []Tier {
	return []Tier{Free, Starter, Professional, Enterprise}
}

// Parse converts a tier name into a Tier. The empty string is Free.
func Parse(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "free":
		return Free, nil
	case "starter", "basic":
		return Starter, nil
	case "professional", "pro":
		return Professional, nil
	case "enterprise":
		return Enterprise, nil
	default:
		return Free, fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
}

// AllowsDocuments reports whether a subject that already uploaded used documents this
// month may upload another one.
func (c Capabilities) AllowsDocuments(used int) bool {
	return c.MaxDocumentsPerMonth == 0 || used < c.MaxDocumentsPerMonth
}
