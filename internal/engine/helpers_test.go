package engine

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"carbon-scribe/verification-engine/internal/emissions"
)

// verifiedPayload is a single well-documented electricity bill of 2650 kg
const verifiedPayload = `{
	"documentType": "invoice",
	"vendor": "Tata Power",
	"currency": "INR",
	"confidence": 0.95,
	"lineItems": [
		{"productCategory": "ELECTRICITY", "hsnCode": "2716", "quantity": 3732.39, "unit": "kWh",
		 "co2Kg": 2650, "emissionFactor": 0.71}
	]
}`

func f64(v float64) *float64 { return &v }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ledger.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func documentedEvidence(subjectID string, kg float64) emissions.Evidence {
	return emissions.Evidence{
		Record: emissions.EmissionRecord{
			ID:             uuid.New(),
			SubjectID:      subjectID,
			Scope:          emissions.Scope1,
			Category:       emissions.CategoryFuel,
			Co2Kg:          kg,
			ActivityData:   f64(kg / 2.68),
			ActivityUnit:   "l",
			EmissionFactor: f64(2.68),
			DataQuality:    emissions.QualityHigh,
		},
		Confidence: 0.95,
		Method:     emissions.MethodHSN,
	}
}

func unverifiableEvidence(subjectID string, kg float64) emissions.Evidence {
	return emissions.Evidence{
		Record: emissions.EmissionRecord{
			ID:          uuid.New(),
			SubjectID:   subjectID,
			Scope:       emissions.Scope3,
			Category:    emissions.CategoryOther,
			Co2Kg:       kg,
			DataQuality: emissions.QualityLow,
		},
		Confidence: 0.3,
		Method:     emissions.MethodUnverifiable,
	}
}
