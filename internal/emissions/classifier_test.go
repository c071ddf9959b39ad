package emissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		in           ClassifyInput
		wantCategory Category
		wantScope    Scope
		wantSource   ScopeSource
		wantConflict bool
	}{
		{"fuel token", ClassifyInput{ProductCategory: "FUEL"}, CategoryFuel, Scope1, ScopeFromCategory, false},
		{"electricity token", ClassifyInput{ProductCategory: "ELECTRICITY"}, CategoryElectricity, Scope2, ScopeFromCategory, false},
		{"chemicals are materials", ClassifyInput{ProductCategory: "CHEMICALS"}, CategoryMaterials, Scope3, ScopeFromCategory, false},
		{"services are other", ClassifyInput{ProductCategory: "SERVICES"}, CategoryOther, Scope3, ScopeFromCategory, false},
		{"lower case with spaces", ClassifyInput{ProductCategory: "raw material"}, CategoryMaterials, Scope3, ScopeFromCategory, false},
		{"unknown token", ClassifyInput{ProductCategory: "UNKNOWN_TOKEN"}, CategoryOther, Scope3, ScopeFromDefault, false},
		{"empty input", ClassifyInput{}, CategoryOther, Scope3, ScopeFromDefault, false},
		{"legacy emission category", ClassifyInput{ProductCategory: "UNKNOWN_TOKEN", EmissionCategory: "electricity"}, CategoryElectricity, Scope2, ScopeFromCategory, false},
		{"product token wins over legacy", ClassifyInput{ProductCategory: "DIESEL", EmissionCategory: "waste"}, CategoryFuel, Scope1, ScopeFromCategory, false},
		{"explicit scope agrees", ClassifyInput{ProductCategory: "FUEL", ExplicitScope: intPtr(1)}, CategoryFuel, Scope1, ScopeFromLineItem, false},
		{"explicit scope conflicts", ClassifyInput{ProductCategory: "ELECTRICITY", ExplicitScope: intPtr(3)}, CategoryElectricity, Scope3, ScopeFromLineItem, true},
		{"explicit scope on unknown token", ClassifyInput{ProductCategory: "??", ExplicitScope: intPtr(2)}, CategoryOther, Scope2, ScopeFromLineItem, false},
		{"invalid explicit scope ignored", ClassifyInput{ProductCategory: "FUEL", ExplicitScope: intPtr(7)}, CategoryFuel, Scope1, ScopeFromCategory, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantScope, got.Scope)
			assert.Equal(t, tt.wantSource, got.ScopeSource)
			assert.Equal(t, tt.wantConflict, got.Conflict)
		})
	}
}

func TestNewClassifierCustomTables(t *testing.T) {
	c := NewClassifier(map[string]Category{"heat-pump": CategoryElectricity}, nil)

	got := c.Classify(ClassifyInput{ProductCategory: "HEAT_PUMP"})
	assert.Equal(t, CategoryElectricity, got.Category)
	assert.Equal(t, Scope2, got.Scope)

	// tokens missing from a custom table are not inherited from the defaults
	got = c.Classify(ClassifyInput{ProductCategory: "DIESEL"})
	assert.Equal(t, CategoryOther, got.Category)
	assert.False(t, got.Known)
}

func TestScopeFor(t *testing.T) {
	c := DefaultClassifier()
	assert.Equal(t, Scope1, c.ScopeFor(CategoryFuel))
	assert.Equal(t, Scope2, c.ScopeFor(CategoryElectricity))
	assert.Equal(t, Scope3, c.ScopeFor(Category("unlisted")))
}
