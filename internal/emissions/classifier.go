package emissions

import "strings"

// defaultTokenCategories maps extractor product-category tokens to canonical categories
var defaultTokenCategories = map[string]Category{
	"FUEL":        CategoryFuel,
	"DIESEL":      CategoryFuel,
	"PETROL":      CategoryFuel,
	"GASOLINE":    CategoryFuel,
	"LPG":         CategoryFuel,
	"CNG":         CategoryFuel,
	"NATURAL_GAS": CategoryFuel,
	"COAL":        CategoryFuel,

	"ELECTRICITY": CategoryElectricity,
	"POWER":       CategoryElectricity,
	"ENERGY":      CategoryElectricity,

	"TRANSPORT": CategoryTransport,
	"LOGISTICS": CategoryTransport,
	"FREIGHT":   CategoryTransport,
	"SHIPPING":  CategoryTransport,
	"TRAVEL":    CategoryTransport,

	"RAW_MATERIAL":  CategoryMaterials,
	"RAW_MATERIALS": CategoryMaterials,
	"CHEMICALS":     CategoryMaterials,
	"METALS":        CategoryMaterials,
	"STEEL":         CategoryMaterials,
	"PLASTICS":      CategoryMaterials,
	"PACKAGING":     CategoryMaterials,
	"CONSTRUCTION":  CategoryMaterials,

	"WASTE": CategoryWaste,
	"SCRAP": CategoryWaste,

	"SERVICES":        CategoryOther,
	"OFFICE_SUPPLIES": CategoryOther,
	"IT_EQUIPMENT":    CategoryOther,
	"FOOD":            CategoryOther,
	"OTHER":           CategoryOther,
}

// defaultCategoryScopes is the GHG Protocol default scope per canonical category
var defaultCategoryScopes = map[Category]Scope{
	CategoryFuel:        Scope1,
	CategoryElectricity: Scope2,
	CategoryTransport:   Scope3,
	CategoryMaterials:   Scope3,
	CategoryWaste:       Scope3,
	CategoryOther:       Scope3,
}

// ScopeSource records which signal decided a classification's scope
type ScopeSource string

const (
	ScopeFromLineItem ScopeSource = "line_item"
	ScopeFromCategory ScopeSource = "category"
	ScopeFromDefault  ScopeSource = "default"
)

// ClassifyInput carries the raw signals for one line item
type ClassifyInput struct {
	ProductCategory  string
	EmissionCategory string // legacy field
	ExplicitScope    *int
}

// Classification is the classifier's verdict
type Classification struct {
	Category    Category    `json:"category"`
	Scope       Scope       `json:"scope"`
	ScopeSource ScopeSource `json:"scope_source"`
	Known       bool        `json:"known"`
	// Conflict is set when an explicit line-item scope disagrees with the category scope.
	Conflict bool `json:"conflict"`
}

// Classifier maps raw category tokens to canonical categories and scopes.
// It holds no mutable state after construction and is safe for concurrent use.
type Classifier struct {
	tokens map[string]Category
	scopes map[Category]Scope
}

// NewClassifier builds a classifier from the given tables. Missing tables fall back to
// the defaults.
func NewClassifier(tokens map[string]Category, scopes map[Category]Scope) *Classifier {
	if tokens == nil {
		tokens = defaultTokenCategories
	}
	if scopes == nil {
		scopes = defaultCategoryScopes
	}

	c := &Classifier{
		tokens: make(map[string]Category, len(tokens)),
		scopes: make(map[Category]Scope, len(scopes)),
	}
	for k, v := range tokens {
		c.tokens[normalizeToken(k)] = v
	}
	for k, v := range scopes {
		c.scopes[k] = v
	}
	return c
}

var defaultClassifier = NewClassifier(nil, nil)

// DefaultClassifier returns the classifier built from the built-in tables
func DefaultClassifier() *Classifier {
	return defaultClassifier
}

// Classify classifies with the default tables
func Classify(in ClassifyInput) Classification {
	return defaultClassifier.Classify(in)
}

// Classify resolves the canonical category and scope for one line item. It never fails:
// unknown tokens fall back to CategoryOther and Scope 3.
func (c *Classifier) Classify(in ClassifyInput) Classification {
	category, known := c.resolveCategory(in.ProductCategory)
	if !known {
		category, known = c.resolveCategory(in.EmissionCategory)
	}
	if !known {
		category = CategoryOther
	}

	derived, ok := c.scopes[category]
	if !ok {
		derived = Scope3
	}

	result := Classification{
		Category:    category,
		Scope:       derived,
		ScopeSource: ScopeFromCategory,
		Known:       known,
	}
	if !known {
		result.ScopeSource = ScopeFromDefault
	}

	if in.ExplicitScope != nil {
		explicit := Scope(*in.ExplicitScope)
		if explicit.Valid() {
			result.Conflict = known && explicit != derived
			result.Scope = explicit
			result.ScopeSource = ScopeFromLineItem
		}
	}

	return result
}

// ScopeFor returns the default scope of a canonical category
func (c *Classifier) ScopeFor(category Category) Scope {
	if s, ok := c.scopes[category]; ok {
		return s
	}
	return Scope3
}

func (c *Classifier) resolveCategory(raw string) (Category, bool) {
	token := normalizeToken(raw)
	if token == "" {
		return "", false
	}
	if cat, ok := c.tokens[token]; ok {
		return cat, true
	}
	// Legacy callers sometimes pass the canonical name directly.
	canonical := Category(strings.ToLower(token))
	if _, ok := c.scopes[canonical]; ok {
		return canonical, true
	}
	return "", false
}

func normalizeToken(raw string) string {
	token := strings.ToUpper(strings.TrimSpace(raw))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(token)
}
