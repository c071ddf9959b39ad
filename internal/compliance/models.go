package compliance

import "strings"

// FrameworkID identifies a disclosure framework
type FrameworkID string

const (
	GHGProtocol FrameworkID = "GHG_PROTOCOL"
	GHGScope3   FrameworkID = "GHG_SCOPE3"
	CBAM        FrameworkID = "CBAM"
	IndiaBRSR   FrameworkID = "INDIA_BRSR"
	IndiaCCTS   FrameworkID = "INDIA_CCTS"
	CSRD        FrameworkID = "CSRD"
	CDP         FrameworkID = "CDP"
	SBTi        FrameworkID = "SBTI"
	ISO14064    FrameworkID = "ISO_14064"
)

// Organisation sizes
const (
	SizeMicro       = "micro"
	SizeSmall       = "small"
	SizeMedium      = "medium"
	SizeLarge       = "large"
	SizeLargeListed = "large-listed"
)

// OrganizationProfile is the subject's self-declared profile
type OrganizationProfile struct {
	Country          string `json:"country"`
	Size             string `json:"size"`
	ExportsToEU      bool   `json:"exports_to_eu"`
	SeekingFinance   bool   `json:"seeking_finance"`
	HasNetZeroTarget bool   `json:"has_net_zero_target"`
	Sector           string `json:"sector"`
}

var countryAliases = map[string]string{
	"INDIA": "IN",
	"IND":   "IN",
}

var sectorAliases = map[string]string{
	"aluminium":      "aluminum",
	"iron-and-steel": "steel",
	"iron-steel":     "steel",
	"fertiliser":     "fertilizer",
	"fertilisers":    "fertilizer",
	"fertilizers":    "fertilizer",
	"power":          "electricity",
}

var sizeAliases = map[string]string{
	"listed":       SizeLargeListed,
	"large-listed": SizeLargeListed,
	"enterprise":   SizeLarge,
	"sme":          SizeSmall,
	"msme":         SizeSmall,
}

// Normalize canonicalises the free-text fields so predicates compare like with like
func (p OrganizationProfile) Normalize() OrganizationProfile {
	country := strings.ToUpper(strings.TrimSpace(p.Country))
	if alias, ok := countryAliases[country]; ok {
		country = alias
	}
	p.Country = country

	p.Sector = slug(p.Sector)
	if alias, ok := sectorAliases[p.Sector]; ok {
		p.Sector = alias
	}

	p.Size = slug(p.Size)
	if alias, ok := sizeAliases[p.Size]; ok {
		p.Size = alias
	}
	return p
}

// IsLarge reports whether the organisation is large, listed or not
func (p OrganizationProfile) IsLarge() bool {
	return p.Size == SizeLarge || p.Size == SizeLargeListed
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "-", " ", "-").Replace(s)
}

// Resolution is the mapper output for one report
type Resolution struct {
	Frameworks []FrameworkID `json:"frameworks"`
	Disclaimer string        `json:"disclaimer"`
	Overridden bool          `json:"overridden"`
}

// Contains reports whether id is part of the resolved set
func (r Resolution) Contains(id FrameworkID) bool {
	for _, f := range r.Frameworks {
		if f == id {
			return true
		}
	}
	return false
}
