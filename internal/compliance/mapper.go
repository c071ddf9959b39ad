package compliance

import (
	"fmt"
	"strings"
)

// framework is one row of the applicability table
type framework struct {
	id      FrameworkID
	name    string
	applies func(OrganizationProfile) bool
	clause  string
}

var cbamSectors = map[string]bool{
	"steel":       true,
	"aluminum":    true,
	"cement":      true,
	"fertilizer":  true,
	"hydrogen":    true,
	"electricity": true,
}

// cctsSectors are the obligated sectors of India's Carbon Credit Trading Scheme
var cctsSectors = map[string]bool{
	"aluminum":           true,
	"cement":             true,
	"chlor-alkali":       true,
	"steel":              true,
	"pulp-and-paper":     true,
	"petrochemicals":     true,
	"petroleum-refining": true,
	"textiles":           true,
	"fertilizer":         true,
}

// frameworks is ordered; resolution output always follows this order.
var frameworks = []framework{
	{
		id:      GHGProtocol,
		name:    "GHG Protocol Corporate Standard",
		applies: func(OrganizationProfile) bool { return true },
		clause:  "Scope 1 and Scope 2 figures follow the GHG Protocol Corporate Accounting and Reporting Standard.",
	},
	{
		id:   GHGScope3,
		name: "GHG Protocol Scope 3 Standard",
		applies: func(p OrganizationProfile) bool {
			return p.IsLarge() || p.SeekingFinance
		},
		clause: "Scope 3 figures are screening estimates under the GHG Protocol Corporate Value Chain (Scope 3) Standard and rely on supplier and spend data.",
	},
	{
		id:   CBAM,
		name: "EU Carbon Border Adjustment Mechanism",
		applies: func(p OrganizationProfile) bool {
			return p.ExportsToEU && cbamSectors[p.Sector]
		},
		clause: "Embedded emissions are indicative and do not replace a CBAM declaration verified by an accredited verifier.",
	},
	{
		id:   IndiaBRSR,
		name: "SEBI Business Responsibility and Sustainability Report",
		applies: func(p OrganizationProfile) bool {
			return p.Country == "IN" && p.Size == SizeLargeListed
		},
		clause: "BRSR Principle 6 disclosures must be reviewed by the board and, where required, subjected to reasonable assurance.",
	},
	{
		id:   IndiaCCTS,
		name: "India Carbon Credit Trading Scheme",
		applies: func(p OrganizationProfile) bool {
			return p.Country == "IN" && cctsSectors[p.Sector]
		},
		clause: "CCTS eligibility is an estimate; credits are issued only by the Bureau of Energy Efficiency after accredited verification.",
	},
	{
		id:   CSRD,
		name: "EU Corporate Sustainability Reporting Directive",
		applies: func(p OrganizationProfile) bool {
			return p.ExportsToEU && p.IsLarge()
		},
		clause: "ESRS E1 climate disclosures require limited assurance by an independent assurance provider.",
	},
	{
		id:   CDP,
		name: "CDP Climate Change Questionnaire",
		applies: func(p OrganizationProfile) bool {
			return p.SeekingFinance
		},
		clause: "Figures may be used to prepare a CDP response; CDP scoring is performed solely by CDP.",
	},
	{
		id:   SBTi,
		name: "Science Based Targets initiative",
		applies: func(p OrganizationProfile) bool {
			return p.HasNetZeroTarget
		},
		clause: "Net-zero targets must be validated by the SBTi; this report does not constitute target validation.",
	},
	{
		id:   ISO14064,
		name: "ISO 14064-1",
		applies: func(p OrganizationProfile) bool {
			return p.SeekingFinance && p.Size != SizeMicro
		},
		clause: "Inventory structure is aligned with ISO 14064-1 but has not been verified to ISO 14064-3.",
	},
}

const baseDisclaimer = "This report is generated from documents supplied by the organisation and automated classification. " +
	"It is not an assurance opinion."

var byID = func() map[FrameworkID]framework {
	m := make(map[FrameworkID]framework, len(frameworks))
	for _, f := range frameworks {
		m[f.id] = f
	}
	return m
}()

// Known reports whether id is a supported framework
func Known(id FrameworkID) bool {
	_, ok := byID[id]
	return ok
}

// Name returns the display name of a framework
func Name(id FrameworkID) string {
	return byID[id].name
}

// All returns every supported framework in canonical order
func All() []FrameworkID {
	ids := make([]FrameworkID, 0, len(frameworks))
	for _, f := range frameworks {
		ids = append(ids, f.id)
	}
	return ids
}

// Applies evaluates a single framework predicate
func Applies(id FrameworkID, profile OrganizationProfile) bool {
	f, ok := byID[id]
	if !ok {
		return false
	}
	return f.applies(profile.Normalize())
}

// Detect returns the applicable frameworks for a profile. The baseline GHG Protocol is
// always included.
func Detect(profile OrganizationProfile) []FrameworkID {
	p := profile.Normalize()
	ids := make([]FrameworkID, 0, len(frameworks))
	for _, f := range frameworks {
		if f.applies(p) {
			ids = append(ids, f.id)
		}
	}
	if len(ids) == 0 {
		ids = append(ids, GHGProtocol)
	}
	return ids
}

// Resolve returns the framework set for one report. A non-empty override replaces the
// detected set entirely; the predicate table itself is never changed.
func Resolve(profile OrganizationProfile, override []FrameworkID) (Resolution, error) {
	if len(override) == 0 {
		ids := Detect(profile)
		return Resolution{Frameworks: ids, Disclaimer: Disclaimer(ids)}, nil
	}

	requested := make(map[FrameworkID]bool, len(override))
	for _, raw := range override {
		id := FrameworkID(strings.ToUpper(strings.TrimSpace(string(raw))))
		if !Known(id) {
			return Resolution{}, fmt.Errorf("%w: %s", ErrUnknownFramework, raw)
		}
		requested[id] = true
	}

	ids := make([]FrameworkID, 0, len(requested))
	for _, f := range frameworks {
		if requested[f.id] {
			ids = append(ids, f.id)
		}
	}
	return Resolution{Frameworks: ids, Disclaimer: Disclaimer(ids), Overridden: true}, nil
}

// ParseFrameworks parses a comma separated list such as "CBAM, csrd"
func ParseFrameworks(s string) []FrameworkID {
	var ids []FrameworkID
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, FrameworkID(strings.ToUpper(part)))
		}
	}
	return ids
}

// Disclaimer composes the disclaimer for a framework set: the base text followed by one
// clause per framework in canonical order. The same set always yields the same text.
func Disclaimer(ids []FrameworkID) string {
	present := make(map[FrameworkID]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}

	var b strings.Builder
	b.WriteString(baseDisclaimer)
	for _, f := range frameworks {
		if !present[f.id] {
			continue
		}
		b.WriteString(" ")
		b.WriteString(f.name)
		b.WriteString(": ")
		b.WriteString(f.clause)
	}
	return b.String()
}
