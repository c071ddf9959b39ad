package emissions

import (
	"sort"
	"time"
)

// TrendMonths is the number of calendar months in the monthly trend, current month included
const TrendMonths = 6

const monthKeyLayout = "2006-01"

// Summarize reduces a subject's records into scope totals, category totals and a trailing
// monthly trend ending at the month containing asOf.
//
// The input order does not matter: records are summed in a canonical order so the result
// is identical for the same set. Records with a zero or future CreatedAt are counted in the
// totals but left out of the trend.
func Summarize(records []EmissionRecord, asOf time.Time) AggregatedSummary {
	ordered := canonicalOrder(records)
	asOf = asOf.UTC()

	summary := AggregatedSummary{
		ByCategory:   make(map[Category]float64),
		MonthlyTrend: monthBuckets(asOf),
		RecordCount:  len(ordered),
	}

	var totals ScopeTotals
	for _, r := range ordered {
		totals.Add(r.Scope, r.Co2Kg)

		category := r.Category
		if category == "" {
			category = CategoryOther
		}
		summary.ByCategory[category] += r.Co2Kg
	}

	index := make(map[string]int, len(summary.MonthlyTrend))
	for i, b := range summary.MonthlyTrend {
		index[b.Month] = i
	}
	for _, r := range ordered {
		if r.CreatedAt.IsZero() || r.CreatedAt.After(asOf) {
			continue
		}
		i, ok := index[r.CreatedAt.UTC().Format(monthKeyLayout)]
		if !ok {
			continue
		}
		switch r.Scope {
		case Scope1:
			summary.MonthlyTrend[i].Scope1 += r.Co2Kg
		case Scope2:
			summary.MonthlyTrend[i].Scope2 += r.Co2Kg
		default:
			summary.MonthlyTrend[i].Scope3 += r.Co2Kg
		}
	}

	summary.Scope1 = totals.Scope1
	summary.Scope2 = totals.Scope2
	summary.Scope3 = totals.Scope3
	summary.Total = totals.Total()

	return summary
}

// monthBuckets returns zeroed buckets for the trailing window, oldest first
func monthBuckets(asOf time.Time) []MonthlyBucket {
	buckets := make([]MonthlyBucket, 0, TrendMonths)
	for i := TrendMonths - 1; i >= 0; i-- {
		month := time.Date(asOf.Year(), asOf.Month()-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		buckets = append(buckets, MonthlyBucket{Month: month.Format(monthKeyLayout)})
	}
	return buckets
}

func canonicalOrder(records []EmissionRecord) []EmissionRecord {
	ordered := make([]EmissionRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.ID != b.ID {
			return a.ID.String() < b.ID.String()
		}
		return a.Co2Kg < b.Co2Kg
	})
	return ordered
}
