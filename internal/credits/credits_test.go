package credits

import (
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateVerifiedRun(t *testing.T) {
	e := DefaultEngine()

	got := e.Evaluate(2650, 0.85, true)

	assert.Equal(t, 2650.0, got.BasisCo2Kg)
	assert.Equal(t, int64(2), got.EligibleCredits)
	assert.Equal(t, 0.65, got.CarryForward)
	assert.Equal(t, GradeB, got.QualityGrade)
}

func TestEvaluateUnverifiedRunIssuesNothing(t *testing.T) {
	e := DefaultEngine()

	got := e.Evaluate(2650, 0.6, false)

	assert.Zero(t, got.EligibleCredits)
	assert.Equal(t, 2.65, got.CarryForward)
	assert.Equal(t, GradeC, got.QualityGrade)
}

func TestEvaluateDegenerateInputs(t *testing.T) {
	e := DefaultEngine()

	for _, kg := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		got := e.Evaluate(kg, 1, true)
		assert.Zero(t, got.BasisCo2Kg)
		assert.Zero(t, got.EligibleCredits)
		assert.Zero(t, got.CarryForward)
	}
}

func TestEligibleCreditsNeverExceedVerifiedTonnes(t *testing.T) {
	e := DefaultEngine()
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		kg := rng.Float64() * 1e7
		got := e.Evaluate(kg, rng.Float64(), true)
		assert.LessOrEqual(t, got.EligibleCredits, int64(math.Floor(kg/1000)))
		assert.GreaterOrEqual(t, got.CarryForward, 0.0)
		assert.Less(t, got.CarryForward, 1.0)
	}
}

func TestGradeFor(t *testing.T) {
	bands := DefaultGradeBands()

	tests := []struct {
		score float64
		want  Grade
	}{
		{1, GradeA},
		{0.9, GradeA},
		{0.8999, GradeB},
		{0.75, GradeB},
		{0.7499, GradeC},
		{0.5, GradeC},
		{0.4999, GradeD},
		{0, GradeD},
		{-0.2, GradeD},
		{1.7, GradeA},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bands.GradeFor(tt.score), "score %v", tt.score)
	}
}

func TestGradeBandsAreMonotonic(t *testing.T) {
	bands := DefaultGradeBands()
	require.NoError(t, bands.Validate())

	rank := map[Grade]int{GradeA: 3, GradeB: 2, GradeC: 1, GradeD: 0}
	prev := rank[bands.GradeFor(0)]
	for i := 1; i <= 10000; i++ {
		grade := bands.GradeFor(float64(i) / 10000)
		_, known := rank[grade]
		require.True(t, known)
		assert.GreaterOrEqual(t, rank[grade], prev)
		prev = rank[grade]
	}
}

func TestGradeBandsValidate(t *testing.T) {
	tests := []struct {
		name  string
		bands GradeBands
	}{
		{"empty", GradeBands{}},
		{"overlap", GradeBands{{GradeA, 0.8}, {GradeB, 0.8}, {GradeD, 0}}},
		{"gap at bottom", GradeBands{{GradeA, 0.9}, {GradeB, 0.2}}},
		{"out of range", GradeBands{{GradeA, 1.2}, {GradeD, 0}}},
		{"duplicate grade", GradeBands{{GradeA, 0.9}, {GradeA, 0}}},
		{"not descending", GradeBands{{GradeC, 0.5}, {GradeA, 0.9}, {GradeD, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.bands.Validate(), ErrInvalidGradeBands)
		})
	}

	_, err := NewEngine(GradeBands{{GradeA, 0.5}, {GradeB, 0.5}})
	assert.ErrorIs(t, err, ErrInvalidGradeBands)
}

func TestLedgerConvertsCarryForward(t *testing.T) {
	l := NewLedger(decimal.Zero)

	first := l.Post(2650, true)
	assert.Equal(t, int64(2), first.Credits)
	assert.True(t, first.CarryForward.Equal(decimal.RequireFromString("0.65")))

	second := l.Post(400, true)
	assert.Equal(t, int64(1), second.Credits)
	assert.True(t, second.CarryForward.Equal(decimal.RequireFromString("0.05")))

	third := l.Post(1500, false)
	assert.Zero(t, third.Credits)
	assert.True(t, third.CarryForward.Equal(decimal.RequireFromString("1.55")))
	assert.True(t, l.VerifiedRemainder().Equal(decimal.RequireFromString("0.05")))

	assert.Equal(t, int64(3), l.Issued())
}

func TestLedgerConservesTonnes(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	for trial := 0; trial < 50; trial++ {
		l := NewLedger(decimal.Zero)
		total := decimal.Zero
		var issued int64

		for i := 0; i < 30; i++ {
			kg := math.Round(rng.Float64()*5e6) / 100
			total = total.Add(Tonnes(kg))
			issued += l.Post(kg, rng.Intn(3) > 0).Credits
		}

		assert.Equal(t, issued, l.Issued())
		assert.True(t, decimal.NewFromInt(issued).Add(l.CarryForward()).Equal(total),
			"issued %d + carry %s != %s", issued, l.CarryForward(), total)
	}
}
