package credits

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Posting is the ledger movement produced by one run
type Posting struct {
	Credits      int64           `json:"credits"`
	CarryForward decimal.Decimal `json:"carry_forward"`
}

// Ledger accumulates carry-forward across periods so fractional tonnes turn into whole
// credits once they cross a tonne boundary. Verified and estimated tonnes are kept
// apart: only verified tonnes are ever issued.
type Ledger struct {
	mu        sync.Mutex
	verified  decimal.Decimal
	estimated decimal.Decimal
	issued    int64
}

// NewLedger creates a ledger seeded with an opening verified remainder
func NewLedger(openingVerified decimal.Decimal) *Ledger {
	if openingVerified.IsNegative() {
		openingVerified = decimal.Zero
	}
	return &Ledger{verified: openingVerified}
}

// Post records a run's CO2e volume and issues whatever whole credits the verified
// balance now covers.
func (l *Ledger) Post(totalCo2Kg float64, verified bool) Posting {
	return l.PostTonnes(Tonnes(totalCo2Kg), verified)
}

// PostTonnes is Post for a volume already expressed in tonnes
func (l *Ledger) PostTonnes(tonnes decimal.Decimal, verified bool) Posting {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tonnes.IsNegative() {
		tonnes = decimal.Zero
	}
	if !verified {
		l.estimated = l.estimated.Add(tonnes)
		return Posting{CarryForward: l.carryForward()}
	}

	l.verified = l.verified.Add(tonnes)
	whole := l.verified.Floor()
	l.verified = l.verified.Sub(whole)
	l.issued += whole.IntPart()

	return Posting{Credits: whole.IntPart(), CarryForward: l.carryForward()}
}

// Issued returns the total credits issued so far
func (l *Ledger) Issued() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.issued
}

// CarryForward returns every tonne not yet issued, verified remainder and estimates alike
func (l *Ledger) CarryForward() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.carryForward()
}

// VerifiedRemainder returns the fractional verified tonne awaiting issuance
func (l *Ledger) VerifiedRemainder() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.verified
}

func (l *Ledger) carryForward() decimal.Decimal {
	return l.verified.Add(l.estimated)
}
