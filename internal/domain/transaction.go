package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction says which way money moved. Extracted amounts are stored as
// non-negative magnitudes; the direction carries the sign.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// ExtractedTransaction is one normalized transaction produced by the
// extractor. Date and Amount are required; the rest is best-effort model
// output that survived validation. Records are immutable after creation; a
// correction produces a new record with a fresh ID and the same DocumentID.
type ExtractedTransaction struct {
	ID         string
	DocumentID string

	Date      time.Time       // date component only
	Amount    decimal.Decimal // non-negative magnitude, at most 2 fractional digits
	Direction Direction

	Vendor             string // free text, "" when the model could not name one
	Description        string
	CheckNumber        string // "" unless the model identified a check
	CategorySuggestion string

	Confidence    float64 // model-reported, clamped to [0,1]
	LowConfidence bool    // set when Confidence fell below the configured floor
}

// SignedAmount applies the direction to the stored magnitude: debits are
// negative, credits positive.
func (t *ExtractedTransaction) SignedAmount() decimal.Decimal {
	if t.Direction == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// BankStatementExtraction is the statement-wide result: header fields plus
// the ordered transaction sequence. The balance invariant
// (beginning + sum of signed amounts == ending, within 0.01) is checked at
// extraction time; a violation sets LowConfidence and BalanceDelta rather
// than discarding the statement.
type BankStatementExtraction struct {
	DocumentID       string
	StatementDate    time.Time
	AccountNumber    string // last 4 digits as reported
	BeginningBalance decimal.Decimal
	EndingBalance    decimal.Decimal
	Transactions     []*ExtractedTransaction
	Confidence       float64
	LowConfidence    bool
	BalanceDelta     decimal.Decimal // ending - (beginning + sum), zero when the invariant holds
}

// SumSigned totals the signed amounts of the statement's transactions.
func (s *BankStatementExtraction) SumSigned() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range s.Transactions {
		sum = sum.Add(t.SignedAmount())
	}
	return sum
}
