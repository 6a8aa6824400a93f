package checks

import (
	"time"

	"github.com/receiptworks/reconciler/internal/domain"
)

// Correlate links check crops to the statement's transactions in place.
// Checks are visited in document order (earlier page first, then position on
// the page). For each check the not-yet-linked transactions are filtered to
// those whose check number matches exactly when both sides carry one, or
// failing that to those with the exact amount and a date within windowDays.
// The closest date wins; ties fall to the transaction appearing earliest in
// the statement. A check that fits nothing stays unlinked.
func Correlate(checks []*domain.CheckImage, txns []*domain.ExtractedTransaction, windowDays int) {
	linked := make(map[string]bool, len(txns))

	for _, chk := range checks {
		var best *domain.ExtractedTransaction
		bestDiff := 0
		byNumber := false

		for _, txn := range txns {
			if linked[txn.ID] {
				continue
			}
			numberHit := chk.CheckNumber != "" && txn.CheckNumber != "" && chk.CheckNumber == txn.CheckNumber
			amountHit := !chk.Amount.IsZero() && chk.Amount.Equal(txn.Amount) &&
				!chk.Date.IsZero() && dateDiffDays(chk.Date, txn.Date) <= windowDays
			if !numberHit && !amountHit {
				continue
			}
			// A check-number hit beats any amount-only hit.
			if byNumber && !numberHit {
				continue
			}
			diff := dateDiffDays(chk.Date, txn.Date)
			if chk.Date.IsZero() {
				diff = 0
			}
			if best == nil || (numberHit && !byNumber) || diff < bestDiff {
				best = txn
				bestDiff = diff
				byNumber = numberHit
			}
		}

		if best != nil {
			chk.LinkedTransactionID = best.ID
			linked[best.ID] = true
		}
	}
}

func dateDiffDays(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(ad.Sub(bd).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}
