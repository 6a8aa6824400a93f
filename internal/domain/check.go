package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckImage is a check cropped out of a statement page (or a standalone
// check document). LinkedTransactionID is empty until correlation links it to
// an extracted transaction; an image that correlates to nothing is retained
// unlinked for manual review.
type CheckImage struct {
	ID         string
	DocumentID string
	StorageURI string

	Page        int // zero-based page the region was found on
	IndexOnPage int // region order within the page

	CheckNumber string
	Payee       string
	Amount      decimal.Decimal
	Date        time.Time
	Memo        string

	LinkedTransactionID string
}
