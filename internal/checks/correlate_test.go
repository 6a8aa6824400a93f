package checks

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/receiptworks/reconciler/internal/domain"
)

func mar(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func stmtTxn(id string, date time.Time, amount float64, check string) *domain.ExtractedTransaction {
	return &domain.ExtractedTransaction{
		ID:          id,
		Date:        date,
		Amount:      decimal.NewFromFloat(amount),
		Direction:   domain.Debit,
		CheckNumber: check,
	}
}

func TestCorrelateByCheckNumber(t *testing.T) {
	txns := []*domain.ExtractedTransaction{
		stmtTxn("t1", mar(2), 500.00, "1041"),
		stmtTxn("t2", mar(9), 500.00, "1042"),
	}
	chk := &domain.CheckImage{
		ID: "c1", CheckNumber: "1042",
		Amount: decimal.NewFromFloat(500.00), Date: mar(1),
	}

	Correlate([]*domain.CheckImage{chk}, txns, 3)

	// t1 is closer by date and equal on amount, but the check number names t2.
	assert.Equal(t, "t2", chk.LinkedTransactionID)
}

func TestCorrelateByAmountWithinWindow(t *testing.T) {
	txns := []*domain.ExtractedTransaction{
		stmtTxn("t1", mar(1), 120.00, ""),
		stmtTxn("t2", mar(6), 120.00, ""),
	}
	chk := &domain.CheckImage{
		ID: "c1", Amount: decimal.NewFromFloat(120.00), Date: mar(5),
	}

	Correlate([]*domain.CheckImage{chk}, txns, 3)

	assert.Equal(t, "t2", chk.LinkedTransactionID, "closest date within the window wins")
}

func TestCorrelateDateTieFallsToDocumentOrder(t *testing.T) {
	txns := []*domain.ExtractedTransaction{
		stmtTxn("t1", mar(4), 75.00, ""),
		stmtTxn("t2", mar(8), 75.00, ""),
	}
	chk := &domain.CheckImage{
		ID: "c1", Amount: decimal.NewFromFloat(75.00), Date: mar(6),
	}

	Correlate([]*domain.CheckImage{chk}, txns, 3)

	assert.Equal(t, "t1", chk.LinkedTransactionID)
}

func TestCorrelateEachTransactionLinkedOnce(t *testing.T) {
	txns := []*domain.ExtractedTransaction{
		stmtTxn("t1", mar(5), 200.00, ""),
	}
	first := &domain.CheckImage{ID: "c1", Amount: decimal.NewFromFloat(200.00), Date: mar(5)}
	second := &domain.CheckImage{ID: "c2", Amount: decimal.NewFromFloat(200.00), Date: mar(5)}

	Correlate([]*domain.CheckImage{first, second}, txns, 3)

	assert.Equal(t, "t1", first.LinkedTransactionID)
	assert.Empty(t, second.LinkedTransactionID, "a second crop for the same transaction stays unlinked")
}

func TestCorrelateOutsideWindowStaysUnlinked(t *testing.T) {
	txns := []*domain.ExtractedTransaction{
		stmtTxn("t1", mar(1), 60.00, ""),
	}
	chk := &domain.CheckImage{ID: "c1", Amount: decimal.NewFromFloat(60.00), Date: mar(10)}

	Correlate([]*domain.CheckImage{chk}, txns, 3)

	assert.Empty(t, chk.LinkedTransactionID)
}

func TestCorrelateAmountMismatchNeverLinks(t *testing.T) {
	txns := []*domain.ExtractedTransaction{
		stmtTxn("t1", mar(5), 99.99, ""),
	}
	chk := &domain.CheckImage{ID: "c1", Amount: decimal.NewFromFloat(100.00), Date: mar(5)}

	Correlate([]*domain.CheckImage{chk}, txns, 3)

	assert.Empty(t, chk.LinkedTransactionID)
}
