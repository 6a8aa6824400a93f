package bigquery

import (
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/receiptworks/reconciler/internal/domain"
)

// Table schemas follow an append-only model: statuses and vendors are
// re-inserted on every save and readers take the newest row per key. Streaming
// inserts cannot update in place, so supersession happens at query time.

type documentRow struct {
	DocumentID  string    `bigquery:"document_id"`
	Filename    string    `bigquery:"filename"`
	ContentType string    `bigquery:"content_type"`
	StorageURI  string    `bigquery:"storage_uri"`
	Checksum    string    `bigquery:"checksum"`
	UploadedAt  time.Time `bigquery:"uploaded_ts"`
}

type transactionRow struct {
	TransactionID      string     `bigquery:"transaction_id"`
	DocumentID         string     `bigquery:"document_id"`
	Seq                int64      `bigquery:"seq"` // position within the source document
	TransactionDate    civil.Date `bigquery:"transaction_date"`
	Amount             *big.Rat   `bigquery:"amount"`
	Direction          string     `bigquery:"direction"`
	Vendor             string     `bigquery:"vendor"`
	Description        string     `bigquery:"description"`
	CheckNumber        string     `bigquery:"check_number"`
	CategorySuggestion string     `bigquery:"category_suggestion"`
	Confidence         float64    `bigquery:"confidence"`
	LowConfidence      bool       `bigquery:"low_confidence"`
	InsertedAt         time.Time  `bigquery:"inserted_ts"`
}

type statementRow struct {
	DocumentID       string     `bigquery:"document_id"`
	StatementDate    civil.Date `bigquery:"statement_date"`
	AccountNumber    string     `bigquery:"account_number"`
	BeginningBalance *big.Rat   `bigquery:"beginning_balance"`
	EndingBalance    *big.Rat   `bigquery:"ending_balance"`
	Confidence       float64    `bigquery:"confidence"`
	LowConfidence    bool       `bigquery:"low_confidence"`
	BalanceDelta     *big.Rat   `bigquery:"balance_delta"`
	InsertedAt       time.Time  `bigquery:"inserted_ts"`
}

type checkImageRow struct {
	CheckID             string     `bigquery:"check_id"`
	DocumentID          string     `bigquery:"document_id"`
	StorageURI          string     `bigquery:"storage_uri"`
	Page                int64      `bigquery:"page"`
	IndexOnPage         int64      `bigquery:"index_on_page"`
	CheckNumber         string     `bigquery:"check_number"`
	Payee               string     `bigquery:"payee"`
	Amount              *big.Rat   `bigquery:"amount"`
	CheckDate           civil.Date `bigquery:"check_date"`
	Memo                string     `bigquery:"memo"`
	LinkedTransactionID string     `bigquery:"linked_transaction_id"`
	InsertedAt          time.Time  `bigquery:"inserted_ts"`
}

type vendorRow struct {
	VendorID      string    `bigquery:"vendor_id"`
	CanonicalName string    `bigquery:"canonical_name"`
	Aliases       string    `bigquery:"aliases"` // newline-joined
	LedgerID      string    `bigquery:"ledger_id"`
	UpdatedAt     time.Time `bigquery:"updated_ts"`
}

type matchRow struct {
	DocumentID    string    `bigquery:"document_id"`
	TransactionID string    `bigquery:"transaction_id"`
	CandidateID   string    `bigquery:"candidate_id"`
	Score         float64   `bigquery:"score"`
	Decision      string    `bigquery:"decision"`
	Reasons       string    `bigquery:"reasons"` // newline-joined
	InsertedAt    time.Time `bigquery:"inserted_ts"`
}

type statusRow struct {
	DocumentID    string    `bigquery:"document_id"`
	State         string    `bigquery:"state"`
	DocumentType  string    `bigquery:"document_type"`
	FailedStage   string    `bigquery:"failed_stage"`
	FailureReason string    `bigquery:"failure_reason"`
	Cancelled     bool      `bigquery:"cancelled"`
	UpdatedAt     time.Time `bigquery:"updated_ts"`
}

type pushResultRow struct {
	DocumentID        string    `bigquery:"document_id"`
	LedgerRecordIDs   string    `bigquery:"ledger_record_ids"` // newline-joined
	VendorsCreated    int64     `bigquery:"vendors_created"`
	AttachmentsMade   int64     `bigquery:"attachments_made"`
	FeedEntriesMarked int64     `bigquery:"feed_entries_marked"`
	PushedAt          time.Time `bigquery:"pushed_ts"`
}

func ratFromDecimal(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

func decimalFromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, 2)
}

func joinLines(parts []string) string {
	return strings.Join(parts, "\n")
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func toTransactionRow(documentID string, seq int, t *domain.ExtractedTransaction, now time.Time) *transactionRow {
	return &transactionRow{
		TransactionID:      t.ID,
		DocumentID:         documentID,
		Seq:                int64(seq),
		TransactionDate:    civil.DateOf(t.Date),
		Amount:             ratFromDecimal(t.Amount),
		Direction:          string(t.Direction),
		Vendor:             t.Vendor,
		Description:        t.Description,
		CheckNumber:        t.CheckNumber,
		CategorySuggestion: t.CategorySuggestion,
		Confidence:         t.Confidence,
		LowConfidence:      t.LowConfidence,
		InsertedAt:         now,
	}
}

func (r *transactionRow) toDomain() *domain.ExtractedTransaction {
	return &domain.ExtractedTransaction{
		ID:                 r.TransactionID,
		DocumentID:         r.DocumentID,
		Date:               r.TransactionDate.In(time.UTC),
		Amount:             decimalFromRat(r.Amount),
		Direction:          domain.Direction(r.Direction),
		Vendor:             r.Vendor,
		Description:        r.Description,
		CheckNumber:        r.CheckNumber,
		CategorySuggestion: r.CategorySuggestion,
		Confidence:         r.Confidence,
		LowConfidence:      r.LowConfidence,
	}
}

func toCheckImageRow(documentID string, c *domain.CheckImage, now time.Time) *checkImageRow {
	return &checkImageRow{
		CheckID:             c.ID,
		DocumentID:          documentID,
		StorageURI:          c.StorageURI,
		Page:                int64(c.Page),
		IndexOnPage:         int64(c.IndexOnPage),
		CheckNumber:         c.CheckNumber,
		Payee:               c.Payee,
		Amount:              ratFromDecimal(c.Amount),
		CheckDate:           civil.DateOf(c.Date),
		Memo:                c.Memo,
		LinkedTransactionID: c.LinkedTransactionID,
		InsertedAt:          now,
	}
}

func (r *checkImageRow) toDomain() *domain.CheckImage {
	return &domain.CheckImage{
		ID:                  r.CheckID,
		DocumentID:          r.DocumentID,
		StorageURI:          r.StorageURI,
		Page:                int(r.Page),
		IndexOnPage:         int(r.IndexOnPage),
		CheckNumber:         r.CheckNumber,
		Payee:               r.Payee,
		Amount:              decimalFromRat(r.Amount),
		Date:                r.CheckDate.In(time.UTC),
		Memo:                r.Memo,
		LinkedTransactionID: r.LinkedTransactionID,
	}
}
