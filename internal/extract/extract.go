// Package extract turns classified documents into canonical transaction
// records. Model output is untrusted: every field passes through typed
// decoding and deterministic validation before entering the data model.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/receiptworks/reconciler/internal/apperrors"
	"github.com/receiptworks/reconciler/internal/domain"
	"github.com/receiptworks/reconciler/internal/inference"
	"github.com/receiptworks/reconciler/internal/logger"
)

// Result is the outcome of one extraction. Exactly one of Transaction or
// Statement is set: bank statements extract to a statement, every other
// known type extracts to a single transaction.
type Result struct {
	Type        domain.DocumentType
	Transaction *domain.ExtractedTransaction
	Statement   *domain.BankStatementExtraction
}

// Extractor dispatches on DocumentType and validates whatever the model
// returns.
type Extractor struct {
	infer           inference.Client
	recordFloor     float64       // confidence below this tags the record low_confidence
	futureTolerance time.Duration // clock-skew guard for extracted dates

	now func() time.Time
}

// New builds an extractor with the configured confidence floor and
// future-date tolerance.
func New(client inference.Client, recordFloor float64, futureTolerance time.Duration) *Extractor {
	return &Extractor{
		infer:           client,
		recordFloor:     recordFloor,
		futureTolerance: futureTolerance,
		now:             time.Now,
	}
}

// Extract produces canonical records for the document. Dispatch is purely on
// the classified type; unknown has no extraction path.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document, content []byte, docType domain.DocumentType) (*Result, error) {
	switch docType {
	case domain.TypeBankStatement:
		stmt, err := e.extractStatement(ctx, doc, content)
		if err != nil {
			return nil, err
		}
		return &Result{Type: docType, Statement: stmt}, nil
	case domain.TypeReceipt, domain.TypeInvoice, domain.TypeBill:
		txn, err := e.extractSingle(ctx, doc, content, receiptPrompt, "extract_receipt")
		if err != nil {
			return nil, err
		}
		return &Result{Type: docType, Transaction: txn}, nil
	case domain.TypeCreditCardStatement:
		txn, err := e.extractSingle(ctx, doc, content, creditCardStatementPrompt, "extract_card_statement")
		if err != nil {
			return nil, err
		}
		return &Result{Type: docType, Transaction: txn}, nil
	case domain.TypeCheck:
		txn, err := e.extractCheck(ctx, doc, content)
		if err != nil {
			return nil, err
		}
		return &Result{Type: docType, Transaction: txn}, nil
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedDocumentType, docType)
	}
}

// extractSingle handles the one-transaction document types: receipts,
// invoices, bills and credit card statement summaries.
func (e *Extractor) extractSingle(ctx context.Context, doc *domain.Document, content []byte, prompt, task string) (*domain.ExtractedTransaction, error) {
	payload, err := e.inferPayload(ctx, doc, content, prompt, task)
	if err != nil {
		return nil, err
	}

	amountRaw, err := payload.Number("total_amount")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	amount, err := parseAmount(amountRaw)
	if err != nil {
		return nil, err
	}

	dateRaw, err := payload.String("date")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	date, err := parseDate(dateRaw, e.now(), e.futureTolerance)
	if err != nil {
		return nil, err
	}

	vendor, err := payload.OptionalString("vendor")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	description, err := payload.OptionalString("description")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	category, err := payload.OptionalString("category_suggestion")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}

	confidence := payload.Confidence("confidence")

	return &domain.ExtractedTransaction{
		ID:                 uuid.NewString(),
		DocumentID:         doc.ID,
		Date:               date,
		Amount:             amount,
		Direction:          domain.Debit, // purchases and bills are money out
		Vendor:             vendor,
		Description:        description,
		CategorySuggestion: category,
		Confidence:         confidence,
		LowConfidence:      confidence < e.recordFloor,
	}, nil
}

// extractCheck maps a standalone check image onto a single transaction; the
// payee becomes the vendor, the memo the description.
func (e *Extractor) extractCheck(ctx context.Context, doc *domain.Document, content []byte) (*domain.ExtractedTransaction, error) {
	payload, err := e.inferPayload(ctx, doc, content, checkPrompt, "extract_check")
	if err != nil {
		return nil, err
	}

	amountRaw, err := payload.Number("amount")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	amount, err := parseAmount(amountRaw)
	if err != nil {
		return nil, err
	}

	dateRaw, err := payload.String("date")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	date, err := parseDate(dateRaw, e.now(), e.futureTolerance)
	if err != nil {
		return nil, err
	}

	payee, err := payload.OptionalString("payee")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	memo, err := payload.OptionalString("memo")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	checkNumber, err := payload.OptionalString("check_number")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}

	confidence := payload.Confidence("confidence")

	return &domain.ExtractedTransaction{
		ID:            uuid.NewString(),
		DocumentID:    doc.ID,
		Date:          date,
		Amount:        amount,
		Direction:     domain.Debit,
		Vendor:        payee,
		Description:   memo,
		CheckNumber:   checkNumber,
		Confidence:    confidence,
		LowConfidence: confidence < e.recordFloor,
	}, nil
}

// extractStatement parses a full bank statement. The balance invariant is
// checked once all transactions are decoded; a violation flags the statement
// low_confidence instead of discarding it, since the data is usable but
// likely incomplete.
func (e *Extractor) extractStatement(ctx context.Context, doc *domain.Document, content []byte) (*domain.BankStatementExtraction, error) {
	payload, err := e.inferPayload(ctx, doc, content, statementPrompt, "extract_statement")
	if err != nil {
		return nil, err
	}

	stmt := &domain.BankStatementExtraction{
		DocumentID: doc.ID,
		Confidence: payload.Confidence("confidence"),
	}

	if dateRaw, err := payload.OptionalString("statement_date"); err == nil && dateRaw != "" {
		if d, err := parseDate(dateRaw, e.now(), e.futureTolerance); err == nil {
			stmt.StatementDate = d
		}
	}
	if last4, err := payload.OptionalString("account_number_last4"); err == nil {
		stmt.AccountNumber = last4
	}

	beginRaw, err := payload.Number("beginning_balance")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	endRaw, err := payload.Number("ending_balance")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	stmt.BeginningBalance = decimal.NewFromFloat(beginRaw)
	stmt.EndingBalance = decimal.NewFromFloat(endRaw)

	rows, err := payload.Array("transactions")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}

	for i, row := range rows {
		txn, err := e.decodeStatementTransaction(doc.ID, row)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		stmt.Transactions = append(stmt.Transactions, txn)
	}

	delta, ok := checkBalanceInvariant(stmt.BeginningBalance, stmt.EndingBalance, stmt.SumSigned())
	if !ok {
		stmt.LowConfidence = true
		stmt.BalanceDelta = delta
		log := logger.FromContext(ctx)
		log.Warn().
			Str("document_id", doc.ID).
			Str("balance_delta", delta.String()).
			Msg("Statement balance invariant violated, flagging for review")
	}

	return stmt, nil
}

// decodeStatementTransaction validates one row of the statement's
// transaction array. The signed model amount is split into a non-negative
// magnitude plus a direction.
func (e *Extractor) decodeStatementTransaction(documentID string, row inference.Payload) (*domain.ExtractedTransaction, error) {
	amountRaw, err := row.Number("amount")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	direction := domain.Credit
	if amountRaw < 0 {
		direction = domain.Debit
		amountRaw = -amountRaw
	}
	amount, err := parseAmount(amountRaw)
	if err != nil {
		return nil, err
	}

	dateRaw, err := row.String("date")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	date, err := parseDate(dateRaw, e.now(), e.futureTolerance)
	if err != nil {
		return nil, err
	}

	description, err := row.OptionalString("description")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	checkNumber, err := row.OptionalString("check_number")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	vendor, err := row.OptionalString("vendor_suggestion")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	category, err := row.OptionalString("category_suggestion")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}

	confidence := row.Confidence("confidence")

	return &domain.ExtractedTransaction{
		ID:                 uuid.NewString(),
		DocumentID:         documentID,
		Date:               date,
		Amount:             amount,
		Direction:          direction,
		Vendor:             vendor,
		Description:        description,
		CheckNumber:        checkNumber,
		CategorySuggestion: category,
		Confidence:         confidence,
		LowConfidence:      confidence < e.recordFloor,
	}, nil
}

func (e *Extractor) inferPayload(ctx context.Context, doc *domain.Document, content []byte, prompt, task string) (inference.Payload, error) {
	resp, err := e.infer.Infer(ctx, inference.Request{
		Task:     task,
		Prompt:   prompt,
		Document: content,
		MIMEType: doc.ContentType,
	})
	if err != nil {
		return nil, err
	}

	payload, err := inference.ParsePayload(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExtractionValidation, err)
	}
	return payload, nil
}
