package recon

import (
	"context"
	"fmt"

	"github.com/receiptworks/reconciler/internal/apperrors"
	"github.com/receiptworks/reconciler/internal/domain"
	"github.com/receiptworks/reconciler/internal/ledger"
	"github.com/receiptworks/reconciler/internal/logger"
)

// Push writes the document's matched results into the external ledger and
// moves the document to its terminal pushed state. Pushing a document that is
// already pushed performs no external writes and returns the stored result.
// Every ledger write carries a token derived from the document and
// transaction identifiers, so a push interrupted halfway can be re-run
// without duplicating the writes that already landed.
func (o *Orchestrator) Push(ctx context.Context, documentID string) (*domain.PushResult, error) {
	log := logger.WithDocument(logger.FromContext(ctx), documentID)

	status, err := o.store.GetStatus(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if status.State == domain.StatePushed {
		log.Warn().Err(apperrors.ErrDuplicatePush).Msg("push suppressed, returning prior result")
		prior, err := o.store.GetPushResult(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("load prior push result: %w", err)
		}
		return prior, nil
	}
	if status.State == domain.StateFailed {
		return nil, fmt.Errorf("document %s failed at %s: %s", documentID, status.FailedStage, status.FailureReason)
	}
	if !status.State.AtLeast(domain.StateMatched) {
		return nil, fmt.Errorf("document %s not matched yet (state %s)", documentID, status.State)
	}
	if status.Cancelled {
		return nil, apperrors.ErrCancelled
	}

	doc, err := o.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	txns, err := o.store.ListTransactions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	matches, err := o.store.ListMatchResults(ctx, documentID)
	if err != nil {
		return nil, err
	}
	matchByTxn := make(map[string]*domain.MatchResult, len(matches))
	for _, m := range matches {
		matchByTxn[m.TransactionID] = m
	}

	result := &domain.PushResult{DocumentID: documentID}
	for _, txn := range txns {
		// Ambiguous records wait for a human to pick the winner; pushing an
		// expense now would duplicate the feed entry once it is categorized.
		if m := matchByTxn[txn.ID]; m != nil && m.Decision == domain.DecisionAmbiguous {
			log.Info().Str("transaction_id", txn.ID).
				Msg("skipping ambiguous transaction, awaiting manual resolution")
			continue
		}
		recordID, created, err := o.pushTransaction(ctx, doc, txn, matchByTxn[txn.ID])
		if err != nil {
			return nil, err
		}
		result.LedgerRecordIDs = append(result.LedgerRecordIDs, recordID)
		if created {
			result.VendorsCreated++
		}
		result.AttachmentsMade++
		if m := matchByTxn[txn.ID]; m != nil && m.Decision == domain.DecisionMatched {
			result.FeedEntriesMarked++
		}
	}

	result.PushedAt = o.now()
	if err := o.commit(ctx, status, domain.StatePushed, func() error {
		return o.store.SavePushResult(ctx, result)
	}); err != nil {
		return nil, err
	}
	log.Info().
		Int("records", len(result.LedgerRecordIDs)).
		Int("vendors_created", result.VendorsCreated).
		Int("feed_entries_marked", result.FeedEntriesMarked).
		Msg("document pushed")
	return result, nil
}

// pushTransaction creates the expense record for one transaction, attaching
// the source document and marking the matched feed entry when there is one.
// created reports whether a new ledger vendor had to be made.
func (o *Orchestrator) pushTransaction(ctx context.Context, doc *domain.Document, txn *domain.ExtractedTransaction, m *domain.MatchResult) (recordID string, created bool, err error) {
	var vendorLedgerID string
	if txn.Vendor != "" {
		record, err := o.registry.Resolve(ctx, txn.Vendor)
		if err != nil {
			return "", false, fmt.Errorf("resolve vendor %q: %w", txn.Vendor, err)
		}
		if record.LedgerID == "" {
			id, err := o.ledger.CreateVendor(ctx,
				ledger.WriteToken("vendor", record.ID), record.CanonicalName)
			if err != nil {
				return "", false, fmt.Errorf("create ledger vendor %q: %w", record.CanonicalName, err)
			}
			record.LedgerID = id
			if err := o.store.SaveVendor(ctx, record); err != nil {
				return "", false, err
			}
			created = true
		}
		vendorLedgerID = record.LedgerID
	}

	recordID, err = o.ledger.CreateExpense(ctx,
		ledger.WriteToken(doc.ID, txn.ID, "expense"),
		ledger.ExpenseRequest{
			VendorLedgerID: vendorLedgerID,
			Amount:         txn.SignedAmount(),
			Date:           txn.Date,
			Description:    txn.Description,
			Category:       txn.CategorySuggestion,
		})
	if err != nil {
		return "", false, fmt.Errorf("create expense for %s: %w", txn.ID, err)
	}

	if err := o.ledger.AttachDocument(ctx,
		ledger.WriteToken(doc.ID, txn.ID, "attach"), recordID, doc.StorageURI); err != nil {
		return "", false, fmt.Errorf("attach document to %s: %w", recordID, err)
	}

	if m != nil && m.Decision == domain.DecisionMatched {
		if err := o.ledger.MarkMatched(ctx,
			ledger.WriteToken(doc.ID, txn.ID, "mark", m.CandidateID), m.CandidateID, recordID); err != nil {
			return "", false, fmt.Errorf("mark candidate %s matched: %w", m.CandidateID, err)
		}
	}
	return recordID, created, nil
}
