// Package bigquery persists pipeline state in BigQuery using streaming
// inserts and parameterized queries.
package bigquery

import (
	"context"
	"fmt"
	"time"

	bq "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/receiptworks/reconciler/internal/apperrors"
	"github.com/receiptworks/reconciler/internal/domain"
	"github.com/receiptworks/reconciler/internal/store"
)

const (
	documentsTable    = "documents"
	transactionsTable = "transactions"
	statementsTable   = "statements"
	checkImagesTable  = "check_images"
	vendorsTable      = "vendors"
	matchesTable      = "match_results"
	statusesTable     = "document_statuses"
	pushResultsTable  = "push_results"
)

// Store implements store.Store against one BigQuery dataset.
type Store struct {
	client  *bq.Client
	dataset string
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(ctx context.Context, projectID, dataset string) (*Store, error) {
	client, err := bq.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	return &Store{client: client, dataset: dataset, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) insert(ctx context.Context, table string, rows interface{}) error {
	inserter := s.client.Dataset(s.dataset).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, sql string, params []bq.QueryParameter) (*bq.RowIterator, error) {
	q := s.client.Query(sql)
	q.Parameters = params
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return it, nil
}

// exec runs a DML statement and waits for the job to finish.
func (s *Store) exec(ctx context.Context, sql string, params []bq.QueryParameter) error {
	q := s.client.Query(sql)
	q.Parameters = params
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run statement: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for statement: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("statement failed: %w", err)
	}
	return nil
}

func idParam(id string) []bq.QueryParameter {
	return []bq.QueryParameter{{Name: "id", Value: id}}
}

func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	return s.insert(ctx, documentsTable, &documentRow{
		DocumentID:  doc.ID,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		StorageURI:  doc.StorageURI,
		Checksum:    doc.Checksum,
		UploadedAt:  doc.UploadedAt,
	})
}

func (s *Store) getDocument(ctx context.Context, where string, params []bq.QueryParameter) (*domain.Document, error) {
	it, err := s.query(ctx, fmt.Sprintf(`
		SELECT document_id, filename, content_type, storage_uri, checksum, uploaded_ts
		FROM %s.%s
		WHERE %s
		ORDER BY uploaded_ts
		LIMIT 1`, s.dataset, documentsTable, where), params)
	if err != nil {
		return nil, err
	}
	var row documentRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("read document row: %w", err)
	}
	return &domain.Document{
		ID:          row.DocumentID,
		Filename:    row.Filename,
		ContentType: row.ContentType,
		StorageURI:  row.StorageURI,
		Checksum:    row.Checksum,
		UploadedAt:  row.UploadedAt,
	}, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return s.getDocument(ctx, "document_id = @id", idParam(id))
}

func (s *Store) FindDocumentByChecksum(ctx context.Context, checksum string) (*domain.Document, error) {
	return s.getDocument(ctx, "checksum = @id", idParam(checksum))
}

// DeleteDocument removes the document and every derived row. Used only by
// archival; pipeline stages never delete.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	for _, table := range []string{
		documentsTable, transactionsTable, statementsTable, checkImagesTable,
		matchesTable, statusesTable, pushResultsTable,
	} {
		stmt := fmt.Sprintf("DELETE FROM %s.%s WHERE document_id = @id", s.dataset, table)
		if err := s.exec(ctx, stmt, idParam(id)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveTransactions(ctx context.Context, documentID string, txns []*domain.ExtractedTransaction) error {
	if err := s.exec(ctx,
		fmt.Sprintf("DELETE FROM %s.%s WHERE document_id = @id", s.dataset, transactionsTable),
		idParam(documentID)); err != nil {
		return err
	}
	if len(txns) == 0 {
		return nil
	}
	now := s.now()
	rows := make([]*transactionRow, len(txns))
	for i, t := range txns {
		rows[i] = toTransactionRow(documentID, i, t, now)
	}
	return s.insert(ctx, transactionsTable, rows)
}

func (s *Store) ListTransactions(ctx context.Context, documentID string) ([]*domain.ExtractedTransaction, error) {
	it, err := s.query(ctx, fmt.Sprintf(`
		SELECT transaction_id, document_id, seq, transaction_date, amount, direction,
		       vendor, description, check_number, category_suggestion, confidence,
		       low_confidence, inserted_ts
		FROM %s.%s
		WHERE document_id = @id
		ORDER BY seq`, s.dataset, transactionsTable), idParam(documentID))
	if err != nil {
		return nil, err
	}
	var out []*domain.ExtractedTransaction
	for {
		var row transactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read transaction row: %w", err)
		}
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *Store) SaveStatement(ctx context.Context, stmt *domain.BankStatementExtraction) error {
	return s.insert(ctx, statementsTable, &statementRow{
		DocumentID:       stmt.DocumentID,
		StatementDate:    civil.DateOf(stmt.StatementDate),
		AccountNumber:    stmt.AccountNumber,
		BeginningBalance: ratFromDecimal(stmt.BeginningBalance),
		EndingBalance:    ratFromDecimal(stmt.EndingBalance),
		Confidence:       stmt.Confidence,
		LowConfidence:    stmt.LowConfidence,
		BalanceDelta:     ratFromDecimal(stmt.BalanceDelta),
		InsertedAt:       s.now(),
	})
}

func (s *Store) GetStatement(ctx context.Context, documentID string) (*domain.BankStatementExtraction, error) {
	it, err := s.query(ctx, fmt.Sprintf(`
		SELECT document_id, statement_date, account_number, beginning_balance,
		       ending_balance, confidence, low_confidence, balance_delta, inserted_ts
		FROM %s.%s
		WHERE document_id = @id
		ORDER BY inserted_ts DESC
		LIMIT 1`, s.dataset, statementsTable), idParam(documentID))
	if err != nil {
		return nil, err
	}
	var row statementRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("read statement row: %w", err)
	}
	txns, err := s.ListTransactions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &domain.BankStatementExtraction{
		DocumentID:       row.DocumentID,
		StatementDate:    row.StatementDate.In(time.UTC),
		AccountNumber:    row.AccountNumber,
		BeginningBalance: decimalFromRat(row.BeginningBalance),
		EndingBalance:    decimalFromRat(row.EndingBalance),
		Transactions:     txns,
		Confidence:       row.Confidence,
		LowConfidence:    row.LowConfidence,
		BalanceDelta:     decimalFromRat(row.BalanceDelta),
	}, nil
}

func (s *Store) SaveCheckImages(ctx context.Context, documentID string, checks []*domain.CheckImage) error {
	if err := s.exec(ctx,
		fmt.Sprintf("DELETE FROM %s.%s WHERE document_id = @id", s.dataset, checkImagesTable),
		idParam(documentID)); err != nil {
		return err
	}
	if len(checks) == 0 {
		return nil
	}
	now := s.now()
	rows := make([]*checkImageRow, len(checks))
	for i, c := range checks {
		rows[i] = toCheckImageRow(documentID, c, now)
	}
	return s.insert(ctx, checkImagesTable, rows)
}

func (s *Store) ListCheckImages(ctx context.Context, documentID string) ([]*domain.CheckImage, error) {
	it, err := s.query(ctx, fmt.Sprintf(`
		SELECT check_id, document_id, storage_uri, page, index_on_page, check_number,
		       payee, amount, check_date, memo, linked_transaction_id, inserted_ts
		FROM %s.%s
		WHERE document_id = @id
		ORDER BY page, index_on_page`, s.dataset, checkImagesTable), idParam(documentID))
	if err != nil {
		return nil, err
	}
	var out []*domain.CheckImage
	for {
		var row checkImageRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read check image row: %w", err)
		}
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *Store) ListVendors(ctx context.Context) ([]*domain.VendorRecord, error) {
	// Newest row per vendor wins; older rows are superseded versions.
	it, err := s.query(ctx, fmt.Sprintf(`
		SELECT vendor_id, canonical_name, aliases, ledger_id, updated_ts
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY vendor_id ORDER BY updated_ts DESC) AS rn
			FROM %s.%s
		)
		WHERE rn = 1
		ORDER BY updated_ts`, s.dataset, vendorsTable), nil)
	if err != nil {
		return nil, err
	}
	var out []*domain.VendorRecord
	for {
		var row vendorRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read vendor row: %w", err)
		}
		out = append(out, &domain.VendorRecord{
			ID:            row.VendorID,
			CanonicalName: row.CanonicalName,
			Aliases:       splitLines(row.Aliases),
			LedgerID:      row.LedgerID,
		})
	}
	return out, nil
}

func (s *Store) SaveVendor(ctx context.Context, v *domain.VendorRecord) error {
	return s.insert(ctx, vendorsTable, &vendorRow{
		VendorID:      v.ID,
		CanonicalName: v.CanonicalName,
		Aliases:       joinLines(v.Aliases),
		LedgerID:      v.LedgerID,
		UpdatedAt:     s.now(),
	})
}

func (s *Store) SaveMatchResults(ctx context.Context, documentID string, results []*domain.MatchResult) error {
	if err := s.exec(ctx,
		fmt.Sprintf("DELETE FROM %s.%s WHERE document_id = @id", s.dataset, matchesTable),
		idParam(documentID)); err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}
	now := s.now()
	rows := make([]*matchRow, len(results))
	for i, r := range results {
		rows[i] = &matchRow{
			DocumentID:    documentID,
			TransactionID: r.TransactionID,
			CandidateID:   r.CandidateID,
			Score:         r.Score,
			Decision:      string(r.Decision),
			Reasons:       joinLines(r.Reasons),
			InsertedAt:    now,
		}
	}
	return s.insert(ctx, matchesTable, rows)
}

func (s *Store) ListMatchResults(ctx context.Context, documentID string) ([]*domain.MatchResult, error) {
	it, err := s.query(ctx, fmt.Sprintf(`
		SELECT document_id, transaction_id, candidate_id, score, decision, reasons, inserted_ts
		FROM %s.%s
		WHERE document_id = @id
		ORDER BY transaction_id`, s.dataset, matchesTable), idParam(documentID))
	if err != nil {
		return nil, err
	}
	var out []*domain.MatchResult
	for {
		var row matchRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read match row: %w", err)
		}
		out = append(out, &domain.MatchResult{
			TransactionID: row.TransactionID,
			CandidateID:   row.CandidateID,
			Score:         row.Score,
			Decision:      domain.MatchDecision(row.Decision),
			Reasons:       splitLines(row.Reasons),
		})
	}
	return out, nil
}

func (s *Store) SaveStatus(ctx context.Context, status *domain.DocumentStatus) error {
	return s.insert(ctx, statusesTable, &statusRow{
		DocumentID:    status.DocumentID,
		State:         string(status.State),
		DocumentType:  string(status.DocumentType),
		FailedStage:   string(status.FailedStage),
		FailureReason: status.FailureReason,
		Cancelled:     status.Cancelled,
		UpdatedAt:     status.UpdatedAt,
	})
}

func (r *statusRow) toDomain() *domain.DocumentStatus {
	return &domain.DocumentStatus{
		DocumentID:    r.DocumentID,
		State:         domain.DocumentState(r.State),
		DocumentType:  domain.DocumentType(r.DocumentType),
		FailedStage:   domain.DocumentState(r.FailedStage),
		FailureReason: r.FailureReason,
		Cancelled:     r.Cancelled,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (s *Store) GetStatus(ctx context.Context, documentID string) (*domain.DocumentStatus, error) {
	it, err := s.query(ctx, fmt.Sprintf(`
		SELECT document_id, state, document_type, failed_stage, failure_reason, cancelled, updated_ts
		FROM %s.%s
		WHERE document_id = @id
		ORDER BY updated_ts DESC
		LIMIT 1`, s.dataset, statusesTable), idParam(documentID))
	if err != nil {
		return nil, err
	}
	var row statusRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("read status row: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListStatuses(ctx context.Context) ([]*domain.DocumentStatus, error) {
	it, err := s.query(ctx, fmt.Sprintf(`
		SELECT document_id, state, document_type, failed_stage, failure_reason, cancelled, updated_ts
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY document_id ORDER BY updated_ts DESC) AS rn
			FROM %s.%s
		)
		WHERE rn = 1`, s.dataset, statusesTable), nil)
	if err != nil {
		return nil, err
	}
	var out []*domain.DocumentStatus
	for {
		var row statusRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read status row: %w", err)
		}
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *Store) SavePushResult(ctx context.Context, result *domain.PushResult) error {
	return s.insert(ctx, pushResultsTable, &pushResultRow{
		DocumentID:        result.DocumentID,
		LedgerRecordIDs:   joinLines(result.LedgerRecordIDs),
		VendorsCreated:    int64(result.VendorsCreated),
		AttachmentsMade:   int64(result.AttachmentsMade),
		FeedEntriesMarked: int64(result.FeedEntriesMarked),
		PushedAt:          result.PushedAt,
	})
}

func (s *Store) GetPushResult(ctx context.Context, documentID string) (*domain.PushResult, error) {
	it, err := s.query(ctx, fmt.Sprintf(`
		SELECT document_id, ledger_record_ids, vendors_created, attachments_made,
		       feed_entries_marked, pushed_ts
		FROM %s.%s
		WHERE document_id = @id
		ORDER BY pushed_ts
		LIMIT 1`, s.dataset, pushResultsTable), idParam(documentID))
	if err != nil {
		return nil, err
	}
	var row pushResultRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("read push result row: %w", err)
	}
	return &domain.PushResult{
		DocumentID:        row.DocumentID,
		LedgerRecordIDs:   splitLines(row.LedgerRecordIDs),
		VendorsCreated:    int(row.VendorsCreated),
		AttachmentsMade:   int(row.AttachmentsMade),
		FeedEntriesMarked: int(row.FeedEntriesMarked),
		PushedAt:          row.PushedAt,
	}, nil
}
