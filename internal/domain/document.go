package domain

import "time"

// DocumentType is the closed set of document classifications. unknown is a
// valid terminal classification that halts extraction, not an error.
type DocumentType string

const (
	TypeReceipt             DocumentType = "receipt"
	TypeInvoice             DocumentType = "invoice"
	TypeBill                DocumentType = "bill"
	TypeBankStatement       DocumentType = "bank_statement"
	TypeCheck               DocumentType = "check"
	TypeCreditCardStatement DocumentType = "credit_card_statement"
	TypeUnknown             DocumentType = "unknown"
)

// ParseDocumentType maps a raw string onto the closed type set. Anything not
// recognized comes back as TypeUnknown with ok=false.
func ParseDocumentType(s string) (DocumentType, bool) {
	switch DocumentType(s) {
	case TypeReceipt, TypeInvoice, TypeBill, TypeBankStatement, TypeCheck, TypeCreditCardStatement:
		return DocumentType(s), true
	case TypeUnknown:
		return TypeUnknown, true
	default:
		return TypeUnknown, false
	}
}

// Document is an ingested source file. Content lives in object storage; the
// record itself is immutable once created.
type Document struct {
	ID          string
	Filename    string
	ContentType string
	StorageURI  string
	Checksum    string // SHA-256 of the content, hex encoded
	UploadedAt  time.Time
}
