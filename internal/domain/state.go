package domain

import "time"

// DocumentState names the stages of the per-document state machine.
type DocumentState string

const (
	StateUploaded       DocumentState = "uploaded"
	StateClassified     DocumentState = "classified"
	StateExtracted      DocumentState = "extracted"
	StateCheckLocated   DocumentState = "check_located"
	StateVendorResolved DocumentState = "vendor_resolved"
	StateMatched        DocumentState = "matched"
	StatePushed         DocumentState = "pushed"
	StateFailed         DocumentState = "failed"
)

// stateOrder gives each non-terminal state its position in the pipeline so
// idempotent transitions can ask "is this stage already behind us".
var stateOrder = map[DocumentState]int{
	StateUploaded:       0,
	StateClassified:     1,
	StateExtracted:      2,
	StateCheckLocated:   3,
	StateVendorResolved: 4,
	StateMatched:        5,
	StatePushed:         6,
}

// AtLeast reports whether s has already reached (or passed) other in the
// pipeline. Failed is terminal and never "at least" anything.
func (s DocumentState) AtLeast(other DocumentState) bool {
	a, ok1 := stateOrder[s]
	b, ok2 := stateOrder[other]
	return ok1 && ok2 && a >= b
}

// Terminal reports whether no further transitions are possible.
func (s DocumentState) Terminal() bool {
	return s == StatePushed || s == StateFailed
}

// DocumentStatus is the persisted state-machine record for one document.
type DocumentStatus struct {
	DocumentID   string
	State        DocumentState
	DocumentType DocumentType

	// FailedStage and FailureReason are set when State is failed. The raw
	// partial result is preserved alongside for manual review.
	FailedStage   DocumentState
	FailureReason string

	// Cancelled marks the document for discard; each stage boundary checks it
	// before committing results.
	Cancelled bool

	UpdatedAt time.Time
}

// PushResult is the stored outcome of a completed push. Re-invoking push on a
// pushed document returns this record instead of performing new writes.
type PushResult struct {
	DocumentID        string
	LedgerRecordIDs   []string
	VendorsCreated    int
	AttachmentsMade   int
	FeedEntriesMarked int
	PushedAt          time.Time
}
