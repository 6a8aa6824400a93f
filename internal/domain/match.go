package domain

// MatchDecision is the outcome of matching one extracted transaction against
// the candidate pool. Ambiguity is a first-class outcome: a numeric winner
// that is too close to the runner-up defers to manual resolution.
type MatchDecision string

const (
	DecisionMatched   MatchDecision = "matched"
	DecisionUnmatched MatchDecision = "unmatched"
	DecisionAmbiguous MatchDecision = "ambiguous"
)

// MatchResult records one extracted transaction's outcome for a single
// matching pass. CandidateID is set only for matched decisions; within a pass
// no candidate appears in more than one matched result.
type MatchResult struct {
	TransactionID string
	CandidateID   string
	Score         float64
	Decision      MatchDecision
	Reasons       []string
}
