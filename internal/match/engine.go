// Package match scores extracted transactions against unmatched bank-feed
// candidates and assigns matches deterministically. The engine is pure: it
// never touches storage or the network, so the same inputs always produce
// the same decisions.
package match

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/receiptworks/reconciler/internal/domain"
	"github.com/receiptworks/reconciler/internal/ledger"
	"github.com/receiptworks/reconciler/internal/vendors"
)

// Config holds the scoring weights. Amount agreement is a hard gate, not a
// weight: a pair that fails it scores zero regardless of everything else.
type Config struct {
	AmountTolerance  decimal.Decimal
	BaseScore        float64
	SameDayBonus     float64
	ThreeDayBonus    float64
	SevenDayBonus    float64
	CheckNumberBonus float64
	VendorWeight     float64
	ViableThreshold  float64
	AmbiguityGap     float64

	// LowConfidenceWeight scales the total score of transactions tagged
	// low-confidence at extraction time.
	LowConfidenceWeight float64
}

func DefaultConfig() Config {
	return Config{
		AmountTolerance:     decimal.NewFromFloat(0.01),
		BaseScore:           50,
		SameDayBonus:        30,
		ThreeDayBonus:       20,
		SevenDayBonus:       10,
		CheckNumberBonus:    40,
		VendorWeight:        20,
		ViableThreshold:     70,
		AmbiguityGap:        5,
		LowConfidenceWeight: 0.9,
	}
}

// Engine matches transactions to candidates.
type Engine struct {
	cfg        Config
	similarity func(a, b string) float64
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, similarity: vendors.Similarity}
}

type pair struct {
	cand  int
	score float64
}

// Match produces one MatchResult per transaction, in input order. Candidates
// are claimed at most once across the whole run: transactions are processed
// in descending order of their best individual score, and each claims its
// best still-unclaimed viable candidate. A transaction whose two best
// remaining candidates score within the ambiguity gap claims nothing and is
// reported ambiguous.
func (e *Engine) Match(txns []*domain.ExtractedTransaction, candidates []*ledger.Candidate) []*domain.MatchResult {
	scores := make([][]pair, len(txns))
	best := make([]float64, len(txns))
	for i, txn := range txns {
		for j, cand := range candidates {
			s := e.Score(txn, cand)
			if s <= 0 {
				continue
			}
			scores[i] = append(scores[i], pair{cand: j, score: s})
			if s > best[i] {
				best[i] = s
			}
		}
		// Higher score first; ties prefer the earlier feed date, then the
		// lexically lower candidate ID, so reruns pick the same candidate.
		sort.SliceStable(scores[i], func(a, b int) bool {
			pa, pb := scores[i][a], scores[i][b]
			if pa.score != pb.score {
				return pa.score > pb.score
			}
			ca, cb := candidates[pa.cand], candidates[pb.cand]
			if !ca.Date.Equal(cb.Date) {
				return ca.Date.Before(cb.Date)
			}
			return ca.ID < cb.ID
		})
	}

	order := make([]int, len(txns))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return best[order[a]] > best[order[b]]
	})

	claimed := make(map[int]bool, len(candidates))
	results := make([]*domain.MatchResult, len(txns))
	for _, i := range order {
		txn := txns[i]
		var viable []pair
		for _, p := range scores[i] {
			if !claimed[p.cand] && p.score >= e.cfg.ViableThreshold {
				viable = append(viable, p)
			}
		}
		switch {
		case len(viable) == 0:
			results[i] = &domain.MatchResult{
				TransactionID: txn.ID,
				Decision:      domain.DecisionUnmatched,
				Reasons:       []string{"no candidate scored above the viability threshold"},
			}
		case len(viable) >= 2 && viable[0].score-viable[1].score < e.cfg.AmbiguityGap:
			results[i] = &domain.MatchResult{
				TransactionID: txn.ID,
				Score:         viable[0].score,
				Decision:      domain.DecisionAmbiguous,
				Reasons: []string{fmt.Sprintf(
					"candidates %s and %s score within %.0f points of each other",
					candidates[viable[0].cand].ID, candidates[viable[1].cand].ID, e.cfg.AmbiguityGap)},
			}
		default:
			top := viable[0]
			claimed[top.cand] = true
			results[i] = &domain.MatchResult{
				TransactionID: txn.ID,
				CandidateID:   candidates[top.cand].ID,
				Score:         top.score,
				Decision:      domain.DecisionMatched,
				Reasons:       e.reasons(txn, candidates[top.cand]),
			}
		}
	}
	return results
}

// Score computes the pair score, or 0 when the amount gate fails.
func (e *Engine) Score(txn *domain.ExtractedTransaction, cand *ledger.Candidate) float64 {
	if !e.amountsAgree(txn, cand) {
		return 0
	}
	s := e.cfg.BaseScore
	s += e.dateBonus(txn.Date, cand.Date)
	if txn.CheckNumber != "" && cand.CheckNumber != "" && txn.CheckNumber == cand.CheckNumber {
		s += e.cfg.CheckNumberBonus
	}
	s += e.similarity(txn.Vendor, cand.Description) * e.cfg.VendorWeight
	if txn.LowConfidence {
		s *= e.cfg.LowConfidenceWeight
	}
	return s
}

// amountsAgree compares magnitudes so the feed's sign convention cannot
// break the gate.
func (e *Engine) amountsAgree(txn *domain.ExtractedTransaction, cand *ledger.Candidate) bool {
	diff := txn.Amount.Abs().Sub(cand.Amount.Abs()).Abs()
	return diff.LessThan(e.cfg.AmountTolerance)
}

func (e *Engine) dateBonus(a, b time.Time) float64 {
	days := daysApart(a, b)
	switch {
	case days == 0:
		return e.cfg.SameDayBonus
	case days <= 3:
		return e.cfg.ThreeDayBonus
	case days <= 7:
		return e.cfg.SevenDayBonus
	default:
		return 0
	}
}

func daysApart(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(ad.Sub(bd).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}

func (e *Engine) reasons(txn *domain.ExtractedTransaction, cand *ledger.Candidate) []string {
	out := []string{"amount within tolerance"}
	if days := daysApart(txn.Date, cand.Date); days <= 7 {
		out = append(out, fmt.Sprintf("dates %d day(s) apart", days))
	}
	if txn.CheckNumber != "" && txn.CheckNumber == cand.CheckNumber {
		out = append(out, fmt.Sprintf("check number %s matches", txn.CheckNumber))
	}
	if sim := e.similarity(txn.Vendor, cand.Description); sim > 0 {
		out = append(out, fmt.Sprintf("description similarity %.2f", sim))
	}
	return out
}
