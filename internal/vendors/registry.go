// Package vendors maps free-text payee strings onto vendor identities. The
// registry is shared mutable state: every resolve runs under registry-level
// exclusivity, so concurrent resolutions never create two records for the
// same payee and never lose an alias fold.
package vendors

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/receiptworks/reconciler/internal/domain"
	"github.com/receiptworks/reconciler/internal/logger"
)

// Repository is the persistence the registry needs. Kept minimal here to
// avoid a dependency on the full store package.
type Repository interface {
	ListVendors(ctx context.Context) ([]*domain.VendorRecord, error)
	SaveVendor(ctx context.Context, v *domain.VendorRecord) error
}

// Registry resolves payee text to VendorRecords, creating them on first
// sight.
type Registry struct {
	repo      Repository
	threshold float64

	// mu serializes every resolve. Matching and folding are a
	// read-modify-write over the whole vendor set: two different spellings
	// can fold into the same record, so exclusivity has to cover the
	// registry, not just one normalized key.
	mu sync.Mutex
}

// NewRegistry builds a registry. threshold is the minimum similarity for
// folding a new spelling into an existing vendor as an alias.
func NewRegistry(repo Repository, threshold float64) *Registry {
	return &Registry{repo: repo, threshold: threshold}
}

// Resolve returns the vendor for the given payee text, creating one when no
// existing vendor matches exactly or by similarity. Resolving the same
// normalized text twice returns the same record both times.
func (r *Registry) Resolve(ctx context.Context, payeeText string) (*domain.VendorRecord, error) {
	key := Normalize(payeeText)
	if key == "" {
		return nil, fmt.Errorf("vendors: empty payee text")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.repo.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("vendors: list: %w", err)
	}

	// Exact match on canonical name or any alias wins outright.
	for _, v := range existing {
		if Normalize(v.CanonicalName) == key {
			return v, nil
		}
		for _, alias := range v.Aliases {
			if Normalize(alias) == key {
				return v, nil
			}
		}
	}

	// Fuzzy pass over every vendor; best score at or above the threshold
	// absorbs the new spelling as an alias.
	var best *domain.VendorRecord
	bestScore := 0.0
	for _, v := range existing {
		score := Similarity(payeeText, v.CanonicalName)
		for _, alias := range v.Aliases {
			if s := Similarity(payeeText, alias); s > score {
				score = s
			}
		}
		if score > bestScore {
			bestScore = score
			best = v
		}
	}

	if best != nil && bestScore >= r.threshold {
		alias := strings.TrimSpace(payeeText)
		if !best.HasAlias(alias) && alias != best.CanonicalName {
			// Save a fresh copy: records already handed to callers are
			// never mutated in place.
			updated := *best
			updated.Aliases = append(append([]string(nil), best.Aliases...), alias)
			if err := r.repo.SaveVendor(ctx, &updated); err != nil {
				return nil, fmt.Errorf("vendors: save alias: %w", err)
			}
			best = &updated
		}
		log := logger.FromContext(ctx)
		log.Debug().
			Str("payee", payeeText).
			Str("vendor", best.CanonicalName).
			Float64("score", bestScore).
			Msg("Folded payee into existing vendor")
		return best, nil
	}

	created := &domain.VendorRecord{
		ID:            uuid.NewString(),
		CanonicalName: strings.TrimSpace(payeeText),
	}
	if err := r.repo.SaveVendor(ctx, created); err != nil {
		return nil, fmt.Errorf("vendors: create: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("vendor", created.CanonicalName).
		Str("vendor_id", created.ID).
		Msg("Created new vendor")
	return created, nil
}
