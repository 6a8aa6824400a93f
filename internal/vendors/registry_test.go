package vendors

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptworks/reconciler/internal/domain"
)

// memRepo is a map-backed Repository safe for concurrent use.
type memRepo struct {
	mu      sync.Mutex
	vendors map[string]*domain.VendorRecord
}

func newMemRepo() *memRepo {
	return &memRepo{vendors: make(map[string]*domain.VendorRecord)}
}

func (m *memRepo) ListVendors(ctx context.Context) ([]*domain.VendorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.VendorRecord, 0, len(m.vendors))
	for _, v := range m.vendors {
		out = append(out, v)
	}
	return out, nil
}

func (m *memRepo) SaveVendor(ctx context.Context, v *domain.VendorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vendors[v.ID] = v
	return nil
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "acme corp"},
		{"ACME, CORP.", "acme corp"},
		{"  Acme   Corp  ", "acme corp"},
		{"ACME CORP #4521", "acme corp 4521"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Acme Corp", "ACME, CORP."))
	assert.GreaterOrEqual(t, Similarity("Acme Corp", "ACME CORP #4521"), containmentScore)
	assert.Less(t, Similarity("Acme Corp", "Northwind Traders"), 0.5)
	assert.Equal(t, 0.0, Similarity("", "anything"))
}

func TestResolveCreatesThenReturnsSame(t *testing.T) {
	reg := NewRegistry(newMemRepo(), 0.85)
	ctx := context.Background()

	first, err := reg.Resolve(ctx, "Acme Corp")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", first.CanonicalName)

	second, err := reg.Resolve(ctx, "Acme Corp")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveExactAliasMatch(t *testing.T) {
	repo := newMemRepo()
	reg := NewRegistry(repo, 0.85)
	ctx := context.Background()

	v, err := reg.Resolve(ctx, "Acme Corp")
	require.NoError(t, err)

	// Different punctuation normalizes to the same key.
	same, err := reg.Resolve(ctx, "ACME, CORP.")
	require.NoError(t, err)
	assert.Equal(t, v.ID, same.ID)
}

func TestResolveFuzzyMatchAddsAlias(t *testing.T) {
	repo := newMemRepo()
	reg := NewRegistry(repo, 0.85)
	ctx := context.Background()

	v, err := reg.Resolve(ctx, "Acme Corp")
	require.NoError(t, err)

	matched, err := reg.Resolve(ctx, "ACME CORP #4521")
	require.NoError(t, err)
	assert.Equal(t, v.ID, matched.ID)
	assert.True(t, matched.HasAlias("ACME CORP #4521"))
}

func TestResolveDistinctVendorCreated(t *testing.T) {
	reg := NewRegistry(newMemRepo(), 0.85)
	ctx := context.Background()

	a, err := reg.Resolve(ctx, "Acme Corp")
	require.NoError(t, err)
	b, err := reg.Resolve(ctx, "Northwind Traders")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestResolveEmptyPayeeFails(t *testing.T) {
	reg := NewRegistry(newMemRepo(), 0.85)
	_, err := reg.Resolve(context.Background(), "  ,.  ")
	assert.Error(t, err)
}

func TestResolveConcurrentSameNewPayee(t *testing.T) {
	repo := newMemRepo()
	reg := NewRegistry(repo, 0.85)
	ctx := context.Background()

	const n = 16
	results := make([]*domain.VendorRecord, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := reg.Resolve(ctx, "Fresh Fields Market")
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	all, err := repo.ListVendors(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "concurrent resolutions must create exactly one vendor")
	for _, v := range results {
		assert.Equal(t, results[0].ID, v.ID)
	}
}

func TestResolveConcurrentSpellingsFoldWithoutLoss(t *testing.T) {
	repo := newMemRepo()
	reg := NewRegistry(repo, 0.85)
	ctx := context.Background()

	seed, err := reg.Resolve(ctx, "Acme Corporation")
	require.NoError(t, err)

	// Two spellings that normalize to different keys but both fold into the
	// seeded vendor. Each fold is a read-modify-write of the alias list, so
	// racing them must not drop either alias or split the vendor.
	spellings := []string{"Acme Corporation Inc", "The Acme Corporation"}
	var wg sync.WaitGroup
	for _, s := range spellings {
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(s string) {
				defer wg.Done()
				v, err := reg.Resolve(ctx, s)
				if assert.NoError(t, err) {
					assert.Equal(t, seed.ID, v.ID)
				}
			}(s)
		}
	}
	wg.Wait()

	all, err := repo.ListVendors(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].HasAlias("Acme Corporation Inc"))
	assert.True(t, all[0].HasAlias("The Acme Corporation"))
}
