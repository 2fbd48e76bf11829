package reconcile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearship/hscodex/internal/model"
	"github.com/clearship/hscodex/internal/store"
)

func newTestReconciler(t *testing.T) (*Reconciler, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return New(st), st
}

// countDefaults returns how many variants of the product carry the default flag.
func countDefaults(t *testing.T, st store.Store, companyID, productName string) int {
	t.Helper()
	entries, err := st.GetProductVariants(context.Background(), companyID, productName)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if e.DefaultVariant {
			n++
		}
	}
	return n
}

func TestCommitNewCompany(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()

	id, err := r.CommitNewCompany(ctx, model.UpdateCompanyRequest{
		CompanyNameEN: "Acme Inc",
		CompanyNameKR: "아크메",
		Products: []model.NewProduct{
			{ProductName: "Widget", HSCode: "1234.56"},
			{ProductName: "Gadget", HSCode: "2222.22", VariantAttributes: map[string]string{"material": "metal"}},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	c, err := st.GetCompanyByName(ctx, "Acme Inc")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, "아크메", c.NameKR)

	widgets, err := st.GetProductVariants(ctx, id, "Widget")
	require.NoError(t, err)
	require.Len(t, widgets, 1)
	assert.Equal(t, "Widget#default", widgets[0].SK)
	assert.True(t, widgets[0].DefaultVariant)

	gadgets, err := st.GetProductVariants(ctx, id, "Gadget")
	require.NoError(t, err)
	require.Len(t, gadgets, 1)
	assert.Equal(t, "Gadget#metal", gadgets[0].SK)
	assert.False(t, gadgets[0].DefaultVariant)
	assert.Equal(t, map[string]string{"material": "metal"}, gadgets[0].VariantAttributes)
}

func TestCommitNewCompany_EmptyName(t *testing.T) {
	r, _ := newTestReconciler(t)

	_, err := r.CommitNewCompany(context.Background(), model.UpdateCompanyRequest{CompanyNameEN: "   "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company name is required")
}

func TestCommitNewCompany_EmptyHSCode(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.CommitNewCompany(ctx, model.UpdateCompanyRequest{
		CompanyNameEN: "Acme Inc",
		Products: []model.NewProduct{
			{ProductName: "Widget", HSCode: "1234.56"},
			{ProductName: "Gadget"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `hs code is required for product "Gadget"`)

	// Rejected before any write: the company must not exist.
	c, err := st.GetCompanyByName(ctx, "Acme Inc")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCommitNewCompany_NoDuplicateGuard(t *testing.T) {
	// A repeated submission creates a second company. The gate belongs to
	// callers, who must check GetCompanyByName first.
	r, _ := newTestReconciler(t)
	ctx := context.Background()

	id1, err := r.CommitNewCompany(ctx, model.UpdateCompanyRequest{CompanyNameEN: "Acme Inc"})
	require.NoError(t, err)
	id2, err := r.CommitNewCompany(ctx, model.UpdateCompanyRequest{CompanyNameEN: "Acme Inc"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestSelectVariant_CreatesWhenNoneExist(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()

	id, err := r.CommitNewCompany(ctx, model.UpdateCompanyRequest{CompanyNameEN: "Acme Inc"})
	require.NoError(t, err)

	require.NoError(t, r.SelectVariant(ctx, id, "Widget", "1234.56"))

	entries, err := st.GetProductVariants(ctx, id, "Widget")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Widget#default", entries[0].SK)
	assert.Equal(t, "1234.56", entries[0].HSCode)
	assert.True(t, entries[0].DefaultVariant)
}

func seedVariants(t *testing.T, r *Reconciler) string {
	t.Helper()
	ctx := context.Background()
	id, err := r.CommitNewCompany(ctx, model.UpdateCompanyRequest{
		CompanyNameEN: "Acme Inc",
		Products: []model.NewProduct{
			{ProductName: "Widget", HSCode: "1234.56", VariantAttributes: map[string]string{"material": "plastic"}},
			{ProductName: "Widget", HSCode: "7654.32", VariantAttributes: map[string]string{"material": "metal"}},
		},
	})
	require.NoError(t, err)
	return id
}

func TestSelectVariant_EmptyHSCode(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()
	id := seedVariants(t, r)

	err := r.SelectVariant(ctx, id, "Widget", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `hs code is required for product "Widget"`)

	entries, err := st.GetProductVariants(ctx, id, "Widget")
	require.NoError(t, err)
	assert.Len(t, entries, 2, "rejected selections must not create entries")
}

func TestSelectVariant_RepointsDefault(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()
	id := seedVariants(t, r)

	require.NoError(t, r.SelectVariant(ctx, id, "Widget", "7654.32"))

	entries, err := st.GetProductVariants(ctx, id, "Widget")
	require.NoError(t, err)
	require.Len(t, entries, 2, "re-pointing must not create entries")
	for _, e := range entries {
		assert.Equal(t, e.HSCode == "7654.32", e.DefaultVariant, "sk %s", e.SK)
	}
}

func TestSelectVariant_NewCodeAddsSelectedVariant(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()
	id := seedVariants(t, r)

	require.NoError(t, r.SelectVariant(ctx, id, "Widget", "9999.99"))

	entries, err := st.GetProductVariants(ctx, id, "Widget")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		if e.SK == "Widget#selected" {
			assert.Equal(t, "9999.99", e.HSCode)
			assert.True(t, e.DefaultVariant)
		} else {
			assert.False(t, e.DefaultVariant)
		}
	}
}

func TestSelectVariant_InvariantAcrossSequences(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()
	id := seedVariants(t, r)

	for _, code := range []string{"1234.56", "9999.99", "7654.32", "7654.32", "1234.56"} {
		require.NoError(t, r.SelectVariant(ctx, id, "Widget", code))
		assert.Equal(t, 1, countDefaults(t, st, id, "Widget"), "after selecting %s", code)
	}
}

// flakyDefaultStore fails the first SetDefaultVariant call and then delegates,
// simulating a crash partway through a demotion batch.
type flakyDefaultStore struct {
	store.Store
	failed bool
}

func (s *flakyDefaultStore) SetDefaultVariant(ctx context.Context, companyID, sk string, isDefault bool) error {
	if !s.failed {
		s.failed = true
		return eris.New("store: write rejected")
	}
	return s.Store.SetDefaultVariant(ctx, companyID, sk, isDefault)
}

func TestSelectVariant_PartialDemotionThenRepair(t *testing.T) {
	clean, st := newTestReconciler(t)
	ctx := context.Background()
	id := seedVariants(t, clean)

	// Give one sibling the default flag so the failed demotion below leaves an
	// observable second default.
	require.NoError(t, clean.SelectVariant(ctx, id, "Widget", "1234.56"))
	require.Equal(t, 1, countDefaults(t, st, id, "Widget"))

	// An unmatched code writes the selected entry as default, then the first
	// sibling demotion fails, leaving two defaults behind.
	r := New(&flakyDefaultStore{Store: st})
	err := r.SelectVariant(ctx, id, "Widget", "9999.99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry to repair")
	assert.Equal(t, 2, countDefaults(t, st, id, "Widget"))

	// Re-running the same selection matches Widget#selected and re-points the
	// flags, restoring the single-default invariant.
	require.NoError(t, r.SelectVariant(ctx, id, "Widget", "9999.99"))
	assert.Equal(t, 1, countDefaults(t, st, id, "Widget"))
}

func TestSelectVariant_Idempotent(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()
	id := seedVariants(t, r)

	require.NoError(t, r.SelectVariant(ctx, id, "Widget", "7654.32"))
	before, err := st.GetProductVariants(ctx, id, "Widget")
	require.NoError(t, err)

	require.NoError(t, r.SelectVariant(ctx, id, "Widget", "7654.32"))
	after, err := st.GetProductVariants(ctx, id, "Widget")
	require.NoError(t, err)

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].SK, after[i].SK)
		assert.Equal(t, before[i].HSCode, after[i].HSCode)
		assert.Equal(t, before[i].DefaultVariant, after[i].DefaultVariant)
	}
}

func TestSelectVariants_UnknownCompany(t *testing.T) {
	r, _ := newTestReconciler(t)

	err := r.SelectVariants(context.Background(), model.SelectHsCodesRequest{
		CompanyID: "missing-id",
		Products:  []model.ProductSelection{{ProductName: "Widget", SelectedHSCode: "1234.56"}},
	})
	assert.ErrorIs(t, err, store.ErrCompanyNotFound)
}

func TestSelectVariants_Batch(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()
	id := seedVariants(t, r)

	err := r.SelectVariants(ctx, model.SelectHsCodesRequest{
		CompanyID: id,
		Products: []model.ProductSelection{
			{ProductName: "Widget", SelectedHSCode: "1234.56"},
			{ProductName: "Gadget", SelectedHSCode: "3333.33"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, countDefaults(t, st, id, "Widget"))
	assert.Equal(t, 1, countDefaults(t, st, id, "Gadget"))
}
