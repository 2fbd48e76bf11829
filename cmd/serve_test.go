package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/clearship/hscodex/internal/blob"
	"github.com/clearship/hscodex/internal/model"
	"github.com/clearship/hscodex/internal/process"
	"github.com/clearship/hscodex/internal/store"
)

var serveTestMapping = model.TemplateMapping{
	CarrierID:         "hmm",
	TemplateID:        "std-v1",
	CompanyNameRow:    1,
	CompanyNameColumn: "A",
	ProductColumn:     "B",
	HSCodeColumn:      "C",
	StartRow:          3,
}

func buildWorkbook(t *testing.T, cells map[string]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for cell, v := range cells {
		require.NoError(t, f.SetCellStr("Sheet1", cell, v))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type routerFixture struct {
	handler http.Handler
	store   store.Store
	blobs   blob.Store
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.PutCarrier(ctx, model.Carrier{ID: "hmm", Name: "HMM"}))
	_, err = st.PutTemplates(ctx, []model.TemplateMapping{serveTestMapping})
	require.NoError(t, err)

	blobs := blob.NewMem()
	return &routerFixture{
		handler: newRouter(st, blobs, process.New(st, blobs, 0)),
		store:   st,
		blobs:   blobs,
	}
}

func (fx *routerFixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, req)
	return rr
}

func (fx *routerFixture) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return fx.do(t, req)
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	fx := newRouterFixture(t)

	rr := fx.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decodeJSON[map[string]string](t, rr))
}

func TestUploadRawBody(t *testing.T) {
	fx := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader([]byte("xlsx bytes")))
	req.Header.Set("X-Filename", "manifest.xlsx")
	rr := fx.do(t, req)

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeJSON[map[string]string](t, rr)
	assert.Equal(t, "uploads/manifest.xlsx", resp["fileKey"])

	stored, err := fx.blobs.Get(context.Background(), "uploads/manifest.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx bytes"), stored)
}

func TestUploadMultipart(t *testing.T) {
	fx := newRouterFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "manifest.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("xlsx bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := fx.do(t, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "uploads/manifest.xlsx", decodeJSON[map[string]string](t, rr)["fileKey"])
}

func TestUploadEmpty(t *testing.T) {
	fx := newRouterFixture(t)

	rr := fx.do(t, httptest.NewRequest(http.MethodPost, "/upload", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func (fx *routerFixture) uploadManifest(t *testing.T, key string, cells map[string]string) {
	t.Helper()
	require.NoError(t, fx.blobs.Put(context.Background(), key, buildWorkbook(t, cells)))
}

func TestPreviewEndpoint(t *testing.T) {
	fx := newRouterFixture(t)
	fx.uploadManifest(t, "uploads/m.xlsx", map[string]string{"A1": "Acme Inc", "B3": "Widget"})

	rr := fx.postJSON(t, "/preview", model.ProcessRequest{
		FileKey: "uploads/m.xlsx", CarrierID: "hmm", TemplateID: "std-v1",
	})

	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeJSON[model.PreviewResult](t, rr)
	assert.Equal(t, "Acme Inc", got.CompanyName)
	assert.Equal(t, "Widget", got.FirstProductName)
}

func TestProcessEndpoint(t *testing.T) {
	fx := newRouterFixture(t)
	ctx := context.Background()
	id := uuid.NewString()
	require.NoError(t, fx.store.CreateCompany(ctx, model.Company{ID: id, NameEN: "Acme Inc"}))
	require.NoError(t, fx.store.PutCatalogEntry(ctx, model.CatalogEntry{
		CompanyID: id, SK: "Widget#default", ProductName: "Widget",
		HSCode: "1234.56", DefaultVariant: true,
	}))
	fx.uploadManifest(t, "uploads/m.xlsx", map[string]string{"A1": "Acme Inc", "B3": "Widget"})

	rr := fx.postJSON(t, "/process", model.ProcessRequest{
		FileKey: "uploads/m.xlsx", CarrierID: "hmm", TemplateID: "std-v1",
	})

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeJSON[model.ProcessResponse](t, rr)
	assert.Equal(t, "results/uploads/m.xlsx", resp.ResultFileKey)
	require.Len(t, resp.PendingCompanies, 1)
	assert.False(t, resp.PendingCompanies[0].IsNew)

	// Result is downloadable.
	dl := fx.do(t, httptest.NewRequest(http.MethodGet, "/results/uploads/m.xlsx", nil))
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, xlsxContentType, dl.Header().Get("Content-Type"))
	assert.NotEmpty(t, dl.Body.Bytes())
}

func TestProcessUnknownTemplate(t *testing.T) {
	fx := newRouterFixture(t)
	fx.uploadManifest(t, "uploads/m.xlsx", map[string]string{"A1": "Acme Inc", "B3": "Widget"})

	rr := fx.postJSON(t, "/process", model.ProcessRequest{
		FileKey: "uploads/m.xlsx", CarrierID: "hmm", TemplateID: "nope",
	})

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotEmpty(t, decodeJSON[map[string]string](t, rr)["error"])
}

func TestProcessMissingCompanyNameIs400(t *testing.T) {
	fx := newRouterFixture(t)
	fx.uploadManifest(t, "uploads/m.xlsx", map[string]string{"B3": "Widget"})

	rr := fx.postJSON(t, "/process", model.ProcessRequest{
		FileKey: "uploads/m.xlsx", CarrierID: "hmm", TemplateID: "std-v1",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProcessInvalidBody(t *testing.T) {
	fx := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader([]byte("{not json")))
	rr := fx.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestResultsNotFound(t *testing.T) {
	fx := newRouterFixture(t)

	rr := fx.do(t, httptest.NewRequest(http.MethodGet, "/results/nope.xlsx", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCarrierEndpoints(t *testing.T) {
	fx := newRouterFixture(t)

	rr := fx.do(t, httptest.NewRequest(http.MethodGet, "/carriers", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	carriers := decodeJSON[[]model.Carrier](t, rr)
	require.Len(t, carriers, 1)
	assert.Equal(t, "hmm", carriers[0].ID)

	rr = fx.do(t, httptest.NewRequest(http.MethodGet, "/carriers/hmm/templates", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	templates := decodeJSON[[]model.TemplateMapping](t, rr)
	require.Len(t, templates, 1)
	assert.Equal(t, "std-v1", templates[0].TemplateID)
}

func TestReviewFlow(t *testing.T) {
	fx := newRouterFixture(t)
	ctx := context.Background()

	// New company confirmed by a reviewer.
	rr := fx.postJSON(t, "/update-company", model.UpdateCompanyRequest{
		CompanyNameEN: "Acme Inc",
		CompanyNameKR: "아크메",
		Products: []model.NewProduct{
			{ProductName: "Widget", HSCode: "1234.56"},
			{ProductName: "Widget", HSCode: "7654.32", VariantAttributes: map[string]string{"material": "metal"}},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	companyID := decodeJSON[map[string]string](t, rr)["companyId"]
	require.NotEmpty(t, companyID)

	// Variant selection for the new company.
	rr = fx.postJSON(t, "/select-product-hs-codes", model.SelectHsCodesRequest{
		CompanyID: companyID,
		Products:  []model.ProductSelection{{ProductName: "Widget", SelectedHSCode: "7654.32"}},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	entries, err := fx.store.GetProductVariants(ctx, companyID, "Widget")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, e.HSCode == "7654.32", e.DefaultVariant)
	}
}

func TestSelectForUnknownCompanyIs404(t *testing.T) {
	fx := newRouterFixture(t)

	rr := fx.postJSON(t, "/select-product-hs-codes", model.SelectHsCodesRequest{
		CompanyID: "missing",
		Products:  []model.ProductSelection{{ProductName: "Widget", SelectedHSCode: "1"}},
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCORSHeaders(t *testing.T) {
	fx := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/process", nil)
	req.Header.Set("Origin", "http://review.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := fx.do(t, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
