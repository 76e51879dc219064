package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/AngelCh415/disparos-etl/internal/classify"
	"github.com/AngelCh415/disparos-etl/internal/ingest"
	"github.com/AngelCh415/disparos-etl/internal/metrics"
	"github.com/AngelCh415/disparos-etl/internal/store"
	"github.com/AngelCh415/disparos-etl/internal/telemetry"
)

const leadsCSV = "id,customer,created_at,cpf,phone,agreement_full,channel,campaign,owner,product,team,stage,loss_reason,paid_at,projected_commission,paid_amount\n" +
	"1,Ana,2025-03-01,111,999,SPPREV,RCS,spprev_marco,Joao,Novo,T,LEAD,,,,\n" +
	"2,Bia,2025-03-01,222,888,GOVSP,Whatsapp Grow,govsp_x,Joao,Cartão,T,PAGO,,,,\n" +
	"3,Caio,2025-03-03,333,777,,SMS,,Rui,,,PERDA,,,,\n"

const dispatchesCSV = "data;convenio;categoria;quantidade;canal;investimento;mql;pagos;receita\n" +
	"01/03/2025;SP PREV;NOVO;1.000;RCS;R$ 1.234,56;10;2;R$ 500,00\n" +
	"02/03/2025;GOVSP;CARTÃO;50;RCS;;;;\n"

func newServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	tel := telemetry.New(reg)
	st := store.NewMemoryStore()
	norm := ingest.NewNormalizer(classify.Default(), ingest.DefaultOptions(), log)
	etl := ingest.NewETL(norm, nil, st, tel, log)
	svc := metrics.NewService(st, tel, log)
	h := NewRouter(log, etl, svc, st, Options{MaxUploadBytes: 1 << 20, Gatherer: reg})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, st
}

type part struct{ name, body string }

func upload(t *testing.T, srv *httptest.Server, parts ...part) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		fw, err := mw.CreateFormFile("files", p.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	resp, err := http.Post(srv.URL+"/datasets", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthAndReadiness(t *testing.T) {
	srv, _ := newServer(t)
	assert.Equal(t, 200, get(t, srv.URL+"/healthz").StatusCode)
	assert.Equal(t, 503, get(t, srv.URL+"/readyz").StatusCode)

	upload(t, srv, part{"hubspot.csv", leadsCSV}, part{"disparos.csv", dispatchesCSV})
	assert.Equal(t, 200, get(t, srv.URL+"/readyz").StatusCode)
}

func TestViewsWithoutDataset(t *testing.T) {
	srv, _ := newServer(t)
	resp := get(t, srv.URL+"/views")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var ae APIError
	decode(t, resp, &ae)
	assert.Equal(t, "no_dataset", ae.ErrorCode)
	assert.NotEmpty(t, ae.RequestID)
}

func TestUploadMissingFile(t *testing.T) {
	srv, st := newServer(t)
	resp := upload(t, srv, part{"hubspot.csv", leadsCSV}, part{"outro.csv", dispatchesCSV})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var ae APIError
	decode(t, resp, &ae)
	assert.Equal(t, "missing_file", ae.ErrorCode)
	assert.False(t, st.Loaded())
}

func TestUploadSchemaError(t *testing.T) {
	srv, _ := newServer(t)
	bad := "data;convenio;categoria;quantidade;canal;investimento;mql;pagos;receita\n01/03/2025;X;NOVO;muitos;RCS;;;;\n"
	resp := upload(t, srv, part{"hubspot.csv", leadsCSV}, part{"disparos.csv", bad})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var ae APIError
	decode(t, resp, &ae)
	assert.Equal(t, "schema_error", ae.ErrorCode)
	assert.Equal(t, "disparos.csv", ae.Details["file"])
	assert.EqualValues(t, 2, ae.Details["row"])
	assert.Equal(t, "quantity", ae.Details["column"])
}

func TestUploadNotMultipart(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Post(srv.URL+"/datasets", "text/plain", bytes.NewBufferString("x"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadAndQueryViews(t *testing.T) {
	srv, _ := newServer(t)
	resp := upload(t, srv, part{"disparos.csv", dispatchesCSV}, part{"hubspot.csv", leadsCSV})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sum struct {
		ID         string `json:"id"`
		Leads      int    `json:"leads"`
		Dispatches int    `json:"dispatches"`
	}
	decode(t, resp, &sum)
	assert.NotEmpty(t, sum.ID)
	assert.Equal(t, 3, sum.Leads)
	assert.Equal(t, 2, sum.Dispatches)

	resp = get(t, srv.URL+"/views?view=dispatch_lead_join")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep map[string]json.RawMessage
	decode(t, resp, &rep)
	assert.JSONEq(t, `[{"agreement":"SPPREV","category":"NOVO","quantity":1000,"leads":1,"ratio":0.1}]`, string(rep["dispatch_lead_join"]))
	assert.Equal(t, "null", string(rep["daily_channel_volume"]))

	resp = get(t, srv.URL+"/views?from=2025-03-02&view=dispatch_lead_join,daily_channel_volume")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep = nil
	decode(t, resp, &rep)
	assert.Equal(t, "[]", string(rep["dispatch_lead_join"]))
	assert.JSONEq(t, `[{"date":"2025-03-03","channel":"SMS","count":1}]`, string(rep["daily_channel_volume"]))
}

func TestCurrentDataset(t *testing.T) {
	srv, _ := newServer(t)
	upload(t, srv, part{"hubspot.csv", leadsCSV}, part{"disparos.csv", dispatchesCSV})

	resp := get(t, srv.URL+"/datasets/current")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info struct {
		Dataset struct {
			LeadsFile string `json:"leads_file"`
		} `json:"dataset"`
		Options struct {
			Agreements []string `json:"agreements"`
			Stages     []string `json:"stages"`
		} `json:"options"`
	}
	decode(t, resp, &info)
	assert.Equal(t, "hubspot.csv", info.Dataset.LeadsFile)
	assert.Equal(t, []string{"GOVSP", "SPPREV"}, info.Options.Agreements)
	assert.Equal(t, []string{"LEAD", "PAGO", "PERDA"}, info.Options.Stages)
}

func TestInvalidQuery(t *testing.T) {
	srv, _ := newServer(t)
	upload(t, srv, part{"hubspot.csv", leadsCSV}, part{"disparos.csv", dispatchesCSV})

	for _, q := range []string{"view=bogus", "from=01/03/2025", "to=2025-13-01"} {
		resp := get(t, srv.URL+"/views?"+q)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		var ae APIError
		decode(t, resp, &ae)
		assert.Equal(t, "invalid_query", ae.ErrorCode, q)
	}
}

func TestExportXLSX(t *testing.T) {
	srv, _ := newServer(t)
	upload(t, srv, part{"hubspot.csv", leadsCSV}, part{"disparos.csv", dispatchesCSV})

	resp := get(t, srv.URL+"/views/export.xlsx?view=stage_channel_distribution")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"stage_channel_distribution"}, f.GetSheetList())
	rows, err := f.GetRows("stage_channel_distribution")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestFetchNotConfigured(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Post(srv.URL+"/datasets/fetch", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newServer(t)
	upload(t, srv, part{"hubspot.csv", leadsCSV}, part{"disparos.csv", dispatchesCSV})

	resp := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `disparos_rows_normalized_total{source="leads"} 3`)
}
