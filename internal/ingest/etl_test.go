package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/disparos-etl/internal/store"
	"github.com/AngelCh415/disparos-etl/internal/telemetry"
	"github.com/AngelCh415/disparos-etl/internal/utils"
)

func newETL(t *testing.T, fetch *Fetcher) (*ETL, *store.MemoryStore, *telemetry.Metrics) {
	t.Helper()
	st := store.NewMemoryStore()
	tel := telemetry.New(prometheus.NewRegistry())
	return NewETL(newNormalizer(DefaultOptions()), fetch, st, tel, discard()), st, tel
}

func uploadPair() []NamedFile {
	return []NamedFile{
		{Name: "disparos_marco.csv", Body: []byte(dispatchesCSV)},
		{Name: "hubspot_marco.csv", Body: []byte(leadsCSV)},
	}
}

func TestUploadStoresDataset(t *testing.T) {
	etl, st, tel := newETL(t, nil)
	ds, err := etl.Upload(context.Background(), uploadPair())
	require.NoError(t, err)

	assert.NotEmpty(t, ds.ID)
	assert.Equal(t, "hubspot_marco.csv", ds.LeadsFile)
	assert.Equal(t, "disparos_marco.csv", ds.DispFile)
	assert.Len(t, ds.Leads, 3)
	assert.Len(t, ds.Dispatches, 2)

	cur, err := st.Current()
	require.NoError(t, err)
	assert.Equal(t, ds.ID, cur.ID)

	assert.Equal(t, 3.0, testutil.ToFloat64(tel.RowsNormalized.WithLabelValues("leads")))
	assert.Equal(t, 2.0, testutil.ToFloat64(tel.RowsNormalized.WithLabelValues("dispatches")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.PipelineRuns.WithLabelValues("normalize", "ok")))
}

func TestUploadReplacesWithNewID(t *testing.T) {
	etl, st, _ := newETL(t, nil)
	first, err := etl.Upload(context.Background(), uploadPair())
	require.NoError(t, err)
	second, err := etl.Upload(context.Background(), uploadPair())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	cur, _ := st.Current()
	assert.Equal(t, second.ID, cur.ID)
}

func TestUploadSchemaErrorKeepsPreviousDataset(t *testing.T) {
	etl, st, tel := newETL(t, nil)
	good, err := etl.Upload(context.Background(), uploadPair())
	require.NoError(t, err)

	bad := uploadPair()
	bad[0].Body = []byte("data;convenio\n01/03/2025;X\n")
	_, err = etl.Upload(context.Background(), bad)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "disparos_marco.csv", se.File)

	cur, err := st.Current()
	require.NoError(t, err)
	assert.Equal(t, good.ID, cur.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.SchemaErrors.WithLabelValues("dispatches")))
}

func TestUploadMissingFile(t *testing.T) {
	etl, st, _ := newETL(t, nil)
	_, err := etl.Upload(context.Background(), uploadPair()[:1])
	require.ErrorIs(t, err, ErrMissingFile)
	assert.False(t, st.Loaded())
}

func TestFetchLoadsRemoteExports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hubspot.csv":
			w.Write([]byte(leadsCSV))
		case "/disparos.csv":
			w.Write([]byte(dispatchesCSV))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(NewHTTPClient(time.Second), srv.URL+"/hubspot.csv", srv.URL+"/disparos.csv", utils.NewBackoff(time.Millisecond, 1), 0)
	etl, st, _ := newETL(t, f)
	ds, err := etl.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds.Leads, 3)
	assert.True(t, st.Loaded())
}

func TestFetchNotConfigured(t *testing.T) {
	etl, _, _ := newETL(t, nil)
	_, err := etl.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrFetchNotConfigured)
}
