package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AngelCh415/disparos-etl/internal/models"
	"github.com/AngelCh415/disparos-etl/internal/store"
	"github.com/AngelCh415/disparos-etl/internal/telemetry"
)

// ETL loads an export pair into the session store.
type ETL struct {
	norm  *Normalizer
	fetch *Fetcher
	st    *store.MemoryStore
	tel   *telemetry.Metrics
	log   *slog.Logger
	now   func() time.Time
}

func NewETL(norm *Normalizer, fetch *Fetcher, st *store.MemoryStore, tel *telemetry.Metrics, log *slog.Logger) *ETL {
	if log == nil {
		log = slog.Default()
	}
	return &ETL{norm: norm, fetch: fetch, st: st, tel: tel, log: log, now: time.Now}
}

var ErrFetchNotConfigured = errors.New("remote exports not configured")

// Upload pairs the uploaded files by name, normalizes both and replaces the
// session dataset. Nothing is stored unless both files normalize cleanly.
func (e *ETL) Upload(ctx context.Context, files []NamedFile) (models.Dataset, error) {
	leads, dispatches, err := PairFiles(files)
	if err != nil {
		return models.Dataset{}, err
	}
	return e.load(ctx, leads, dispatches)
}

// Fetch downloads both exports from the configured URLs and loads them.
func (e *ETL) Fetch(ctx context.Context) (models.Dataset, error) {
	if e.fetch == nil || !e.fetch.Configured() {
		return models.Dataset{}, ErrFetchNotConfigured
	}
	start := time.Now()
	leads, dispatches, err := e.fetch.Fetch(ctx)
	e.tel.Observe("fetch", start, err)
	if err != nil {
		return models.Dataset{}, err
	}
	return e.load(ctx, leads, dispatches)
}

func (e *ETL) load(ctx context.Context, leadsFile, dispFile NamedFile) (models.Dataset, error) {
	ds, err := Load(ctx, e.norm, e.tel, leadsFile, dispFile)
	if err != nil {
		e.log.WarnContext(ctx, "dataset rejected", slog.String("err", err.Error()))
		return models.Dataset{}, err
	}
	ds.LoadedAt = e.now().UTC()
	prev := e.st.Replace(ds)
	if e.tel != nil {
		e.tel.DatasetLoaded.Set(float64(ds.LoadedAt.Unix()))
	}
	e.log.InfoContext(ctx, "dataset loaded",
		slog.String("id", ds.ID),
		slog.String("replaced", prev),
		slog.Int("leads", len(ds.Leads)),
		slog.Int("dispatches", len(ds.Dispatches)))
	return ds, nil
}

// Load normalizes an export pair into a new dataset without storing it.
// tel may be nil.
func Load(ctx context.Context, n *Normalizer, tel *telemetry.Metrics, leadsFile, dispFile NamedFile) (models.Dataset, error) {
	_, span := telemetry.Tracer().Start(ctx, "ingest.normalize")
	defer span.End()
	span.SetAttributes(attribute.String("leads.file", leadsFile.Name), attribute.String("dispatches.file", dispFile.Name))

	start := time.Now()
	leads, err := n.NormalizeLeads(leadsFile.Name, leadsFile.Reader())
	if err != nil {
		fail(tel, span, LeadSchema.Name, start, err)
		return models.Dataset{}, err
	}
	dispatches, err := n.NormalizeDispatches(dispFile.Name, dispFile.Reader())
	if err != nil {
		fail(tel, span, DispatchSchema.Name, start, err)
		return models.Dataset{}, err
	}
	if tel != nil {
		tel.Observe("normalize", start, nil)
		tel.RowsNormalized.WithLabelValues(LeadSchema.Name).Add(float64(len(leads)))
		tel.RowsNormalized.WithLabelValues(DispatchSchema.Name).Add(float64(len(dispatches)))
	}
	span.SetAttributes(attribute.Int("leads", len(leads)), attribute.Int("dispatches", len(dispatches)))
	return models.Dataset{
		ID:         uuid.NewString(),
		LoadedAt:   time.Now().UTC(),
		LeadsFile:  leadsFile.Name,
		DispFile:   dispFile.Name,
		Leads:      leads,
		Dispatches: dispatches,
	}, nil
}

func fail(tel *telemetry.Metrics, span trace.Span, source string, start time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if tel == nil {
		return
	}
	tel.Observe("normalize", start, err)
	var se *SchemaError
	if errors.As(err, &se) {
		tel.SchemaErrors.WithLabelValues(source).Inc()
	}
}
