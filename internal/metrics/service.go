package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AngelCh415/disparos-etl/internal/filter"
	"github.com/AngelCh415/disparos-etl/internal/models"
	"github.com/AngelCh415/disparos-etl/internal/store"
	"github.com/AngelCh415/disparos-etl/internal/telemetry"
)

var ErrInvalidQuery = errors.New("invalid query")

// QueryError lists every invalid query parameter.
type QueryError struct {
	Problems []string
}

func (e *QueryError) Error() string {
	return "invalid query: " + strings.Join(e.Problems, "; ")
}

func (e *QueryError) Is(target error) bool { return target == ErrInvalidQuery }

type Query struct {
	From       string   `validate:"omitempty,datetime=2006-01-02"`
	To         string   `validate:"omitempty,datetime=2006-01-02"`
	Agreements []string `validate:"dive,required"`
	Categories []string `validate:"dive,required"`
	Stages     []string `validate:"dive,required"`
	Views      []string `validate:"dive,oneof=daily_channel_volume dispatch_lead_join proportional_comparison stage_channel_distribution agreement_channel_volume"`
}

var validate = validator.New()

// ParseQuery reads from, to, agreement, category, stage and view. List
// parameters may repeat and may hold comma separated values.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		From:       strings.TrimSpace(v.Get("from")),
		To:         strings.TrimSpace(v.Get("to")),
		Agreements: list(v, "agreement"),
		Categories: list(v, "category"),
		Stages:     list(v, "stage"),
		Views:      list(v, "view"),
	}
	if err := validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			qe := &QueryError{}
			for _, fe := range verrs {
				qe.Problems = append(qe.Problems, fmt.Sprintf("%s: failed %s (%v)", strings.ToLower(fe.Field()), fe.Tag(), fe.Value()))
			}
			return Query{}, qe
		}
		return Query{}, err
	}
	return q, nil
}

func list(v url.Values, key string) []string {
	var out []string
	for _, raw := range v[key] {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (q Query) Criteria() filter.Criteria {
	c := filter.Criteria{
		Agreements: q.Agreements,
		Categories: q.Categories,
		Stages:     q.Stages,
	}
	if t, err := time.Parse(models.DateLayout, q.From); err == nil {
		c.From = &t
	}
	if t, err := time.Parse(models.DateLayout, q.To); err == nil {
		c.To = &t
	}
	return c
}

func (q Query) ViewNames() []models.ViewName {
	out := make([]models.ViewName, 0, len(q.Views))
	for _, v := range q.Views {
		out = append(out, models.ViewName(v))
	}
	return out
}

func Run(ds models.Dataset, q Query) models.Report {
	return Build(filter.Apply(ds, q.Criteria()), q.ViewNames())
}

type Service struct {
	st  *store.MemoryStore
	tel *telemetry.Metrics
	log *slog.Logger
}

func NewService(st *store.MemoryStore, tel *telemetry.Metrics, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{st: st, tel: tel, log: log}
}

// Report runs filter and aggregation over the session dataset.
func (s *Service) Report(ctx context.Context, q Query) (models.Report, error) {
	ds, err := s.st.Current()
	if err != nil {
		return models.Report{}, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, "metrics.report")
	defer span.End()
	span.SetAttributes(attribute.String("dataset.id", ds.ID), attribute.StringSlice("views", q.Views))

	start := time.Now()
	_, fspan := telemetry.Tracer().Start(ctx, "filter.apply")
	filtered := filter.Apply(ds, q.Criteria())
	fspan.SetAttributes(attribute.Int("leads", len(filtered.Leads)), attribute.Int("dispatches", len(filtered.Dispatches)))
	fspan.End()
	s.tel.Observe("filter", start, nil)

	start = time.Now()
	_, aspan := telemetry.Tracer().Start(ctx, "metrics.build")
	rep := Build(filtered, q.ViewNames())
	aspan.End()
	s.tel.Observe("aggregate", start, nil)
	s.recordRows(rep)

	span.SetStatus(codes.Ok, "")
	s.log.DebugContext(ctx, "report built",
		slog.String("dataset_id", ds.ID),
		slog.Int("leads", len(filtered.Leads)),
		slog.Int("dispatches", len(filtered.Dispatches)),
		slog.Int("join_rows", len(rep.DispatchJoin)))
	return rep, nil
}

type DatasetInfo struct {
	Dataset models.DatasetSummary `json:"dataset"`
	Options filter.Options        `json:"options"`
}

func (s *Service) Info(ctx context.Context) (DatasetInfo, error) {
	ds, err := s.st.Current()
	if err != nil {
		return DatasetInfo{}, err
	}
	return DatasetInfo{Dataset: ds.Summary(), Options: filter.OptionsFor(ds)}, nil
}

func (s *Service) recordRows(rep models.Report) {
	if s.tel == nil {
		return
	}
	set := func(v models.ViewName, n int, selected bool) {
		if selected {
			s.tel.ViewRows.WithLabelValues(string(v)).Set(float64(n))
		}
	}
	set(models.ViewDailyChannel, len(rep.DailyChannel), rep.DailyChannel != nil)
	set(models.ViewDispatchJoin, len(rep.DispatchJoin), rep.DispatchJoin != nil)
	set(models.ViewProportional, len(rep.Proportional), rep.Proportional != nil)
	set(models.ViewStageChannel, len(rep.StageChannel), rep.StageChannel != nil)
	set(models.ViewAgreementVolume, len(rep.AgreementChannel), rep.AgreementChannel != nil)
}
