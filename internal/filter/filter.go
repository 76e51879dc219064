// Package filter restricts a normalized dataset to the user's selection.
package filter

import (
	"sort"
	"time"

	"github.com/AngelCh415/disparos-etl/internal/models"
)

const All = "all"

// Criteria is the user's selection. Nil bounds and empty selectors do not
// restrict anything. Agreements, categories and dates apply to leads and
// dispatches alike; stages only exist on leads.
type Criteria struct {
	From       *time.Time
	To         *time.Time
	Agreements []string
	Categories []string
	Stages     []string
}

type set map[string]struct{}

func (s set) has(v string) bool {
	if s == nil {
		return true
	}
	_, ok := s[v]
	return ok
}

// nil = sin restricción
func selection(sel []string, present func() []string) set {
	if len(sel) == 0 {
		return nil
	}
	out := make(set, len(sel))
	for _, v := range sel {
		if v == All {
			for _, p := range present() {
				out[p] = struct{}{}
			}
			continue
		}
		out[v] = struct{}{}
	}
	return out
}

// Apply returns a new dataset holding only the rows matching c. The input is
// never modified.
func Apply(ds models.Dataset, c Criteria) models.Dataset {
	var from, to *time.Time
	if c.From != nil {
		d := models.Day(*c.From)
		from = &d
	}
	if c.To != nil {
		d := models.Day(*c.To)
		to = &d
	}
	inRange := func(t time.Time) bool {
		if from != nil && t.Before(*from) {
			return false
		}
		if to != nil && t.After(*to) {
			return false
		}
		return true
	}

	agreements := selection(c.Agreements, func() []string { return distinctAgreements(ds) })
	categories := selection(c.Categories, func() []string { return distinctCategories(ds) })
	stages := selection(c.Stages, func() []string { return distinct(ds.Leads, func(l models.LeadRecord) string { return l.Stage }) })

	out := models.Dataset{
		ID:         ds.ID,
		LoadedAt:   ds.LoadedAt,
		LeadsFile:  ds.LeadsFile,
		DispFile:   ds.DispFile,
		Leads:      make([]models.LeadRecord, 0, len(ds.Leads)),
		Dispatches: make([]models.DispatchRecord, 0, len(ds.Dispatches)),
	}
	for _, l := range ds.Leads {
		if inRange(l.CreatedAt) && agreements.has(l.Agreement) && categories.has(string(l.Category)) && stages.has(l.Stage) {
			out.Leads = append(out.Leads, l)
		}
	}
	for _, d := range ds.Dispatches {
		if inRange(d.Date) && agreements.has(d.Agreement) && categories.has(string(d.Category)) {
			out.Dispatches = append(out.Dispatches, d)
		}
	}
	return out
}

type Options struct {
	MinDate    *time.Time `json:"min_date"`
	MaxDate    *time.Time `json:"max_date"`
	Agreements []string   `json:"agreements"`
	Categories []string   `json:"categories"`
	Stages     []string   `json:"stages"`
	Channels   []string   `json:"channels"`
}

// rango de fechas por los disparos
func OptionsFor(ds models.Dataset) Options {
	var o Options
	for _, d := range ds.Dispatches {
		if o.MinDate == nil || d.Date.Before(*o.MinDate) {
			t := d.Date
			o.MinDate = &t
		}
		if o.MaxDate == nil || d.Date.After(*o.MaxDate) {
			t := d.Date
			o.MaxDate = &t
		}
	}
	o.Agreements = nonEmpty(distinct(ds.Dispatches, func(d models.DispatchRecord) string { return d.Agreement }))
	o.Categories = nonEmpty(distinct(ds.Dispatches, func(d models.DispatchRecord) string { return string(d.Category) }))
	o.Stages = SortStages(nonEmpty(distinct(ds.Leads, func(l models.LeadRecord) string { return l.Stage })))

	ch := append(
		distinct(ds.Leads, func(l models.LeadRecord) string { return l.Channel }),
		distinct(ds.Dispatches, func(d models.DispatchRecord) string { return d.Channel })...,
	)
	o.Channels = nonEmpty(dedupSorted(ch))
	return o
}

// SortStages orders stages canonically (LEAD, NEGOCIAÇÃO, CONTRATAÇÃO, PAGO,
// PERDA); unknown stages follow in alphabetical order.
func SortStages(stages []string) []string {
	out := append([]string(nil), stages...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := StageRank(out[i]), StageRank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}

func StageRank(stage string) int {
	for i, s := range models.Stages {
		if s == stage {
			return i
		}
	}
	return len(models.Stages)
}

func distinctAgreements(ds models.Dataset) []string {
	return dedupSorted(append(
		distinct(ds.Leads, func(l models.LeadRecord) string { return l.Agreement }),
		distinct(ds.Dispatches, func(d models.DispatchRecord) string { return d.Agreement })...,
	))
}

func distinctCategories(ds models.Dataset) []string {
	return dedupSorted(append(
		distinct(ds.Leads, func(l models.LeadRecord) string { return string(l.Category) }),
		distinct(ds.Dispatches, func(d models.DispatchRecord) string { return string(d.Category) })...,
	))
}

// incluye el valor vacío
func distinct[T any](rows []T, key func(T) string) []string {
	vals := make([]string, 0)
	seen := map[string]struct{}{}
	for _, r := range rows {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		vals = append(vals, k)
	}
	sort.Strings(vals)
	return vals
}

func nonEmpty(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dedupSorted(vals []string) []string {
	sort.Strings(vals)
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}
