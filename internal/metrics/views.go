package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/AngelCh415/disparos-etl/internal/filter"
	"github.com/AngelCh415/disparos-etl/internal/models"
)

// llaves vacías no forman grupo; orden determinista

type dayChannelKey struct {
	Date    time.Time
	Channel string
}

func DailyChannelVolume(leads []models.LeadRecord) []models.DailyChannelRow {
	counts := map[dayChannelKey]int{}
	for _, l := range leads {
		if l.Channel == "" {
			continue
		}
		counts[dayChannelKey{Date: models.Day(l.CreatedAt), Channel: l.Channel}]++
	}
	keys := make([]dayChannelKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].Date.Equal(keys[j].Date) {
			return keys[i].Date.Before(keys[j].Date)
		}
		return keys[i].Channel < keys[j].Channel
	})
	out := make([]models.DailyChannelRow, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.DailyChannelRow{Date: k.Date.Format(models.DateLayout), Channel: k.Channel, Count: counts[k]})
	}
	return out
}

type JoinKey struct {
	Date      time.Time
	Agreement string
	Category  models.Category
	Channel   string
}

func (k JoinKey) complete() bool {
	return k.Agreement != "" && k.Category != "" && k.Channel != ""
}

type pairKey struct {
	Agreement string
	Category  models.Category
}

// DispatchLeadJoin counts leads per join key, inner-joins them with every
// dispatch row carrying the same key, sums quantity and leads per
// (agreement, category) and ranks the groups by ratio = leads/quantity*100.
// Groups with zero dispatched quantity get a nil ratio and sort last; ties
// keep the (agreement, category) order.
func DispatchLeadJoin(leads []models.LeadRecord, dispatches []models.DispatchRecord) []models.JoinRow {
	leadCounts := map[JoinKey]int{}
	for _, l := range leads {
		k := JoinKey{Date: models.Day(l.CreatedAt), Agreement: l.Agreement, Category: l.Category, Channel: l.Channel}
		if !k.complete() {
			continue
		}
		leadCounts[k]++
	}

	type sums struct{ quantity, leads int }
	groups := map[pairKey]*sums{}
	for _, d := range dispatches {
		k := JoinKey{Date: models.Day(d.Date), Agreement: d.Agreement, Category: d.Category, Channel: d.Channel}
		n, ok := leadCounts[k]
		if !ok {
			continue
		}
		pk := pairKey{Agreement: k.Agreement, Category: k.Category}
		g, ok := groups[pk]
		if !ok {
			g = &sums{}
			groups[pk] = g
		}
		// un renglón unido por cada disparo: los leads se suman por disparo
		g.quantity += d.Quantity
		g.leads += n
	}

	keys := make([]pairKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Agreement != keys[j].Agreement {
			return keys[i].Agreement < keys[j].Agreement
		}
		return keys[i].Category < keys[j].Category
	})

	out := make([]models.JoinRow, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		out = append(out, models.JoinRow{
			Agreement: k.Agreement,
			Category:  k.Category,
			Quantity:  g.quantity,
			Leads:     g.leads,
			Ratio:     Percent(g.leads, g.quantity),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Ratio, out[j].Ratio
		switch {
		case ri == nil:
			return false
		case rj == nil:
			return true
		}
		return *ri > *rj
	})
	return out
}

// ProportionalComparison regroups the join table per agreement for
// side-by-side comparison of categories. Agreements keep the order of their
// best ranked row; categories keep the ranking order. Shares are percentages
// of the agreement totals.
func ProportionalComparison(join []models.JoinRow) []models.AgreementComparison {
	idx := map[string]int{}
	out := []models.AgreementComparison{}
	for _, r := range join {
		i, ok := idx[r.Agreement]
		if !ok {
			i = len(out)
			idx[r.Agreement] = i
			out = append(out, models.AgreementComparison{Agreement: r.Agreement})
		}
		out[i].Quantity += r.Quantity
		out[i].Leads += r.Leads
		out[i].Categories = append(out[i].Categories, models.CategoryShare{
			Category: r.Category,
			Quantity: r.Quantity,
			Leads:    r.Leads,
			Ratio:    r.Ratio,
		})
	}
	for i := range out {
		a := &out[i]
		for j := range a.Categories {
			c := &a.Categories[j]
			c.LeadShare = Percent(c.Leads, a.Leads)
			c.DispatchShare = Percent(c.Quantity, a.Quantity)
		}
	}
	return out
}

type stageChannelKey struct {
	Stage   string
	Channel string
}

func StageChannelDistribution(leads []models.LeadRecord) []models.StageChannelRow {
	counts := map[stageChannelKey]int{}
	for _, l := range leads {
		if l.Stage == "" || l.Channel == "" {
			continue
		}
		counts[stageChannelKey{Stage: l.Stage, Channel: l.Channel}]++
	}
	keys := make([]stageChannelKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := filter.StageRank(keys[i].Stage), filter.StageRank(keys[j].Stage)
		if ri != rj {
			return ri < rj
		}
		if keys[i].Stage != keys[j].Stage {
			return keys[i].Stage < keys[j].Stage
		}
		return keys[i].Channel < keys[j].Channel
	})
	out := make([]models.StageChannelRow, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.StageChannelRow{Stage: k.Stage, Channel: k.Channel, Count: counts[k]})
	}
	return out
}

type agreementChannelKey struct {
	Agreement string
	Channel   string
}

func AgreementChannelVolume(leads []models.LeadRecord) []models.AgreementChannelRow {
	counts := map[agreementChannelKey]int{}
	for _, l := range leads {
		if l.Agreement == "" || l.Channel == "" {
			continue
		}
		counts[agreementChannelKey{Agreement: l.Agreement, Channel: l.Channel}]++
	}
	keys := make([]agreementChannelKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Agreement != keys[j].Agreement {
			return keys[i].Agreement < keys[j].Agreement
		}
		return keys[i].Channel < keys[j].Channel
	})
	out := make([]models.AgreementChannelRow, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.AgreementChannelRow{Agreement: k.Agreement, Channel: k.Channel, Count: counts[k]})
	}
	return out
}

// sin selección = todas las vistas
func Build(ds models.Dataset, views []models.ViewName) models.Report {
	want := map[models.ViewName]bool{}
	for _, v := range views {
		want[v] = true
	}
	all := len(want) == 0
	rep := models.Report{DatasetID: ds.ID}

	if all || want[models.ViewDailyChannel] {
		rep.DailyChannel = DailyChannelVolume(ds.Leads)
	}
	if all || want[models.ViewDispatchJoin] || want[models.ViewProportional] {
		join := DispatchLeadJoin(ds.Leads, ds.Dispatches)
		if all || want[models.ViewDispatchJoin] {
			rep.DispatchJoin = join
		}
		if all || want[models.ViewProportional] {
			rep.Proportional = ProportionalComparison(join)
		}
	}
	if all || want[models.ViewStageChannel] {
		rep.StageChannel = StageChannelDistribution(ds.Leads)
	}
	if all || want[models.ViewAgreementVolume] {
		rep.AgreementChannel = AgreementChannelVolume(ds.Leads)
	}
	return rep
}

// nil cuando total es 0
func Percent(part, total int) *float64 {
	if total == 0 {
		return nil
	}
	v := round2(float64(part) / float64(total) * 100)
	return &v
}

// redondeo half away from zero
func round2(f float64) float64 { return math.Round(f*100) / 100 }
