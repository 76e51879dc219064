package ingest

import (
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/AngelCh415/disparos-etl/internal/classify"
	"github.com/AngelCh415/disparos-etl/internal/models"
)

// DefaultExcludedChannels are lead origins that never count as generated leads.
var DefaultExcludedChannels = []string{"HYPERFLOW", "Tallos", "DISPARO", "Duplicação Negócio App"}

// DefaultChannelAliases rewrites channel names before any grouping.
var DefaultChannelAliases = map[string]string{"Whatsapp Grow": "RCS"}

type Options struct {
	// ExcludedChannels drops leads whose channel matches exactly.
	ExcludedChannels []string
	// TeamContains, when set, keeps only leads whose team contains it
	// (case-insensitive). Leads without a team are dropped.
	TeamContains string
	// MinDate, when set, keeps only rows dated strictly after it.
	MinDate *time.Time
	// ChannelAliases maps exact channel values to their replacement.
	ChannelAliases map[string]string
}

func DefaultOptions() Options {
	return Options{
		ExcludedChannels: append([]string(nil), DefaultExcludedChannels...),
		ChannelAliases:   DefaultChannelAliases,
	}
}

type Normalizer struct {
	cls      *classify.Classifier
	opts     Options
	excluded map[string]struct{}
	log      *slog.Logger
}

func NewNormalizer(cls *classify.Classifier, opts Options, log *slog.Logger) *Normalizer {
	if cls == nil {
		cls = classify.Default()
	}
	if log == nil {
		log = slog.Default()
	}
	ex := make(map[string]struct{}, len(opts.ExcludedChannels))
	for _, c := range opts.ExcludedChannels {
		ex[c] = struct{}{}
	}
	if opts.MinDate != nil {
		d := models.Day(*opts.MinDate)
		opts.MinDate = &d
	}
	return &Normalizer{cls: cls, opts: opts, excluded: ex, log: log}
}

// NormalizeLeads reads the CRM export. Any malformed row fails the whole file.
func (n *Normalizer) NormalizeLeads(file string, r io.Reader) ([]models.LeadRecord, error) {
	_, rows, err := readTable(file, r)
	if err != nil {
		return nil, err
	}
	out := make([]models.LeadRecord, 0, len(rows))
	var excluded, offTeam, beforeMin int
	for i, cells := range rows {
		rowNum := i + 2
		if err := LeadSchema.checkWidth(file, rowNum, cells); err != nil {
			return nil, err
		}
		rw := row{schema: LeadSchema, file: file, num: rowNum, cells: cells}

		channel := rw.text("channel")
		if _, ok := n.excluded[channel]; ok {
			excluded++
			continue
		}
		team := rw.optText("team")
		if n.opts.TeamContains != "" && (team == nil || !containsFold(*team, n.opts.TeamContains)) {
			offTeam++
			continue
		}

		created, _, err := rw.date("created_at", leadDateLayouts)
		if err != nil {
			return nil, err
		}
		if n.opts.MinDate != nil && !created.After(*n.opts.MinDate) {
			beforeMin++
			continue
		}
		paidAt, err := rw.optDate("paid_at", leadDateLayouts)
		if err != nil {
			return nil, err
		}
		commission, err := rw.optNumber("projected_commission", false)
		if err != nil {
			return nil, err
		}
		paid, err := rw.optNumber("paid_amount", false)
		if err != nil {
			return nil, err
		}

		campaign := rw.text("campaign")
		product := rw.optText("product")
		out = append(out, models.LeadRecord{
			ID:                  rw.text("id"),
			Customer:            rw.text("customer"),
			CreatedAt:           created,
			CPF:                 rw.text("cpf"),
			Phone:               rw.text("phone"),
			AgreementFull:       rw.text("agreement_full"),
			Channel:             n.alias(channel),
			Campaign:            campaign,
			Owner:               rw.text("owner"),
			Product:             product,
			Team:                team,
			Stage:               rw.text("stage"),
			LossReason:          rw.optText("loss_reason"),
			PaidAt:              paidAt,
			ProjectedCommission: commission,
			PaidAmount:          paid,
			Agreement:           DeriveAgreement(campaign),
			Category:            n.cls.Classify(product),
		})
	}
	n.log.Info("leads normalized",
		slog.String("file", file),
		slog.Int("rows_in", len(rows)),
		slog.Int("rows_out", len(out)),
		slog.Int("excluded_channel", excluded),
		slog.Int("excluded_team", offTeam),
		slog.Int("before_min_date", beforeMin))
	return out, nil
}

// NormalizeDispatches reads the campaign-dispatch export (pt-BR locale).
func (n *Normalizer) NormalizeDispatches(file string, r io.Reader) ([]models.DispatchRecord, error) {
	_, rows, err := readTable(file, r)
	if err != nil {
		return nil, err
	}
	out := make([]models.DispatchRecord, 0, len(rows))
	beforeMin, unknownCat := 0, 0
	for i, cells := range rows {
		rowNum := i + 2
		if err := DispatchSchema.checkWidth(file, rowNum, cells); err != nil {
			return nil, err
		}
		rw := row{schema: DispatchSchema, file: file, num: rowNum, cells: cells}

		date, _, err := rw.date("date", dispatchDateLayouts)
		if err != nil {
			return nil, err
		}
		qty, err := rw.count("quantity", true)
		if err != nil {
			return nil, err
		}
		spend, _, err := rw.number("spend", true)
		if err != nil {
			return nil, err
		}
		mql, err := rw.count("mql", true)
		if err != nil {
			return nil, err
		}
		paidCount, err := rw.count("paid", true)
		if err != nil {
			return nil, err
		}
		revenue, _, err := rw.number("revenue", true)
		if err != nil {
			return nil, err
		}
		if n.opts.MinDate != nil && !date.After(*n.opts.MinDate) {
			beforeMin++
			continue
		}
		cat, known := CanonicalCategory(rw.text("category"))
		if !known && cat != "" {
			unknownCat++
		}
		out = append(out, models.DispatchRecord{
			Date:      date,
			Agreement: StripSpaces(rw.text("agreement")),
			Category:  cat,
			Quantity:  qty,
			Channel:   n.alias(rw.text("channel")),
			Spend:     spend,
			MQL:       mql,
			Paid:      paidCount,
			Revenue:   revenue,
		})
	}
	n.log.Info("dispatches normalized",
		slog.String("file", file),
		slog.Int("rows_in", len(rows)),
		slog.Int("rows_out", len(out)),
		slog.Int("before_min_date", beforeMin),
		slog.Int("unknown_category", unknownCat))
	if unknownCat > 0 {
		n.log.Warn("dispatch categories outside the known set never join leads",
			slog.String("file", file),
			slog.Int("rows", unknownCat))
	}
	return out, nil
}

var categoryByFold = func() map[string]models.Category {
	m := make(map[string]models.Category, len(models.Categories))
	for _, c := range models.Categories {
		m[foldCategory(string(c))] = c
	}
	return m
}()

// CanonicalCategory maps a dispatch category cell onto the known set,
// ignoring case, accents and repeated spaces. Unknown values come back
// trimmed with known=false.
func CanonicalCategory(s string) (c models.Category, known bool) {
	s = strings.TrimSpace(s)
	if c, ok := categoryByFold[foldCategory(s)]; ok {
		return c, true
	}
	return models.Category(s), false
}

func foldCategory(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.Join(strings.Fields(out), " "))
}

func (n *Normalizer) alias(channel string) string {
	if to, ok := n.opts.ChannelAliases[channel]; ok {
		return to
	}
	return channel
}

// DeriveAgreement returns the first "_" segment of a campaign name, upper-cased.
func DeriveAgreement(campaign string) string {
	head, _, _ := strings.Cut(campaign, "_")
	return strings.ToUpper(head)
}

// StripSpaces removes every whitespace rune, inner ones included.
func StripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
