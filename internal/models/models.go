package models

import "time"

type Category string

const (
	CategoryNovo        Category = "NOVO"
	CategoryAmbosCartao Category = "AMBOS CARTÕES"
	CategoryCartao      Category = "CARTÃO"
	CategoryBeneficio   Category = "BENEFICIO"
	CategoryNQB         Category = "NQB"
	CategoryOutros      Category = "OUTROS"
)

// Categories lists every category in classification priority order, OUTROS last.
var Categories = []Category{
	CategoryNovo,
	CategoryAmbosCartao,
	CategoryCartao,
	CategoryBeneficio,
	CategoryNQB,
	CategoryOutros,
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Funnel stages in display order.
var Stages = []string{"LEAD", "NEGOCIAÇÃO", "CONTRATAÇÃO", "PAGO", "PERDA"}

type LeadRecord struct {
	ID                  string
	Customer            string
	CreatedAt           time.Time // dia calendario, UTC
	CPF                 string
	Phone               string
	AgreementFull       string
	Channel             string
	Campaign            string
	Owner               string
	Product             *string
	Team                *string
	Stage               string
	LossReason          *string
	PaidAt              *time.Time
	ProjectedCommission *float64
	PaidAmount          *float64

	// derivados
	Agreement string
	Category  Category
}

type DispatchRecord struct {
	Date      time.Time
	Agreement string
	Category  Category
	Quantity  int
	Channel   string
	Spend     float64
	MQL       int
	Paid      int
	Revenue   float64
}

// Dataset is the normalized pair of exports for one session. It is owned by
// the caller and never mutated once built.
type Dataset struct {
	ID         string
	LoadedAt   time.Time
	LeadsFile  string
	DispFile   string
	Leads      []LeadRecord
	Dispatches []DispatchRecord
}

type DatasetSummary struct {
	ID         string    `json:"id"`
	LoadedAt   time.Time `json:"loaded_at"`
	LeadsFile  string    `json:"leads_file"`
	DispFile   string    `json:"dispatches_file"`
	Leads      int       `json:"leads"`
	Dispatches int       `json:"dispatches"`
}

func (d Dataset) Summary() DatasetSummary {
	return DatasetSummary{
		ID:         d.ID,
		LoadedAt:   d.LoadedAt,
		LeadsFile:  d.LeadsFile,
		DispFile:   d.DispFile,
		Leads:      len(d.Leads),
		Dispatches: len(d.Dispatches),
	}
}

// Day truncates t to its calendar date at UTC midnight, keeping the wall date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const DateLayout = "2006-01-02"
