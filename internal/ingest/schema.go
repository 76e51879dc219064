package ingest

import "fmt"

type Kind int

const (
	KindText Kind = iota
	KindDate
	KindNumber
)

type Column struct {
	Name     string
	Kind     Kind
	Required bool
}

// Schema describes an export by column position. Header text in the file is
// ignored; only the number of columns is checked.
type Schema struct {
	Name    string
	Columns []Column
}

var LeadSchema = Schema{
	Name: "leads",
	Columns: []Column{
		{Name: "id", Kind: KindText},
		{Name: "customer", Kind: KindText},
		{Name: "created_at", Kind: KindDate, Required: true},
		{Name: "cpf", Kind: KindText},
		{Name: "phone", Kind: KindText},
		{Name: "agreement_full", Kind: KindText},
		{Name: "channel", Kind: KindText},
		{Name: "campaign", Kind: KindText},
		{Name: "owner", Kind: KindText},
		{Name: "product", Kind: KindText},
		{Name: "team", Kind: KindText},
		{Name: "stage", Kind: KindText},
		{Name: "loss_reason", Kind: KindText},
		{Name: "paid_at", Kind: KindDate},
		{Name: "projected_commission", Kind: KindNumber},
		{Name: "paid_amount", Kind: KindNumber},
	},
}

var DispatchSchema = Schema{
	Name: "dispatches",
	Columns: []Column{
		{Name: "date", Kind: KindDate, Required: true},
		{Name: "agreement", Kind: KindText},
		{Name: "category", Kind: KindText},
		{Name: "quantity", Kind: KindNumber, Required: true},
		{Name: "channel", Kind: KindText},
		{Name: "spend", Kind: KindNumber},
		{Name: "mql", Kind: KindNumber},
		{Name: "paid", Kind: KindNumber},
		{Name: "revenue", Kind: KindNumber},
	},
}

// Index returns the position of the named column. It panics on unknown
// names: column names are compile-time constants of this package.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	panic(fmt.Sprintf("schema %s: unknown column %q", s.Name, name))
}

func (s Schema) checkWidth(file string, rowNum int, row []string) error {
	if len(row) != len(s.Columns) {
		return &SchemaError{
			File:   file,
			Row:    rowNum,
			Reason: fmt.Sprintf("expected %d columns for %s export, got %d", len(s.Columns), s.Name, len(row)),
		}
	}
	return nil
}

// row gives typed access to one record by column name.
type row struct {
	schema Schema
	file   string
	num    int
	cells  []string
}

func (r row) text(name string) string { return trimCell(r.cells[r.schema.Index(name)]) }

func (r row) optText(name string) *string {
	s := r.text(name)
	if s == "" {
		return nil
	}
	return &s
}

func (r row) fail(col, reason string, err error) error {
	return &SchemaError{File: r.file, Row: r.num, Column: col, Reason: reason, Err: err}
}
