// Package export renders a report as an XLSX workbook, one sheet per
// selected view.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/AngelCh415/disparos-etl/internal/models"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type sheet struct {
	name   models.ViewName
	header []any
	rows   [][]any
}

// WriteXLSX writes the selected views of rep to w. Null ratios become empty
// cells.
func WriteXLSX(w io.Writer, rep models.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := sheetsFor(rep)
	for i, s := range sheets {
		name := string(s.name)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("new sheet %s: %w", name, err)
		}
		if err := f.SetSheetRow(name, "A1", &s.header); err != nil {
			return fmt.Errorf("write header %s: %w", name, err)
		}
		for j, r := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &r); err != nil {
				return fmt.Errorf("write %s row %d: %w", name, j+2, err)
			}
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

func sheetsFor(rep models.Report) []sheet {
	var out []sheet
	if rep.DailyChannel != nil {
		s := sheet{name: models.ViewDailyChannel, header: []any{"date", "channel", "count"}}
		for _, r := range rep.DailyChannel {
			s.rows = append(s.rows, []any{r.Date, r.Channel, r.Count})
		}
		out = append(out, s)
	}
	if rep.DispatchJoin != nil {
		s := sheet{name: models.ViewDispatchJoin, header: []any{"agreement", "category", "quantity", "leads", "ratio"}}
		for _, r := range rep.DispatchJoin {
			s.rows = append(s.rows, []any{r.Agreement, string(r.Category), r.Quantity, r.Leads, cellFloat(r.Ratio)})
		}
		out = append(out, s)
	}
	if rep.Proportional != nil {
		s := sheet{name: models.ViewProportional, header: []any{"agreement", "category", "quantity", "leads", "ratio", "lead_share", "dispatch_share"}}
		for _, a := range rep.Proportional {
			for _, c := range a.Categories {
				s.rows = append(s.rows, []any{a.Agreement, string(c.Category), c.Quantity, c.Leads, cellFloat(c.Ratio), cellFloat(c.LeadShare), cellFloat(c.DispatchShare)})
			}
		}
		out = append(out, s)
	}
	if rep.StageChannel != nil {
		s := sheet{name: models.ViewStageChannel, header: []any{"stage", "channel", "count"}}
		for _, r := range rep.StageChannel {
			s.rows = append(s.rows, []any{r.Stage, r.Channel, r.Count})
		}
		out = append(out, s)
	}
	if rep.AgreementChannel != nil {
		s := sheet{name: models.ViewAgreementVolume, header: []any{"agreement", "channel", "count"}}
		for _, r := range rep.AgreementChannel {
			s.rows = append(s.rows, []any{r.Agreement, r.Channel, r.Count})
		}
		out = append(out, s)
	}
	return out
}

func cellFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
