package ingest

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AngelCh415/disparos-etl/internal/models"
)

// ano-mes-dia primero; barras como mes/dia con fallback a dia/mes
var leadDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"02/01/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006",
	"2/1/2006 15:04:05",
}

// dia primero (export en locale pt-BR); ISO sigue aceptado
var dispatchDateLayouts = []string{
	"02/01/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"2/1/2006 15:04:05",
	"02/01/06",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var errEmpty = errors.New("empty value")

func parseDate(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmpty
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return models.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseLeadDate parses a CRM date, year-month-day first, time of day discarded.
func ParseLeadDate(s string) (time.Time, error) { return parseDate(s, leadDateLayouts) }

// ParseDispatchDate parses a dispatch date day-first, time of day discarded.
func ParseDispatchDate(s string) (time.Time, error) { return parseDate(s, dispatchDateLayouts) }

var (
	brThousands = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)
	usThousands = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+$`)
)

// ParseDecimal parses a number that may carry a currency prefix and either
// decimal convention. When the last separator is a comma it is the decimal
// mark ("1.234,56"); otherwise the dot is. With brazilian set, a value made
// only of dot-grouped thousands ("1.000") is read as an integer; without it,
// comma-grouped thousands ("1,000") are.
func ParseDecimal(s string, brazilian bool) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(s)
	if s == "" {
		return 0, errEmpty
	}
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case !brazilian && usThousands.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case brazilian && brThousands.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

// ParseCount parses a non-negative integral count.
func ParseCount(s string, brazilian bool) (int, error) {
	f, err := ParseDecimal(s, brazilian)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return int(f), nil
}

func (r row) column(name string) Column { return r.schema.Columns[r.schema.Index(name)] }

// date parses the named date column. ok is false for an empty optional cell.
func (r row) date(name string, layouts []string) (t time.Time, ok bool, err error) {
	t, err = parseDate(r.text(name), layouts)
	if errors.Is(err, errEmpty) {
		if r.column(name).Required {
			return t, false, r.fail(name, "required date is empty", nil)
		}
		return t, false, nil
	}
	if err != nil {
		return t, false, r.fail(name, "malformed date", err)
	}
	return t, true, nil
}

func (r row) optDate(name string, layouts []string) (*time.Time, error) {
	t, ok, err := r.date(name, layouts)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

func (r row) number(name string, brazilian bool) (f float64, ok bool, err error) {
	f, err = ParseDecimal(r.text(name), brazilian)
	if errors.Is(err, errEmpty) {
		if r.column(name).Required {
			return 0, false, r.fail(name, "required number is empty", nil)
		}
		return 0, false, nil
	}
	if err != nil {
		return 0, false, r.fail(name, "malformed number", err)
	}
	return f, true, nil
}

func (r row) optNumber(name string, brazilian bool) (*float64, error) {
	f, ok, err := r.number(name, brazilian)
	if err != nil || !ok {
		return nil, err
	}
	return &f, nil
}

func (r row) count(name string, brazilian bool) (int, error) {
	n, err := ParseCount(r.text(name), brazilian)
	if errors.Is(err, errEmpty) {
		if r.column(name).Required {
			return 0, r.fail(name, "required count is empty", nil)
		}
		return 0, nil
	}
	if err != nil {
		return 0, r.fail(name, "malformed count", err)
	}
	return n, nil
}
