package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in        string
		brazilian bool
		want      float64
	}{
		{"12", false, 12},
		{"12.5", false, 12.5},
		{"1,234.56", false, 1234.56},
		{"1.234,56", false, 1234.56},
		{"R$ 1.234,56", true, 1234.56},
		{"R$1.000", true, 1000},
		{"1.000", true, 1000},
		{"1.000", false, 1},
		{"1.000.000", true, 1000000},
		{"0,5", true, 0.5},
		{"-3,25", true, -3.25},
		{"1,000", false, 1000},
		{"12,345,678", false, 12345678},
		{"0,5", false, 0.5},
		{"1,5", false, 1.5},
		{"1 234,00", true, 1234},
	}
	for _, c := range cases {
		got, err := ParseDecimal(c.in, c.brazilian)
		require.NoError(t, err, c.in)
		assert.InDelta(t, c.want, got, 1e-9, c.in)
	}
}

func TestParseDecimalErrors(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "NaN", "Inf", "1,2,3.4.5x"} {
		_, err := ParseDecimal(in, true)
		assert.Error(t, err, in)
	}
}

func TestParseCount(t *testing.T) {
	n, err := ParseCount("1.500", true)
	require.NoError(t, err)
	assert.Equal(t, 1500, n)

	_, err = ParseCount("2,5", true)
	assert.Error(t, err)
	_, err = ParseCount("-1", true)
	assert.Error(t, err)
}

func TestParseLeadDate(t *testing.T) {
	cases := map[string]string{
		"2025-03-01":                "2025-03-01",
		"2025-03-01 23:59:59":       "2025-03-01",
		"2025-03-01T08:00:00Z":      "2025-03-01",
		"2025-03-01T08:00:00-03:00": "2025-03-01",
		"03/01/2025":                "2025-03-01",
		"3/1/2025":                  "2025-03-01",
		"25/03/2025":                "2025-03-25",
	}
	for in, want := range cases {
		got, err := ParseLeadDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Format("2006-01-02"), in)
	}
}

func TestParseDispatchDateIsDayFirst(t *testing.T) {
	cases := map[string]string{
		"03/01/2025":          "2025-01-03",
		"25/03/2025":          "2025-03-25",
		"25/03/2025 10:00:00": "2025-03-25",
		"2/1/2025":            "2025-01-02",
		"2025-03-25":          "2025-03-25",
	}
	for in, want := range cases {
		got, err := ParseDispatchDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Format("2006-01-02"), in)
	}
}

func TestParseDateErrors(t *testing.T) {
	_, err := ParseLeadDate("ontem")
	assert.Error(t, err)
	_, err = ParseDispatchDate("13/13/2025")
	assert.Error(t, err)
	_, err = ParseDispatchDate("")
	assert.ErrorIs(t, err, errEmpty)
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ';', detectDelimiter([]byte("a;b;c\n1,5;2;3")))
	assert.Equal(t, ',', detectDelimiter([]byte("a,b,c\n1;2;3")))
	assert.Equal(t, ',', detectDelimiter([]byte("single")))
}
