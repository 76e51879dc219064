package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readTable reads a whole CSV export into memory. Exports without a single
// valid multi-byte UTF-8 sequence are decoded as Windows-1252 (Excel pt-BR
// default); valid UTF-8 mixed with invalid bytes is rejected. The delimiter is a
// comma unless the header line has more semicolons than commas.
// The header row is returned separately and otherwise ignored.
func readTable(file string, r io.Reader) (header []string, rows [][]string, err error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", file, err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		if line, mixed := mixedEncoding(raw); mixed {
			return nil, nil, &SchemaError{File: file, Row: line, Reason: "mixed text encoding"}
		}
		raw, _, err = transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
		if err != nil {
			return nil, nil, &SchemaError{File: file, Reason: "undecodable text encoding", Err: err}
		}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, &SchemaError{File: file, Reason: "file is empty"}
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = detectDelimiter(raw)
	cr.FieldsPerRecord = -1 // el ancho lo valida el Schema
	cr.LazyQuotes = true

	all, err := cr.ReadAll()
	if err != nil {
		se := &SchemaError{File: file, Reason: "malformed csv", Err: err}
		if pe, ok := err.(*csv.ParseError); ok {
			se.Row = pe.Line
		}
		return nil, nil, se
	}
	if len(all) == 0 {
		return nil, nil, &SchemaError{File: file, Reason: "file is empty"}
	}
	return all[0], all[1:], nil
}

// mixedEncoding reports whether raw holds valid multi-byte UTF-8 together
// with invalid bytes, and the 1-based line of the first invalid byte.
func mixedEncoding(raw []byte) (line int, mixed bool) {
	multi := false
	first := -1
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			if first < 0 {
				first = i
			}
		case size > 1:
			multi = true
		}
		i += size
	}
	if first < 0 || !multi {
		return 0, false
	}
	return bytes.Count(raw[:first], []byte{'\n'}) + 1, true
}

func detectDelimiter(raw []byte) rune {
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func trimCell(s string) string {
	return strings.TrimSpace(s)
}
