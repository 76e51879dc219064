package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaError aborts the load of a whole file: wrong column count or an
// unparseable required field.
type SchemaError struct {
	File   string
	Row    int // 1-based, header is row 1; 0 when not row specific
	Column string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema error in %s", e.File)
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return e.Err }

var ErrMissingFile = errors.New("missing input file")

// MissingFileError means the upload does not contain both exports.
type MissingFileError struct {
	Received []string
	Missing  []string
	Reason   string
}

func (e *MissingFileError) Error() string {
	msg := "expected one lead export (name containing \"hubspot\") and one dispatch export (name containing \"disparos\")"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *MissingFileError) Is(target error) bool { return target == ErrMissingFile }
