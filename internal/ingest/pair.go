package ingest

import (
	"bytes"
	"io"
	"strings"
)

const (
	leadsPattern      = "hubspot"
	dispatchesPattern = "disparos"
)

// NamedFile is an uploaded export held in memory.
type NamedFile struct {
	Name string
	Body []byte
}

func (f NamedFile) Reader() io.Reader { return bytes.NewReader(f.Body) }

// PairFiles picks the lead export (name contains "hubspot") and the dispatch
// export (name contains "disparos") regardless of upload order.
func PairFiles(files []NamedFile) (leads, dispatches NamedFile, err error) {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	if len(files) < 2 {
		return leads, dispatches, &MissingFileError{Received: names, Missing: missing(files), Reason: "two files are required"}
	}

	var nl, nd int
	for _, f := range files {
		name := strings.ToLower(f.Name)
		switch {
		case strings.Contains(name, leadsPattern):
			leads = f
			nl++
		case strings.Contains(name, dispatchesPattern):
			dispatches = f
			nd++
		}
	}
	switch {
	case nl == 0 || nd == 0:
		return NamedFile{}, NamedFile{}, &MissingFileError{Received: names, Missing: missing(files)}
	case nl > 1 || nd > 1:
		return NamedFile{}, NamedFile{}, &MissingFileError{Received: names, Reason: "more than one file matches the same export"}
	}
	return leads, dispatches, nil
}

func missing(files []NamedFile) []string {
	var hasL, hasD bool
	for _, f := range files {
		name := strings.ToLower(f.Name)
		if strings.Contains(name, leadsPattern) {
			hasL = true
		} else if strings.Contains(name, dispatchesPattern) {
			hasD = true
		}
	}
	var out []string
	if !hasL {
		out = append(out, leadsPattern)
	}
	if !hasD {
		out = append(out, dispatchesPattern)
	}
	return out
}
