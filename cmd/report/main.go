// Command report loads a lead export and a dispatch export from disk and
// prints the selected views as JSON, or writes them as an XLSX workbook.
//
//	report -from 2025-03-01 -view dispatch_lead_join hubspot.csv disparos.csv
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/AngelCh415/disparos-etl/internal/classify"
	"github.com/AngelCh415/disparos-etl/internal/config"
	"github.com/AngelCh415/disparos-etl/internal/export"
	"github.com/AngelCh415/disparos-etl/internal/ingest"
	"github.com/AngelCh415/disparos-etl/internal/metrics"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "report:", err)
		os.Exit(exitCode(err))
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	from := fs.String("from", "", "first day, YYYY-MM-DD (inclusive)")
	to := fs.String("to", "", "last day, YYYY-MM-DD (inclusive)")
	agreement := fs.String("agreement", "", "comma separated agreements or \"all\"")
	category := fs.String("category", "", "comma separated categories or \"all\"")
	stage := fs.String("stage", "", "comma separated lead stages or \"all\"")
	view := fs.String("view", "", "comma separated views; empty means every view")
	format := fs.String("format", "json", "json or xlsx")
	out := fs.String("out", "", "output file; stdout when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("expected two files (lead export and dispatch export), got %d", fs.NArg())
	}
	if *format != "json" && *format != "xlsx" {
		return fmt.Errorf("unknown format %q", *format)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	cls := classify.Default()
	if cfg.CategoryRulesFile != "" {
		if cls, err = classify.LoadFile(cfg.CategoryRulesFile); err != nil {
			return err
		}
	}

	q, err := metrics.ParseQuery(url.Values{
		"from":      {*from},
		"to":        {*to},
		"agreement": {*agreement},
		"category":  {*category},
		"stage":     {*stage},
		"view":      {*view},
	})
	if err != nil {
		return err
	}

	files := make([]ingest.NamedFile, 0, 2)
	for _, p := range fs.Args() {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, ingest.NamedFile{Name: filepath.Base(p), Body: b})
	}
	leads, dispatches, err := ingest.PairFiles(files)
	if err != nil {
		return err
	}

	norm := ingest.NewNormalizer(cls, cfg.NormalizerOptions(), log)
	ds, err := ingest.Load(context.Background(), norm, nil, leads, dispatches)
	if err != nil {
		return err
	}
	rep := metrics.Run(ds, q)

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if *format == "xlsx" {
		return export.WriteXLSX(w, rep)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	return enc.Encode(rep)
}

func exitCode(err error) int {
	var se *ingest.SchemaError
	switch {
	case errors.As(err, &se):
		return 3
	case errors.Is(err, ingest.ErrMissingFile), errors.Is(err, metrics.ErrInvalidQuery), errors.Is(err, flag.ErrHelp):
		return 2
	}
	return 1
}
