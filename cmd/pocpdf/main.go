// Command pocpdf analyzes a document or fills it with new values from
// the command line.
//
//	pocpdf analyze <file> [--force-ocr] [--force-reanalysis] [--name N]
//	pocpdf fill <file> --values '{"TIPO":"novo valor"}' [-o out.pdf]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/AdielsonMedeiros/POC-PDF/internal/app"
	"github.com/AdielsonMedeiros/POC-PDF/internal/common"
	"github.com/AdielsonMedeiros/POC-PDF/internal/pipeline"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	command, path := os.Args[1], os.Args[2]

	flags := pflag.NewFlagSet(command, pflag.ExitOnError)
	forceOCR := flags.Bool("force-ocr", false, "skip native text extraction and use OCR")
	forceReanalysis := flags.Bool("force-reanalysis", false, "ignore cached templates")
	name := flags.String("name", "", "template name to store with the analysis")
	description := flags.String("description", "", "template description")
	valuesJSON := flags.String("values", "", "JSON object mapping field types to new values")
	output := flags.StringP("output", "o", "filled.pdf", "output PDF path (fill only)")
	if err := flags.Parse(os.Args[3:]); err != nil {
		os.Exit(2)
	}

	opts := processor.Options{ForceOCR: *forceOCR, ForceReanalysis: *forceReanalysis}
	if *name != "" {
		opts.TemplateName = name
	}
	if *description != "" {
		opts.TemplateDescription = description
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.New(ctx, common.LoadConfig(), logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	switch command {
	case "analyze":
		result, err := a.Processor.Analyze(ctx, path, opts)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)

	case "fill":
		values := map[string]string{}
		if *valuesJSON != "" {
			if err := json.Unmarshal([]byte(*valuesJSON), &values); err != nil {
				fmt.Fprintln(os.Stderr, "error: invalid --values:", err)
				os.Exit(2)
			}
		}
		pdf, result, err := a.Processor.Fill(ctx, path, values, opts)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		if pdf == nil {
			fmt.Fprintln(os.Stderr, "no values to fill; analysis result:")
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(result)
			return
		}
		if err := os.WriteFile(*output, pdf, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s (%d bytes, template %s via %s)\n", *output, len(pdf), result.Fingerprint, result.Tier)

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  pocpdf analyze <file> [--force-ocr] [--force-reanalysis] [--name N] [--description D]")
	fmt.Fprintln(os.Stderr, "  pocpdf fill <file> --values '{\"TIPO\":\"novo valor\"}' [-o out.pdf]")
}
