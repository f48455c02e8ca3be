// Command templates administers the stored template catalog.
//
//	templates list
//	templates show <fingerprint>
//	templates count
//	templates delete <fingerprint>
//	templates export [-o templates.xlsx]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AdielsonMedeiros/POC-PDF/internal/app"
	"github.com/AdielsonMedeiros/POC-PDF/internal/common"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := app.New(ctx, common.LoadConfig(), logger)
	if err != nil {
		fail(err)
	}
	defer func() { _ = a.Close() }()
	store := a.Store()

	switch os.Args[1] {
	case "list":
		templates, err := store.List(ctx)
		if err != nil {
			fail(err)
		}
		if len(templates) == 0 {
			fmt.Println("no templates stored")
			return
		}
		for _, tpl := range templates {
			name := tpl.Name
			if name == "" {
				name = "-"
			}
			fmt.Printf("%s  fields=%d  updated=%s  %s\n",
				tpl.Fingerprint, tpl.FieldCount, tpl.UpdatedAt.Format("2006-01-02 15:04"), name)
		}

	case "show":
		tpl, err := store.Load(ctx, arg(2))
		if err != nil {
			fail(err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(tpl)

	case "count":
		n, err := store.Count(ctx)
		if err != nil {
			fail(err)
		}
		fmt.Println(n)

	case "delete":
		fingerprint := arg(2)
		deleted, err := store.Delete(ctx, fingerprint)
		if err != nil {
			fail(err)
		}
		if !deleted {
			fmt.Fprintln(os.Stderr, "not found:", fingerprint)
			os.Exit(1)
		}
		fmt.Println("deleted", fingerprint)

	case "export":
		out := "templates.xlsx"
		if len(os.Args) > 3 && os.Args[2] == "-o" {
			out = os.Args[3]
		}
		data, err := a.Export.ExportTemplatesXLSX(ctx)
		if err != nil {
			fail(err)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			fail(err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", out, len(data))

	default:
		usage()
		os.Exit(2)
	}
}

func arg(i int) string {
	if len(os.Args) <= i {
		usage()
		os.Exit(2)
	}
	return os.Args[i]
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: templates <list|show|count|delete|export> [args]")
}
