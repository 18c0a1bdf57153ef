package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanivmizrachiy/luztedi/internal/config"
	"github.com/yanivmizrachiy/luztedi/internal/datetime"
	"github.com/yanivmizrachiy/luztedi/internal/ics"
	"github.com/yanivmizrachiy/luztedi/internal/ingest"
	appLog "github.com/yanivmizrachiy/luztedi/internal/log"
	"github.com/yanivmizrachiy/luztedi/internal/reconcile"
)

var yearRE = regexp.MustCompile(`^\d{4}$`)

func (a *app) newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a source into the calendar document",
	}
	cmd.AddCommand(a.newImportCSVCmd())
	cmd.AddCommand(a.newImportXLSXCmd())
	cmd.AddCommand(a.newImportDocCmd())
	cmd.AddCommand(a.newImportICSCmd())
	return cmd
}

// requireFile fails before anything is written when the source is missing.
func requireFile(flag, path string) error {
	if path == "" {
		return fmt.Errorf("--%s is required", flag)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("--%s: %w", flag, err)
	}
	if info.IsDir() {
		return fmt.Errorf("--%s: %s is a directory", flag, path)
	}
	return nil
}

func (a *app) runImport(ctx context.Context, out io.Writer, ex ingest.Extractor, input string) error {
	sum, err := ingest.Run(ctx, ex, input, a.target(), a.runOptions(ex.Source()))
	if err != nil {
		return err
	}
	printSummary(out, sum)
	return nil
}

func printSummary(out io.Writer, sum reconcile.Summary) {
	fmt.Fprintln(out, "Import complete:", sum.Source)
	fmt.Fprintf(out, "Added:   schedule=%d exams=%d holidays=%d\n", sum.Added.Schedule, sum.Added.Exams, sum.Added.Holidays)
	fmt.Fprintf(out, "Merged:  schedule=%d exams=%d holidays=%d\n", sum.Merged.Schedule, sum.Merged.Exams, sum.Merged.Holidays)
	fmt.Fprintf(out, "Skipped: %d\n", sum.Skipped)
	fmt.Fprintf(out, "Uncertain rows: %d\n", sum.UncertainCount)
}

func (a *app) newImportCSVCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Import a sheet exported as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFile("csv", path); err != nil {
				return err
			}
			return a.runImport(cmd.Context(), cmd.OutOrStdout(), ingest.CSVExtractor{}, path)
		},
	}
	cmd.Flags().StringVar(&path, "csv", "", "Path to the CSV file")
	return cmd
}

func (a *app) newImportXLSXCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "xlsx",
		Short: "Import a month-per-sheet workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFile("xlsx", path); err != nil {
				return err
			}
			return a.runImport(cmd.Context(), cmd.OutOrStdout(), ingest.XLSXExtractor{Today: a.now}, path)
		},
	}
	cmd.Flags().StringVar(&path, "xlsx", "", "Path to the .xlsx workbook")
	cmd.Flags().StringVar(&path, "file", "", "Alias for --xlsx")
	return cmd
}

func (a *app) newImportDocCmd() *cobra.Command {
	var path, year string
	cmd := &cobra.Command{
		Use:   "docx",
		Short: "Import a Word (.docx) or HTML document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFile("docx", path); err != nil {
				return err
			}
			y := datetime.Year{Fallback: a.now.Year()}
			if year != "" {
				if !yearRE.MatchString(year) {
					return fmt.Errorf("--year must be four digits, got %q", year)
				}
				y.Default, _ = strconv.Atoi(year)
			}
			return a.runImport(cmd.Context(), cmd.OutOrStdout(), ingest.DocExtractor{Year: y}, path)
		},
	}
	cmd.Flags().StringVar(&path, "docx", "", "Path to the .docx or .html document")
	cmd.Flags().StringVar(&year, "year", "", "Year for dates written without one (YYYY)")
	return cmd
}

func (a *app) newImportICSCmd() *cobra.Command {
	var path, sourceID string
	var all bool
	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Import an iCalendar file or configured subscription",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case path != "":
				if err := requireFile("file", path); err != nil {
					return err
				}
				ex := a.icsExtractor(config.ICSConfig{ID: sourceID})
				return a.runImport(cmd.Context(), cmd.OutOrStdout(), ex, path)
			case all:
				return a.importFeeds(cmd.Context(), cmd.OutOrStdout(), a.cfg.ICS)
			case sourceID != "":
				feed, ok := a.cfg.Feed(sourceID)
				if !ok {
					return fmt.Errorf("no ics source %q in config", sourceID)
				}
				return a.importFeeds(cmd.Context(), cmd.OutOrStdout(), []config.ICSConfig{feed})
			default:
				return errors.New("one of --file, --source or --all is required")
			}
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Path to a local .ics file")
	cmd.Flags().StringVar(&sourceID, "source", "", "Configured subscription id (names the summary with --file)")
	cmd.Flags().BoolVar(&all, "all", false, "Import every configured subscription")
	return cmd
}

func (a *app) icsExtractor(feed config.ICSConfig) ingest.ICSExtractor {
	return ingest.ICSExtractor{
		Feed:        ics.Source{ID: feed.ID, URL: feed.URL},
		Fetcher:     ics.NewFetcher(a.cfg.CacheDir, 30*time.Second),
		Today:       a.now,
		HorizonDays: a.cfg.HorizonDays,
		Location:    a.cfg.Location(),
	}
}

// importFeeds imports each subscription in turn. A failing feed is logged
// and the rest still run; the first error is returned at the end.
func (a *app) importFeeds(ctx context.Context, out io.Writer, feeds []config.ICSConfig) error {
	if len(feeds) == 0 {
		return errors.New("no ics sources configured")
	}
	var firstErr error
	for _, f := range feeds {
		if f.URL == "" || f.ID == "" {
			appLog.Info("skipping ics source without id or url", "id", f.ID, "name", f.Name)
			continue
		}
		if err := a.runImport(ctx, out, a.icsExtractor(f), ""); err != nil {
			appLog.Error("ics import failed", err, "id", f.ID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
