package main

import (
	"fmt"
	"io"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/yanivmizrachiy/luztedi/internal/config"
	"github.com/yanivmizrachiy/luztedi/internal/dedupe"
	"github.com/yanivmizrachiy/luztedi/internal/ics"
	appLog "github.com/yanivmizrachiy/luztedi/internal/log"
	"github.com/yanivmizrachiy/luztedi/internal/model"
	"github.com/yanivmizrachiy/luztedi/internal/store"
	"github.com/yanivmizrachiy/luztedi/internal/web"
)

func (a *app) newDedupeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Remove duplicate records from the calendar document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := store.Load(a.cfg.DataPath)
			if err != nil {
				return err
			}
			out, rep := dedupe.Dataset(ds)
			model.SortForDisplay(&out)
			if err := store.Save(a.cfg.DataPath, out); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Dedupe complete")
			fmt.Fprintf(w, "Before:  schedule=%d exams=%d holidays=%d\n", rep.Before.Schedule, rep.Before.Exams, rep.Before.Holidays)
			fmt.Fprintf(w, "After:   schedule=%d exams=%d holidays=%d\n", rep.After.Schedule, rep.After.Exams, rep.After.Holidays)
			fmt.Fprintf(w, "Removed: schedule=%d exams=%d holidays=%d\n", rep.Removed.Schedule, rep.Removed.Exams, rep.Removed.Holidays)
			appLog.Info("dedupe complete", "removed", rep.Removed.Total())
			return nil
		},
	}
}

func (a *app) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the calendar document against the record rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := store.ReadRaw(a.cfg.DataPath)
			if err != nil {
				return err
			}
			ds, err := model.Validate(raw)
			if err != nil {
				return err
			}
			s := ds.Sizes()
			fmt.Fprintf(cmd.OutOrStdout(), "OK: schedule=%d exams=%d holidays=%d\n", s.Schedule, s.Exams, s.Holidays)
			return nil
		},
	}
}

func (a *app) newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the calendar document",
	}

	var outPath string
	icsCmd := &cobra.Command{
		Use:   "ics",
		Short: "Write the calendar document as an iCalendar file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := store.Load(a.cfg.DataPath)
			if err != nil {
				return err
			}
			body, err := ics.Encode(ds, ics.ExportOptions{Name: "luztedi", Location: a.cfg.Location()})
			if err != nil {
				return err
			}
			if outPath == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), body)
				return err
			}
			if err := store.WriteFileAtomic(outPath, []byte(body), 0o644); err != nil {
				return err
			}
			appLog.Info("calendar exported", "path", outPath, "records", ds.Sizes().Total())
			return nil
		},
	}
	icsCmd.Flags().StringVar(&outPath, "out", "", "Output path (stdout when empty)")
	cmd.AddCommand(icsCmd)
	return cmd
}

func (a *app) newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar API and iCalendar feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}
			return web.StartServer(cmd.Context(), a.cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

// newWatchCmd re-imports every configured subscription on the refresh
// schedule. A run still in progress when the next tick fires is not
// overlapped.
func (a *app) newWatchCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Import configured ICS subscriptions on a schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if once {
				return a.importFeeds(ctx, out, a.cfg.ICS)
			}

			c := cron.New(
				cron.WithLocation(a.cfg.Location()),
				cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
			)
			_, err := c.AddFunc(a.cfg.RefreshCron, func() {
				a.refreshClock()
				if err := a.importFeeds(ctx, out, a.cfg.ICS); err != nil {
					appLog.Error("scheduled import failed", err)
				}
			})
			if err != nil {
				return fmt.Errorf("invalid refresh schedule %q: %w", a.cfg.RefreshCron, err)
			}

			appLog.Info("watch started", "schedule", a.cfg.RefreshCron, "sources", len(a.cfg.ICS))
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			appLog.Info("watch stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run one import of every subscription and exit")
	return cmd
}

// refreshClock moves "today" forward for long-running watch processes
// unless it was pinned with --today.
func (a *app) refreshClock() {
	if a.today == "" {
		a.now = nowIn(a.cfg)
	}
}

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to --config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(a.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", a.configPath)
			}
			if err := config.Save(a.configPath, a.cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", a.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}

var _ cron.Logger = cronLogger{}
