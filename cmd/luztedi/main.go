package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanivmizrachiy/luztedi/internal/config"
	"github.com/yanivmizrachiy/luztedi/internal/ingest"
	appLog "github.com/yanivmizrachiy/luztedi/internal/log"
)

// app holds the global flags and the configuration they resolve to.
type app struct {
	configPath string
	dataPath   string
	today      string
	debug      bool

	cfg *config.Config
	now time.Time
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "luztedi",
		Short:         "School calendar import, reconciliation and serving",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "luztedi.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&a.dataPath, "data", "", "Calendar document (overrides data_path)")
	root.PersistentFlags().StringVar(&a.today, "today", "", "Run as if today were YYYY-MM-DD")
	root.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "Enable debug logging")
	_ = root.PersistentFlags().MarkHidden("today")

	root.AddCommand(a.newImportCmd())
	root.AddCommand(a.newDedupeCmd())
	root.AddCommand(a.newValidateCmd())
	root.AddCommand(a.newExportCmd())
	root.AddCommand(a.newServeCmd())
	root.AddCommand(a.newWatchCmd())
	root.AddCommand(a.newConfigCmd())
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", a.configPath, err)
	}
	if a.dataPath != "" {
		cfg.DataPath = a.dataPath
	}
	a.cfg = cfg

	level := appLog.ParseLevel(cfg.LogLevel)
	if a.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	a.now = nowIn(cfg)
	if a.today != "" {
		t, err := time.ParseInLocation("2006-01-02", a.today, cfg.Location())
		if err != nil {
			return fmt.Errorf("--today must be YYYY-MM-DD: %w", err)
		}
		a.now = t
	}

	appLog.Debug("effective config",
		"data_path", cfg.DataPath,
		"override_path", cfg.OverridePath,
		"summary_dir", cfg.SummaryDir,
		"timezone", cfg.Timezone,
		"horizon_days", cfg.HorizonDays,
		"ics_count", len(cfg.ICS),
		"today", a.now.Format("2006-01-02"),
	)
	return nil
}

func nowIn(cfg *config.Config) time.Time {
	return time.Now().In(cfg.Location())
}

func (a *app) target() ingest.Target {
	return ingest.Target{DataPath: a.cfg.DataPath, SummaryDir: a.cfg.SummaryDir}
}

func (a *app) runOptions(source string) ingest.RunOptions {
	return ingest.RunOptions{Today: a.now, SampleLimit: a.cfg.SampleLimit(source)}
}
