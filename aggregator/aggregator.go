package main

import (
	"context"
	"fmt"
	"hsmeta/aggregator/modules"
	"hsmeta/pkg/config"
	"hsmeta/pkg/database"
	"hsmeta/pkg/logger"
	"hsmeta/pkg/models/meta"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type selectorFlags struct {
	format string
	rank   string
	period string
	class  string
}

func (f *selectorFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.format, "format", "", "format to roll up, every dispatched format if empty")
	cmd.PersistentFlags().StringVar(&f.rank, "rank", "", "rank bracket to roll up, every dispatched bracket if empty")
	cmd.PersistentFlags().StringVar(&f.period, "period", "", "time period to roll up, every period if empty")
	cmd.PersistentFlags().StringVar(&f.class, "class", "", "player class to roll up, every class if empty")
}

func (f *selectorFlags) selector() (meta.Selector, error) {
	return meta.ParseSelector(f.format, f.rank, f.period, f.class)
}

func main() {
	flags := &selectorFlags{}

	rootCmd := &cobra.Command{
		Use:           "aggregator",
		Short:         "Rolls the constructed deck stats shards up into windows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(rootCmd)

	rootCmd.AddCommand(windowCmd(flags))
	rootCmd.AddCommand(dayCmd(flags))
	rootCmd.AddCommand(migrateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func windowCmd(flags *selectorFlags) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Roll up the rolling windows of the selected partitions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := flags.selector()
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			if at != "" {
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			return withModule(cmd.Context(), func(m *modules.Module) error {
				return m.RollupJobs.RunWindowRollups(cmd.Context(), sel, now)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "reference time of the windows (RFC3339), now if empty")
	return cmd
}

func dayCmd(flags *selectorFlags) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "day",
		Short: "Roll up the hourly shards of one day into its daily documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := flags.selector()
			if err != nil {
				return err
			}
			target := time.Now().UTC().AddDate(0, 0, -1)
			if day != "" {
				if target, err = time.Parse(time.DateOnly, day); err != nil {
					return fmt.Errorf("invalid --day: %w", err)
				}
			}

			return withModule(cmd.Context(), func(m *modules.Module) error {
				return m.RollupJobs.RunDayRollups(cmd.Context(), sel, target)
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "day to roll up (YYYY-MM-DD), yesterday if empty")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the pending database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.NewConnection(cfg.Database.DSN)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			return database.RunMigrations(cfg, sqlDB)
		},
	}
}

// Build the module, run the action and ship the run log.
func withModule(ctx context.Context, action func(m *modules.Module) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("couldn't initialize the configuration: %w", err)
	}

	runLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("couldn't create the logger: %w", err)
	}
	defer runLogger.Close()

	m, err := modules.NewModule(ctx, &modules.ModuleDependencies{
		Config: cfg,
		Logger: runLogger.Logger,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	actionErr := action(m)

	if m.Logs != nil {
		// The run context may be cancelled already, the log is still shipped.
		uploadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := runLogger.UploadToBucket(uploadCtx, m.Logs, runLogger.ObjectKey(time.Now())); err != nil {
			fmt.Fprintf(os.Stderr, "couldn't upload the run log: %v\n", err)
		}
	}

	return actionErr
}
