package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentescrow/internal/database"
	"rentescrow/internal/models"
	"rentescrow/internal/worker"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "rentescrow-worker",
		Short:   "Background jobs for the escrow service",
		Version: Version,
	}
	rootCmd.PersistentFlags().String("config", "", "config file (default $CONFIG_PATH or configs/config.yaml)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(requeueCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the expiry sweeper, ledger sync and backups until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ledger, err := app.ledgerWorker(ctx)
			if err != nil {
				return err
			}
			if ledger != nil {
				go ledger.Start(ctx)
			}

			go database.NewBackupService(app.db, app.cfg.Backup, &app.logger).Start(ctx)

			sweeper := worker.NewSweeper(app.bookings, app.cfg.Escrow.SweepInterval, &app.logger)
			sweeper.Start(ctx)

			app.logger.Info().Msg("worker stopped")
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale paid bookings once",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.bookings.ExpireStale(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("expired %d booking(s)\n", n)
			return nil
		},
	}
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the database and prune old snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			backups := database.NewBackupService(app.db, app.cfg.Backup, &app.logger)
			path, err := backups.PerformBackup(cmd.Context())
			if err != nil {
				return err
			}
			backups.CleanupOldBackups()
			fmt.Println(path)
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the bookings report for a period to the exports directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := exportPeriod(cmd)
			if err != nil {
				return err
			}

			app, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			path, err := app.exporter().ExportToFile(cmd.Context(), start, end.AddDate(0, 0, 1).Add(-time.Nanosecond))
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}

	cmd.Flags().String("start", "", "first day, YYYY-MM-DD (default: first day of the current month)")
	cmd.Flags().String("end", "", "last day, inclusive, YYYY-MM-DD (default: today)")
	return cmd
}

func exportPeriod(cmd *cobra.Command) (start, end time.Time, err error) {
	now := time.Now().UTC()
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if raw, _ := cmd.Flags().GetString("start"); raw != "" {
		if start, err = models.ParseDate(raw); err != nil {
			return start, end, fmt.Errorf("invalid --start: %w", err)
		}
	}
	if raw, _ := cmd.Flags().GetString("end"); raw != "" {
		if end, err = models.ParseDate(raw); err != nil {
			return start, end, fmt.Errorf("invalid --end: %w", err)
		}
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("--end %s is before --start %s", models.FormatDate(end), models.FormatDate(start))
	}
	return start, end, nil
}

func requeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue-failed",
		Short: "Move failed ledger sync tasks back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			failed, err := app.db.GetFailedSyncTasks(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range failed {
				lastErr := ""
				if t.LastError != nil {
					lastErr = *t.LastError
				}
				app.logger.Info().Int64("task_id", t.ID).Int64("booking_id", t.BookingID).Str("last_error", lastErr).Msg("requeue")
			}

			n, err := app.db.RequeueFailedSyncTasks(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("requeued %d task(s)\n", n)
			return nil
		},
	}
}
