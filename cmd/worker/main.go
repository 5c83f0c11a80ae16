// Package main - точка входа worker: фоновые задачи и служебные команды.
//
//	worker run                  планировщик: сверка гильдий и снятие итогов
//	worker migrate [--status|--rollback] миграции PostgreSQL
//	worker reconcile [guild...] разовая сверка базовых значений
//	worker capture              разовое сохранение итогов активного периода
//	worker leaderboard <track>  живая таблица в терминал
//	worker history <track> <ref>
//	worker jobs [run <job>]     список задач планировщика или ручной запуск
//	worker baseline [uuid...]   строки базовых значений игроков
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/guildhub/superlatives/config"
	"github.com/guildhub/superlatives/internal/application/command"
	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/application/query"
	"github.com/guildhub/superlatives/internal/bootstrap"
	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/internal/infrastructure/persistence/postgres"
	"github.com/guildhub/superlatives/pkg/logger"
)

var (
	outputFormat    string
	migrateStatus   bool
	migrateRollback bool
)

var rootCmd = &cobra.Command{
	Use:           "worker",
	Short:         "Guild superlatives background worker",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scheduled reconcile and capture jobs until interrupted",
	RunE:  runScheduler,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [guild...]",
	Short: "Reconcile baselines for the given guilds (default: all configured)",
	RunE:  runReconcile,
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Snapshot the active period's standings now",
	RunE:  runCapture,
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard <track>",
	Short: "Print the live leaderboard for a track",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeaderboard,
}

var historyCmd = &cobra.Command{
	Use:   "history <track> <period-id|YYYY-MM>",
	Short: "Print a past, current or upcoming leaderboard",
	Args:  cobra.ExactArgs(2),
	RunE:  runHistory,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List scheduled jobs with their schedules",
	RunE:  runListJobs,
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run one scheduled job now, even if it is disabled",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobNow,
}

var baselineCmd = &cobra.Command{
	Use:   "baseline [uuid...]",
	Short: "Print stored baseline rows for players (default: row count)",
	RunE:  runBaseline,
}

func init() {
	rootCmd.AddCommand(runCmd, migrateCmd, reconcileCmd, captureCmd, leaderboardCmd, historyCmd, jobsCmd, baselineCmd)
	jobsCmd.AddCommand(jobsRunCmd)

	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Only print migration status")
	migrateCmd.Flags().BoolVar(&migrateRollback, "rollback", false, "Roll back the last applied migration")
	migrateCmd.MarkFlagsMutuallyExclusive("status", "rollback")
	for _, c := range []*cobra.Command{leaderboardCmd, historyCmd} {
		c.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// КОМАНДЫ
// ══════════════════════════════════════════════════════════════════════════════

func runScheduler(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
		sched, err := app.NewScheduler()
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		app.Logger.Info("worker is running", "guilds", app.Guilds())

		<-ctx.Done()
		app.Logger.Info("received shutdown signal")
		if err := sched.Stop(); err != nil {
			return err
		}
		for _, job := range sched.ListJobs() {
			app.Logger.Info("job summary", "job", job.Name, "runs", job.RunCount, "failures", job.FailCount)
		}
		return nil
	})
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is not set")
	}

	conn, err := postgres.NewConnection(ctx, cfg.Database.URL, postgres.PoolSettings{MaxConns: 2, MinConns: 1})
	if err != nil {
		return err
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)
	switch {
	case migrateRollback:
		if err := migrator.Rollback(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "rolled back the last migration")
	case !migrateStatus:
		applied, err := migrator.Migrate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, m := range status {
		applied := "-"
		if m.IsApplied {
			applied = m.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// После отката таблицы базовых значений может не быть.
	if rows, err := postgres.NewBaselineRepository(conn).Count(ctx); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "baseline rows: %d\n", rows)
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
		guilds := args
		if len(guilds) == 0 {
			guilds = app.Guilds()
		}

		var errs []error
		for _, guild := range guilds {
			stats, err := app.Reconciler.ReconcileGuild(ctx, guild)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", guild, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tperiod=%s members=%d updated=%d created=%d failed=%d stale=%d in %s\n",
				guild, stats.PeriodID, stats.Members, stats.Updated, stats.Created, stats.Failed, stats.Stale,
				stats.Duration.Round(time.Millisecond))
			for _, f := range stats.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", f.UUID, f.Err)
			}
		}
		return errors.Join(errs...)
	})
}

func runCapture(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
		result, err := app.CaptureCommand.Handle(ctx, command.CaptureStandingsCommand{})
		if result != nil {
			for _, t := range result.Tracks {
				switch {
				case t.Skipped:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tskipped: %v\n", t.Track, t.Err)
				case t.Err != nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tfailed: %v\n", t.Track, t.Err)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d entries\n", t.Track, t.PeriodID, t.Entries)
				}
			}
		}
		return err
	})
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
		result, err := app.LeaderboardQuery.Handle(ctx, query.GetLeaderboardQuery{
			Track:    args[0],
			Progress: engine.LogProgress{Logger: app.Logger},
		})
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result)
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
		result, err := app.HistoryQuery.Handle(ctx, query.GetHistoryQuery{
			Track:    args[0],
			Ref:      args[1],
			Progress: engine.LogProgress{Logger: app.Logger},
		})
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result)
	})
}

func runListJobs(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(_ context.Context, app *bootstrap.App) error {
		sched, err := app.NewScheduler()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "JOB\tSCHEDULE\tENABLED\tNEXT RUN\tDESCRIPTION")
		for _, job := range sched.ListJobs() {
			next := "-"
			if job.Enabled {
				next = job.NextRun.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", job.Name, job.Schedule, job.Enabled, next, job.Description)
		}
		return w.Flush()
	})
}

func runJobNow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
		sched, err := app.NewScheduler()
		if err != nil {
			return err
		}

		_, runErr := sched.RunNow(ctx, args[0])
		for _, r := range sched.History(1) {
			status := "ok"
			if !r.Success {
				status = fmt.Sprintf("failed: %v", r.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.JobName, r.Duration.Round(time.Millisecond), status)
		}
		return runErr
	})
}

func runBaseline(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
		rows, err := app.Baselines.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "baseline rows: %d\n", rows)
		if len(args) == 0 {
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "UUID\tCURRENT\tBASELINE\tSCORE\tLAST SAMPLED")
		for _, uuid := range args {
			row, err := app.Baselines.Get(ctx, uuid)
			if shared.IsNotFound(err) {
				fmt.Fprintf(w, "%s\t-\t-\t-\tnever\n", uuid)
				continue
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", row.UUID, row.CurrentValue, row.BaselineValue,
				row.Score(), row.LastSampledAt.Format(time.RFC3339))
		}
		return w.Flush()
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// withApp загружает конфигурацию, собирает приложение и закрывает его после fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := bootstrap.NewLogger(cfg)

	app, err := bootstrap.Build(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := fn(cmd.Context(), app); err != nil {
		log.Error("command failed", logger.Operation(cmd.Name()), logger.Err(err))
		return err
	}
	return nil
}

func printResult(out io.Writer, result *query.LeaderboardResult) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "%s · %s (%s)\n", result.PeriodTitle, result.Guild, result.Kind)
	if result.Metric != "" {
		fmt.Fprintln(out, result.Metric)
	}
	if len(result.Entries) == 0 {
		fmt.Fprintf(out, "starts %s\n", result.StartsAt.Format(time.RFC1123))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "RANK\tNAME\tVALUE\t\t")
	for _, e := range result.Entries {
		arrow := ""
		switch superlative.Transition(e.Transition) {
		case superlative.TransitionUp:
			arrow = "▲"
		case superlative.TransitionDown:
			arrow = "▼"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t\n", e.Rank, e.DisplayName, e.Formatted, arrow)
	}
	return w.Flush()
}
