package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/threatveil/core/internal/app"
)

var scheduleIntervalOverride int

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Continuous-monitoring scheduler commands",
}

var scheduleStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the scheduler tick loop until interrupted",
	RunE:  runScheduleStart,
}

func init() {
	scheduleStartCmd.Flags().IntVar(&scheduleIntervalOverride, "interval-minutes", 0, "Override SCHEDULER_INTERVAL_MINUTES for this run")
	scheduleCmd.AddCommand(scheduleStartCmd)
}

func runScheduleStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.SchedulerEnabled {
		return fmt.Errorf("scheduler is disabled (SCHEDULER_ENABLED=false)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer a.Close()

	interval := scheduleIntervalOverride
	if interval <= 0 {
		interval = cfg.SchedulerIntervalMinutes
	}
	if interval > 0 {
		a.Scheduler.Period = time.Duration(interval) * time.Minute
	}

	fmt.Fprintf(cmd.OutOrStdout(), "scheduler started, tick every %s (ctrl-c to stop)\n", a.Scheduler.Period)
	a.Scheduler.Start(ctx)

	<-ctx.Done()
	fmt.Fprintln(cmd.OutOrStdout(), "\nstopping scheduler...")
	a.Scheduler.Stop()
	return nil
}
