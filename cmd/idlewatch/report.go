package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"idlewatch/internal/activity"
	"idlewatch/internal/config"
	"idlewatch/internal/stats"
	"idlewatch/internal/storage"
)

var (
	reportDate string
	reportTopN int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print idle time reports from stored data",
	Long:  `Print daily, weekly, or all-time idle reports from the local activity store.`,
}

var reportDayCmd = &cobra.Command{
	Use:   "day",
	Short: "Show one day's idle activity",
	Example: `  idlewatch report day
  idlewatch report day --date 2025-05-20 --top 3`,
	RunE: runReportDay,
}

var reportWeekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show the Sunday to Saturday week around a date",
	Example: `  idlewatch report week
  idlewatch report week --date 2025-05-20`,
	RunE: runReportWeek,
}

var reportAllCmd = &cobra.Command{
	Use:   "alltime",
	Short: "Show totals across every recorded day",
	RunE:  runReportAllTime,
}

func init() {
	reportDayCmd.Flags().StringVar(&reportDate, "date", "", "Date to report (YYYY-MM-DD, defaults to today)")
	reportDayCmd.Flags().IntVar(&reportTopN, "top", 5, "Number of longest idle sessions to list")
	reportWeekCmd.Flags().StringVar(&reportDate, "date", "", "Any date inside the week (YYYY-MM-DD, defaults to today)")

	reportCmd.AddCommand(reportDayCmd)
	reportCmd.AddCommand(reportWeekCmd)
	reportCmd.AddCommand(reportAllCmd)
	rootCmd.AddCommand(reportCmd)
}

// openReportAggregator opens storage read-only-ish for report commands with a
// quiet logger. Callers must Close the returned store.
func openReportAggregator() (storage.Store, *activity.Aggregator, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	return store, activity.New(store.Days(), logger), nil
}

func resolveReportDate() (time.Time, error) {
	if reportDate == "" {
		return time.Now(), nil
	}
	parsed, err := time.Parse(activity.DateKeyLayout, reportDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", reportDate)
	}
	return parsed, nil
}

func runReportDay(cmd *cobra.Command, args []string) error {
	ref, err := resolveReportDate()
	if err != nil {
		return err
	}
	date := activity.DateKey(ref)

	store, agg, err := openReportAggregator()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	rec, err := agg.Day(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to load day %s: %w", date, err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)

	cyan.Printf("Idle report for %s\n", date)
	fmt.Println(strings.Repeat("-", 40))
	green.Printf("Total idle: %s\n", stats.FormatDurationNatural(rec.Summary.TotalIdleSeconds))
	fmt.Printf("Sessions recorded: %d\n", len(rec.Sessions))

	if rec.Summary.TotalIdleSeconds > 0 {
		fmt.Println()
		yellow.Println("By hour:")
		for _, bucket := range rec.HourlyActivity {
			if bucket.IdleSeconds == 0 {
				continue
			}
			fmt.Printf("  %02d:00  %s\n", bucket.Hour, stats.FormatDurationNatural(bucket.IdleSeconds))
		}
	}

	top, err := agg.TopSessions(ctx, date, reportTopN)
	if err != nil {
		return fmt.Errorf("failed to load top sessions: %w", err)
	}
	if len(top) > 0 {
		fmt.Println()
		yellow.Printf("Longest idle sessions (top %d):\n", reportTopN)
		for i, sess := range top {
			fmt.Printf("  %d. %s  (%s - %s)\n",
				i+1,
				stats.FormatDurationNatural(sess.DurationSeconds),
				sess.StartTime.Local().Format("15:04:05"),
				sess.EndTime.Local().Format("15:04:05"))
		}
	}

	return nil
}

func runReportWeek(cmd *cobra.Command, args []string) error {
	ref, err := resolveReportDate()
	if err != nil {
		return err
	}

	store, agg, err := openReportAggregator()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	week, err := agg.Week(context.Background(), ref)
	if err != nil {
		return fmt.Errorf("failed to load week: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	faint := color.New(color.Faint)

	cyan.Printf("Week of %s to %s\n", week[0].Date, week[len(week)-1].Date)
	fmt.Println(strings.Repeat("-", 40))

	for _, point := range stats.WeeklySeries(week) {
		day, _ := time.Parse(activity.DateKeyLayout, point.Date)
		label := fmt.Sprintf("%s %s", day.Weekday().String()[:3], point.Date)
		if !point.HasData {
			faint.Printf("  %s  no data\n", label)
			continue
		}
		fmt.Printf("  %s  %s\n", label, stats.FormatDurationNatural(point.IdleSeconds))
	}

	return nil
}

func runReportAllTime(cmd *cobra.Command, args []string) error {
	store, agg, err := openReportAggregator()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	days, err := agg.AllDays(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load activity data: %w", err)
	}

	summary := stats.ComputeAllTime(days)

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)

	cyan.Println("All-time idle summary")
	fmt.Println(strings.Repeat("-", 40))
	green.Printf("Total idle: %s\n", stats.FormatDurationNatural(summary.TotalIdleSeconds))
	fmt.Printf("Days recorded: %d\n", summary.DaysRecorded)
	fmt.Printf("Sessions recorded: %d\n", summary.SessionsRecorded)
	if summary.DaysRecorded > 0 {
		fmt.Printf("Average per day: %s\n", stats.FormatDurationNatural(int64(summary.AverageIdleSeconds)))
	}
	if summary.MostIdleDate != "" {
		fmt.Printf("Most idle day: %s (%s)\n", summary.MostIdleDate, stats.FormatDurationNatural(summary.MostIdleSeconds))
	}

	return nil
}
