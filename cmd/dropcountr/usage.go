package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jgoulah/dropcountr/internal/config"
	"github.com/jgoulah/dropcountr/internal/dropcountr"
	"github.com/jgoulah/dropcountr/pkg/models"
	"github.com/spf13/cobra"
)

var (
	usageDays int
	usageSave bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show water usage (default: yesterday + last 7 days)",
	Long: `Fetches water usage for a service connection.

Without a date range, shows yesterday followed by the trailing days_to_fetch
days (7 unless configured). Without --service_id, the first service
connection on the account is used.

Examples:
  dropcountr usage
  dropcountr usage --days=30
  dropcountr usage --start_date=2025-06-01 --end_date=2025-06-15
  dropcountr usage --start_date=14d --end_date=1d
  dropcountr usage --service_id=1234567 --period=hour --save`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().IntVar(&usageDays, "days", 0, "number of days back from today (overrides start/end dates)")
	usageCmd.Flags().BoolVar(&usageSave, "save", false, "store fetched records in the usage database")
	rootCmd.AddCommand(usageCmd)
}

// usageWindow is one date range the usage command reports on
type usageWindow struct {
	Title string
	Start time.Time
	End   time.Time
}

// usageWindows resolves the date ranges to query relative to now
func usageWindows(now time.Time, days int, start, end string, defaultDays int) ([]usageWindow, error) {
	today := models.StartOfDay(now)
	yesterday := today.AddDate(0, 0, -1)

	switch {
	case days < 0:
		return nil, fmt.Errorf("--days must be positive")

	case days > 0:
		w := usageWindow{Start: today.AddDate(0, 0, -days), End: models.EndOfDay(yesterday)}
		w.Title = fmt.Sprintf("%s to %s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
		return []usageWindow{w}, nil

	case start != "" || end != "":
		if start == "" || end == "" {
			return nil, fmt.Errorf("--start_date and --end_date must be given together")
		}
		s, err := parseDateFlag(start, now, false)
		if err != nil {
			return nil, fmt.Errorf("parsing --start_date: %w", err)
		}
		e, err := parseDateFlag(end, now, true)
		if err != nil {
			return nil, fmt.Errorf("parsing --end_date: %w", err)
		}
		if e.Before(s) {
			return nil, fmt.Errorf("--end_date %s is before --start_date %s", end, start)
		}
		return []usageWindow{{
			Title: fmt.Sprintf("%s to %s", s.Format("2006-01-02"), e.Format("2006-01-02")),
			Start: s,
			End:   e,
		}}, nil
	}

	return []usageWindow{
		{Title: "Yesterday", Start: yesterday, End: models.EndOfDay(yesterday)},
		{Title: fmt.Sprintf("Last %d Days", defaultDays), Start: today.AddDate(0, 0, -defaultDays), End: models.EndOfDay(yesterday)},
	}, nil
}

// parseDateFlag accepts YYYY-MM-DD or Nd for N days before now's date
func parseDateFlag(s string, now time.Time, endOfDay bool) (time.Time, error) {
	if n, ok := strings.CutSuffix(s, "d"); ok {
		if days, err := strconv.Atoi(n); err == nil && days >= 0 {
			d := models.StartOfDay(now).AddDate(0, 0, -days)
			if endOfDay {
				return models.EndOfDay(d), nil
			}
			return d, nil
		}
	}

	t, err := models.ParseDateBound(s, now.Location(), endOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w (use YYYY-MM-DD or Nd for N days ago)", err)
	}
	return t, nil
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	p := period
	if p == "" {
		p = cfg.Period
	}
	usagePeriod, err := models.ParsePeriod(p)
	if err != nil {
		return err
	}

	windows, err := usageWindows(time.Now().In(loc), usageDays, startDate, endDate, cfg.GetDaysToFetch())
	if err != nil {
		return err
	}

	client, err := loginClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	id, err := resolveServiceID(cmd, client, cfg, out)
	if err != nil {
		return err
	}

	var saver func(models.UsageData) error
	if usageSave {
		db, err := openDB(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		saver = func(u models.UsageData) error {
			_, err := db.InsertUsage(id, usagePeriod, u)
			return err
		}
	}

	for _, w := range windows {
		logger.WithField("window", w.Title).Debug("fetching usage window")

		usage, err := client.GetUsage(cmd.Context(), id, w.Start, w.End, usagePeriod)
		if err != nil {
			return fmt.Errorf("getting usage for %s: %w", w.Title, err)
		}

		printUsage(out, w.Title, usagePeriod, usage)

		if saver != nil {
			for _, u := range usage.UsageData {
				if err := saver(u); err != nil {
					return fmt.Errorf("saving usage: %w", err)
				}
			}
		}
	}

	if usageSave {
		fmt.Fprintf(out, "Saved records to %s\n", getDBPath())
	}
	return nil
}

// resolveServiceID picks --service_id, the configured service, or the first connection
func resolveServiceID(cmd *cobra.Command, client *dropcountr.Client, cfg *config.Config, out io.Writer) (int, error) {
	if serviceID != 0 {
		return serviceID, nil
	}
	if cfg.ServiceID != 0 {
		return cfg.ServiceID, nil
	}

	services, err := client.ListServiceConnections(cmd.Context())
	if err != nil {
		return 0, fmt.Errorf("getting service connections: %w", err)
	}
	if len(services) == 0 {
		return 0, fmt.Errorf("no service connections found")
	}

	sc := services[0]
	fmt.Fprintf(out, "Using service: %s (ID: %d)\n", sc.Name, sc.ID)
	return sc.ID, nil
}

func printUsage(out io.Writer, title string, p models.Period, usage *models.UsageResponse) {
	if len(usage.UsageData) == 0 {
		fmt.Fprintf(out, "%s: No data available\n", title)
		return
	}

	fmt.Fprintf(out, "\n%s:\n", title)
	t := newTable(out)
	t.AppendHeader(table.Row{"Date", "Gallons", "Irrigation", "Leak"})
	for _, u := range usage.UsageData {
		t.AppendRow(table.Row{
			u.Start.Format(dateLayout(p)),
			formatGallons(u.TotalGallons),
			formatGallons(u.IrrigationGallons),
			leakMark(u.IsLeaking),
		})
	}
	totals := usage.Totals()
	t.AppendFooter(table.Row{"Total", formatGallons(totals.TotalGallons), formatGallons(totals.IrrigationGallons), ""})
	t.Render()
}
