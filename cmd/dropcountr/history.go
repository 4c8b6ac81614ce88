package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored usage data",
	Long:  `Displays usage records saved with 'dropcountr usage --save'. No login is needed.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	// Determine which service connections to show
	ids := []int{}
	if serviceID != 0 {
		ids = append(ids, serviceID)
	} else {
		ids, err = db.ServiceConnectionIDs()
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No stored usage data")
		return nil
	}

	for _, id := range ids {
		records, err := db.ListUsage(id)
		if err != nil {
			return fmt.Errorf("listing data for %d: %w", id, err)
		}
		if len(records) == 0 {
			fmt.Fprintf(out, "No data found for service %d\n", id)
			continue
		}

		fmt.Fprintf(out, "\nService %d usage:\n", id)
		t := newTable(out)
		t.AppendHeader(table.Row{"Start", "Period", "Gallons", "Leak", "Published"})

		var total float64
		for _, rec := range records {
			published := ""
			if rec.Published {
				published = "yes"
			}
			t.AppendRow(table.Row{
				rec.Start.Format(dateLayout(rec.Period)),
				rec.Period,
				formatGallons(rec.TotalGallons),
				leakMark(rec.IsLeaking),
				published,
			})
			total += rec.TotalGallons
		}
		t.AppendFooter(table.Row{"Total", fmt.Sprintf("%d records", len(records)), formatGallons(total), "", ""})
		t.Render()
	}

	return nil
}
