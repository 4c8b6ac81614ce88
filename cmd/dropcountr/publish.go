package main

import (
	"fmt"
	"time"

	"github.com/jgoulah/dropcountr/internal/publisher"
	"github.com/jgoulah/dropcountr/pkg/models"
	"github.com/spf13/cobra"
)

var publishLimit int

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish stored usage data over MQTT",
	Long: `Reads unpublished usage records from the database and publishes them to the
MQTT broker in the config file, with Home Assistant discovery messages.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of records to publish per service (0 = no limit)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.MQTT.Enabled {
		return fmt.Errorf("MQTT is not enabled in config")
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	pub, err := publisher.New(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	ids := []int{}
	if serviceID != 0 {
		ids = append(ids, serviceID)
	} else {
		ids, err = db.ServiceConnectionIDs()
		if err != nil {
			return err
		}
	}

	totalPublished := 0
	for _, id := range ids {
		data, err := db.ListUnpublishedUsage(id)
		if err != nil {
			return fmt.Errorf("listing data for %d: %w", id, err)
		}
		if len(data) == 0 {
			fmt.Fprintf(out, "No unpublished data found for service %d\n", id)
			continue
		}

		if publishLimit > 0 && len(data) > publishLimit {
			data = data[:publishLimit]
			fmt.Fprintf(out, "Limiting to %d records (--limit flag)\n", publishLimit)
		}

		if err := pub.Announce(models.ServiceConnection{ID: id}); err != nil {
			return fmt.Errorf("announcing service %d: %w", id, err)
		}

		fmt.Fprintf(out, "Publishing %d records for service %d...\n", len(data), id)
		published := 0
		for i, record := range data {
			fmt.Fprintf(out, "[%d/%d] Publishing %s (%s gal)... ", i+1, len(data), record.Start.Format(dateLayout(record.Period)), formatGallons(record.TotalGallons))
			if err := pub.Publish(record); err != nil {
				fmt.Fprintf(out, "FAILED: %v\n", err)
				continue
			}

			if err := db.MarkPublished(record.ID); err != nil {
				fmt.Fprintf(out, "✓ (warning: failed to mark as published: %v)\n", err)
			} else {
				fmt.Fprintln(out, "✓")
			}
			published++
		}

		fmt.Fprintf(out, "Published %d/%d records for service %d\n", published, len(data), id)
		totalPublished += published
	}

	fmt.Fprintf(out, "\nTotal records published: %d\n", totalPublished)
	return nil
}
