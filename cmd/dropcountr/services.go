package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List all service connections",
	Long:  `Lists the service connections of every premises on the account.`,
	Args:  cobra.NoArgs,
	RunE:  runServices,
}

var serviceCmd = &cobra.Command{
	Use:   "service [id]",
	Short: "Show one service connection",
	Long:  `Shows the details of a service connection (default: --service_id or the configured service).`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runService,
}

func init() {
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(serviceCmd)
}

func runServices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := loginClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	services, err := client.ListServiceConnections(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing service connections: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(services) == 0 {
		fmt.Fprintln(out, "No service connections found")
		return nil
	}

	fmt.Fprintf(out, "Found %d service connection(s):\n", len(services))
	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "Name", "Address", "Account", "Status", "Type"})
	for _, sc := range services {
		t.AppendRow(table.Row{sc.ID, sc.Name, sc.Address, sc.AccountNumber, sc.Status, sc.ServiceType})
	}
	t.Render()
	return nil
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	id := serviceID
	if len(args) == 1 {
		id, err = strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid service id %q", args[0])
		}
	}
	if id == 0 {
		id = cfg.ServiceID
	}
	if id == 0 {
		return fmt.Errorf("no service id given (pass one as an argument or use --service_id)")
	}

	client, err := loginClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	sc, err := client.GetServiceConnection(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("getting service connection %d: %w", id, err)
	}

	t := newTable(cmd.OutOrStdout())
	t.AppendRows([]table.Row{
		{"ID", sc.ID},
		{"Name", sc.Name},
		{"Address", sc.Address},
		{"Account", sc.AccountNumber},
		{"Type", sc.ServiceType},
		{"Status", sc.Status},
		{"Meter", sc.MeterSerial},
	})
	t.Render()
	return nil
}
