package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginRemember bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check that your credentials work",
	Long: `Logs in to DropCountr and reports whether a session was established.
With --remember, the email and password are saved to the config file.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginRemember, "remember", false, "save credentials to the config file")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := loginClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer client.Logout()

	out := cmd.OutOrStdout()
	if client.SessionCookie() != nil {
		fmt.Fprintln(out, "✓ Login successful, session established")
	} else {
		fmt.Fprintln(out, "✓ Login successful (no session cookie was issued)")
	}

	if loginRemember {
		e, p, err := credentials(cfg)
		if err != nil {
			return err
		}
		cfg.Email = e
		cfg.Password = p
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(out, "✓ Credentials saved to %s\n", getConfigPath())
	}
	return nil
}
