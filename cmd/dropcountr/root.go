package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jgoulah/dropcountr/internal/config"
	"github.com/jgoulah/dropcountr/internal/database"
	"github.com/jgoulah/dropcountr/internal/dropcountr"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	dbPath    string
	email     string
	password  string
	serviceID int
	startDate string
	endDate   string
	period    string
	debug     bool
	traceHTTP bool
)

var (
	logger = logrus.New()
	env    = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "dropcountr",
	Short: "Query water usage from DropCountr",
	Long: `dropcountr is a CLI for the DropCountr.com water usage monitoring service.
It logs in with your account, lists your service connections and prints daily
or hourly water usage.

Credentials are read from --email/--password, then the DROPCOUNTR_EMAIL and
DROPCOUNTR_PASSWORD environment variables, then the config file.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.StringVar(&dbPath, "db", "", "usage database file (default is ./dropcountr.db)")
	flags.StringVar(&email, "email", "", "DropCountr email (or DROPCOUNTR_EMAIL)")
	flags.StringVar(&password, "password", "", "DropCountr password (or DROPCOUNTR_PASSWORD)")
	flags.IntVar(&serviceID, "service_id", 0, "service connection ID (default: first service)")
	flags.StringVar(&startDate, "start_date", "", "start date (YYYY-MM-DD or Nd for N days ago)")
	flags.StringVar(&endDate, "end_date", "", "end date (YYYY-MM-DD or Nd for N days ago)")
	flags.StringVar(&period, "period", "", "data granularity: day or hour (default day)")
	flags.BoolVar(&debug, "debug", false, "enable verbose logging")
	flags.BoolVar(&traceHTTP, "trace_http", false, "dump raw HTTP requests and responses")
	cobra.CheckErr(flags.MarkHidden("trace_http"))

	env.SetEnvPrefix("DROPCOUNTR")
	env.AutomaticEnv()
	cobra.CheckErr(env.BindPFlag("email", flags.Lookup("email")))
	cobra.CheckErr(env.BindPFlag("password", flags.Lookup("password")))

	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
}

func setup(cmd *cobra.Command, args []string) error {
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	return nil
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "dropcountr.db"
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, err
	}
	logger.WithField("path", getConfigPath()).Debug("loaded config")
	return cfg, nil
}

// saveConfig saves the configuration file
func saveConfig(cfg *config.Config) error {
	return config.Save(getConfigPath(), cfg)
}

// openDB opens the database connection
func openDB(cfg *config.Config) (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return database.New(path, loc)
}

// credentials resolves email and password: flags, then environment, then config
func credentials(cfg *config.Config) (string, string, error) {
	e := env.GetString("email")
	if e == "" {
		e = cfg.Email
	}
	p := env.GetString("password")
	if p == "" {
		p = cfg.Password
	}

	if e == "" || p == "" {
		return "", "", fmt.Errorf(`email and password required. Provide via:
  - Arguments: --email=your@email.com --password=yourpass
  - Environment: DROPCOUNTR_EMAIL and DROPCOUNTR_PASSWORD
  - Config file: email/password in %s`, getConfigPath())
	}
	return e, p, nil
}

// newClient builds an API client from the config
func newClient(cfg *config.Config) (*dropcountr.Client, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	opts := []dropcountr.Option{
		dropcountr.WithLocation(loc),
		dropcountr.WithLogger(logger),
		dropcountr.WithDebug(traceHTTP),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, dropcountr.WithBaseURL(cfg.BaseURL))
	}
	return dropcountr.New(opts...)
}

// loginClient creates a client and logs in with the resolved credentials
func loginClient(ctx context.Context, cfg *config.Config) (*dropcountr.Client, error) {
	e, p, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	if err := client.Login(ctx, e, p); err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	return client, nil
}
