package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dynpricing/dashboard-service/config"
	"github.com/dynpricing/dashboard-service/internal/api"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *zerolog.Logger
	client  *api.Client
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Dashboard CLI - pricing analytics operations tool",
	Long: `A CLI tool for operating the dynamic pricing dashboard: checking backend
data readiness, warming the query cache before a deploy goes live, and
exporting the product catalog to a workbook without opening the UI.`,
	PersistentPreRunE: persistentPreRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}
}

// persistentPreRun runs before each command and initializes dependencies
func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	logger = initLogger()

	return initClient()
}

func initLogger() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if cfg != nil && cfg.Logging.Level != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsedLevel
		}
	}

	// Always use console format for CLI
	var output io.Writer
	if cfg != nil && cfg.Logging.Format == "json" {
		output = os.Stdout
	} else {
		noColor := false
		if cfg != nil {
			noColor = cfg.Logging.NoColor
		}
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: noColor}
	}

	log := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &log
}

func initClient() error {
	baseURL := config.GetAPIBaseURL()
	if baseURL == "" {
		return fmt.Errorf("API_BASE_URL not set")
	}

	clientCfg := api.DefaultConfig(baseURL)
	if cfg != nil {
		clientCfg.Timeout = cfg.API.Timeout
		clientCfg.MaxRetries = cfg.API.MaxRetries
		clientCfg.InitialBackoff = time.Duration(cfg.API.InitialBackoffMs) * time.Millisecond
		clientCfg.MaxBackoff = time.Duration(cfg.API.MaxBackoffMs) * time.Millisecond
	}

	var err error
	client, err = api.New(clientCfg, *logger)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}
	return nil
}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
