package cmd

import (
	"bufio"
	"context"
	"os"
	"time"

	"github.com/qoeplatform/qoe/config"
	"github.com/qoeplatform/qoe/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// cli carries the global flags and the lazily opened app shared by all commands.
type cli struct {
	configPath string
	apiURL     string
	timeout    time.Duration
	rateLimit  int64

	app    *app
	open   func(ctx context.Context, cfg *config.Config) (*app, error)
	reader *bufio.Reader
}

// Execute runs the command line. Cancelling ctx aborts in-flight requests.
func Execute(ctx context.Context) {
	c := &cli{open: openApp}
	rootCmd := newRootCmd(c)
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	err := rootCmd.ExecuteContext(ctx)
	if cerr := c.close(); cerr != nil {
		log.Error().Err(cerr).Msg("Failed to close local storage.")
	}
	if err != nil {
		log.Error().Err(err).Msg("Command execution failed.")
		os.Exit(clierr.ExitCode(err))
	}
}

func createRootCmd() *cobra.Command {
	return newRootCmd(&cli{open: openApp})
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "qoe",
		Short:        "Command-line client for the Quality of Earnings platform",
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "Path to the config file (default $HOME/.qoe/config.yaml)")
	flags.StringVar(&c.apiURL, "api-url", "", "Base URL of the QoE API, e.g. http://localhost:8000/api/v1")
	flags.DurationVar(&c.timeout, "timeout", 0, "Timeout of a single HTTP request, e.g. 30s")
	flags.Int64Var(&c.rateLimit, "limit-rate", 0, "Maximum upload/download speed in bytes per second (0 = unlimited)")

	rootCmd.AddCommand(
		loginCmd(c),
		logoutCmd(c),
		whoamiCmd(c),
		registerCmd(c),
		passwdCmd(c),
		projectsCmd(c),
		documentsCmd(c),
		adjustmentsCmd(c),
		questionsCmd(c),
		reportsCmd(c),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}

// get returns the app, opening it on first use with the merged configuration.
func (c *cli) get(cmd *cobra.Command) (*app, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a, err := c.open(cmd.Context(), cfg)
	if err != nil {
		return nil, clierr.New(clierr.Internal, "Failed to open local storage: "+err.Error(), err)
	}
	c.app = a
	return a, nil
}

// loadConfig merges file, environment and command-line flags, in that order.
func (c *cli) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, clierr.New(clierr.Validation, err.Error(), err)
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.API.BaseURL = c.apiURL
	}
	if flags.Changed("timeout") {
		cfg.API.Timeout = c.timeout
	}
	if flags.Changed("limit-rate") {
		cfg.Transfer.RateLimit = c.rateLimit
	}
	if err := cfg.Validate(); err != nil {
		return nil, clierr.New(clierr.Validation, err.Error(), err)
	}
	log.Debug().Str("api", cfg.API.BaseURL).Str("store", cfg.Store.Backend).Msg("Configuration loaded")
	return cfg, nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// lines returns one buffered reader over the command's input so consecutive
// prompts do not lose buffered data.
func (c *cli) lines(cmd *cobra.Command) *bufio.Reader {
	if c.reader == nil {
		c.reader = bufio.NewReader(cmd.InOrStdin())
	}
	return c.reader
}
