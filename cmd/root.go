package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/mailmanctl/config"
	"github.com/s0up4200/mailmanctl/filter"
	"github.com/s0up4200/mailmanctl/mailman"
	"github.com/s0up4200/mailmanctl/restbase"
)

const annotationNoClient = "mailmanctl/no-client"

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
	client  *mailman.Client
	filters *filter.Manager

	appVersion   = "dev"
	appBuildTime = "unknown"

	// Global flags
	dryRun       bool
	assumeYes    bool
	outputFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mailmanctl",
	Short: "Manage GNU Mailman 3 through its REST API",
	Long: `mailmanctl is a CLI tool for administering a GNU Mailman 3 server.
It manages domains, mailing lists, members, moderation queues, bans and
header-match rules, and can select records with filter expressions such as
role:"owner" or hold_date < daysAgo(14).`,
	SilenceUsage:      true,
	PersistentPreRunE: initializeApp,
}

// SetVersion sets the build-time version information
func SetVersion(version, buildTime string) {
	appVersion = version
	appBuildTime = buildTime
	rootCmd.Version = version
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "d", false, "show what would change without changing it")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatTable, "output format: table, json or yaml")

	rootCmd.AddCommand(systemCmd)
	rootCmd.AddCommand(domainsCmd)
	rootCmd.AddCommand(listsCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(heldCmd)
	rootCmd.AddCommand(requestsCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(bansCmd)
	rootCmd.AddCommand(headerMatchesCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)

	// runs after every Execute, also when the command failed
	cobra.OnFinalize(closeApp)
}

func needsClient(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationNoClient] == "true" {
			return false
		}
		if c.Name() == "help" || c.Name() == "completion" {
			return false
		}
	}
	return true
}

// initializeApp initializes the configuration and clients
func initializeApp(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(outputFormat); err != nil {
		return err
	}
	if !needsClient(cmd) {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return nil
	}

	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger = setupLogger(cfg.Logging, os.Stderr)

	// Override dry-run from command line if specified
	if cmd.Flags().Changed("dry-run") {
		cfg.Safety.DryRun = dryRun
	}

	opts := []restbase.Option{
		restbase.WithVersion(appVersion),
		restbase.WithTimeout(cfg.Mailman.Timeout),
	}
	if cfg.Mailman.HasCredentials() {
		opts = append(opts, restbase.WithBasicAuth(cfg.Mailman.Username, cfg.Mailman.Password))
	}

	client, err = mailman.NewClient(cfg.Mailman.URL, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create Mailman client: %w", err)
	}

	filters = filter.NewManager(
		filter.WithCompiler(filter.NewExprCompiler(filter.WithCache(cfg.Filter.CacheSize))),
		filter.WithEvaluator(filter.NewConcurrentEvaluator(filter.WithWorkers(cfg.Filter.Workers))),
	)
	if err := filters.RegisterFilters(cfg.Filter.Presets); err != nil {
		return fmt.Errorf("invalid filter preset: %w", err)
	}

	logger.Debug().
		Str("url", cfg.Mailman.URL).
		Bool("auth", cfg.Mailman.HasCredentials()).
		Bool("dry_run", cfg.Safety.DryRun).
		Msg("Client initialized")

	return nil
}

// closeApp stops the filter workers started by initializeApp
func closeApp() {
	if filters == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := filters.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("Filter workers did not stop in time")
	}
	filters = nil
}

// setupLogger configures the zerolog logger. Colour is disabled when out
// is not a terminal.
func setupLogger(cfg config.LoggingConfig, out *os.File) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(out).Level(level).With().Timestamp().Logger()
	}

	tty := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())

	// Console format
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !tty,
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// resolveFilter returns the filter named by --preset or given by --filter.
// A nil filter means no filtering was requested.
func resolveFilter(expression, preset string) (filter.CompiledFilter, error) {
	// Priority: command line filter > preset
	if expression != "" {
		f, err := filters.Resolve(expression)
		if err != nil {
			return nil, fmt.Errorf("invalid filter expression: %w", err)
		}
		return f, nil
	}

	if preset != "" {
		f, ok := filters.GetFilter(strings.ToLower(preset))
		if !ok {
			return nil, fmt.Errorf("preset '%s' not found in config", preset)
		}
		return f, nil
	}

	return nil, nil
}

func addFilterFlags(cmd *cobra.Command, expression, preset *string) {
	cmd.Flags().StringVarP(expression, "filter", "f", "", "filter expression")
	cmd.Flags().StringVarP(preset, "preset", "p", "", "use a preset filter from config")
}

// confirm prompts on the command's input unless confirmation is disabled
func confirm(cmd *cobra.Command, prompt string) bool {
	if assumeYes || !cfg.Safety.Confirm {
		return true
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	return readYes(cmd.InOrStdin())
}

func readYes(in io.Reader) bool {
	response, _ := bufio.NewReader(in).ReadString('\n')
	return strings.ToLower(strings.TrimSpace(response)) == "y"
}

// isDryRun reports whether changes should only be previewed
func isDryRun() bool {
	return cfg != nil && cfg.Safety.DryRun
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func getList(cmd *cobra.Command, fqdn string) (*mailman.MailingList, error) {
	list, err := client.GetList(commandContext(cmd), fqdn)
	if err != nil {
		return nil, fmt.Errorf("failed to get list %s: %w", fqdn, err)
	}
	return list, nil
}
