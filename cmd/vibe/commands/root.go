package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/vibelayer/internal/config"
	"github.com/dyluth/vibelayer/internal/printer"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var versionString = "dev"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath   string
	redisURL     string
	instanceName string
}

// NewRootCommand builds the vibe command tree. Each call returns an
// independent tree so tests can execute commands in isolation.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "vibe",
		Short: "VibeLayer - brand-aware effect orchestration for live streams",
		Long: `VibeLayer layers visual effects onto a creator's live stream.

The vibe CLI manages layers, effects and brand kits on the blackboard,
sends effect triggers to a running vibed daemon, and inspects the
lifecycle of effect instances as they are queued, rendered and stopped.`,
		Version: versionString,
		// Prevent silent success when unknown flags are passed to root command
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to vibelayer.yml (default ./vibelayer.yml)")
	flags.StringVar(&opts.redisURL, "redis-url", "", "Redis URL (overrides config and REDIS_URL)")
	flags.StringVarP(&opts.instanceName, "name", "n", "", "Target instance name (overrides config)")

	rootCmd.AddCommand(
		newInitCommand(),
		newLayerCommand(opts),
		newEffectCommand(opts),
		newBrandCommand(opts),
		newTriggerCommand(opts),
		newCancelCommand(opts),
		newStatusCommand(opts),
		newWatchCommand(opts),
	)

	return rootCmd
}

// Execute runs the vibe command tree against os.Args.
func Execute() error {
	rootCmd := NewRootCommand()
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	versionString = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// connect loads configuration, applies flag overrides and returns a
// blackboard client that has answered a ping.
func (o *rootOptions) connect(ctx context.Context) (*blackboard.Client, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return o.dial(ctx, cfg)
}

// load reads configuration and applies the persistent flag overrides.
func (o *rootOptions) load() (*config.VibeConfig, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, printer.Error(
			"failed to load configuration",
			err.Error(),
			[]string{"Check vibelayer.yml, or pass --config with the correct path"},
		)
	}

	if o.redisURL != "" {
		cfg.RedisURL = o.redisURL
	}
	if o.instanceName != "" {
		if err := config.ValidateInstanceName(o.instanceName); err != nil {
			return nil, printer.Error("invalid instance name", err.Error(), nil)
		}
		cfg.Instance = o.instanceName
	}
	return cfg, nil
}

// dial connects to the configured Redis and checks it answers.
func (o *rootOptions) dial(ctx context.Context, cfg *config.VibeConfig) (*blackboard.Client, error) {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, printer.Error(
			"invalid Redis URL",
			fmt.Sprintf("Could not parse %q: %v", cfg.RedisURL, err),
			[]string{"Use the form redis://host:port/db"},
		)
	}

	client, err := blackboard.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create blackboard client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.RedisURL),
			map[string]string{"Instance": cfg.Instance, "Error": err.Error()},
			[]string{
				"Check that Redis is running and reachable",
				"Point the CLI at another server:\n  vibe --redis-url redis://host:6379 ...",
			},
		)
	}

	return client, nil
}
