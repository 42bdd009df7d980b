package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/arbor/internal/config"
	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/store"
	"github.com/dshills/arbor/internal/value"
)

// cli holds state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string
	seed       string

	cfg *config.Config
	log *logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:           "arbor",
		Short:         "Path addressed in-memory document store",
		Long:          "arbor - apply operation scripts to a document and watch it for changes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "Path to configuration file (toml, yaml or json)")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&c.logFormat, "log-format", "", "Log format: text or json")
	flags.StringVarP(&c.seed, "seed", "s", "", "Seed document file")

	cmd.AddCommand(
		newApplyCmd(c),
		newServeCmd(c),
		newVersionCmd(),
	)
	return cmd
}

// load builds the configuration from file, environment and flags, then
// the logger.
func (c *cli) load(cmd *cobra.Command) error {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		overrides["log.level"] = c.logLevel
	}
	if flags.Changed("log-format") {
		overrides["log.format"] = c.logFormat
	}
	if flags.Changed("seed") {
		overrides["store.seed"] = c.seed
	}
	if flags.Lookup("metrics-addr") != nil && flags.Changed("metrics-addr") {
		overrides["metrics.addr"], _ = flags.GetString("metrics-addr")
	}
	if flags.Lookup("watch") != nil && flags.Changed("watch") {
		overrides["watch.enabled"], _ = flags.GetBool("watch")
	}
	if flags.Lookup("debounce") != nil && flags.Changed("debounce") {
		overrides["watch.debounce"], _ = flags.GetDuration("debounce")
	}

	opts := []config.Option{config.WithOverrides(overrides)}
	if c.configPath != "" {
		opts = append(opts, config.WithFile(c.configPath))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	c.cfg = cfg
	c.log = logging.NewLogger(cfg.LoggerConfig(cmd.ErrOrStderr()))
	logging.SetDefault(c.log)
	return nil
}

// loadSeed decodes the configured seed file, or returns nil when none is
// configured.
func (c *cli) loadSeed() (*value.Mapping, error) {
	if c.cfg.Store.Seed == "" {
		return nil, nil
	}
	format, err := c.cfg.SeedFormat()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.cfg.Store.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "read seed")
	}
	v, err := value.Decode(format, data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode seed %s", c.cfg.Store.Seed)
	}
	m, ok := v.(*value.Mapping)
	if !ok {
		return nil, errors.Wrapf(store.ErrNotAContainer, "seed %s is %s, not a mapping", c.cfg.Store.Seed, v.Kind())
	}
	return m, nil
}

// openStore creates a store seeded from configuration.
func (c *cli) openStore(opts ...store.Option) (*store.Store, error) {
	seed, err := c.loadSeed()
	if err != nil {
		return nil, err
	}
	base := []store.Option{
		store.WithLogger(c.log),
		store.WithKeyGenerator(c.cfg.KeyGenerator()),
	}
	if seed != nil {
		base = append(base, store.WithSeed(seed))
	}
	return store.New(append(base, opts...)...)
}
