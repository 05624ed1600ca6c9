package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	app "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// cli carries state shared by the commands of one invocation.
type cli struct {
	configPath  string
	driver      string
	logLevel    string
	logFormat   string
	output      string
	metricsFile string

	cfg      *config.Config
	svc      *app.Service
	log      logger.Logger
	tornDown bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "podium",
		Short: "Maintain athletics record progressions",
		Long: `podium keeps the current record of every discipline, gender and
age category together with the chain of records it superseded.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return c.teardown(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", os.Getenv(config.EnvFile), "YAML config file (env "+config.EnvFile+")")
	flags.StringVar(&c.driver, "driver", "", "store driver: memory, sqlite or badger (overrides config)")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	flags.StringVar(&c.logFormat, "log-format", "", "log format: text or json (overrides config)")
	flags.StringVarP(&c.output, "output", "o", outputText, "output format: text or json")
	flags.StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newSubmitCmd(c),
		newHistoryCmd(c),
		newSuccessorsCmd(c),
		newProgressionCmd(c),
		newCurrentCmd(c),
		newImportCmd(c),
		newEstimateCmd(c),
		newFormatCmd(c),
		newDisciplinesCmd(c),
	)
	return root
}

// setup loads configuration and initializes logging and metrics. The store
// is opened lazily by the commands that need it.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	switch c.output {
	case outputText, outputJSON:
	default:
		return fmt.Errorf("unknown output format %q", c.output)
	}

	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return err
	}
	if c.driver != "" {
		cfg.StoreDriver = strings.ToLower(c.driver)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.logFormat != "" {
		cfg.LogFormat = c.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	if err := logger.InitWithOptions(
		logger.WithFormat(cfg.LogFormat),
		logger.WithLevel(cfg.LogLevel),
		logger.WithWriter(cmd.ErrOrStderr()),
	); err != nil {
		return err
	}
	c.log = logger.Named("podium")

	metrics.Configure(metrics.WithNamespace(cfg.MetricsNamespace))
	return nil
}

type serviceRunE func(cmd *cobra.Command, args []string, svc *app.Service) error

// withService starts the record service for fn and stops it afterwards,
// also when fn fails.
func (c *cli) withService(fn serviceRunE) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		opts, err := app.FromConfig(c.cfg)
		if err != nil {
			return err
		}
		c.svc = app.New(append(opts, app.WithLogger(c.log))...)
		if err := c.svc.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if terr := c.teardown(ctx); err == nil {
				err = terr
			}
		}()
		return fn(cmd, args, c.svc)
	}
}

// teardown stops the service and writes the metrics file. Only the first
// call has an effect.
func (c *cli) teardown(ctx context.Context) error {
	if c.tornDown || c.cfg == nil {
		return nil
	}
	c.tornDown = true

	if c.svc != nil {
		c.svc.Stop()
		c.svc = nil
	}
	if c.metricsFile != "" {
		if err := prometheus.WriteToTextfile(c.metricsFile, metrics.GetRegistry()); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		c.log.Debug(ctx, "metrics written", logger.String("file", c.metricsFile))
	}
	return nil
}
