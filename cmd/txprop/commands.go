package main

import (
	"context"
	"fmt"
	stdlog "log"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nikmy/txprop/internal/api"
	"github.com/nikmy/txprop/internal/events"
	"github.com/nikmy/txprop/internal/member"
	"github.com/nikmy/txprop/internal/order"
	"github.com/nikmy/txprop/internal/scenario"
	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
)

const version = "0.1.0"

type rootOptions struct {
	ConfigFile  string
	Environment string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "txprop",
		Short:         "Transaction propagation playground",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "config file, e.g. `./config.yaml`")
	flags.StringVar(&opts.Environment, "env", "", "environment (dev, prod)")

	cmd.AddCommand(
		newServeCommand(opts),
		newScenarioCommand(opts),
		newVersionCommand(),
	)

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show txprop version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func newScenarioCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "scenario [name|all]",
		Short:     "Run propagation scenarios and print their reports",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: append(scenario.Names(), "all"),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "all"
			if len(args) > 0 {
				name = args[0]
			}
			return runScenarios(cmd, opts, name)
		},
	}
}

type app struct {
	cfg *Config
	log logger.Logger
}

func setup(opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts.ConfigFile, opts.Environment)
	if err != nil {
		return nil, errors.WrapFail(err, "load config")
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		return nil, errors.WrapFail(err, "init logger")
	}

	return &app{cfg: cfg, log: log}, nil
}

func serve(ctx context.Context, opts *rootOptions) error {
	a, err := setup(opts)
	if err != nil {
		return err
	}
	log := a.log

	b, err := newBackend(ctx, a.cfg, log)
	if err != nil {
		log.Error(errors.WrapFail(err, "init backend"))
		return err
	}

	pub := events.NewLogPublisher(log)
	if len(a.cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafkaPublisher(a.cfg.Kafka, log)
	}

	server := api.NewServer(a.cfg.API, log, api.Deps{
		Provider:  b.provider,
		Members:   member.NewService(a.cfg.Member, b.members, b.logs, pub, log),
		Orders:    order.NewService(b.orders, pub, log),
		Scenarios: scenario.NewRunner(b.provider, log),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(gctx) })
	g.Go(func() error { return b.run(gctx) })

	log.Infof("serving %s backend", a.cfg.Backend)

	err = g.Wait()

	stdlog.Println("Graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.API.ShutdownTimeout())
	defer cancel()

	err = errors.Join(
		err,
		server.Shutdown(shutdownCtx),
		pub.Close(),
		b.close(shutdownCtx),
	)
	if err != nil {
		log.Error(err)
		return err
	}

	stdlog.Println("Shutdown complete")
	return nil
}

func runScenarios(cmd *cobra.Command, opts *rootOptions, name string) error {
	a, err := setup(opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	b, err := newBackend(ctx, a.cfg, a.log)
	if err != nil {
		return errors.WrapFail(err, "init backend")
	}
	defer func() { a.log.Warn(b.close(ctx)) }()

	runner := scenario.NewRunner(b.provider, a.log)

	var reports []scenario.Report
	if name == "all" {
		reports = runner.RunAll(ctx)
	} else {
		report, err := runner.Run(ctx, name)
		if err != nil {
			return err
		}
		reports = append(reports, report)
	}

	failed := 0
	for _, r := range reports {
		fmt.Fprintln(cmd.OutOrStdout(), r.String())
		if !r.OK {
			failed++
		}
	}

	if failed > 0 {
		return errors.Errorf("%d of %d scenarios failed", failed, len(reports))
	}
	return nil
}
