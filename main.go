package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/raulk/clock"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/squarefactory/minerd/api"
	"github.com/squarefactory/minerd/config"
	"github.com/squarefactory/minerd/executor"
	"github.com/squarefactory/minerd/install"
	"github.com/squarefactory/minerd/logsink"
	"github.com/squarefactory/minerd/metrics"
	"github.com/squarefactory/minerd/supervisor"
)

var log = logging.Logger("main")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "minerd: %s\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "minerd",
		Usage:     "Install a GPU and a CPU miner, then keep them running",
		ArgsUsage: "<worker-number>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML configuration file, the embedded default is used when empty",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:    "home",
				Usage:   "Working directory holding the archives and extracted miners",
				EnvVars: []string{"MINERD_HOME"},
				Value:   "~/.minerd",
			},
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Address of the status API, overrides listen_address",
				EnvVars: []string{"LISTEN_ADDRESS"},
			},
			&cli.StringFlag{
				Name:    "wallet",
				Usage:   "Wallet replacing the configured one, miners with their own wallet keep it",
				EnvVars: []string{"WALLET_ID"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "info",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Do not display download progress bars",
			},
		},
		Before: func(cctx *cli.Context) error {
			lvl, err := logging.LevelFromString(cctx.String("log-level"))
			if err != nil {
				return xerrors.Errorf("invalid log level: %w", err)
			}
			logging.SetAllLoggers(lvl)
			return nil
		},
		Action: runAction,
		Commands: []*cli.Command{
			installCmd,
		},
	}
}

var installCmd = &cli.Command{
	Name:  "install",
	Usage: "Download and extract the miners without running them",
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		if err := cfg.ValidateInstall(); err != nil {
			return err
		}
		installer, err := newInstaller(cctx)
		if err != nil {
			return err
		}

		for _, m := range cfg.Miners {
			bin, err := installer.Install(cctx.Context, m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cctx.App.Writer, "%s: %s\n", m.Name, bin)
		}
		return nil
	},
}

func runAction(cctx *cli.Context) error {
	if cctx.NArg() != 1 {
		return xerrors.New("expected exactly one argument: the worker number (1 to 3 digits)")
	}
	worker, err := config.ParseIdentity(cctx.Args().First())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	cfg.SetWallet(cctx.String("wallet"))
	if err := cfg.Validate(); err != nil {
		return err
	}
	if listen := cctx.String("listen"); listen != "" {
		cfg.ListenAddress = listen
	}

	installer, err := newInstaller(cctx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	console := logsink.NewConsole(cctx.App.Writer)
	policy := supervisor.Policy{
		Delay:       cfg.RestartDelay,
		MaxDelay:    cfg.MaxRestartDelay,
		StopTimeout: cfg.StopTimeout,
	}

	log.Infow("starting", "worker", worker, "miners", len(cfg.Miners))
	var runners []*supervisor.Runner
	var tails []func(ctx context.Context) error
	for _, miner := range cfg.Miners {
		bin, err := installer.Install(ctx, miner)
		if err != nil {
			return err
		}
		args, err := miner.RenderArgs(worker)
		if err != nil {
			return err
		}

		tag := console.Tagged(miner.Name)
		var sink supervisor.Sink = tag
		if miner.Output == config.OutputFile {
			file := logsink.NewFileSink(filepath.Join(installer.Dir(miner.Name), miner.Name+".log"))
			sink = file
			tails = append(tails, func(ctx context.Context) error {
				return file.Tail(ctx, clock.New(), tag, logsink.DefaultTailInterval)
			})
			log.Infow("miner output redirected", "miner", miner.Name, "file", file.Path())
		}

		runners = append(runners, supervisor.NewRunner(
			supervisor.Descriptor{
				Name: miner.Name,
				Path: bin,
				Args: args,
				Dir:  filepath.Dir(bin),
				Env:  miner.Env,
				User: miner.RunAs,
			},
			&executor.Exec{},
			sink,
			policy,
			supervisor.WithMetrics(m),
		))
	}

	group := supervisor.NewGroup(runners...)
	for _, tail := range tails {
		group.Follow(tail)
	}
	if cfg.ListenAddress != "" {
		router := api.NewRouter(group, reg)
		group.Go(func(ctx context.Context) error {
			return api.Serve(ctx, cfg.ListenAddress, router)
		})
	}

	return group.Run(ctx)
}

func loadConfig(cctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newInstaller(cctx *cli.Context) (*install.Installer, error) {
	home, err := homedir.Expand(cctx.String("home"))
	if err != nil {
		return nil, xerrors.Errorf("expanding home %s: %w", cctx.String("home"), err)
	}
	opts := []install.Option{}
	if cctx.Bool("no-progress") {
		opts = append(opts, install.WithProgress(false))
	}
	return install.NewInstaller(home, opts...), nil
}
