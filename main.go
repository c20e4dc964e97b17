package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/kylycht/ratebot/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

//	@title			Rate Bot API
//	@version		1.0
//	@description	Fiat and crypto currency converter

// @host		localhost:3000
func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.Error().Err(err).Msg("ratebot failed")
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	var cfg Config

	return &cli.App{
		Name:  "ratebot",
		Usage: "fiat and crypto currency converter",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to configuration file",
				EnvVars: []string{"RATEBOT_CONFIG"},
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			if cfg, err = LoadConfig(c.String("config")); err != nil {
				return err
			}
			return setupLogger(cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run HTTP API",
				Action: func(c *cli.Context) error {
					return run(c.Context, cfg, (*Application).serve)
				},
			},
			{
				Name:  "bot",
				Usage: "run Telegram bot",
				Action: func(c *cli.Context) error {
					return run(c.Context, cfg, (*Application).runBot)
				},
			},
			{
				Name:      "convert",
				Usage:     "convert amount once and print the result",
				ArgsUsage: "<amount> <from> <to>",
				Action: func(c *cli.Context) error {
					return run(c.Context, cfg, func(a *Application, ctx context.Context) error {
						return a.printConversion(ctx, c.Args().Slice())
					})
				},
			},
			{
				Name:  "rates",
				Usage: "print popular rates snapshot",
				Action: func(c *cli.Context) error {
					return run(c.Context, cfg, (*Application).printRates)
				},
			},
		},
	}
}

func setupLogger(cfg Config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return nil
}

// run builds application, executes fn until interrupted and cleans up
func run(parent context.Context, cfg Config, fn func(*Application, context.Context) error) error {
	ctx, cancelFn := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancelFn()

	a, err := New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("unable to initialize application")
		return err
	}
	defer a.stop()

	return fn(a, ctx)
}

func (a *Application) printConversion(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("expected <amount> <from> <to>, got %d arguments", len(args))
	}

	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[0], err)
	}

	from, err := model.ParseSymbol(args[1])
	if err != nil {
		return err
	}
	to, err := model.ParseSymbol(args[2])
	if err != nil {
		return err
	}

	res, err := a.resolver.Convert(ctx, amount, from, to)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Printf("%g %s", res.Amount, res.From)
	fmt.Print(" = ")
	color.New(color.FgGreen, color.Bold).Printf("%.2f %s\n", res.Converted, res.To)
	color.New(color.Faint).Printf("rate: 1 %s = %g %s\n", res.From, res.Rate, res.To)

	return nil
}

func (a *Application) printRates(ctx context.Context) error {
	quotes := a.resolver.PopularRates(ctx)
	if len(quotes) == 0 {
		color.Red("could not fetch exchange rates")
		return nil
	}

	target := a.resolver.PopularTarget()
	color.New(color.Bold).Printf("rates against %s\n", target)

	for _, q := range quotes {
		fmt.Printf("  %-6s ", q.Symbol)
		color.Green("%.2f %s", q.Rate, target)
	}

	return nil
}
