// Package main 运行存款方 / 取款方竞争同一账户的演示
//
// 每笔交易在标准输出打印一行，日志写到标准错误。
// 正常结束（含 Ctrl+C）退出码为 0，不变量被破坏等内部错误退出码为 1。
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/lwmacct/251216-go-pkg-bank/pkg/config"
	"github.com/lwmacct/251216-go-pkg-bank/pkg/sim"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		slog.Error("bankmonitor failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "bankmonitor",
		Usage: "deposit and withdraw concurrently against one account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.Int64Flag{Name: "initial-balance", Usage: "starting balance"},
			&cli.Int64Flag{Name: "min-amount", Usage: "smallest random amount"},
			&cli.Int64Flag{Name: "max-amount", Usage: "largest random amount"},
			&cli.DurationFlag{Name: "deposit-interval", Usage: "delay between deposits"},
			&cli.DurationFlag{Name: "duration", Usage: "stop after this long (0 = no limit)"},
			&cli.IntFlag{Name: "steps", Usage: "iterations per actor (0 = no limit)"},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed (0 = time based)"},
			&cli.DurationFlag{Name: "shutdown-timeout", Usage: "grace period for actors to stop"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			return run(ctx, cfg, logger, out)
		},
	}
}

// applyFlags 只覆盖显式传入的参数
func applyFlags(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("initial-balance") {
		cfg.InitialBalance = cmd.Int64("initial-balance")
	}
	if cmd.IsSet("min-amount") {
		cfg.MinAmount = cmd.Int64("min-amount")
	}
	if cmd.IsSet("max-amount") {
		cfg.MaxAmount = cmd.Int64("max-amount")
	}
	if cmd.IsSet("deposit-interval") {
		cfg.DepositInterval = cmd.Duration("deposit-interval")
	}
	if cmd.IsSet("duration") {
		cfg.Duration = cmd.Duration("duration")
	}
	if cmd.IsSet("steps") {
		cfg.Steps = cmd.Int("steps")
	}
	if cmd.IsSet("seed") {
		cfg.Seed = cmd.Uint64("seed")
	}
	if cmd.IsSet("shutdown-timeout") {
		cfg.ShutdownTimeout = cmd.Duration("shutdown-timeout")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.LogFormat = cmd.String("log-format")
	}
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	reg := prometheus.NewRegistry()

	runner := sim.NewRunner(cfg,
		sim.WithReporter(sim.NewWriterReporter(out)),
		sim.WithLogger(logger),
		sim.WithRegisterer(reg))

	result, err := runner.Run(ctx)
	if result != nil {
		printSummary(out, result)
		logMetrics(logger, reg)
	}
	return err
}

func printSummary(w io.Writer, r *sim.Result) {
	a := r.Account
	fmt.Fprintln(w, strings.Repeat("─", 50))
	fmt.Fprintf(w, "run %s finished (%s) after %s, seed=%d\n", r.RunID, r.Reason, r.Elapsed.Round(time.Millisecond), r.Seed)
	fmt.Fprintf(w, "deposits:    %d totalling %d\n", a.Deposits, a.Deposited)
	fmt.Fprintf(w, "withdrawals: %d totalling %d\n", a.Withdrawals, a.Withdrawn)
	fmt.Fprintf(w, "balance:     %d (initial %d)\n", a.Balance, a.Initial)
	fmt.Fprintf(w, "withdraw latency: avg %s, max %s\n", r.Withdrawer.AverageLatency, r.Withdrawer.MaxLatency)
}
