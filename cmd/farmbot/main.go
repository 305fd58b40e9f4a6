package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aredoff/farmbot"
	"github.com/aredoff/farmbot/internal/logger"
	"github.com/aredoff/farmbot/internal/secret"
	"github.com/docopt/docopt-go"
)

var version = "dev"

const usage = `farmbot: keeps a farming session running through a primary or public proxy.

Usage:
  farmbot [--config=<file>] [--log-level=<level>] [--metrics-listen=<addr>] [--once]
  farmbot encrypt [--key=<key>] [--cipher=<name>] <token>
  farmbot -h | --help
  farmbot --version

Options:
  -h --help                 Show this screen.
  --version                 Show version.
  --config=<file>           Configuration file (.ini, .yaml or .yml).
  --log-level=<level>       Log level: trace, debug, info, warn, error.
  --metrics-listen=<addr>   Serve Prometheus metrics on this address, e.g. 127.0.0.1:9100.
  --once                    Report balance and profile, run one cycle and exit.
  --key=<key>               Encryption key. A new key is generated when omitted.
  --cipher=<name>           Token cipher: xchacha20 or aes-gcm [default: xchacha20].

Environment:
  AUTH_TOKEN, ENCRYPTION_KEY, TOKEN_CIPHER, PRIMARY_PROXY, PRIMARY_PROXY_HTTPS,
  TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID, API_BASE_URL, LOG_LEVEL, METRICS_LISTEN
`

func main() {
	args, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		os.Exit(2)
	}

	if args["encrypt"].(bool) {
		os.Exit(encrypt(args))
	}
	os.Exit(run(args))
}

func encrypt(args docopt.Opts) int {
	algo, err := secret.ParseAlgorithm(optString(args, "--cipher"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	sealed, key, err := secret.Seal(args["<token>"].(string), optString(args, "--key"), algo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encrypt token: %v\n", err)
		return 1
	}

	fmt.Printf("AUTH_TOKEN=%s\n", sealed)
	if optString(args, "--key") == "" {
		fmt.Printf("ENCRYPTION_KEY=%s\n", key)
	}
	fmt.Printf("TOKEN_CIPHER=%s\n", algo)
	return 0
}

func run(args docopt.Opts) int {
	cfg := farmbot.DefaultConfig()

	if path := optString(args, "--config"); path != "" {
		if err := farmbot.LoadFile(cfg, path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	farmbot.ApplyEnv(cfg)

	if level := optString(args, "--log-level"); level != "" {
		cfg.Log.Level = level
	}
	if listen := optString(args, "--metrics-listen"); listen != "" {
		cfg.Metrics.Listen = listen
	}
	cfg.Logger = logger.Init(cfg.Log.Level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := farmbot.New(ctx, cfg)
	if err != nil {
		cfg.Logger.Error().Err(err).Msg("Failed to start")
		return 1
	}
	defer bot.Close()

	if args["--once"].(bool) {
		result := bot.RunOnce(ctx)
		cfg.Logger.Info().Str("result", string(result)).Msg("Single cycle finished")
		return 0
	}

	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		cfg.Logger.Error().Err(err).Msg("Farm loop stopped")
		return 1
	}
	cfg.Logger.Info().Msg("Shutting down")
	return 0
}

func optString(args docopt.Opts, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
