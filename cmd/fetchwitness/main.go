// Command fetchwitness fetches the zero-knowledge prover input for a
// single block from a live Ethereum JSON-RPC endpoint and writes it as
// JSON to stdout (or a file), without re-executing any transaction.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/fractal-zkp/zero-bin/log"
	"github.com/fractal-zkp/zero-bin/rpcclient"
	"github.com/fractal-zkp/zero-bin/witness"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := &cli.App{
		Name:  "fetchwitness",
		Usage: "fetch the prover input for one Ethereum block",
		Commands: []*cli.Command{
			fetchCommand(),
		},
	}
	if err := app.Run(args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "fetch a block's prover input",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rpc-url", Required: true, Usage: "Ethereum JSON-RPC endpoint"},
			&cli.Uint64Flag{Name: "block-number", Required: true, Usage: "block number to fetch"},
			&cli.Uint64Flag{Name: "checkpoint-block-number", Usage: "checkpoint block number (default: block-number - 1)"},
			&cli.DurationFlag{Name: "backoff", Value: 200 * time.Millisecond, Usage: "initial RPC retry backoff"},
			&cli.IntFlag{Name: "max-retries", Value: 3, Usage: "maximum RPC retry attempts"},
			&cli.StringFlag{Name: "tracer-mode", Value: "native", Usage: "native or jerigon"},
			&cli.Float64Flag{Name: "rate-limit", Value: 0, Usage: "max RPC requests/sec during proof fan-out (0 = unbounded)"},
			&cli.StringFlag{Name: "verbosity", Value: "info", Usage: "debug, info, warn, or error"},
			&cli.StringFlag{Name: "out", Usage: "output file path (default: stdout)"},
		},
		Action: fetchAction,
	}
}

func fetchAction(c *cli.Context) error {
	level, err := parseLevel(c.String("verbosity"))
	if err != nil {
		return err
	}
	log.SetDefault(log.New(level))

	blockNumber := new(big.Int).SetUint64(c.Uint64("block-number"))
	checkpointNumber := new(big.Int).SetUint64(c.Uint64("checkpoint-block-number"))
	if !c.IsSet("checkpoint-block-number") {
		checkpointNumber.Sub(blockNumber, big.NewInt(1))
	}

	ctx := context.Background()
	backoff := c.Duration("backoff")
	maxRetries := c.Int("max-retries")

	native, err := rpcclient.Dial(ctx, c.String("rpc-url"), backoff, maxRetries)
	if err != nil {
		return err
	}
	defer native.Close()

	var opts witness.Options
	if rl := c.Float64("rate-limit"); rl > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(rl), 1)
	}

	var input *witness.ProverInput
	switch mode := c.String("tracer-mode"); mode {
	case "native":
		input, err = witness.BuildProverInput(ctx, native, blockNumber, checkpointNumber, opts)
	case "jerigon":
		input, err = witness.BuildProverInputJerigon(ctx, rpcclient.NewJerigonClient(native), blockNumber, checkpointNumber)
	default:
		return fmt.Errorf("unknown tracer-mode %q: want native or jerigon", mode)
	}
	if err != nil {
		return err
	}

	out, err := openOutput(c.String("out"))
	if err != nil {
		return err
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(input)
}

func openOutput(path string) (writeCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}

type writeCloser interface {
	io.Writer
	Close() error
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.New("invalid verbosity: want debug, info, warn, or error")
	}
}
