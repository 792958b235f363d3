package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"TradePulse/internal/backtest"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/engine/strategy"
	internalrepo "TradePulse/internal/repository"
	"TradePulse/internal/service/binance"
	pkgch "TradePulse/pkg/clickhouse"
	"TradePulse/pkg/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	source     string
	limit      int
	capital    float64
	adxMin     float64
	entryLen   int
	exitLen    int
	cooldown   int
	slipBps    float64
	feeBps     float64
	output     string
)

func main() {
	root := &cobra.Command{
		Use:   "backtest SYMBOL TF",
		Short: "Replay the breakout strategy over historical candles",
		Long: `Replay the breakout strategy bar by bar over historical candles,
with the same evaluation order, adaptive filter and post-exit cooldown
as the live engine. Candles come from the local ClickHouse store or
straight from the exchange.`,
		Args: cobra.ExactArgs(2),
		RunE: run,
	}

	root.Flags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	root.Flags().StringVar(&source, "source", "db", "candle source: db or binance")
	root.Flags().IntVar(&limit, "limit", 1500, "number of candles to load")
	root.Flags().Float64Var(&capital, "capital", 1000, "initial capital in USDT")
	root.Flags().Float64Var(&adxMin, "adx-min", 0, "override adx_min (0 keeps default)")
	root.Flags().IntVar(&entryLen, "entry-len", 0, "override entry channel length (0 keeps default)")
	root.Flags().IntVar(&exitLen, "exit-len", 0, "override exit channel length (0 keeps default)")
	root.Flags().IntVar(&cooldown, "cooldown-bars", 0, "bars to wait after an exit before re-entry")
	root.Flags().Float64Var(&slipBps, "slippage-bps", 0, "unfavorable slippage in basis points")
	root.Flags().Float64Var(&feeBps, "fee-bps", 5, "one-way fee in basis points")
	root.Flags().StringVar(&output, "output", "", "write trades JSON to this path (summary goes to <path>_result.json)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	symbol := strings.ToUpper(args[0])
	tf := domrepo.NormalizeTimeframe(args[1])

	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	src, cleanup, err := candleSource(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	p := strategy.DefaultParams()
	if adxMin > 0 {
		p.ADXMin = adxMin
	}
	if entryLen > 0 {
		p.EntryLen = entryLen
	}
	if exitLen > 0 {
		p.ExitLen = exitLen
	}
	if cooldown > 0 {
		p.CooldownBars = cooldown
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := backtest.Run(ctx, src, backtest.Config{
		Symbol:         symbol,
		Timeframe:      tf,
		Limit:          limit,
		InitialCapital: capital,
		Params:         p,
		SlippageBps:    slipBps,
		FeeBps:         feeBps,
	})
	if err != nil {
		return err
	}

	if output != "" {
		if err := writeJSON(output, res.Trades); err != nil {
			return err
		}
		resultPath := strings.TrimSuffix(output, ".json") + "_result.json"
		if err := writeJSON(resultPath, res.Summary); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "trades: %s\nsummary: %s\n", output, resultPath)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res.Summary)
}

// candleSource picks the historical store or the live exchange REST
// API depending on --source.
func candleSource(cfg *config.Config) (domrepo.CandleSource, func(), error) {
	switch source {
	case "db":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		return internalrepo.NewCHKlineStore(client), func() { _ = client.Close() }, nil
	case "binance":
		client := binance.New(cfg.Binance.BaseURL, cfg.Binance.APIKey, cfg.Binance.APISecret, cfg.Binance.Timeout)
		return client, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q (want db or binance)", source)
	}
}

func writeJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
