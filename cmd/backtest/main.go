package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v2"

	"github.com/quantframe-labs/intrascan/internal/backtest/engine"
	enginev1 "github.com/quantframe-labs/intrascan/internal/backtest/engine/engine_v1"
	"github.com/quantframe-labs/intrascan/internal/logger"
	"github.com/quantframe-labs/intrascan/internal/marketdata"
	"github.com/quantframe-labs/intrascan/internal/version"
)

// backtestAction wires the provider chain and the engine together and
// replays every symbol from the symbols file.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("schema") {
		schema, err := enginev1.NewBacktestEngineV1().GetConfigSchema()
		if err != nil {
			return err
		}

		fmt.Println(schema)

		return nil
	}

	configContent := ""

	if configPath := cmd.String("config"); configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		configContent = string(content)
	}

	// The CLI needs the cache TTL before the engine exists, so the
	// config is parsed once here as well.
	config := enginev1.DefaultConfig()
	if configContent != "" {
		if err := yaml.Unmarshal([]byte(configContent), &config); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	symbols, err := readSymbols(cmd.String("symbols"))
	if err != nil {
		return err
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	provider := buildProvider(cmd.StringSlice("base-url"), config, appLogger)

	backtester := enginev1.NewBacktestEngineV1()

	if err := backtester.Initialize(configContent); err != nil {
		return fmt.Errorf("failed to initialize backtest engine: %w", err)
	}

	if err := backtester.SetSymbols(symbols); err != nil {
		return err
	}

	if err := backtester.SetProvider(provider); err != nil {
		return err
	}

	if err := backtester.SetResultsFolder(cmd.String("results")); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onRunStart := engine.OnRunStartCallback(func(runID string, totalSymbols int) error {
		log.Printf("Starting run %s over %d symbols", runID, totalSymbols)
		bar = progressbar.NewOptions(totalSymbols,
			progressbar.OptionSetDescription("Backtesting"),
			progressbar.OptionShowCount())

		return nil
	})
	onSymbolEnd := engine.OnSymbolEndCallback(func(symbolIndex int, symbol string, result engine.SymbolResult) {
		_ = bar.Add(1)
	})

	summary, err := backtester.Run(ctx, engine.LifecycleCallbacks{
		OnRunStart:    &onRunStart,
		OnSymbolStart: nil,
		OnSymbolEnd:   &onSymbolEnd,
		OnRunEnd:      nil,
	})
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Println()
	fmt.Printf("Run %s complete\n", summary.ID)
	fmt.Printf("  symbols: %d requested, %d processed, %d skipped\n",
		summary.SymbolsRequested, summary.SymbolsProcessed, summary.SymbolsSkipped)
	fmt.Printf("  trades: %d (win rate %.1f%%)\n", summary.NumberOfTrades, summary.WinRate*100)
	fmt.Printf("  pnl: %.2f (%.2f -> %.2f)\n", summary.TotalPnL, summary.InitialCapital, summary.FinalCapital)
	fmt.Printf("  results written to %s\n", cmd.String("results"))

	return nil
}

// readSymbols reads one symbol per line, ignoring blanks and comments.
func readSymbols(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbols file: %w", err)
	}
	defer file.Close()

	var symbols []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		symbols = append(symbols, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbols file: %w", err)
	}

	return symbols, nil
}

// buildProvider chains one HTTP provider per vendor base URL, then
// wraps the chain in a cache so repeated runs inside the TTL do not
// refetch.
func buildProvider(baseURLs []string, config enginev1.BacktestConfig, appLogger *logger.Logger) marketdata.Provider {
	client := marketdata.NewRateLimitedClient(marketdata.DefaultHTTPClientConfig())

	providers := make([]marketdata.Provider, 0, len(baseURLs))
	for i, baseURL := range baseURLs {
		name := fmt.Sprintf("vendor-%d", i+1)
		providers = append(providers, marketdata.NewHTTPProvider(name, baseURL, client))
	}

	chain := marketdata.NewChainProvider(appLogger, providers...)

	return marketdata.NewCachedProvider(chain, config.CacheTTL)
}

func main() {
	cmd := &cli.Command{
		Name:    "backtest",
		Usage:   "Replay intraday history through the scoring engine",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the backtest config YAML (defaults apply when omitted)",
			},
			&cli.StringFlag{
				Name:    "symbols",
				Aliases: []string{"s"},
				Usage:   "Path to a file with one symbol per line",
				Value:   "./config/symbols.txt",
			},
			&cli.StringFlag{
				Name:    "results",
				Aliases: []string{"r"},
				Usage:   "Directory for summary.yaml and trades.csv",
				Value:   "./results",
			},
			&cli.StringSliceFlag{
				Name:    "base-url",
				Aliases: []string{"u"},
				Usage:   "Vendor base URL, repeatable; tried in order per symbol",
				Value: []string{
					"https://intraday.primary.example.in/api/v1",
					"https://intraday.secondary.example.in/api/v1",
				},
			},
			&cli.BoolFlag{
				Name:  "schema",
				Usage: "Print the config JSON schema and exit",
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("backtest failed: %v", err)
	}
}
