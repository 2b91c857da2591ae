// Command ccxgo-example is a minimal smoke-test runner for the ccxgo
// library: it loads a stream list from a YAML file (or a single
// --symbol/--endpoint pair), starts a facade against one venue, and
// prints the current snapshot for each subscribed stream on an interval
// until interrupted. It is not part of the core library (spec.md §1
// Non-goals), grounded on cprotocol's cobra root command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ccxgo/ccxgo"
	"github.com/ccxgo/ccxgo/internal/domain"
)

// streamConfig mirrors one entry of the YAML stream list.
type streamConfig struct {
	Endpoint string `yaml:"endpoint"`
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval,omitempty"`
}

// fileConfig is the shape of the --config YAML file.
type fileConfig struct {
	Exchange string         `yaml:"exchange"`
	Testmode bool           `yaml:"testmode"`
	Streams  []streamConfig `yaml:"streams"`
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		exchange   string
		symbol     string
		endpoint   string
		interval   string
		testmode   bool
		configPath string
		pollEvery  time.Duration
	)

	root := &cobra.Command{
		Use:   "ccxgo-example",
		Short: "Runs a ccxgo facade against one venue and prints current snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, streams, err := resolveConfig(configPath, exchange, endpoint, symbol, interval, testmode)
			if err != nil {
				return err
			}
			return run(cmd.Context(), ex, streams, testmode, pollEvery)
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "YAML file describing exchange + streams")
	root.Flags().StringVar(&exchange, "exchange", "binance", "venue to connect to")
	root.Flags().StringVar(&endpoint, "endpoint", "ticker", "order_book|kline|trades|ticker")
	root.Flags().StringVar(&symbol, "symbol", "BTC/USDT", "canonical BASE/QUOTE symbol")
	root.Flags().StringVar(&interval, "interval", "1m", "kline interval (ignored for other endpoints)")
	root.Flags().BoolVar(&testmode, "testmode", false, "use the venue's sandbox endpoint where available")
	root.Flags().DurationVar(&pollEvery, "poll-every", 5*time.Second, "how often to print the current snapshot")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("ccxgo-example exited with error")
		os.Exit(1)
	}
}

func resolveConfig(configPath, exchange, endpoint, symbol, interval string, testmode bool) (domain.Exchange, []domain.StreamDescriptor, error) {
	if configPath == "" {
		return domain.Exchange(exchange), []domain.StreamDescriptor{parseStreamDescriptor(endpoint, symbol, interval)}, nil
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return "", nil, fmt.Errorf("read config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return "", nil, fmt.Errorf("parse config: %w", err)
	}

	streams := make([]domain.StreamDescriptor, 0, len(cfg.Streams))
	for _, s := range cfg.Streams {
		streams = append(streams, parseStreamDescriptor(s.Endpoint, s.Symbol, s.Interval))
	}
	return domain.Exchange(cfg.Exchange), streams, nil
}

func parseStreamDescriptor(endpoint, symbol, interval string) domain.StreamDescriptor {
	ep := domain.Endpoint(endpoint)
	d := domain.StreamDescriptor{Endpoint: ep, Symbol: symbol}
	if ep == domain.EndpointKline {
		d.Interval = interval
	}
	return d
}

func run(ctx context.Context, exchange domain.Exchange, streams []domain.StreamDescriptor, testmode bool, pollEvery time.Duration) error {
	facade, err := ccxgo.New(exchange, streams, ccxgo.WithTestmode(testmode))
	if err != nil {
		return fmt.Errorf("construct facade: %w", err)
	}

	if err := facade.Start(); err != nil {
		return fmt.Errorf("start facade: %w", err)
	}
	defer func() {
		if err := facade.Stop(30 * time.Second); err != nil {
			log.Warn().Err(err).Msg("facade did not stop cleanly")
		}
	}()

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	log.Info().Str("exchange", string(exchange)).Int("streams", len(streams)).Msg("facade started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		case <-ticker.C:
			printSnapshots(facade, streams)
			if !facade.IsConnectionsOk() {
				log.Warn().Msg("one or more streams are stale")
			}
		}
	}
}

func printSnapshots(facade *ccxgo.Facade, streams []domain.StreamDescriptor) {
	for _, d := range streams {
		rec, ok := facade.GetCurrentData(d.Endpoint, d.Symbol, d.Interval)
		if !ok || rec == nil {
			fmt.Printf("%-10s %-10s %-8s (no data yet)\n", d.Endpoint, d.Symbol, d.Interval)
			continue
		}
		fmt.Printf("%-10s %-10s %-8s %+v\n", d.Endpoint, d.Symbol, d.Interval, rec)
	}
}
