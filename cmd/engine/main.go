package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"curvewatch/internal/market"
	"curvewatch/internal/observability"
	"curvewatch/internal/solana"
	"curvewatch/internal/storage"
	chstore "curvewatch/internal/storage/clickhouse"
	"curvewatch/internal/storage/memory"
	"curvewatch/internal/storage/migrations"
	pgstore "curvewatch/internal/storage/postgres"
	"curvewatch/internal/watchlist"
)

func main() {
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", "", "Solana WebSocket endpoint (empty for backfill-only)")
	mints := flag.String("mints", "", "Comma-separated mint addresses to track at startup")
	lookback := flag.Duration("lookback", market.DefaultLookback, "Historical backfill window")
	timeframes := flag.String("timeframes", "60,300,900,3600", "Comma-separated candle timeframes in seconds")
	largeTrade := flag.Float64("large-trade", 0, "Base-currency threshold for LARGE_BUY/LARGE_SELL tags (0 disables)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL DSN for the market/swap archive (empty to disable)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse DSN for the tick archive (empty to disable)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory archives instead of databases")
	redisAddr := flag.String("redis-addr", "", "Redis address for the watchlist stream (empty to disable)")
	redisStream := flag.String("redis-stream", watchlist.DefaultStream, "Redis stream carrying mint detections")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	if err := run(logger,
		*rpcEndpoint, *wsEndpoint, *mints, *lookback, *timeframes, *largeTrade,
		*postgresDSN, *clickhouseDSN, *useMemory,
		*redisAddr, *redisStream, *metricsAddr,
	); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

func run(logger *log.Logger,
	rpcEndpoint, wsEndpoint, mints string, lookback time.Duration, timeframesCSV string, largeTrade float64,
	postgresDSN, clickhouseDSN string, useMemory bool,
	redisAddr, redisStream, metricsAddr string,
) error {
	if rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint is required")
	}

	tfs, err := parseTimeframes(timeframesCSV)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown: first signal cancels, a second forces exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-ctx.Done():
		}
	}()

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	rpc := solana.NewHTTPClient(rpcEndpoint)

	var ws solana.WSClient
	if wsEndpoint != "" {
		conn, err := solana.NewWSConn(ctx, wsEndpoint, &solana.WSConfig{Logger: logger})
		if err != nil {
			return fmt.Errorf("create websocket client: %w", err)
		}
		defer conn.Close()
		ws = conn
	} else {
		logger.Println("No --ws-endpoint, running backfill-only")
	}

	// Archives: in-memory by default, databases when DSNs are given.
	var marketStore storage.MarketStore = memory.NewMarketStore()
	var swapStore storage.SwapStore = memory.NewSwapStore()
	var tickStore storage.TickStore = memory.NewTickStore()

	if !useMemory && postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}

		marketStore = pgstore.NewMarketStore(pool)
		swapStore = pgstore.NewSwapStore(pool)
	}

	if !useMemory && clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return fmt.Errorf("migrate clickhouse: %w", err)
		}
		defer conn.Close()

		tickStore = chstore.NewTickStore(conn)
	}

	engine := market.NewEngine(market.Options{
		RPC: rpc,
		WS:  ws,
		Config: market.Config{
			Lookback:            lookback,
			Timeframes:          tfs,
			LargeTradeThreshold: largeTrade,
		},
		Subscribers: []market.Subscriber{market.NewLogSubscriber(logger)},
		MarketStore: marketStore,
		SwapStore:   swapStore,
		TickStore:   tickStore,
		Logger:      logger,
	})
	defer engine.StopAll()

	tracked := 0
	for _, mint := range splitCSV(mints) {
		if _, err := engine.Track(ctx, mint); err != nil {
			logger.Printf("Track %s: %v", mint, err)
			continue
		}
		tracked++
	}

	if redisAddr != "" {
		consumer := watchlist.NewConsumer(watchlist.ConsumerOptions{
			Client: redis.NewClient(&redis.Options{Addr: redisAddr}),
			Stream: redisStream,
			Track: func(ctx context.Context, mint string) error {
				_, err := engine.Track(ctx, mint)
				return err
			},
			Logger: logger,
		})
		return consumer.Run(ctx)
	}

	if tracked == 0 {
		return fmt.Errorf("nothing to do: no trackable --mints and no --redis-addr")
	}

	<-ctx.Done()
	return ctx.Err()
}

func parseTimeframes(csv string) ([]int64, error) {
	var tfs []int64
	for _, part := range splitCSV(csv) {
		tf, err := strconv.ParseInt(part, 10, 64)
		if err != nil || tf <= 0 {
			return nil, fmt.Errorf("invalid timeframe %q", part)
		}
		tfs = append(tfs, tf)
	}
	if len(tfs) == 0 {
		return nil, fmt.Errorf("no timeframes given")
	}
	return tfs, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
