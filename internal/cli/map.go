package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360/pointmap/engine"
	"github.com/c360/pointmap/errors"
	"github.com/c360/pointmap/metric"
	"github.com/c360/pointmap/oracle"
	"github.com/c360/pointmap/types"
)

func init() {
	cmd := &cobra.Command{
		Use:   "map [points.json]",
		Short: "Map a batch of BMS points to EnOS identifiers",
		Long: "Map a batch of points. Input is a JSON array of points " +
			"({\"raw_name\", \"device_type\", \"unit\", \"sample_value\"}), " +
			"read from the file argument or stdin. Without an oracle endpoint " +
			"the engine maps from memory, learned patterns, and fallback " +
			"construction only.",
		Args: cobra.MaximumNArgs(1),
		Run:  runMap,
	}

	cmd.Flags().Int("metrics-port", 0, "Serve Prometheus metrics on this port during the run")
	cmd.Flags().Bool("summary", false, "Print only the batch summary, not per-point outcomes")

	RootCmd.AddCommand(cmd)
}

func runMap(cmd *cobra.Command, args []string) {
	metricsPort, _ := cmd.Flags().GetInt("metrics-port")
	summaryOnly, _ := cmd.Flags().GetBool("summary")

	points, err := readPoints(args)
	if err != nil {
		exitErr("read points", err)
	}

	store, err := openStore()
	if err != nil {
		exitErr("open memory store", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []engine.Option{}
	if metricsPort > 0 {
		registry := metric.NewMetricsRegistry()
		opts = append(opts, engine.WithMetricsRegistry(registry))
		go serveMetrics(metricsPort, registry)
	}

	// The CLI has no oracle endpoint; the engine degrades through the
	// deterministic ladder. Library callers inject a real oracle.
	offline := oracle.Func(func(context.Context, oracle.Request) (string, error) {
		return "", errors.ErrOracleUnavailable
	})

	eng, err := engine.New(ctx, cfg, store, offline, opts...)
	if err != nil {
		exitErr("init engine", err)
	}
	defer eng.Close()

	result, err := eng.MapBatch(ctx, points)
	if err != nil {
		exitErr("map batch", err)
	}

	if summaryOnly {
		result.Outcomes = nil
	}
	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))
}

func readPoints(args []string) ([]types.Point, error) {
	var r io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var points []types.Point
	if err := json.NewDecoder(r).Decode(&points); err != nil {
		return nil, fmt.Errorf("parse points: %w", err)
	}
	return points, nil
}

func serveMetrics(port int, registry *metric.MetricsRegistry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	addr := fmt.Sprintf(":%d", port)
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
	}
}
