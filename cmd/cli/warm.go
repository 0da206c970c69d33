package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dynpricing/dashboard-service/internal/api"
)

var warmTimeout time.Duration

// warmCmd represents the warm command
var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Exercise the backend queries the dashboard needs at startup",
	Long: `Issue the queries behind the landing pages once, so the backend's own
caches are hot before users arrive. Run it after the backend finishes
ingesting, typically from a deploy pipeline.`,
	Example: `  dashboard warm
  dashboard warm --timeout 2m`,
	RunE: runWarm,
}

func init() {
	rootCmd.AddCommand(warmCmd)

	warmCmd.Flags().DurationVar(&warmTimeout, "timeout", time.Minute, "Overall timeout for the warmup")
}

func runWarm(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"status", func(ctx context.Context) error {
			_, err := client.Status(ctx)
			return err
		}},
		{"categories", func(ctx context.Context) error {
			_, err := client.Categories(ctx)
			return err
		}},
		{"products", func(ctx context.Context) error {
			_, err := client.Products(ctx, api.ProductFilter{Page: 1, PageSize: 25})
			return err
		}},
		{"out-of-stock", func(ctx context.Context) error {
			_, err := client.OutOfStock(ctx, api.StockFilter{MinDays: 15})
			return err
		}},
		{"pricing-metrics", func(ctx context.Context) error {
			_, err := client.PricingMetrics(ctx, api.PricingFilter{MinDaysOutOfStock: 15})
			return err
		}},
		{"demand-top", func(ctx context.Context) error {
			_, err := client.TopDemand(ctx, api.DemandFilter{Limit: 5})
			return err
		}},
	}

	failed := 0
	for _, step := range steps {
		start := time.Now()
		if err := step.run(ctx); err != nil {
			failed++
			logger.Error().Err(err).Str("query", step.name).Msg("Warmup query failed")
			continue
		}
		logger.Info().
			Str("query", step.name).
			Dur("took", time.Since(start)).
			Msg("Warmup query done")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d warmup queries failed", failed, len(steps))
	}
	return nil
}
