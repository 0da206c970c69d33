package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusOutput string

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend data readiness",
	Long: `Query the analytics backend for its loader status and server-side cache
statistics. Useful for checking whether a deploy can go live or whether the
backend is still ingesting data files.`,
	Example: `  dashboard status
  dashboard status --output json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusOutput, "output", "table", "Output format: table or json")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	stats, statsErr := client.CacheStats(ctx)
	if statsErr != nil {
		logger.Warn().Err(statsErr).Msg("Cache stats unavailable")
	}

	if statusOutput == "json" {
		out := map[string]any{"status": status}
		if statsErr == nil {
			out["cache_stats"] = stats
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Cache ready:\t%v\n", status.CacheReady)
	fmt.Fprintf(w, "Loading:\t%v\n", status.Loading)
	fmt.Fprintf(w, "Files loaded:\t%d\n", status.FilesLoaded)
	fmt.Fprintf(w, "Total products:\t%d\n", status.TotalProducts)
	fmt.Fprintf(w, "Mock data:\t%v\n", status.UsingMockData)
	if status.Message != "" {
		fmt.Fprintf(w, "Message:\t%s\n", status.Message)
	}
	if statsErr == nil {
		fmt.Fprintf(w, "Cache size:\t%.1f MB\n", stats.CacheSizeMB)
	}
	return w.Flush()
}
