package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dynpricing/dashboard-service/internal/api"
	"github.com/dynpricing/dashboard-service/internal/export"
)

var (
	exportCategory string
	exportBrand    string
	exportOut      string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the product catalog to an XLSX workbook",
	Long: `Page through the backend's product catalog, optionally narrowed by
category and brand, and write the rows to an XLSX workbook. The same export
the Products page offers, without opening the UI.`,
	Example: `  dashboard export --out products.xlsx
  dashboard export --category Молоко --out milk.xlsx`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportCategory, "category", "", "Filter by level-1 category")
	exportCmd.Flags().StringVar(&exportBrand, "brand", "", "Filter by brand")
	exportCmd.Flags().StringVar(&exportOut, "out", "products.xlsx", "Output file path")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	filter := api.ProductFilter{
		CategoryLevel1: exportCategory,
		Brand:          exportBrand,
		PageSize:       100,
	}

	var products []api.Product
	for page := 1; ; page++ {
		filter.Page = page
		list, err := client.Products(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to fetch page %d: %w", page, err)
		}
		products = append(products, list.Products...)
		if page >= list.TotalPages || len(list.Products) == 0 {
			break
		}
	}

	logger.Info().Int("products", len(products)).Msg("Catalog fetched")

	buf, err := export.Products(products)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}

	if err := os.WriteFile(exportOut, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOut, err)
	}

	logger.Info().Str("path", exportOut).Msg("Export written")
	return nil
}
