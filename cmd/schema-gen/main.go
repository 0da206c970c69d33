// Schema Generator
//
// Generates JSON Schema files from the Go API types. The dashboard's typed
// client is the source of truth for the contract with the analytics backend;
// the generated schemas feed contract checks on the backend side.
//
// Usage:
//
//	go run cmd/schema-gen/main.go
//
// Output:
//
//	./schemas/catalog.json
//	./schemas/analytics.json
//	./schemas/integrations.json
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/dynpricing/dashboard-service/internal/api"
)

// SchemaGroup represents a group of related schemas
type SchemaGroup struct {
	Name   string
	Types  []any
	Output string
}

func main() {
	outputDir := "./schemas"

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	groups := []SchemaGroup{
		{
			Name: "catalog",
			Types: []any{
				api.Product{},
				api.ProductList{},
				api.Status{},
				api.CacheStats{},
			},
			Output: "catalog.json",
		},
		{
			Name: "analytics",
			Types: []any{
				api.DemandMetric{},
				api.TrendRow{},
				api.OutOfStockProduct{},
				api.TimeSeriesPoint{},
				api.TimeSeries{},
				api.PricingMetric{},
				api.PricingMetricList{},
			},
			Output: "analytics.json",
		},
		{
			Name: "integrations",
			Types: []any{
				api.Workflow{},
				api.WorkflowList{},
				api.ActionResult{},
				api.ConnectionTestResult{},
				api.BotStatus{},
				api.BotSettingsResult{},
			},
			Output: "integrations.json",
		},
	}

	reflector := &jsonschema.Reflector{
		DoNotReference: false,
		ExpandedStruct: false,
	}

	for _, group := range groups {
		if err := generateGroup(reflector, group, outputDir); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate %s schemas: %v\n", group.Name, err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s\n", filepath.Join(outputDir, group.Output))
	}
}

func generateGroup(reflector *jsonschema.Reflector, group SchemaGroup, outputDir string) error {
	combined := map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"title":   group.Name,
	}
	definitions := map[string]any{}

	for _, t := range group.Types {
		schema := reflector.Reflect(t)

		raw, err := json.Marshal(schema)
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("failed to decode schema: %w", err)
		}

		name := typeName(decoded)
		if name == "" {
			continue
		}
		if defs, ok := decoded["$defs"].(map[string]any); ok {
			for defName, def := range defs {
				definitions[defName] = def
			}
		}
	}

	combined["$defs"] = definitions

	out, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal combined schema: %w", err)
	}

	path := filepath.Join(outputDir, group.Output)
	if err := os.WriteFile(path, append(out, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func typeName(schema map[string]any) string {
	ref, _ := schema["$ref"].(string)
	if ref == "" {
		return ""
	}
	parts := strings.Split(ref, "/")
	return parts[len(parts)-1]
}
