package api

// Product is a single catalog entry as returned by the analytics backend.
// Nullable columns come back as pointers; the presentation layer renders
// them as a dash.
type Product struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Brand          *string `json:"brand"`
	Link           *string `json:"link"`
	CategoryLevel1 *string `json:"category_level_1"`
	CategoryLevel2 *string `json:"category_level_2"`
	CategoryLevel3 *string `json:"category_level_3"`
	CategoryLevel4 *string `json:"category_level_4"`
	FavoritesCount int     `json:"favorites_count"`
	LastInStock    *string `json:"last_in_stock"`
	PeriodStart    *string `json:"period_start"`
	PeriodEnd      *string `json:"period_end"`
	DaysOutOfStock *int    `json:"days_out_of_stock"`
}

// ProductList is the paginated response of GET /api/products.
type ProductList struct {
	Products   []Product `json:"products"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}

// DemandMetric is one row of the top-N-by-favorites ranking.
type DemandMetric struct {
	ProductID      string  `json:"product_id"`
	ProductName    string  `json:"product_name"`
	Brand          *string `json:"brand"`
	CategoryLevel1 *string `json:"category_level_1"`
	FavoritesCount int     `json:"favorites_count"`
	PeriodStart    *string `json:"period_start"`
	PeriodEnd      *string `json:"period_end"`
	Rank           *int    `json:"rank"`
}

// OutOfStockProduct is a product missing from stock, with a server-computed
// priority score.
type OutOfStockProduct struct {
	ProductID      string  `json:"product_id"`
	ProductName    string  `json:"product_name"`
	Brand          *string `json:"brand"`
	CategoryLevel1 *string `json:"category_level_1"`
	LastInStock    string  `json:"last_in_stock"`
	DaysOutOfStock int     `json:"days_out_of_stock"`
	FavoritesCount int     `json:"favorites_count"`
	PriorityScore  float64 `json:"priority_score"`
}

// Demand levels reported in pricing metrics.
const (
	DemandHigh   = "high"
	DemandMedium = "medium"
	DemandLow    = "low"
)

// PricingMetric drives the pricing page's sorting, filtering and coloring.
// PriorityScore and Recommendation are computed server-side and consumed
// opaquely.
type PricingMetric struct {
	ProductID      string  `json:"product_id"`
	ProductName    string  `json:"product_name"`
	Brand          *string `json:"brand"`
	CategoryLevel1 *string `json:"category_level_1"`
	DemandLevel    string  `json:"demand_level"`
	FavoritesCount int     `json:"favorites_count"`
	DaysOutOfStock int     `json:"days_out_of_stock"`
	PriorityScore  float64 `json:"priority_score"`
	Recommendation string  `json:"recommendation"`
}

// PricingMetricList is the response of GET /api/analytics/pricing-metrics.
type PricingMetricList struct {
	Metrics []PricingMetric `json:"metrics"`
	Total   int             `json:"total"`
}

// TrendRow is one aggregated demand-trend row; the grouping dimension is
// whichever of Category/Brand the caller asked for.
type TrendRow struct {
	Period                 string  `json:"period"`
	Category               *string `json:"category"`
	Brand                  *string `json:"brand"`
	TotalFavorites         int     `json:"total_favorites"`
	UniqueProducts         int     `json:"unique_products"`
	AvgFavoritesPerProduct float64 `json:"avg_favorites_per_product"`
}

// TimeSeriesPoint is a single dated value; the series comes back ordered by
// date.
type TimeSeriesPoint struct {
	Date     string  `json:"date"`
	Value    int     `json:"value"`
	Category *string `json:"category,omitempty"`
	Brand    *string `json:"brand,omitempty"`
}

// TimeSeries is the response of GET /api/analytics/timeseries.
type TimeSeries struct {
	Data    []TimeSeriesPoint `json:"data"`
	GroupBy *string           `json:"group_by"`
}

// Status reports backend data readiness; polled to drive the loading banner.
type Status struct {
	CacheReady    bool   `json:"cache_ready"`
	Loading       bool   `json:"loading"`
	FilesLoaded   int    `json:"files_loaded"`
	TotalProducts int    `json:"total_products"`
	UsingMockData bool   `json:"using_mock_data"`
	Message       string `json:"message"`
}

// CacheStats is the backend's server-side cache introspection.
type CacheStats struct {
	TotalProducts int     `json:"total_products"`
	FilesLoaded   int     `json:"files_loaded"`
	CacheSizeMB   float64 `json:"cache_size_mb"`
	UsingMockData bool    `json:"using_mock_data"`
}

// Workflow is one automation workflow on the external platform.
type Workflow struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Active       bool    `json:"active"`
	Nodes        int     `json:"nodes"`
	LastExecuted *string `json:"lastExecuted"`
}

// WorkflowList is the response of GET /api/n8n/workflows.
type WorkflowList struct {
	Workflows []Workflow `json:"workflows"`
	Total     int        `json:"total"`
}

// ActionResult is the generic success/message envelope returned by the
// integration action endpoints (toggle, test-connection, send-message).
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ConnectionTestResult extends ActionResult with the workflow count seen
// during a test connection.
type ConnectionTestResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	WorkflowsCount int    `json:"workflows_count"`
}

// BotStatus reports whether a messaging bot is configured on the backend.
type BotStatus struct {
	Configured  bool    `json:"configured"`
	BotUsername *string `json:"bot_username"`
	WebhookURL  *string `json:"webhook_url"`
	Message     string  `json:"message"`
}

// BotSettingsResult is returned after submitting bot settings.
type BotSettingsResult struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	BotUsername *string `json:"bot_username"`
	WebhookSet  bool    `json:"webhook_set"`
}
