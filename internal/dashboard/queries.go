package dashboard

import (
	"context"
	"net/url"
	"time"

	"github.com/dynpricing/dashboard-service/internal/api"
	"github.com/dynpricing/dashboard-service/internal/query"
)

// Backend is the slice of the analytics client the dashboard reads from.
// Satisfied by *api.Client.
type Backend interface {
	Products(ctx context.Context, f api.ProductFilter) (api.ProductList, error)
	Categories(ctx context.Context) ([]string, error)
	Brands(ctx context.Context, category string) ([]string, error)
	TopDemand(ctx context.Context, f api.DemandFilter) ([]api.DemandMetric, error)
	DemandTrends(ctx context.Context, f api.TrendFilter) ([]api.TrendRow, error)
	OutOfStock(ctx context.Context, f api.StockFilter) ([]api.OutOfStockProduct, error)
	TimeSeries(ctx context.Context, f api.SeriesFilter) (api.TimeSeries, error)
	PricingMetrics(ctx context.Context, f api.PricingFilter) (api.PricingMetricList, error)
	Status(ctx context.Context) (api.Status, error)
	CacheStats(ctx context.Context) (api.CacheStats, error)
	CacheProducts(ctx context.Context, f api.CacheProductsFilter) (api.ProductList, error)
}

// Staleness windows per query class. Reference data (categories, brands)
// barely moves and gets the long window; analytics move with ingestion and
// get the short one; the loader status is effectively uncached because the
// header polls it.
var (
	classProducts      = query.Class{Name: "products", Fresh: 3 * time.Minute}
	classCategories    = query.Class{Name: "categories", Fresh: 10 * time.Minute}
	classBrands        = query.Class{Name: "brands", Fresh: 10 * time.Minute}
	classTopDemand     = query.Class{Name: "demand_top", Fresh: 2 * time.Minute}
	classTrends        = query.Class{Name: "demand_trends", Fresh: 2 * time.Minute}
	classOutOfStock    = query.Class{Name: "out_of_stock", Fresh: 2 * time.Minute}
	classTimeSeries    = query.Class{Name: "timeseries", Fresh: 2 * time.Minute}
	classPricing       = query.Class{Name: "pricing_metrics", Fresh: 2 * time.Minute}
	classStatus        = query.Class{Name: "status", Fresh: time.Second}
	classCacheStats    = query.Class{Name: "cache_stats", Fresh: time.Minute}
	classCacheProducts = query.Class{Name: "cache_products", Fresh: 5 * time.Minute}
)

// Queries builds the cacheable query definitions against the backend. Each
// builder closes over its typed filter; the normalized url.Values drive the
// cache key, so equal filters share an entry.
type Queries struct {
	backend Backend
	cache   *query.Cache
}

// NewQueries creates the query set.
func NewQueries(backend Backend, cache *query.Cache) *Queries {
	return &Queries{backend: backend, cache: cache}
}

// Cache exposes the underlying cache for prefetch and polling wiring.
func (q *Queries) Cache() *query.Cache {
	return q.cache
}

func (q *Queries) Products(f api.ProductFilter) query.Query[api.ProductList] {
	return query.Query[api.ProductList]{
		Class:       classProducts,
		Placeholder: func() api.ProductList { return api.ProductList{Products: []api.Product{}} },
		Run: func(ctx context.Context, _ url.Values) (api.ProductList, error) {
			return q.backend.Products(ctx, f)
		},
	}
}

func (q *Queries) Categories() query.Query[[]string] {
	return query.Query[[]string]{
		Class:       classCategories,
		Placeholder: func() []string { return []string{} },
		Run: func(ctx context.Context, _ url.Values) ([]string, error) {
			return q.backend.Categories(ctx)
		},
	}
}

func (q *Queries) Brands(category string) query.Query[[]string] {
	return query.Query[[]string]{
		Class:       classBrands,
		Placeholder: func() []string { return []string{} },
		Run: func(ctx context.Context, _ url.Values) ([]string, error) {
			return q.backend.Brands(ctx, category)
		},
	}
}

func (q *Queries) TopDemand(f api.DemandFilter) query.Query[[]api.DemandMetric] {
	return query.Query[[]api.DemandMetric]{
		Class:       classTopDemand,
		Placeholder: func() []api.DemandMetric { return []api.DemandMetric{} },
		Run: func(ctx context.Context, _ url.Values) ([]api.DemandMetric, error) {
			return q.backend.TopDemand(ctx, f)
		},
	}
}

func (q *Queries) Trends(f api.TrendFilter) query.Query[[]api.TrendRow] {
	return query.Query[[]api.TrendRow]{
		Class:       classTrends,
		Placeholder: func() []api.TrendRow { return []api.TrendRow{} },
		Run: func(ctx context.Context, _ url.Values) ([]api.TrendRow, error) {
			return q.backend.DemandTrends(ctx, f)
		},
	}
}

func (q *Queries) OutOfStock(f api.StockFilter) query.Query[[]api.OutOfStockProduct] {
	return query.Query[[]api.OutOfStockProduct]{
		Class:       classOutOfStock,
		Placeholder: func() []api.OutOfStockProduct { return []api.OutOfStockProduct{} },
		Run: func(ctx context.Context, _ url.Values) ([]api.OutOfStockProduct, error) {
			return q.backend.OutOfStock(ctx, f)
		},
	}
}

func (q *Queries) TimeSeries(f api.SeriesFilter) query.Query[api.TimeSeries] {
	return query.Query[api.TimeSeries]{
		Class: classTimeSeries,
		Run: func(ctx context.Context, _ url.Values) (api.TimeSeries, error) {
			return q.backend.TimeSeries(ctx, f)
		},
	}
}

func (q *Queries) Pricing(f api.PricingFilter) query.Query[api.PricingMetricList] {
	return query.Query[api.PricingMetricList]{
		Class:       classPricing,
		Placeholder: func() api.PricingMetricList { return api.PricingMetricList{Metrics: []api.PricingMetric{}} },
		Run: func(ctx context.Context, _ url.Values) (api.PricingMetricList, error) {
			return q.backend.PricingMetrics(ctx, f)
		},
	}
}

func (q *Queries) Status() query.Query[api.Status] {
	return query.Query[api.Status]{
		Class: classStatus,
		Run: func(ctx context.Context, _ url.Values) (api.Status, error) {
			return q.backend.Status(ctx)
		},
	}
}

func (q *Queries) CacheStats() query.Query[api.CacheStats] {
	return query.Query[api.CacheStats]{
		Class: classCacheStats,
		Run: func(ctx context.Context, _ url.Values) (api.CacheStats, error) {
			return q.backend.CacheStats(ctx)
		},
	}
}

func (q *Queries) CacheProducts(f api.CacheProductsFilter) query.Query[api.ProductList] {
	return query.Query[api.ProductList]{
		Class:       classCacheProducts,
		Placeholder: func() api.ProductList { return api.ProductList{Products: []api.Product{}} },
		Run: func(ctx context.Context, _ url.Values) (api.ProductList, error) {
			return q.backend.CacheProducts(ctx, f)
		},
	}
}
