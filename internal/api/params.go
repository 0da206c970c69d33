package api

import (
	"net/url"
	"strconv"
)

// Filter structs render to url.Values via Values(). Zero-valued fields are
// omitted entirely, so "no filter" and "filter by empty value" can never be
// confused, and the same normalized values feed both the request query string
// and the cache key derivation.

// ProductFilter narrows GET /api/products.
type ProductFilter struct {
	CategoryLevel1 string
	CategoryLevel2 string
	CategoryLevel3 string
	CategoryLevel4 string
	Brand          string
	MinFavorites   int
	PeriodStart    string
	PeriodEnd      string
	OutOfStockDays int
	Page           int
	PageSize       int
}

func (f ProductFilter) Values() url.Values {
	v := url.Values{}
	setStr(v, "category_level_1", f.CategoryLevel1)
	setStr(v, "category_level_2", f.CategoryLevel2)
	setStr(v, "category_level_3", f.CategoryLevel3)
	setStr(v, "category_level_4", f.CategoryLevel4)
	setStr(v, "brand", f.Brand)
	setInt(v, "min_favorites_count", f.MinFavorites)
	setStr(v, "period_start", f.PeriodStart)
	setStr(v, "period_end", f.PeriodEnd)
	setInt(v, "out_of_stock_days", f.OutOfStockDays)
	setInt(v, "page", f.Page)
	setInt(v, "page_size", f.PageSize)
	return v
}

// DemandFilter narrows GET /api/analytics/demand/top.
type DemandFilter struct {
	Limit       int
	Category    string
	Brand       string
	PeriodStart string
	PeriodEnd   string
}

func (f DemandFilter) Values() url.Values {
	v := url.Values{}
	setInt(v, "limit", f.Limit)
	setStr(v, "category", f.Category)
	setStr(v, "brand", f.Brand)
	setStr(v, "period_start", f.PeriodStart)
	setStr(v, "period_end", f.PeriodEnd)
	return v
}

// TrendFilter narrows GET /api/analytics/demand/trends. GroupBy is one of
// category, brand or period.
type TrendFilter struct {
	Category string
	Brand    string
	GroupBy  string
}

func (f TrendFilter) Values() url.Values {
	v := url.Values{}
	setStr(v, "category", f.Category)
	setStr(v, "brand", f.Brand)
	setStr(v, "group_by", f.GroupBy)
	return v
}

// StockFilter narrows GET /api/analytics/stock/out-of-stock.
type StockFilter struct {
	MinDays     int
	Category    string
	Brand       string
	PeriodStart string
	PeriodEnd   string
}

func (f StockFilter) Values() url.Values {
	v := url.Values{}
	setInt(v, "min_days", f.MinDays)
	setStr(v, "category", f.Category)
	setStr(v, "brand", f.Brand)
	setStr(v, "period_start", f.PeriodStart)
	setStr(v, "period_end", f.PeriodEnd)
	return v
}

// SeriesFilter narrows GET /api/analytics/timeseries. GroupBy is category or
// brand; Period is day, week or month.
type SeriesFilter struct {
	Category string
	Brand    string
	GroupBy  string
	Period   string
}

func (f SeriesFilter) Values() url.Values {
	v := url.Values{}
	setStr(v, "category", f.Category)
	setStr(v, "brand", f.Brand)
	setStr(v, "group_by", f.GroupBy)
	setStr(v, "period", f.Period)
	return v
}

// PricingFilter narrows GET /api/analytics/pricing-metrics.
type PricingFilter struct {
	Category          string
	Brand             string
	MinDaysOutOfStock int
}

func (f PricingFilter) Values() url.Values {
	v := url.Values{}
	setStr(v, "category", f.Category)
	setStr(v, "brand", f.Brand)
	setInt(v, "min_days_out_of_stock", f.MinDaysOutOfStock)
	return v
}

// CacheProductsFilter narrows GET /api/cache/products.
type CacheProductsFilter struct {
	Page     int
	PageSize int
	Search   string
	Category string
	Brand    string
}

func (f CacheProductsFilter) Values() url.Values {
	v := url.Values{}
	setInt(v, "page", f.Page)
	setInt(v, "page_size", f.PageSize)
	setStr(v, "search", f.Search)
	setStr(v, "category", f.Category)
	setStr(v, "brand", f.Brand)
	return v
}

func setStr(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func setInt(v url.Values, key string, val int) {
	if val != 0 {
		v.Set(key, strconv.Itoa(val))
	}
}
