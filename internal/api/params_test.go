package api

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductFilterOmitsZeroValues(t *testing.T) {
	f := ProductFilter{Brand: "Простоквашино", Page: 3}

	v := f.Values()
	assert.Equal(t, url.Values{
		"brand": {"Простоквашино"},
		"page":  {"3"},
	}, v, "zero-valued fields never appear in the query")
}

func TestEmptyFiltersProduceEmptyValues(t *testing.T) {
	assert.Empty(t, ProductFilter{}.Values())
	assert.Empty(t, DemandFilter{}.Values())
	assert.Empty(t, StockFilter{}.Values())
	assert.Empty(t, PricingFilter{}.Values())
	assert.Empty(t, CacheProductsFilter{}.Values())
}

func TestPricingFilterKeys(t *testing.T) {
	v := PricingFilter{Category: "Сыры", MinDaysOutOfStock: 15}.Values()
	assert.Equal(t, "Сыры", v.Get("category"))
	assert.Equal(t, "15", v.Get("min_days_out_of_stock"))
	assert.Empty(t, v.Get("brand"))
}
