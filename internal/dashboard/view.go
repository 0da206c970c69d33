package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/dynpricing/dashboard-service/internal/api"
)

// Priority score thresholds for badge coloring.
const (
	highPriorityScore   = 70
	mediumPriorityScore = 40
	// criticalStockDays marks out-of-stock products whose absence has gone
	// on long enough to count as critical on the summary cards.
	criticalStockDays = 30
)

// Page sizes the product tables offer.
var pageSizes = []int{25, 50, 100}

const defaultPageSize = 25

// Dash renders optional strings; absent values show as a dash, never as an
// empty cell or "null".
func Dash(s *string) string {
	if s == nil || *s == "" {
		return "—"
	}
	return *s
}

// DashInt renders optional integers.
func DashInt(n *int) string {
	if n == nil {
		return "—"
	}
	return fmt.Sprintf("%d", *n)
}

// BadgeClass maps a priority score to its badge color class.
func BadgeClass(score float64) string {
	switch {
	case score >= highPriorityScore:
		return "badge-red"
	case score >= mediumPriorityScore:
		return "badge-yellow"
	default:
		return "badge-green"
	}
}

// DemandLabel localizes a demand level.
func DemandLabel(level string) string {
	switch level {
	case api.DemandHigh:
		return "Высокий"
	case api.DemandMedium:
		return "Средний"
	case api.DemandLow:
		return "Низкий"
	default:
		return "—"
	}
}

// DemandClass maps a demand level to its badge color class.
func DemandClass(level string) string {
	switch level {
	case api.DemandHigh:
		return "badge-red"
	case api.DemandMedium:
		return "badge-yellow"
	default:
		return "badge-green"
	}
}

// Pricing sort keys.
const (
	SortByPriority = "priority"
	SortByDemand   = "demand"
	SortByDays     = "days"
)

var demandRank = map[string]int{
	api.DemandHigh:   3,
	api.DemandMedium: 2,
	api.DemandLow:    1,
}

// SortPricing orders pricing metrics by the given key, descending. Unknown
// keys fall back to priority. The sort is stable so equal rows keep the
// server's order.
func SortPricing(metrics []api.PricingMetric, key string) {
	switch key {
	case SortByDemand:
		sort.SliceStable(metrics, func(i, j int) bool {
			ri, rj := demandRank[metrics[i].DemandLevel], demandRank[metrics[j].DemandLevel]
			if ri != rj {
				return ri > rj
			}
			return metrics[i].PriorityScore > metrics[j].PriorityScore
		})
	case SortByDays:
		sort.SliceStable(metrics, func(i, j int) bool {
			return metrics[i].DaysOutOfStock > metrics[j].DaysOutOfStock
		})
	default:
		sort.SliceStable(metrics, func(i, j int) bool {
			return metrics[i].PriorityScore > metrics[j].PriorityScore
		})
	}
}

// Summary holds the dashboard's headline counters.
type Summary struct {
	TotalOutOfStock int
	HighPriority    int
	Critical        int
	HighDemand      int
}

// BuildSummary derives the summary cards from the out-of-stock list and
// pricing metrics.
func BuildSummary(outOfStock []api.OutOfStockProduct, pricing []api.PricingMetric) Summary {
	s := Summary{TotalOutOfStock: len(outOfStock)}
	for _, p := range outOfStock {
		if p.DaysOutOfStock > criticalStockDays {
			s.Critical++
		}
	}
	for _, m := range pricing {
		if m.PriorityScore >= highPriorityScore {
			s.HighPriority++
		}
		if m.DemandLevel == api.DemandHigh {
			s.HighDemand++
		}
	}
	return s
}

// Pagination describes the pager state for a product table.
type Pagination struct {
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// SnapPageSize snaps a requested page size to one of the offered values,
// falling back to the default for anything else.
func SnapPageSize(pageSize int) int {
	for _, s := range pageSizes {
		if pageSize == s {
			return s
		}
	}
	return defaultPageSize
}

// NewPagination normalizes raw page inputs: the page size snaps to an
// offered value, the page clamps into range.
func NewPagination(page, pageSize, total int) Pagination {
	size := SnapPageSize(pageSize)

	totalPages := 0
	if total > 0 {
		totalPages = (total + size - 1) / size
	}

	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	return Pagination{Page: page, PageSize: size, Total: total, TotalPages: totalPages}
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a next page exists.
func (p Pagination) HasNext() bool { return p.TotalPages > 0 && p.Page < p.TotalPages }

// PageSizes returns the offered page sizes.
func (p Pagination) PageSizes() []int { return pageSizes }

var russianCollator = collate.New(language.Russian)

// SortRussian orders names the way a Russian-speaking user expects, with
// Cyrillic sorted properly rather than by code point.
func SortRussian(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return russianCollator.CompareString(names[i], names[j]) < 0
	})
}

// Chart geometry for the favorites time series.
const (
	chartWidth   = 640
	chartHeight  = 180
	chartPadding = 10
)

// SeriesPath builds the SVG polyline points for a time series, scaled into
// the chart viewbox. An empty or single-point series yields an empty path
// rather than degenerate geometry.
func SeriesPath(points []api.TimeSeriesPoint) string {
	if len(points) < 2 {
		return ""
	}

	minV, maxV := points[0].Value, points[0].Value
	for _, p := range points[1:] {
		if p.Value < minV {
			minV = p.Value
		}
		if p.Value > maxV {
			maxV = p.Value
		}
	}
	span := maxV - minV
	if span == 0 {
		span = 1
	}

	innerW := float64(chartWidth - 2*chartPadding)
	innerH := float64(chartHeight - 2*chartPadding)
	step := innerW / float64(len(points)-1)

	var b strings.Builder
	for i, p := range points {
		x := float64(chartPadding) + step*float64(i)
		y := float64(chartPadding) + innerH*(1-float64(p.Value-minV)/float64(span))
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.1f,%.1f", x, y)
	}
	return b.String()
}
