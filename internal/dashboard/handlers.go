package dashboard

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dynpricing/dashboard-service/internal/api"
	"github.com/dynpricing/dashboard-service/internal/export"
	"github.com/dynpricing/dashboard-service/internal/query"
)

// Dashboard page defaults, matching what the summary cards measure.
const (
	defaultMinStockDays = 15
	defaultTopLimit     = 5
	analyticsTopLimit   = 20
)

// basePage carries the fields every page template needs.
type basePage struct {
	Title  string
	Active string
	Status query.Result[api.Status]
	Error  string
	Flash  string
	Stale  bool
}

func (s *Server) basePage(c *gin.Context, title, active string) basePage {
	return basePage{
		Title:  title,
		Active: active,
		Status: query.Peek(s.cache, s.queries.Status(), nil),
		Flash:  c.Query("flash"),
		Error:  c.Query("error"),
	}
}

// collect folds a fetch result into the page: remembers the first error and
// whether anything on the page is stale.
func (p *basePage) collect(err error, stale bool) {
	if err != nil && p.Error == "" {
		p.Error = api.UserMessage(err)
	}
	if stale {
		p.Stale = true
	}
}

func (s *Server) handleDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	page := struct {
		basePage
		Summary    Summary
		TopDemand  []api.DemandMetric
		OutOfStock []api.OutOfStockProduct
	}{basePage: s.basePage(c, "Обзор", "dashboard")}

	stockFilter := api.StockFilter{MinDays: defaultMinStockDays}
	stock := query.Fetch(ctx, s.cache, s.queries.OutOfStock(stockFilter), stockFilter.Values())
	page.collect(stock.Err, stock.Stale)

	pricingFilter := api.PricingFilter{MinDaysOutOfStock: defaultMinStockDays}
	pricing := query.Fetch(ctx, s.cache, s.queries.Pricing(pricingFilter), pricingFilter.Values())
	page.collect(pricing.Err, pricing.Stale)

	topFilter := api.DemandFilter{Limit: defaultTopLimit}
	top := query.Fetch(ctx, s.cache, s.queries.TopDemand(topFilter), topFilter.Values())
	page.collect(top.Err, top.Stale)

	page.Summary = BuildSummary(stock.Data, pricing.Data.Metrics)
	page.TopDemand = top.Data
	page.OutOfStock = stock.Data

	s.renderPage(c, "dashboard", page)
}

func (s *Server) handleProducts(c *gin.Context) {
	ctx := c.Request.Context()

	filter := api.ProductFilter{
		CategoryLevel1: c.Query("category"),
		Brand:          c.Query("brand"),
		MinFavorites:   atoiDefault(c.Query("min_favorites"), 0),
		Page:           atoiDefault(c.Query("page"), 1),
		PageSize:       SnapPageSize(atoiDefault(c.Query("page_size"), defaultPageSize)),
	}

	page := struct {
		basePage
		Filter      api.ProductFilter
		Products    []api.Product
		Categories  []string
		Brands      []string
		Pagination  Pagination
		ExportQuery string
		PrevQuery   string
		NextQuery   string
	}{basePage: s.basePage(c, "Товары", "products"), Filter: filter}

	list := query.Fetch(ctx, s.cache, s.queries.Products(filter), filter.Values())
	page.collect(list.Err, list.Stale)
	page.Products = list.Data.Products
	page.Pagination = NewPagination(filter.Page, filter.PageSize, list.Data.Total)

	categories := query.Peek(s.cache, s.queries.Categories(), nil)
	page.Categories = sortedNames(categories.Data)

	brands := query.Peek(s.cache, s.queries.Brands(filter.CategoryLevel1), brandParams(filter.CategoryLevel1))
	page.Brands = sortedNames(brands.Data)

	page.ExportQuery = productQuery(filter, 0, 0).Encode()
	page.PrevQuery = productQuery(filter, page.Pagination.Page-1, page.Pagination.PageSize).Encode()
	page.NextQuery = productQuery(filter, page.Pagination.Page+1, page.Pagination.PageSize).Encode()

	s.renderPage(c, "products", page)
}

func (s *Server) handleAnalytics(c *gin.Context) {
	ctx := c.Request.Context()
	category := c.Query("category")
	period := c.DefaultQuery("period", "day")
	groupBy := c.DefaultQuery("group_by", "category")

	page := struct {
		basePage
		Category   string
		Period     string
		GroupBy    string
		Categories []string
		Top        []api.DemandMetric
		Trends     []api.TrendRow
		Series     api.TimeSeries
		SeriesPath string
	}{basePage: s.basePage(c, "Аналитика", "analytics"), Category: category, Period: period, GroupBy: groupBy}

	topFilter := api.DemandFilter{Limit: analyticsTopLimit, Category: category}
	top := query.Fetch(ctx, s.cache, s.queries.TopDemand(topFilter), topFilter.Values())
	page.collect(top.Err, top.Stale)
	page.Top = top.Data

	trendFilter := api.TrendFilter{Category: category, GroupBy: groupBy}
	trends := query.Fetch(ctx, s.cache, s.queries.Trends(trendFilter), trendFilter.Values())
	page.collect(trends.Err, trends.Stale)
	page.Trends = trends.Data

	seriesFilter := api.SeriesFilter{Category: category, Period: period}
	series := query.Fetch(ctx, s.cache, s.queries.TimeSeries(seriesFilter), seriesFilter.Values())
	page.collect(series.Err, series.Stale)
	page.Series = series.Data
	page.SeriesPath = SeriesPath(series.Data.Data)

	categories := query.Peek(s.cache, s.queries.Categories(), nil)
	page.Categories = sortedNames(categories.Data)

	s.renderPage(c, "analytics", page)
}

func (s *Server) handlePricing(c *gin.Context) {
	ctx := c.Request.Context()

	filter := api.PricingFilter{
		Category:          c.Query("category"),
		Brand:             c.Query("brand"),
		MinDaysOutOfStock: atoiDefault(c.Query("min_days"), defaultMinStockDays),
	}
	sortKey := c.DefaultQuery("sort", SortByPriority)

	page := struct {
		basePage
		Filter     api.PricingFilter
		Sort       string
		Summary    Summary
		Categories []string
		Metrics    []api.PricingMetric
	}{basePage: s.basePage(c, "Ценообразование", "pricing"), Filter: filter, Sort: sortKey}

	res := query.Fetch(ctx, s.cache, s.queries.Pricing(filter), filter.Values())
	page.collect(res.Err, res.Stale)

	stockFilter := api.StockFilter{MinDays: filter.MinDaysOutOfStock, Category: filter.Category, Brand: filter.Brand}
	stock := query.Fetch(ctx, s.cache, s.queries.OutOfStock(stockFilter), stockFilter.Values())
	page.collect(stock.Err, stock.Stale)
	page.Summary = BuildSummary(stock.Data, res.Data.Metrics)

	// Sort a copy so the cached slice keeps the server's order.
	metrics := append([]api.PricingMetric(nil), res.Data.Metrics...)
	SortPricing(metrics, sortKey)
	page.Metrics = metrics

	categories := query.Peek(s.cache, s.queries.Categories(), nil)
	page.Categories = sortedNames(categories.Data)

	s.renderPage(c, "pricing", page)
}

func (s *Server) handleCache(c *gin.Context) {
	ctx := c.Request.Context()

	filter := api.CacheProductsFilter{
		Search:   c.Query("search"),
		Page:     atoiDefault(c.Query("page"), 1),
		PageSize: SnapPageSize(atoiDefault(c.Query("page_size"), defaultPageSize)),
	}

	page := struct {
		basePage
		Search     string
		Stats      api.CacheStats
		Products   []api.Product
		Pagination Pagination
		PrevQuery  string
		NextQuery  string
	}{basePage: s.basePage(c, "Кэш", "cache"), Search: filter.Search}

	stats := query.Fetch(ctx, s.cache, s.queries.CacheStats(), nil)
	page.collect(stats.Err, stats.Stale)
	page.Stats = stats.Data

	list := query.Fetch(ctx, s.cache, s.queries.CacheProducts(filter), filter.Values())
	page.collect(list.Err, list.Stale)
	page.Products = list.Data.Products
	page.Pagination = NewPagination(filter.Page, filter.PageSize, list.Data.Total)

	prev := filter
	prev.Page = page.Pagination.Page - 1
	page.PrevQuery = prev.Values().Encode()
	next := filter
	next.Page = page.Pagination.Page + 1
	page.NextQuery = next.Values().Encode()

	s.renderPage(c, "cache", page)
}

func (s *Server) handleIntegrations(c *gin.Context) {
	ctx := c.Request.Context()
	cfg := s.settings.Get()

	page := struct {
		basePage
		N8NConfigured  bool
		N8NEndpoint    string
		N8NKeyMasked   string
		Workflows      api.WorkflowList
		BotStatus      api.BotStatus
		BotTokenMasked string
	}{
		basePage:       s.basePage(c, "Интеграции", "integrations"),
		N8NConfigured:  s.n8n.Configured(),
		N8NEndpoint:    cfg.N8NEndpoint,
		N8NKeyMasked:   maskedKey(cfg.N8NAPIKey),
		BotTokenMasked: s.telegram.MaskedToken(),
	}

	if page.N8NConfigured {
		workflows := s.n8n.Workflows(ctx)
		page.collect(workflows.Err, workflows.Stale)
		page.Workflows = workflows.Data
	}

	if status, err := s.telegram.Status(ctx); err == nil {
		page.BotStatus = status
	} else {
		page.collect(err, false)
	}

	s.renderPage(c, "integrations", page)
}

// Integration mutations redirect back to the panel with the outcome in the
// query string.

func (s *Server) handleN8NCredentials(c *gin.Context) {
	endpoint := c.PostForm("endpoint")
	apiKey := c.PostForm("api_key")
	if apiKey == "" {
		// An untouched key field keeps the stored one.
		apiKey = s.settings.Get().N8NAPIKey
	}

	if err := s.n8n.SaveCredentials(c.Request.Context(), endpoint, apiKey); err != nil {
		s.redirectIntegrations(c, "", api.UserMessage(err))
		return
	}
	s.redirectIntegrations(c, "Настройки n8n сохранены", "")
}

func (s *Server) handleN8NTest(c *gin.Context) {
	cfg := s.settings.Get()
	res, err := s.n8n.TestConnection(c.Request.Context(), cfg.N8NEndpoint, cfg.N8NAPIKey)
	if err != nil {
		s.redirectIntegrations(c, "", api.UserMessage(err))
		return
	}
	if !res.Success {
		s.redirectIntegrations(c, "", res.Message)
		return
	}
	s.redirectIntegrations(c, "Подключение работает: сценариев "+strconv.Itoa(res.WorkflowsCount), "")
}

func (s *Server) handleWorkflowToggle(c *gin.Context) {
	id := c.Param("id")
	active := c.PostForm("active") == "true"

	_, err := s.n8n.Toggle(c.Request.Context(), id, active)
	if err != nil {
		s.redirectIntegrations(c, "", api.UserMessage(err))
		return
	}
	s.redirectIntegrations(c, "Статус сценария обновлён", "")
}

func (s *Server) handleTelegramToken(c *gin.Context) {
	res, err := s.telegram.SaveToken(c.Request.Context(), c.PostForm("token"), c.PostForm("webhook_url"))
	if err != nil {
		s.redirectIntegrations(c, "", api.UserMessage(err))
		return
	}
	if !res.Success {
		s.redirectIntegrations(c, "", res.Message)
		return
	}
	s.redirectIntegrations(c, "Токен бота сохранён", "")
}

func (s *Server) handleTelegramTestMessage(c *gin.Context) {
	res, err := s.telegram.SendTestMessage(c.Request.Context(), c.PostForm("chat_id"), c.PostForm("message"))
	if err != nil {
		s.redirectIntegrations(c, "", api.UserMessage(err))
		return
	}
	if !res.Success {
		s.redirectIntegrations(c, "", res.Message)
		return
	}
	s.redirectIntegrations(c, "Сообщение отправлено", "")
}

func (s *Server) handleTelegramMenu(c *gin.Context) {
	res, err := s.telegram.SetMenu(c.Request.Context())
	if err != nil {
		s.redirectIntegrations(c, "", api.UserMessage(err))
		return
	}
	if !res.Success {
		s.redirectIntegrations(c, "", res.Message)
		return
	}
	s.redirectIntegrations(c, "Меню команд установлено", "")
}

func (s *Server) redirectIntegrations(c *gin.Context, flash, errMsg string) {
	v := url.Values{}
	if flash != "" {
		v.Set("flash", flash)
	}
	if errMsg != "" {
		v.Set("error", errMsg)
	}
	target := "/integrations"
	if encoded := v.Encode(); encoded != "" {
		target += "?" + encoded
	}
	c.Redirect(http.StatusSeeOther, target)
}

// handlePrefetch warms the queries behind a section before the user
// navigates there. Unknown routes are ignored rather than rejected.
func (s *Server) handlePrefetch(c *gin.Context) {
	switch c.Query("route") {
	case "dashboard":
		stockFilter := api.StockFilter{MinDays: defaultMinStockDays}
		query.Prefetch(s.cache, s.queries.OutOfStock(stockFilter), stockFilter.Values())
		pricingFilter := api.PricingFilter{MinDaysOutOfStock: defaultMinStockDays}
		query.Prefetch(s.cache, s.queries.Pricing(pricingFilter), pricingFilter.Values())
		topFilter := api.DemandFilter{Limit: defaultTopLimit}
		query.Prefetch(s.cache, s.queries.TopDemand(topFilter), topFilter.Values())
	case "products":
		filter := api.ProductFilter{Page: 1, PageSize: defaultPageSize}
		query.Prefetch(s.cache, s.queries.Products(filter), filter.Values())
		query.Prefetch(s.cache, s.queries.Categories(), nil)
	case "analytics":
		topFilter := api.DemandFilter{Limit: analyticsTopLimit}
		query.Prefetch(s.cache, s.queries.TopDemand(topFilter), topFilter.Values())
		trendFilter := api.TrendFilter{GroupBy: "category"}
		query.Prefetch(s.cache, s.queries.Trends(trendFilter), trendFilter.Values())
		seriesFilter := api.SeriesFilter{Period: "day"}
		query.Prefetch(s.cache, s.queries.TimeSeries(seriesFilter), seriesFilter.Values())
	case "pricing":
		filter := api.PricingFilter{MinDaysOutOfStock: defaultMinStockDays}
		query.Prefetch(s.cache, s.queries.Pricing(filter), filter.Values())
	case "cache":
		query.Prefetch(s.cache, s.queries.CacheStats(), nil)
		filter := api.CacheProductsFilter{Page: 1, PageSize: defaultPageSize}
		query.Prefetch(s.cache, s.queries.CacheProducts(filter), filter.Values())
	}
	c.Status(http.StatusNoContent)
}

// handleStatusJSON serves the header poll. It reads the cache only; the
// background poller keeps the entry current.
func (s *Server) handleStatusJSON(c *gin.Context) {
	res := query.Peek(s.cache, s.queries.Status(), nil)
	c.JSON(http.StatusOK, res.Data)
}

// handleExportProducts streams the filtered catalog as a workbook. It pages
// through the backend so the export covers the whole filter, not just the
// visible page.
func (s *Server) handleExportProducts(c *gin.Context) {
	ctx := c.Request.Context()

	filter := api.ProductFilter{
		CategoryLevel1: c.Query("category"),
		Brand:          c.Query("brand"),
		MinFavorites:   atoiDefault(c.Query("min_favorites"), 0),
		PageSize:       100,
	}

	var products []api.Product
	for pageNum := 1; pageNum <= maxExportPages; pageNum++ {
		filter.Page = pageNum
		res := query.Fetch(ctx, s.cache, s.queries.Products(filter), filter.Values())
		if res.Err != nil && res.Source != query.SourceLive {
			c.String(http.StatusBadGateway, api.UserMessage(res.Err))
			return
		}
		products = append(products, res.Data.Products...)
		if pageNum >= res.Data.TotalPages {
			break
		}
	}

	buf, err := export.Products(products)
	if err != nil {
		s.logger.Error().Err(err).Msg("Product export failed")
		c.String(http.StatusInternalServerError, "export failed")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="products.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

const maxExportPages = 50

func (s *Server) handleHealth(c *gin.Context) {
	status := query.Peek(s.cache, s.queries.Status(), nil)
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"backend_ready": status.Data.CacheReady,
	})
}

func (s *Server) renderPage(c *gin.Context, name string, data any) {
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.render(c.Writer, name, data); err != nil {
		s.logger.Error().Err(err).Str("page", name).Msg("Template render failed")
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// sortedNames collates a copy of the list for display.
func sortedNames(names []string) []string {
	out := append([]string(nil), names...)
	SortRussian(out)
	return out
}

func brandParams(category string) url.Values {
	v := url.Values{}
	if category != "" {
		v.Set("category", category)
	}
	return v
}

func productQuery(f api.ProductFilter, page, pageSize int) url.Values {
	v := url.Values{}
	if f.CategoryLevel1 != "" {
		v.Set("category", f.CategoryLevel1)
	}
	if f.Brand != "" {
		v.Set("brand", f.Brand)
	}
	if f.MinFavorites > 0 {
		v.Set("min_favorites", strconv.Itoa(f.MinFavorites))
	}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		v.Set("page_size", strconv.Itoa(pageSize))
	}
	return v
}

func stockDefaults() api.StockFilter {
	return api.StockFilter{MinDays: defaultMinStockDays}
}

func pricingDefaults() api.PricingFilter {
	return api.PricingFilter{MinDaysOutOfStock: defaultMinStockDays}
}

func maskedKey(key string) string {
	if key == "" {
		return ""
	}
	return "••••••••"
}
