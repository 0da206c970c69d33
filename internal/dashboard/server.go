// Package dashboard is the server-rendered front-end for the pricing
// analytics backend: page handlers, presentation helpers, and the query
// definitions that feed them through the cache.
package dashboard

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dynpricing/dashboard-service/config"
	"github.com/dynpricing/dashboard-service/internal/api"
	"github.com/dynpricing/dashboard-service/internal/integrations"
	"github.com/dynpricing/dashboard-service/internal/middleware"
	"github.com/dynpricing/dashboard-service/internal/query"
	"github.com/dynpricing/dashboard-service/internal/settings"
)

// Server wires the page handlers to the query cache and the integration
// services.
type Server struct {
	cfg       *config.Config
	logger    zerolog.Logger
	cache     *query.Cache
	queries   *Queries
	settings  *settings.Store
	n8n       *integrations.N8N
	telegram  *integrations.Telegram
	templates *templates
	router    *gin.Engine
	poller    *query.Poller
}

// NewServer creates the dashboard server.
func NewServer(
	cfg *config.Config,
	logger zerolog.Logger,
	queries *Queries,
	store *settings.Store,
	n8n *integrations.N8N,
	telegram *integrations.Telegram,
) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger.With().Str("component", "dashboard").Logger(),
		cache:     queries.Cache(),
		queries:   queries,
		settings:  store,
		n8n:       n8n,
		telegram:  telegram,
		templates: tmpl,
	}

	s.poller = query.NewPoller(logger, cfg.Cache.StatusPollInterval, func(ctx context.Context) error {
		_, err := query.ForceRefresh(ctx, s.cache, s.queries.Status(), nil)
		return err
	})

	s.router = s.buildRouter()
	return s, nil
}

// Router returns the HTTP handler.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// StartPoller runs the status poller until the context is cancelled.
func (s *Server) StartPoller(ctx context.Context) {
	s.poller.Start(ctx)
}

// StopPoller signals the status poller to stop.
func (s *Server) StopPoller() {
	s.poller.Stop()
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(s.logger))
	router.Use(middleware.RateLimitMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: s.cfg.RateLimit.RequestsPerSecond,
		BurstSize:         s.cfg.RateLimit.Burst,
	}))

	router.GET("/", s.handleDashboard)
	router.GET("/products", s.handleProducts)
	router.GET("/analytics", s.handleAnalytics)
	router.GET("/pricing", s.handlePricing)
	router.GET("/cache", s.handleCache)
	router.GET("/integrations", s.handleIntegrations)

	router.POST("/integrations/n8n/credentials", s.handleN8NCredentials)
	router.POST("/integrations/n8n/test", s.handleN8NTest)
	router.POST("/integrations/n8n/workflows/:id/toggle", s.handleWorkflowToggle)
	router.POST("/integrations/telegram/token", s.handleTelegramToken)
	router.POST("/integrations/telegram/test-message", s.handleTelegramTestMessage)
	router.POST("/integrations/telegram/menu", s.handleTelegramMenu)

	router.POST("/prefetch",
		middleware.PrefetchRateLimitMiddleware(50, 100),
		s.handlePrefetch)
	router.GET("/status.json", s.handleStatusJSON)
	router.GET("/export/products.xlsx", s.handleExportProducts)

	router.GET("/health", s.handleHealth)
	router.GET("/metrics",
		middleware.MetricsAuthMiddleware(),
		gin.WrapH(promhttp.Handler()))

	return router
}

// WarmStartupQueries prefetches the queries the landing page needs, so the
// first visitor after a deploy does not pay for a cold cache.
func (s *Server) WarmStartupQueries() {
	stockFilter := stockDefaults()
	query.Prefetch(s.cache, s.queries.OutOfStock(stockFilter), stockFilter.Values())
	pricingFilter := pricingDefaults()
	query.Prefetch(s.cache, s.queries.Pricing(pricingFilter), pricingFilter.Values())
	topFilter := api.DemandFilter{Limit: defaultTopLimit}
	query.Prefetch(s.cache, s.queries.TopDemand(topFilter), topFilter.Values())
	query.Prefetch(s.cache, s.queries.Categories(), url.Values{})
}
