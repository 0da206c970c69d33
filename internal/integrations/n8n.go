// Package integrations manages the n8n workflow and Telegram bot panels:
// credential storage, connection checks, and the mutations the dashboard
// exposes for them.
package integrations

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/dynpricing/dashboard-service/internal/api"
	"github.com/dynpricing/dashboard-service/internal/query"
	"github.com/dynpricing/dashboard-service/internal/settings"
)

// ErrNotConfigured is returned when an n8n operation runs before an
// endpoint URL has been saved.
var ErrNotConfigured = errors.New("n8n endpoint is not configured")

// n8n client interface, satisfied by *api.Client.
type n8nAPI interface {
	Workflows(ctx context.Context, endpoint, apiKey string) (api.WorkflowList, error)
	ToggleWorkflow(ctx context.Context, id string, active bool, endpoint, apiKey string) (api.ActionResult, error)
	TestConnection(ctx context.Context, endpoint, apiKey string) (api.ConnectionTestResult, error)
}

// N8N coordinates workflow listing and toggling against the configured
// n8n instance. Credentials come from the settings store at call time, so
// a credential update takes effect without a restart.
type N8N struct {
	client    n8nAPI
	store     *settings.Store
	cache     *query.Cache
	logger    zerolog.Logger
	workflows query.Query[api.WorkflowList]
}

// NewN8N creates the n8n integration service.
func NewN8N(client n8nAPI, store *settings.Store, cache *query.Cache, logger zerolog.Logger) *N8N {
	s := &N8N{
		client: client,
		store:  store,
		cache:  cache,
		logger: logger.With().Str("component", "n8n").Logger(),
	}
	s.workflows = query.Query[api.WorkflowList]{
		Class:       query.Class{Name: "workflows", Fresh: time.Minute},
		Placeholder: func() api.WorkflowList { return api.WorkflowList{Workflows: []api.Workflow{}} },
		Run: func(ctx context.Context, _ url.Values) (api.WorkflowList, error) {
			cfg := s.store.Get()
			if cfg.N8NEndpoint == "" {
				return api.WorkflowList{}, ErrNotConfigured
			}
			return s.client.Workflows(ctx, cfg.N8NEndpoint, cfg.N8NAPIKey)
		},
	}
	return s
}

// Configured reports whether an endpoint has been saved.
func (s *N8N) Configured() bool {
	return s.store.Get().N8NEndpoint != ""
}

// Workflows returns the cached workflow list, fetching when needed.
func (s *N8N) Workflows(ctx context.Context) query.Result[api.WorkflowList] {
	if !s.Configured() {
		return query.Result[api.WorkflowList]{
			Data:   api.WorkflowList{Workflows: []api.Workflow{}},
			Source: query.SourceNone,
			Err:    ErrNotConfigured,
		}
	}
	return query.Fetch(ctx, s.cache, s.workflows, nil)
}

// Toggle activates or deactivates a workflow, then re-reads the list from
// the server regardless of the outcome. The returned list always reflects
// the server's actual state, so a failed toggle shows up as the workflow
// staying put rather than the page pretending the switch flipped.
func (s *N8N) Toggle(ctx context.Context, id string, active bool) (api.WorkflowList, error) {
	cfg := s.store.Get()
	if cfg.N8NEndpoint == "" {
		return api.WorkflowList{}, ErrNotConfigured
	}

	_, toggleErr := s.client.ToggleWorkflow(ctx, id, active, cfg.N8NEndpoint, cfg.N8NAPIKey)
	if toggleErr != nil {
		s.logger.Warn().
			Err(toggleErr).
			Str("workflow_id", id).
			Bool("active", active).
			Msg("Workflow toggle failed")
	}

	list, refreshErr := query.ForceRefresh(ctx, s.cache, s.workflows, nil)
	if toggleErr != nil {
		return list, toggleErr
	}
	return list, refreshErr
}

// TestConnection checks the given credentials against the n8n instance
// without saving them.
func (s *N8N) TestConnection(ctx context.Context, endpoint, apiKey string) (api.ConnectionTestResult, error) {
	return s.client.TestConnection(ctx, endpoint, apiKey)
}

// SaveCredentials persists the endpoint and API key, then refreshes the
// workflow list against the new target.
func (s *N8N) SaveCredentials(ctx context.Context, endpoint, apiKey string) error {
	err := s.store.Update(func(st *settings.Settings) {
		st.N8NEndpoint = endpoint
		st.N8NAPIKey = apiKey
	})
	if err != nil {
		return err
	}
	if endpoint != "" {
		if _, err := query.ForceRefresh(ctx, s.cache, s.workflows, nil); err != nil {
			s.logger.Warn().Err(err).Msg("Workflow refresh after credential change failed")
		}
	}
	return nil
}
