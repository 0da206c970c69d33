package integrations

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynpricing/dashboard-service/internal/api"
	"github.com/dynpricing/dashboard-service/internal/query"
	"github.com/dynpricing/dashboard-service/internal/settings"
)

type fakeN8NAPI struct {
	workflows     api.WorkflowList
	workflowCalls int32
	toggleErr     error
	toggleCalls   int32
	testResult    api.ConnectionTestResult
}

func (f *fakeN8NAPI) Workflows(ctx context.Context, endpoint, apiKey string) (api.WorkflowList, error) {
	atomic.AddInt32(&f.workflowCalls, 1)
	return f.workflows, nil
}

func (f *fakeN8NAPI) ToggleWorkflow(ctx context.Context, id string, active bool, endpoint, apiKey string) (api.ActionResult, error) {
	atomic.AddInt32(&f.toggleCalls, 1)
	if f.toggleErr != nil {
		return api.ActionResult{}, f.toggleErr
	}
	for i := range f.workflows.Workflows {
		if f.workflows.Workflows[i].ID == id {
			f.workflows.Workflows[i].Active = active
		}
	}
	return api.ActionResult{Success: true}, nil
}

func (f *fakeN8NAPI) TestConnection(ctx context.Context, endpoint, apiKey string) (api.ConnectionTestResult, error) {
	return f.testResult, nil
}

func newTestN8N(t *testing.T, client n8nAPI, configured bool) (*N8N, *settings.Store) {
	t.Helper()
	store, err := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	if configured {
		require.NoError(t, store.Update(func(s *settings.Settings) {
			s.N8NEndpoint = "https://n8n.example.com"
			s.N8NAPIKey = "key"
		}))
	}
	cache := query.New(query.DefaultConfig(), zerolog.Nop())
	t.Cleanup(cache.Close)
	return NewN8N(client, store, cache, zerolog.Nop()), store
}

func TestWorkflowsRequireConfiguration(t *testing.T) {
	fake := &fakeN8NAPI{}
	svc, _ := newTestN8N(t, fake, false)

	res := svc.Workflows(context.Background())
	assert.ErrorIs(t, res.Err, ErrNotConfigured)
	assert.Equal(t, query.SourceNone, res.Source)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fake.workflowCalls),
		"no API call without an endpoint")
}

func TestWorkflowsCached(t *testing.T) {
	fake := &fakeN8NAPI{workflows: api.WorkflowList{Workflows: []api.Workflow{
		{ID: "wf-1", Name: "Repricing", Active: true},
	}}}
	svc, _ := newTestN8N(t, fake, true)

	res := svc.Workflows(context.Background())
	require.NoError(t, res.Err)
	require.Len(t, res.Data.Workflows, 1)

	svc.Workflows(context.Background())
	assert.EqualValues(t, 1, atomic.LoadInt32(&fake.workflowCalls),
		"second read within the freshness window hits the cache")
}

func TestToggleSuccessReflectsServerState(t *testing.T) {
	fake := &fakeN8NAPI{workflows: api.WorkflowList{Workflows: []api.Workflow{
		{ID: "wf-1", Name: "Repricing", Active: false},
	}}}
	svc, _ := newTestN8N(t, fake, true)

	list, err := svc.Toggle(context.Background(), "wf-1", true)
	require.NoError(t, err)
	require.Len(t, list.Workflows, 1)
	assert.True(t, list.Workflows[0].Active)
}

func TestToggleFailureReQueriesActualState(t *testing.T) {
	fake := &fakeN8NAPI{
		workflows: api.WorkflowList{Workflows: []api.Workflow{
			{ID: "wf-1", Name: "Repricing", Active: false},
		}},
		toggleErr: errors.New("n8n rejected the request"),
	}
	svc, _ := newTestN8N(t, fake, true)

	// Warm the cache first, as the page would have.
	svc.Workflows(context.Background())
	before := atomic.LoadInt32(&fake.workflowCalls)

	list, err := svc.Toggle(context.Background(), "wf-1", true)
	assert.Error(t, err, "the failure must reach the caller")
	require.Len(t, list.Workflows, 1)
	assert.False(t, list.Workflows[0].Active,
		"the returned list shows the server's actual state, not the attempted one")
	assert.Greater(t, atomic.LoadInt32(&fake.workflowCalls), before,
		"a failed toggle still re-queries the server")
}

func TestToggleRequiresConfiguration(t *testing.T) {
	fake := &fakeN8NAPI{}
	svc, _ := newTestN8N(t, fake, false)

	_, err := svc.Toggle(context.Background(), "wf-1", true)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fake.toggleCalls))
}

func TestSaveCredentialsPersistsAndRefreshes(t *testing.T) {
	fake := &fakeN8NAPI{workflows: api.WorkflowList{Workflows: []api.Workflow{}}}
	svc, store := newTestN8N(t, fake, false)

	err := svc.SaveCredentials(context.Background(), "https://n8n.internal", "secret")
	require.NoError(t, err)

	got := store.Get()
	assert.Equal(t, "https://n8n.internal", got.N8NEndpoint)
	assert.Equal(t, "secret", got.N8NAPIKey)
	assert.EqualValues(t, 1, atomic.LoadInt32(&fake.workflowCalls),
		"saving credentials refreshes the workflow list")
}
