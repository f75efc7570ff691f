// Package testserver runs the full REST and MCP stack over an in-memory
// database for end-to-end tests.
package testserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ganot/stepwise/internal/apiclient"
	"github.com/ganot/stepwise/internal/domain/activity"
	"github.com/ganot/stepwise/internal/domain/progress"
	"github.com/ganot/stepwise/internal/domain/quota"
	"github.com/ganot/stepwise/internal/domain/submission"
	"github.com/ganot/stepwise/internal/domain/suggestion"
	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/mcp"
	"github.com/ganot/stepwise/internal/sqlite"
	"github.com/ganot/stepwise/internal/transport"
	"github.com/stretchr/testify/require"
)

// Options tune the stack under test.
type Options struct {
	QuotaLimit int
	// Provider replaces the rule-based suggestion provider.
	Provider suggestion.Provider
}

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Token    string
	TenantID string

	Quotas *quota.Service
	keys   *sqlite.APIKeyRepository
}

func New(t *testing.T, token, tenantID string) *TestServer {
	return NewWithOptions(t, token, tenantID, Options{QuotaLimit: 5})
}

func NewWithOptions(t *testing.T, token, tenantID string, opts Options) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	catalog := wizard.DefaultCatalog()
	keys := sqlite.NewAPIKeyRepository(db)

	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	quotaSvc := quota.NewService(sqlite.NewQuotaRepository(db), quota.Limits{Default: opts.QuotaLimit}, nil)
	provider := opts.Provider
	if provider == nil {
		provider = suggestion.NewRuleProvider()
	}

	services := transport.Services{
		Catalog:     catalog,
		Progress:    progress.NewService(catalog, sqlite.NewProgressRepository(db), activitySvc, nil),
		Suggestions: suggestion.NewService(catalog, quotaSvc, provider, activitySvc, nil),
		Quotas:      quotaSvc,
		Submissions: submission.NewService(catalog, sqlite.NewSubmissionRepository(db), activitySvc, nil),
		Activity:    activitySvc,
	}

	resolver := transport.NewAPIKeyResolver(keys)
	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Catalog:     services.Catalog,
			Progress:    services.Progress,
			Suggestions: services.Suggestions,
			Quotas:      services.Quotas,
			Submissions: services.Submissions,
			Activity:    services.Activity,
		},
		Resolver:      resolver,
		AuthEnabled:   true,
		TransportMode: "http",
	})

	server := httptest.NewServer(transport.NewServer(services, transport.Options{
		Auth: transport.AuthMiddleware(resolver),
		MCP:  mcp.NewHTTPHandler(mcpServer),
	}))

	ts := &TestServer{
		Server:   server,
		DB:       db,
		Token:    token,
		TenantID: tenantID,
		Quotas:   quotaSvc,
		keys:     keys,
	}

	require.NoError(t, ts.AddAPIKey(token, tenantID))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return ts
}

func (ts *TestServer) AddAPIKey(token, tenantID string) error {
	return ts.keys.Create(context.Background(), tenantID, token, "test")
}

// Client returns a REST client authenticated with the server's token.
func (ts *TestServer) Client() *apiclient.Client {
	return apiclient.New(ts.Server.URL, apiclient.WithToken(ts.Token))
}

// MCPURL is the streamable HTTP endpoint.
func (ts *TestServer) MCPURL() string {
	return ts.Server.URL + "/mcp"
}
