package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ganot/stepwise/internal/domain/activity"
	"github.com/ganot/stepwise/internal/domain/wizard"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ProgressService defines progress operations needed by MCP.
type ProgressService interface {
	Save(ctx context.Context, tenantID string, req wizard.SaveRequest) error
	Load(ctx context.Context, tenantID, wizardID string) (*wizard.Progress, error)
}

// SuggestionService defines suggestion operations needed by MCP.
type SuggestionService interface {
	Suggest(ctx context.Context, tenantID string, req wizard.SuggestionRequest) (*wizard.Suggestion, error)
}

// QuotaService defines quota operations needed by MCP.
type QuotaService interface {
	Get(ctx context.Context, tenantID string) (*wizard.Quota, error)
}

// SubmissionService defines submission operations needed by MCP.
type SubmissionService interface {
	Submit(ctx context.Context, tenantID string, sub wizard.Submission) (*wizard.Receipt, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Catalog     wizard.Catalog
	Progress    ProgressService
	Suggestions SuggestionService
	Quotas      QuotaService
	Submissions SubmissionService
	Activity    ActivityService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      TenantResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	DefaultTenant string
	Logger        *slog.Logger
}

// DefaultTenant is used when authentication is disabled.
const DefaultTenant = "default"

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "stepwise",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	defaultTenant := cfg.DefaultTenant
	if defaultTenant == "" {
		defaultTenant = DefaultTenant
	}

	// Stdio is local only and never authenticates.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(defaultTenant))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services, cfg.Logger)

	return server
}

// NewHTTPHandler serves server over the streamable HTTP transport.
func NewHTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return server },
		&sdkmcp.StreamableHTTPOptions{
			SessionTimeout: 30 * time.Minute,
		},
	)
}
