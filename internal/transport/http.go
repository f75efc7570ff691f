package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ganot/stepwise/internal/api"
	"github.com/ganot/stepwise/internal/domain/activity"
	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ProgressService saves and loads wizard progress.
type ProgressService interface {
	Save(ctx context.Context, tenantID string, req wizard.SaveRequest) error
	Load(ctx context.Context, tenantID, wizardID string) (*wizard.Progress, error)
}

// SuggestionService issues suggestions.
type SuggestionService interface {
	Suggest(ctx context.Context, tenantID string, req wizard.SuggestionRequest) (*wizard.Suggestion, error)
}

// QuotaService reports suggestion allowance.
type QuotaService interface {
	Get(ctx context.Context, tenantID string) (*wizard.Quota, error)
}

// SubmissionService accepts final submissions.
type SubmissionService interface {
	Submit(ctx context.Context, tenantID string, sub wizard.Submission) (*wizard.Receipt, error)
}

// ActivityService lists tenant activity.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services are the domain services the API exposes.
type Services struct {
	Catalog     wizard.Catalog
	Progress    ProgressService
	Suggestions SuggestionService
	Quotas      QuotaService
	Submissions SubmissionService
	Activity    ActivityService
}

// Options configure the router.
type Options struct {
	// Auth authenticates /v1 and /mcp. Nil disables authentication and trusts
	// the tenant in the path.
	Auth func(http.Handler) http.Handler
	// MCP is mounted at /mcp when set.
	MCP http.Handler
	// SuggestionLimiter throttles the suggestion route per tenant when set.
	SuggestionLimiter *TenantLimiter
	Logger            *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	services Services
	logger   *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(services Services, opts Options) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	srv := &Server{services: services, logger: opts.Logger}

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}

		if opts.MCP != nil {
			r.Handle("/mcp", opts.MCP)
		}

		r.Route("/v1/tenants/{tenantID}", func(r chi.Router) {
			r.Use(tenantScope)

			r.Get("/quota", srv.handleGetQuota)
			r.Get("/activity", srv.handleListActivity)

			r.Route("/wizards/{wizardID}", func(r chi.Router) {
				r.Get("/", srv.handleGetDefinition)
				r.Get("/progress", srv.handleLoadProgress)
				r.Put("/progress", srv.handleSaveProgress)
				r.Post("/submissions", srv.handleSubmit)
				r.With(limit(opts.SuggestionLimiter)).Post("/suggestions", srv.handleSuggest)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// tenantScope binds the path tenant to the request. An authenticated tenant
// may only address itself.
func tenantScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pathTenant := chi.URLParam(r, "tenantID")
		if pathTenant == "" {
			writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "missing tenant", nil)
			return
		}
		if authTenant, ok := TenantFromContext(r.Context()); ok && authTenant != pathTenant {
			writeError(w, http.StatusForbidden, api.CodeForbidden, "token is not valid for this tenant", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), pathTenant)))
	})
}

func limit(l *TenantLimiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return l.Middleware
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
