package transport

import (
	"net/http"
	"strconv"

	"github.com/ganot/stepwise/internal/api"
	"github.com/ganot/stepwise/internal/domain/activity"
	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/go-chi/chi/v5"
)

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, details := statusFor(err)
	if status >= http.StatusInternalServerError && s.logger != nil {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeError(w, status, code, message, details)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, err.Error(), nil)
}

func (s *Server) definition(w http.ResponseWriter, r *http.Request) (*wizard.Definition, bool) {
	def, err := s.services.Catalog.Get(chi.URLParam(r, "wizardID"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return def, true
}

func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	def, ok := s.definition(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleLoadProgress(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := TenantFromContext(r.Context())
	def, ok := s.definition(w, r)
	if !ok {
		return
	}

	prog, err := s.services.Progress.Load(r.Context(), tenantID, def.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	raw, err := wizard.EncodeDrafts(prog.Drafts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ProgressResponse{
		WizardID:    prog.WizardID,
		CurrentStep: prog.CurrentStep,
		StepDrafts:  raw,
		UpdatedAt:   prog.UpdatedAt,
	})
}

func (s *Server) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := TenantFromContext(r.Context())
	def, ok := s.definition(w, r)
	if !ok {
		return
	}

	var req api.SaveProgressRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	draft, err := def.Decode(req.StepKey, req.StepDraft)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	err = s.services.Progress.Save(r.Context(), tenantID, wizard.SaveRequest{
		WizardID:    def.ID,
		CurrentStep: req.CurrentStep,
		StepKey:     req.StepKey,
		Draft:       draft,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := TenantFromContext(r.Context())
	def, ok := s.definition(w, r)
	if !ok {
		return
	}

	var req api.SuggestionRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	draft, err := def.Decode(req.StepKey, req.StepDraft)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	previous, err := def.DecodeDrafts(req.PreviousSteps)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out, err := s.services.Suggestions.Suggest(r.Context(), tenantID, wizard.SuggestionRequest{
		WizardID:      def.ID,
		StepKey:       req.StepKey,
		Draft:         draft,
		PreviousSteps: previous,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := TenantFromContext(r.Context())
	def, ok := s.definition(w, r)
	if !ok {
		return
	}

	var req api.SubmissionRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	drafts, err := def.DecodeDrafts(req.StepDrafts)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	receipt, err := s.services.Submissions.Submit(r.Context(), tenantID, wizard.Submission{
		WizardID:    def.ID,
		Drafts:      drafts,
		Suggestions: req.Suggestions,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) handleGetQuota(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := TenantFromContext(r.Context())
	q, err := s.services.Quotas.Get(r.Context(), tenantID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := TenantFromContext(r.Context())
	query := r.URL.Query()

	opts := activity.ListActivityOptions{WizardID: query.Get("wizard")}
	if typ := query.Get("type"); typ != "" {
		t := activity.ActivityType(typ)
		opts.ActivityType = &t
	}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		if v := query.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "invalid "+name, nil)
				return
			}
			*dst = n
		}
	}

	entries, err := s.services.Activity.GetRecentActivity(r.Context(), tenantID, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
