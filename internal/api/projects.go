package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pinforge-core/internal/audit"
	"github.com/nerrad567/pinforge-core/internal/project"
)

// Run listing limits.
const (
	defaultRunLimit = 20
	maxRunLimit     = 100
)

// specRequest is a spec as sent by clients. A missing
// use_default_constraints takes the server default.
type specRequest struct {
	project.Spec
	UseDefaultConstraints *bool `json:"use_default_constraints"`
}

func (r specRequest) resolve(defaultConstraints bool) project.Spec {
	spec := r.Spec
	spec.UseDefaultConstraints = defaultConstraints
	if r.UseDefaultConstraints != nil {
		spec.UseDefaultConstraints = *r.UseDefaultConstraints
	}
	return spec
}

// projectRequest is the body of project create and update.
type projectRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	specRequest
}

func (s *Server) projectFrom(req projectRequest) *project.Project {
	return &project.Project{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Spec:        req.resolve(s.defaultConstraints),
	}
}

// handleAllocate runs an unsaved allocation and returns the result.
func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req specRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, _, err := s.service.Preview(r.Context(), req.resolve(s.defaultConstraints))
	if err != nil {
		s.writeServiceError(w, err, "allocate")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListProjects returns all projects.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.service.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "list projects")
		return
	}
	if projects == nil {
		projects = []project.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects, "count": len(projects)})
}

// handleCreateProject validates and stores a new project.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := s.service.Create(r.Context(), s.projectFrom(req))
	if err != nil {
		s.writeServiceError(w, err, "create project")
		return
	}
	s.auditLog(r, audit.ActionCreate, created.ID, map[string]any{"name": created.Name, "mcu_id": created.MCUID})
	writeJSON(w, http.StatusCreated, created)
}

// handleGetProject returns a single project by ID.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, "get project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleUpdateProject replaces a project. The path id wins over any id in
// the body.
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")

	updated, err := s.service.Update(r.Context(), s.projectFrom(req))
	if err != nil {
		s.writeServiceError(w, err, "update project")
		return
	}
	s.auditLog(r, audit.ActionUpdate, updated.ID, map[string]any{"name": updated.Name, "mcu_id": updated.MCUID})
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteProject removes a project and its runs.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err, "delete project")
		return
	}
	s.auditLog(r, audit.ActionDelete, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleAllocateProject runs and records an allocation of a stored project.
func (s *Server) handleAllocateProject(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.Allocate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, "allocate project")
		return
	}
	s.auditLog(r, audit.ActionAllocate, run.ProjectID, map[string]any{
		"run_id":    run.ID,
		"mcu_id":    run.MCUID,
		"allocated": run.Allocated,
		"conflicts": run.Conflicts,
	})
	writeJSON(w, http.StatusOK, run)
}

// handleListRuns returns the recent runs of a project, newest first.
//
// Query parameters:
//   - limit: maximum runs returned (default 20, max 100)
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := s.service.Runs(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeServiceError(w, err, "list runs")
		return
	}
	if runs == nil {
		runs = []project.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}
