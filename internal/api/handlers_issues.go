package api

import (
	"net/http"

	"cottage/internal/service"
)

func (s *HTTPServer) handleListIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := service.IssueListOptions{
		Status: q.Get("status"),
		Order:  q.Get("order"),
	}
	hideClosed, err := queryBool(r, "hide_closed")
	if err != nil {
		verr := &service.ValidationError{}
		verr.Add("hide_closed", err.Error())
		writeServiceError(w, r, verr)
		return
	}
	if hideClosed != nil {
		opts.HideClosed = *hideClosed
	}

	issues, err := s.svc.Issues.List(r.Context(), actorFrom(r.Context()), opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func (s *HTTPServer) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if err := service.RequireMember(actor); err != nil {
		writeServiceError(w, r, err)
		return
	}

	var in service.IssueInput
	if !decodeJSON(w, r, &in) {
		return
	}

	issue, err := s.svc.Issues.Create(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *HTTPServer) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	issue, err := s.svc.Issues.Get(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *HTTPServer) handleEditIssue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor := actorFrom(r.Context())
	if err := service.RequireMember(actor); err != nil {
		writeServiceError(w, r, err)
		return
	}

	var patch service.IssuePatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	issue, err := s.svc.Issues.Edit(r.Context(), actor, id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *HTTPServer) handleLogIssueUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor := actorFrom(r.Context())
	if err := service.RequireMember(actor); err != nil {
		writeServiceError(w, r, err)
		return
	}

	var in service.LogInput
	if !decodeJSON(w, r, &in) {
		return
	}

	entry, err := s.svc.Issues.LogUpdate(r.Context(), actor, id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *HTTPServer) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.svc.Issues.Delete(r.Context(), actorFrom(r.Context()), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
