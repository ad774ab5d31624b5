package daemon

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spectrum-hq/spectrum/internal/ticket"
	"github.com/spectrum-hq/spectrum/pkg/cerr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid request body", err)
	}
	return nil
}

type edgeRequest struct {
	DependentID    string `json:"dependent_id"`
	PrerequisiteID string `json:"prerequisite_id"`
}

func (s *Server) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	var req edgeRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	if err := s.coord.AddDependency(r.Context(), req.DependentID, req.PrerequisiteID); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"dependent_id":    req.DependentID,
		"prerequisite_id": req.PrerequisiteID,
	})
}

func (s *Server) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	var req edgeRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	if err := s.coord.RemoveDependency(r.Context(), req.DependentID, req.PrerequisiteID); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReadySet(w http.ResponseWriter, r *http.Request) {
	ready, err := s.coord.ReadySet(r.Context())
	if err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ready": ready})
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	edges, err := s.coord.Cycles(r.Context())
	if err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"back_edges": edges})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	loads, err := s.coord.TeamBalance(r.Context())
	if err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": loads})
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := s.coord.Inspect(r.Context(), chi.URLParam(r, "ticketID"))
	if err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	if err := s.coord.SetTicketStatus(r.Context(), chi.URLParam(r, "ticketID"), ticket.Status(req.Status)); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetQuality(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OK bool `json:"ok"`
	}
	if err := decodeJSON(r, &req); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	if err := s.coord.SetQuality(r.Context(), chi.URLParam(r, "ticketID"), req.OK); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLinkChild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChildID string `json:"child_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	if err := s.coord.LinkChild(r.Context(), chi.URLParam(r, "ticketID"), req.ChildID); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCriticalPath(w http.ResponseWriter, r *http.Request) {
	path, length, err := s.coord.CriticalPath(r.Context(), chi.URLParam(r, "ticketID"))
	if err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "length": length})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	rendered, err := s.coord.Tree(r.Context(), chi.URLParam(r, "ticketID"))
	if err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tree": rendered})
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	if err := s.coord.RegisterAgent(r.Context(), req.ID); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.coord.InspectAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TicketID string `json:"ticket_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	if err := s.coord.Enqueue(r.Context(), chi.URLParam(r, "agentID"), req.TicketID); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"ticket_id": req.TicketID})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	ticketID, err := s.coord.AssignNext(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ticket_id": ticketID})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TicketID string `json:"ticket_id"`
		Status   string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	report, err := s.coord.ReportCompletion(r.Context(), chi.URLParam(r, "agentID"), req.TicketID, ticket.Status(req.Status))
	if err != nil {
		cerr.WriteJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ready_tickets":    report.ReadyTickets,
		"closable_parents": report.ClosableParents,
	})
}
