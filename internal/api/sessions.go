package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"solar-funnel/internal/funnel/session"
	"solar-funnel/internal/funnel/submission"
)

func (s *Server) openSession(r *http.Request) (*session.Session, error) {
	return s.deps.Sessions.Open(mux.Vars(r)["id"])
}

// createSession issues a new session. The creating request counts as the
// session's first page mount, so direct is always true here.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	direct, err := sess.Visit(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"sessionId": sess.ID,
		"direct":    direct,
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.openSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sess.Clear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) visit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.openSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	direct, err := sess.Visit(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"direct": direct})
}

func (s *Server) contactParams(w http.ResponseWriter, r *http.Request) {
	sess, err := s.openSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var params session.ContactParams
	if err := decode(r, &params); err != nil {
		s.writeError(w, r, err)
		return
	}
	contact, err := sess.MergeContactParams(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contact": contact,
		"known":   contact.Known(),
	})
}

type leadRequest struct {
	Funnel string `json:"funnel"`
	submission.LeadInput
}

func (s *Server) submitLead(w http.ResponseWriter, r *http.Request) {
	sess, err := s.openSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req leadRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Funnel == "" {
		req.Funnel = defaultFunnel
	}

	result, err := s.deps.Leads.Submit(r.Context(), sess, req.Funnel, req.LeadInput)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
