package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/lead-tracker/internal/pipeline"
	"github.com/jonathan/lead-tracker/internal/types"
)

// maxBodyBytes bounds request bodies; every payload here is small.
const maxBodyBytes = 1 << 20

// decodeBody decodes an optional JSON body into dst. An empty body leaves
// dst untouched.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}

func (s *Server) viewResponse(w http.ResponseWriter, status int, l types.Lead) {
	s.jsonResponse(w, status, pipeline.NewView(l, s.svc.Now(), s.svc.Windows()))
}

// ---------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------

func parseFilter(r *http.Request) (pipeline.Filter, error) {
	f := pipeline.Filter{Search: r.URL.Query().Get("search")}
	for _, raw := range r.URL.Query()["stage"] {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			st, err := types.ParseStage(name)
			if err != nil {
				return pipeline.Filter{}, err
			}
			f.Stages = append(f.Stages, st)
		}
	}
	return f, nil
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.svc.Board(f))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Refresh(r.Context()); err != nil {
		s.actionError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.svc.Board(pipeline.Filter{}))
}

func (s *Server) handleIngestClick(w http.ResponseWriter, r *http.Request) {
	var evt types.ClickEvent
	if err := decodeBody(r, &evt); err != nil {
		s.actionError(w, err)
		return
	}
	if err := evt.Validate(); err != nil {
		s.actionError(w, err)
		return
	}
	if evt.ClickID == "" {
		evt.ClickID = types.NewClickID()
	}
	if evt.ClickedAt.IsZero() {
		evt.ClickedAt = s.svc.Now()
	}
	if s.clicks != nil {
		if err := s.clicks.RecordClick(r.Context(), evt); err != nil {
			s.actionError(w, err)
			return
		}
	}

	lead, err := s.svc.IngestClick(r.Context(), evt)
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.viewResponse(w, http.StatusCreated, lead)
}

// ---------------------------------------------------------------------
// Lead actions
// ---------------------------------------------------------------------

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.View(r.PathValue("id"))
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, v)
}

func (s *Server) handleApplied(w http.ResponseWriter, r *http.Request) {
	var sent types.Artifacts
	if err := decodeBody(r, &sent); err != nil {
		s.actionError(w, err)
		return
	}
	lead, err := s.svc.SetApplied(r.Context(), r.PathValue("id"), sent)
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.viewResponse(w, http.StatusOK, lead)
}

func (s *Server) handleNotApplying(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.NotApplying(r.Context(), r.PathValue("id")); err != nil {
		s.actionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInterview(w http.ResponseWriter, r *http.Request) {
	var in types.InterviewInput
	if err := decodeBody(r, &in); err != nil {
		s.actionError(w, err)
		return
	}
	lead, err := s.svc.AddOrRateInterview(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.viewResponse(w, http.StatusOK, lead)
}

func (s *Server) handleGotTheJob(w http.ResponseWriter, r *http.Request) {
	var req types.GotTheJobRequest
	if err := decodeBody(r, &req); err != nil {
		s.actionError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.actionError(w, err)
		return
	}
	lead, err := s.svc.SetGotTheJob(r.Context(), r.PathValue("id"), *req.GotTheJob, req.StartDate)
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.viewResponse(w, http.StatusOK, lead)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ArchiveLead(r.Context(), r.PathValue("id")); err != nil {
		s.actionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCollapse(w http.ResponseWriter, r *http.Request) {
	lead, err := s.svc.ToggleCollapsed(r.Context(), r.PathValue("id"))
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.viewResponse(w, http.StatusOK, lead)
}

func (s *Server) handleFollowUp(w http.ResponseWriter, r *http.Request) {
	var req types.FollowUpRequest
	if err := decodeBody(r, &req); err != nil {
		s.actionError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.actionError(w, err)
		return
	}
	lead, err := s.svc.CompleteFollowUp(r.Context(), r.PathValue("id"), req.Message)
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.viewResponse(w, http.StatusOK, lead)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req types.MoveStageRequest
	if err := decodeBody(r, &req); err != nil {
		s.actionError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.actionError(w, err)
		return
	}
	lead, err := s.svc.MoveStage(r.Context(), r.PathValue("id"), req.Stage)
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.viewResponse(w, http.StatusOK, lead)
}

// handleSaveField accepts an inline edit. The save happens after the field
// goes quiet, so the response only reflects the local value.
func (s *Server) handleSaveField(w http.ResponseWriter, r *http.Request) {
	var req types.FieldUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		s.actionError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.actionError(w, err)
		return
	}
	lead, err := s.svc.SaveField(r.Context(), r.PathValue("id"), req.Field, req.Value)
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.viewResponse(w, http.StatusAccepted, lead)
}

// ---------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------

func (s *Server) handleAddContact(w http.ResponseWriter, r *http.Request) {
	var c types.Contact
	if err := decodeBody(r, &c); err != nil {
		s.actionError(w, err)
		return
	}
	lead, err := s.svc.AddContact(r.Context(), r.PathValue("id"), c)
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.viewResponse(w, http.StatusCreated, lead)
}

func contactID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("contact_id"))
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: "contact_id", Message: "must be a UUID"}
	}
	return id, nil
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	id, err := contactID(r)
	if err != nil {
		s.actionError(w, err)
		return
	}
	var c types.Contact
	if err := decodeBody(r, &c); err != nil {
		s.actionError(w, err)
		return
	}
	c.ID = id
	lead, err := s.svc.UpdateContact(r.Context(), r.PathValue("id"), c)
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.viewResponse(w, http.StatusOK, lead)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := contactID(r)
	if err != nil {
		s.actionError(w, err)
		return
	}
	lead, err := s.svc.DeleteContact(r.Context(), r.PathValue("id"), id)
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.viewResponse(w, http.StatusOK, lead)
}
