package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/jarvis/internal/pipeline"
	"github.com/MikeSquared-Agency/jarvis/internal/store"
)

const maxBodyBytes = 5 << 20

type ProcessRequest struct {
	Text                     string `json:"text,omitempty"`
	ReprocessTranscriptionID string `json:"reprocess_transcription_id,omitempty"`
	Source                   string `json:"source,omitempty"`
}

type ReprocessRequest struct {
	Source string `json:"source,omitempty"`
}

type GroupResponse struct {
	GroupID        uuid.UUID             `json:"group_id"`
	Transcriptions []store.Transcription `json:"transcriptions"`
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	var body ProcessRequest
	if err := decodeBody(w, r, &body, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	req := pipeline.Request{
		RequestID: middleware.GetReqID(r.Context()),
		UserID:    userFromContext(r.Context()),
		Text:      body.Text,
		Source:    body.Source,
	}
	if body.ReprocessTranscriptionID != "" {
		id, err := uuid.Parse(body.ReprocessTranscriptionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid reprocess_transcription_id")
			return
		}
		req.ReprocessID = &id
	} else if err := pipeline.ValidateText(body.Text); err != nil {
		writeError(w, http.StatusBadRequest, "text must contain at least 10 characters")
		return
	}

	resp, err := s.proc.Process(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) reprocess(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transcription id")
		return
	}
	var body ReprocessRequest
	if err := decodeBody(w, r, &body, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	resp, err := s.proc.Reprocess(r.Context(), userFromContext(r.Context()), id, body.Source)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) group(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return
	}
	rows, err := s.proc.Group(r.Context(), userFromContext(r.Context()), groupID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GroupResponse{GroupID: groupID, Transcriptions: rows})
}

// fail maps pipeline errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrTextTooShort), errors.Is(err, pipeline.ErrNothingToProcess):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "transcription not found")
	default:
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody reads a JSON body. An empty body is accepted when optional.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
