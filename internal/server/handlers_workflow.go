package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"time"

	"github.com/jonathan/resume-analysis/internal/export"
	"github.com/jonathan/resume-analysis/internal/store"
	"github.com/jonathan/resume-analysis/internal/types"
	"github.com/jonathan/resume-analysis/internal/workflow"
)

const (
	pdfMediaType  = "application/pdf"
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxIDLength   = 128
)

// StepsResponse is the audit trail of a workflow
type StepsResponse struct {
	WorkflowID string              `json:"workflow_id"`
	Status     types.RunStatus     `json:"status"`
	NextStep   string              `json:"next_step,omitempty"`
	Failure    string              `json:"failure,omitempty"`
	Steps      []types.StepAttempt `json:"steps"`
}

// workflowID returns the path id, writing a 400 when it is unusable
func (s *Server) workflowID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" || len(id) > maxIDLength {
		s.errorResponse(w, http.StatusBadRequest, "Invalid workflow ID")
		return "", false
	}
	return id, true
}

// handleSetup stores the configured setup documents for a workflow
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workflowID(w, r)
	if !ok {
		return
	}

	if err := s.workflows.Setup(r.Context(), id); err != nil {
		s.errorFrom(w, err)
		return
	}

	w.Header().Set("Location", "/"+id)
	s.textResponse(w, http.StatusCreated, id)
}

// handleApplicationForm accepts the application form PDF
func (s *Server) handleApplicationForm(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, s.workflows.AcceptApplicationForm, "Application form PDF received")
}

// handleResume accepts the resume PDF
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, s.workflows.AcceptResume, "Resume PDF received")
}

func (s *Server) handleUpload(
	w http.ResponseWriter,
	r *http.Request,
	accept func(ctx context.Context, id string, document []byte) error,
	message string,
) {
	id, ok := s.workflowID(w, r)
	if !ok {
		return
	}

	if err := requirePDF(r); err != nil {
		s.errorFrom(w, err)
		return
	}

	document, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errorFrom(w, err)
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := accept(r.Context(), id, document); err != nil {
		s.errorFrom(w, err)
		return
	}

	s.textResponse(w, http.StatusOK, message)
}

// requirePDF checks that the request body is declared as a PDF
func requirePDF(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return &ErrValidation{Field: "Content-Type", Message: "expected " + pdfMediaType}
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != pdfMediaType {
		return &ErrValidation{Field: "Content-Type", Message: fmt.Sprintf("expected %s, got %q", pdfMediaType, contentType)}
	}
	return nil
}

// handleStart starts the workflow once both documents are present
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workflowID(w, r)
	if !ok {
		return
	}

	if err := s.workflows.Start(r.Context(), id); err != nil {
		s.errorFrom(w, err)
		return
	}

	s.textResponse(w, http.StatusOK, id)
}

// handleStatus returns the status snapshot of a workflow
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workflowID(w, r)
	if !ok {
		return
	}

	snapshot, err := s.workflows.GetStatus(r.Context(), id)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, snapshot)
}

// handleSteps returns the step attempt audit trail of a workflow
func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workflowID(w, r)
	if !ok {
		return
	}

	rec, err := s.workflows.Record(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "Workflow not found")
		return
	}
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	steps, err := s.workflows.Steps(r.Context(), id)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if steps == nil {
		steps = []types.StepAttempt{}
	}

	s.jsonResponse(w, http.StatusOK, StepsResponse{
		WorkflowID: id,
		Status:     rec.Status,
		NextStep:   rec.NextStep,
		Failure:    rec.Failure,
		Steps:      steps,
	})
}

// handleEvents streams workflow progress via SSE until the workflow ends or the client leaves
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workflowID(w, r)
	if !ok {
		return
	}

	// subscribed before loading so every commit after the load is delivered
	events, cancel := s.workflows.Subscribe(id)
	defer cancel()

	rec, err := s.workflows.Record(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		rec, err = types.NewWorkflowRecord(id), nil
	}
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := sse.WriteEvent("status", types.SnapshotOf(rec.State)); err != nil {
		return
	}
	switch rec.Status {
	case types.RunStatusCompleted:
		sse.WriteComplete(id, rec.State.Stage.String())
		return
	case types.RunStatusFailed:
		sse.WriteError(id, rec.Failure)
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if err := sse.WriteHeartbeat(); err != nil {
				return
			}
		case ev, open := <-events:
			if !open {
				return
			}
			switch ev.Type {
			case workflow.EventComplete:
				sse.WriteComplete(id, ev.Stage.String())
				return
			case workflow.EventError:
				sse.WriteError(id, ev.Message)
				return
			default:
				if err := sse.WriteEvent(ev.Type, ev); err != nil {
					log.Printf("[server] error writing SSE event: %v", err)
					return
				}
			}
		}
	}
}

// handleAnswersXLSX exports the answers of a finished workflow as a spreadsheet
func (s *Server) handleAnswersXLSX(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workflowID(w, r)
	if !ok {
		return
	}

	snapshot, err := s.workflows.GetStatus(r.Context(), id)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if snapshot.Status != types.StageFinished.String() {
		s.errorFrom(w, &ErrNotReady{Resource: "answers export", Stage: snapshot.Status})
		return
	}

	data, err := export.AnswersXLSX(snapshot.Answers)
	if err != nil {
		s.errorFrom(w, fmt.Errorf("failed to build answers export: %w", err))
		return
	}

	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"-answers.xlsx"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("[server] error writing export: %v", err)
	}
}
