package llamaparse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jonathan/resume-analysis/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient("test-key", &Options{BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient("", nil)
	assert.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("k", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultUploadTimeout, c.uploadTimeout)
}

func TestSubmitApplicationForm(t *testing.T) {
	jobID := uuid.New()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/parsing/upload", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, applicationFormGuideline, r.FormValue("content_guideline_instruction"))
		assert.Equal(t, applicationFormFormatting, r.FormValue("formatting_instruction"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		assert.Equal(t, "application-form.pdf", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "form-bytes", string(data))

		_ = json.NewEncoder(w).Encode(map[string]string{"id": jobID.String(), "status": "PENDING"})
	}))

	job, err := c.SubmitApplicationForm(context.Background(), []byte("form-bytes"))
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, types.JobStatusPending, job.Status)
}

func TestSubmitResume_NoFormattingInstruction(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, resumeGuideline, r.FormValue("content_guideline_instruction"))
		assert.Empty(t, r.FormValue("formatting_instruction"))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "resume.pdf", header.Filename)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": uuid.NewString()})
	}))

	job, err := c.SubmitResume(context.Background(), []byte("resume-bytes"))
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusPending, job.Status)
}

func TestGetJobAndResult(t *testing.T) {
	jobID := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/parsing/job/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, jobID.String(), r.PathValue("id"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":            jobID.String(),
			"status":        "ERROR",
			"error_code":    "PDF_INVALID",
			"error_message": "could not read",
		})
	})
	mux.HandleFunc("GET /api/v1/parsing/job/{id}/result/raw/markdown", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("- Name\n- Email"))
	})
	c := newTestClient(t, mux)

	job, err := c.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusError, job.Status)
	assert.Equal(t, "PDF_INVALID", job.ErrorCode)
	assert.Equal(t, "could not read", job.ErrorMessage)

	text, err := c.GetResult(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "- Name\n- Email", text)
}

func TestNon2xxReturnsAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))

	_, err := c.GetJob(context.Background(), uuid.New())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "get job", apiErr.Op)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid api key", apiErr.Body)
}

func TestMalformedJSONReturnsAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))

	_, err := c.SubmitResume(context.Background(), []byte("x"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upload", apiErr.Op)
	assert.Error(t, apiErr.Unwrap())
}
