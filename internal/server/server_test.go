package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-analysis/internal/config"
	"github.com/jonathan/resume-analysis/internal/llm"
	"github.com/jonathan/resume-analysis/internal/server/ratelimit"
	"github.com/jonathan/resume-analysis/internal/store"
	"github.com/jonathan/resume-analysis/internal/types"
	"github.com/jonathan/resume-analysis/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantDocs finishes every parsing job at submission
type instantDocs struct {
	mu      sync.Mutex
	results map[uuid.UUID]string
}

func newInstantDocs() *instantDocs {
	return &instantDocs{results: make(map[uuid.UUID]string)}
}

func (d *instantDocs) submit(text string) (*types.JobRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.New()
	d.results[id] = text
	return &types.JobRecord{ID: id, Status: types.JobStatusSuccess}, nil
}

func (d *instantDocs) SubmitApplicationForm(_ context.Context, _ []byte) (*types.JobRecord, error) {
	return d.submit("Name, Email")
}

func (d *instantDocs) SubmitResume(_ context.Context, _ []byte) (*types.JobRecord, error) {
	return d.submit("John, j@x.com")
}

func (d *instantDocs) GetJob(_ context.Context, id uuid.UUID) (*types.JobRecord, error) {
	return &types.JobRecord{ID: id, Status: types.JobStatusSuccess}, nil
}

func (d *instantDocs) GetResult(_ context.Context, id uuid.UUID) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.results[id], nil
}

// scriptedText answers the questions prompt and then the answers prompt.
// While gate is open-ended, calls wait for it to close.
type scriptedText struct {
	gate chan struct{}
}

func (s *scriptedText) GenerateJSON(ctx context.Context, _ string, tier llm.ModelTier) (string, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if tier == llm.TierStandard {
		return `{"fields": ["Name", "Email"]}`, nil
	}
	return `{"answers": [{"question": "Name", "answer": "John"}, {"question": "Email", "answer": "j@x.com"}]}`, nil
}

type testEnv struct {
	server *Server
	engine *workflow.Engine
	http   *httptest.Server
	text   *scriptedText
}

type envOption func(*Config, *workflow.Options)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	text := &scriptedText{}
	docs := newInstantDocs()
	engineOpts := workflow.Options{
		Store:     store.NewMemory(),
		Documents: docs,
		Text:      text,
		Output:    io.Discard,
	}
	cfg := Config{RateLimit: &ratelimit.Config{Enabled: false}}
	for _, o := range opts {
		o(&cfg, &engineOpts)
	}

	engine, err := workflow.New(engineOpts)
	require.NoError(t, err)

	s := New(cfg, engine)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = engine.Shutdown(ctx)
		s.rateLimiter.Stop()
	})

	return &testEnv{server: s, engine: engine, http: ts, text: text}
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body []byte, headers ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func (e *testEnv) upload(t *testing.T, id string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/"+id+"/resume", "application/pdf", []byte("%PDF-resume"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Resume PDF received", readBody(t, resp))

	resp = e.do(t, http.MethodPost, "/"+id+"/application-form", "application/pdf", []byte("%PDF-form"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Application form PDF received", readBody(t, resp))
}

func (e *testEnv) status(t *testing.T, id string) types.StatusSnapshot {
	t.Helper()
	resp := e.do(t, http.MethodGet, "/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap types.StatusSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status": "ok"}`, readBody(t, resp))
}

func TestWorkflowOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	env.upload(t, "wf")
	assert.Equal(t, types.StatusSnapshot{
		ResumeIsAvailable:          true,
		ApplicationFormIsAvailable: true,
		Status:                     "READY",
		Answers:                    []types.Answer{},
	}, env.status(t, "wf"))

	resp := env.do(t, http.MethodPost, "/wf/start", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "wf", readBody(t, resp))

	env.engine.Wait()
	snap := env.status(t, "wf")
	assert.Equal(t, "FINISHED", snap.Status)
	assert.Equal(t, []types.Answer{
		{Question: "Name", Answer: "John"},
		{Question: "Email", Answer: "j@x.com"},
	}, snap.Answers)

	resp = env.do(t, http.MethodPost, "/wf/start", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/wf/resume", "application/pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/wf/steps", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var steps StepsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&steps))
	assert.Equal(t, "wf", steps.WorkflowID)
	assert.Equal(t, types.RunStatusCompleted, steps.Status)
	require.Len(t, steps.Steps, 5)
	assert.Equal(t, workflow.StepResult, steps.Steps[4].Step)
}

func TestStart_MissingResume(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/wf/application-form", "application/pdf", []byte("%PDF"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/wf/start", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error": "Missing mandatory data. Please upload a resume file."}`, readBody(t, resp))
	assert.Equal(t, "READY", env.status(t, "wf").Status)
}

func TestStart_MissingApplicationForm(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/wf/resume", "application/pdf", []byte("%PDF"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/wf/start", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error": "Missing mandatory data. Please upload a application form file."}`, readBody(t, resp))
}

func TestUpload_ContentType(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name        string
		contentType string
		wantStatus  int
	}{
		{"pdf", "application/pdf", http.StatusOK},
		{"pdf with params", "application/pdf; name=cv.pdf", http.StatusOK},
		{"upper case", "Application/PDF", http.StatusOK},
		{"missing", "", http.StatusBadRequest},
		{"json", "application/json", http.StatusBadRequest},
		{"malformed", "application/", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/ct/resume", tt.contentType, []byte("%PDF"))
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusBadRequest {
				assert.Contains(t, readBody(t, resp), "Content-Type")
			}
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	env := newTestEnv(t, func(c *Config, _ *workflow.Options) { c.MaxUploadBytes = 8 })

	resp := env.do(t, http.MethodPost, "/wf/resume", "application/pdf", bytes.Repeat([]byte("x"), 64))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.False(t, env.status(t, "wf").ResumeIsAvailable)
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	resume := filepath.Join(dir, "resume.pdf")
	form := filepath.Join(dir, "form.pdf")
	require.NoError(t, os.WriteFile(resume, []byte("%PDF-r"), 0o600))
	require.NoError(t, os.WriteFile(form, []byte("%PDF-f"), 0o600))

	env := newTestEnv(t, func(_ *Config, o *workflow.Options) {
		o.SetupResumePath = resume
		o.SetupApplicationFormPath = form
	})

	resp := env.do(t, http.MethodPost, "/wf/setup", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/wf", resp.Header.Get("Location"))
	assert.Equal(t, "wf", readBody(t, resp))

	snap := env.status(t, "wf")
	assert.True(t, snap.ResumeIsAvailable)
	assert.True(t, snap.ApplicationFormIsAvailable)
}

func TestSetup_NotConfigured(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/wf/setup", "", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error": "Internal server error"}`, readBody(t, resp))
}

func TestStatus_UnknownWorkflow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/unknown", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"resumeIsAvailable": false, "applicationFormIsAvailable": false, "status": "READY", "answers": []}`, readBody(t, resp))
}

func TestSteps_UnknownWorkflow(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/unknown/steps", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWorkflowID_TooLong(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/"+strings.Repeat("a", maxIDLength+1), "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodOptions, "/wf/start", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRateLimit_Start(t *testing.T) {
	env := newTestEnv(t, func(c *Config, _ *workflow.Options) {
		c.RateLimit = &ratelimit.Config{
			Enabled:       true,
			DefaultLimit:  1000,
			DefaultWindow: time.Minute,
			EndpointConfigs: []ratelimit.EndpointConfig{
				{Suffix: "/start", Method: http.MethodPost, Limit: 1, Window: time.Hour, Burst: 1},
			},
		}
	})

	resp := env.do(t, http.MethodPost, "/a/start", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Limit"))

	resp = env.do(t, http.MethodPost, "/b/start", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Contains(t, readBody(t, resp), "rate_limit_exceeded")

	resp = env.do(t, http.MethodGet, "/b", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	jwtCfg := &config.JWTConfig{Secret: testSecret, Expiration: time.Hour}
	env := newTestEnv(t, func(c *Config, _ *workflow.Options) { c.JWT = jwtCfg })

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/wf", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := NewJWTService(jwtCfg).GenerateToken("ops")
	require.NoError(t, err)
	resp = env.do(t, http.MethodGet, "/wf", "", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"start validation", &workflow.ValidationError{Field: "resume", Message: "missing"}, http.StatusBadRequest},
		{"request validation", &ErrValidation{Field: "Content-Type", Message: "bad"}, http.StatusBadRequest},
		{"already started", workflow.ErrAlreadyStarted, http.StatusConflict},
		{"ended wrapped", errors.Join(errors.New("ctx"), workflow.ErrWorkflowEnded), http.StatusConflict},
		{"not ready", &ErrNotReady{Resource: "answers export", Stage: "STARTED"}, http.StatusConflict},
		{"too large", &http.MaxBytesError{Limit: 8}, http.StatusRequestEntityTooLarge},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

type sseEvent struct {
	name string
	data string
}

// readEvents returns a channel of events parsed from an SSE body
func readEvents(body io.Reader) <-chan sseEvent {
	out := make(chan sseEvent, 16)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(body)
		var ev sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			case line == "" && ev.name != "":
				out <- ev
				ev = sseEvent{}
			}
		}
	}()
	return out
}

func nextEvent(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "stream closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return sseEvent{}
	}
}

func TestEvents_StreamsUntilComplete(t *testing.T) {
	env := newTestEnv(t)
	env.text.gate = make(chan struct{})
	env.upload(t, "wf")

	resp := env.do(t, http.MethodGet, "/wf/events", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	events := readEvents(resp.Body)

	first := nextEvent(t, events)
	assert.Equal(t, "status", first.name)
	assert.Contains(t, first.data, `"status":"READY"`)

	start := env.do(t, http.MethodPost, "/wf/start", "", nil)
	require.Equal(t, http.StatusOK, start.StatusCode)
	close(env.text.gate)

	var names []string
	for {
		ev := nextEvent(t, events)
		names = append(names, ev.name)
		if ev.name == "complete" {
			assert.Contains(t, ev.data, "FINISHED")
			break
		}
	}
	assert.Equal(t, []string{"step", "step", "step", "step", "complete"}, names)
}

func TestEvents_EndedWorkflow(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "wf")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/wf/start", "", nil).StatusCode)
	env.engine.Wait()

	resp := env.do(t, http.MethodGet, "/wf/events", "", nil)
	events := readEvents(resp.Body)

	assert.Equal(t, "status", nextEvent(t, events).name)
	assert.Equal(t, "complete", nextEvent(t, events).name)
	_, open := <-events
	assert.False(t, open)
}
