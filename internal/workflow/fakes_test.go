package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jonathan/resume-analysis/internal/llm"
	"github.com/jonathan/resume-analysis/internal/types"
)

// fakeDocs is a document-parsing service whose jobs finish immediately or never
type fakeDocs struct {
	mu         sync.Mutex
	pending    bool
	submitErr  error
	formText   string
	resumeText string
	results    map[uuid.UUID]string
	submitted  []string
	queries    int
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{
		formText:   "Name, Email",
		resumeText: "5 years experience",
		results:    make(map[uuid.UUID]string),
	}
}

func (f *fakeDocs) submit(kind, text string) (*types.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, kind)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	id := uuid.New()
	f.results[id] = text
	return &types.JobRecord{ID: id, Status: f.status()}, nil
}

func (f *fakeDocs) status() types.JobStatus {
	if f.pending {
		return types.JobStatusPending
	}
	return types.JobStatusSuccess
}

func (f *fakeDocs) SubmitApplicationForm(_ context.Context, _ []byte) (*types.JobRecord, error) {
	return f.submit("application-form", f.formText)
}

func (f *fakeDocs) SubmitResume(_ context.Context, _ []byte) (*types.JobRecord, error) {
	return f.submit("resume", f.resumeText)
}

func (f *fakeDocs) GetJob(_ context.Context, id uuid.UUID) (*types.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	return &types.JobRecord{ID: id, Status: f.status()}, nil
}

func (f *fakeDocs) GetResult(_ context.Context, id uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.results[id]
	if !ok {
		return "", errors.New("unknown job")
	}
	return text, nil
}

func (f *fakeDocs) statusQueries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

type textResponse struct {
	body string
	err  error
}

// fakeText replays canned responses in order; the last one repeats.
// When block is set every call waits for it to close or for ctx to end.
type fakeText struct {
	mu        sync.Mutex
	responses []textResponse
	prompts   []string
	block     chan struct{}
}

func newFakeText(bodies ...string) *fakeText {
	f := &fakeText{}
	for _, b := range bodies {
		f.responses = append(f.responses, textResponse{body: b})
	}
	return f
}

func (f *fakeText) GenerateJSON(ctx context.Context, prompt string, _ llm.ModelTier) (string, error) {
	f.mu.Lock()
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if len(f.responses) == 0 {
		return "", errors.New("no response configured")
	}
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i].body, f.responses[i].err
}

func (f *fakeText) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

const (
	fieldsResponse  = `{"fields": ["Name", "Email"]}`
	answersResponse = `{"answers": [{"question": "What is your Name", "answer": "John"}, {"question": "What is your Email", "answer": "j@x.com"}]}`
)
