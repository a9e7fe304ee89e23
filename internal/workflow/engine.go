// Package workflow implements the durable resume-analysis workflow: lifecycle
// operations, the step executor and its timeout, retry and failover policy.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/resume-analysis/internal/jobpoll"
	"github.com/jonathan/resume-analysis/internal/observability"
	"github.com/jonathan/resume-analysis/internal/store"
	"github.com/jonathan/resume-analysis/internal/types"
)

// Start precondition messages
const (
	MissingResumeMessage          = "Missing mandatory data. Please upload a resume file."
	MissingApplicationFormMessage = "Missing mandatory data. Please upload a application form file."
)

// Options configures an Engine
type Options struct {
	Store     store.Store
	Documents DocumentParsingService
	Text      TextGenerationService

	// Poller defaults to jobpoll.New(Documents)
	Poller *jobpoll.Poller

	// Policy is the default step policy; zero means DefaultPolicy()
	Policy   Policy
	Policies map[string]Policy

	SetupResumePath          string
	SetupApplicationFormPath string

	// Output receives the result summaries; defaults to os.Stdout
	Output  io.Writer
	Verbose bool
}

// Engine owns the lifecycle of workflow instances
type Engine struct {
	store    store.Store
	def      Definition
	locks    *keyedMutex
	events   *broker
	validate *validator.Validate
	now      func() time.Time
	verbose  bool

	setupResumePath          string
	setupApplicationFormPath string

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	active  map[string]struct{}
	closing bool
	wg      sync.WaitGroup
}

// New creates an Engine
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Documents == nil {
		return nil, fmt.Errorf("document parsing service is required")
	}
	if opts.Text == nil {
		return nil, fmt.Errorf("text generation service is required")
	}

	poller := opts.Poller
	if poller == nil {
		poller = jobpoll.New(opts.Documents)
	}
	if poller.Service == nil {
		poller.Service = opts.Documents
	}
	policy := opts.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	a := &actions{
		documents: opts.Documents,
		text:      opts.Text,
		poller:    poller,
		printer:   observability.NewPrinter(out),
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:                    opts.Store,
		def:                      a.definition(policy, opts.Policies),
		locks:                    newKeyedMutex(),
		events:                   newBroker(),
		validate:                 validator.New(),
		now:                      time.Now,
		verbose:                  opts.Verbose,
		setupResumePath:          opts.SetupResumePath,
		setupApplicationFormPath: opts.SetupApplicationFormPath,
		ctx:                      ctx,
		cancel:                   cancel,
		active:                   make(map[string]struct{}),
	}, nil
}

// Setup stores the configured resume and application form files for a workflow
func (e *Engine) Setup(ctx context.Context, id string) error {
	if e.setupResumePath == "" || e.setupApplicationFormPath == "" {
		return fmt.Errorf("setup documents are not configured")
	}
	resume, err := os.ReadFile(e.setupResumePath)
	if err != nil {
		return fmt.Errorf("failed to read setup resume: %w", err)
	}
	form, err := os.ReadFile(e.setupApplicationFormPath)
	if err != nil {
		return fmt.Errorf("failed to read setup application form: %w", err)
	}

	return e.mutate(ctx, id, func(rec *types.WorkflowRecord) error {
		rec.State = rec.State.WithResume(resume).WithApplicationForm(form)
		return nil
	})
}

// AcceptResume stores a resume document. The stage is unchanged.
func (e *Engine) AcceptResume(ctx context.Context, id string, document []byte) error {
	return e.mutate(ctx, id, func(rec *types.WorkflowRecord) error {
		rec.State = rec.State.WithResume(document)
		return nil
	})
}

// AcceptApplicationForm stores an application form document. The stage is unchanged.
func (e *Engine) AcceptApplicationForm(ctx context.Context, id string, document []byte) error {
	return e.mutate(ctx, id, func(rec *types.WorkflowRecord) error {
		rec.State = rec.State.WithApplicationForm(document)
		return nil
	})
}

// Start checks that both documents are present, commits the STARTED stage with the
// first step pending and launches the step chain. It returns once the commit is durable.
func (e *Engine) Start(ctx context.Context, id string) error {
	err := e.mutate(ctx, id, func(rec *types.WorkflowRecord) error {
		if rec.Status != types.RunStatusPaused || rec.State.Stage != types.StageReady {
			return ErrAlreadyStarted
		}
		if err := e.checkStartRequirements(rec.State); err != nil {
			return err
		}
		rec.State = rec.State.WithStage(types.StageStarted)
		rec.Status = types.RunStatusRunning
		rec.NextStep = e.def.First
		rec.StepInput = ""
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[workflow] %s: started", id)
	e.launch(id)
	return nil
}

// GetStatus returns the latest committed snapshot. Unknown ids report an empty READY workflow.
func (e *Engine) GetStatus(ctx context.Context, id string) (types.StatusSnapshot, error) {
	rec, err := e.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.SnapshotOf(types.InitialState()), nil
		}
		return types.StatusSnapshot{}, err
	}
	return types.SnapshotOf(rec.State), nil
}

// Record returns the latest committed record of a workflow
func (e *Engine) Record(ctx context.Context, id string) (*types.WorkflowRecord, error) {
	return e.store.Load(ctx, id)
}

// Steps returns the step attempt audit trail of a workflow
func (e *Engine) Steps(ctx context.Context, id string) ([]types.StepAttempt, error) {
	return e.store.ListSteps(ctx, id)
}

// Subscribe streams events committed for a workflow until the returned cancel func is called
func (e *Engine) Subscribe(id string) (<-chan Event, func()) {
	return e.events.subscribe(id)
}

// Recover relaunches the step chain of every workflow left running by a previous process.
// The pending step of each is re-executed from its committed state.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	running, err := e.store.ListRunning(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list running workflows: %w", err)
	}

	for _, rec := range running {
		log.Printf("[workflow] %s: recovering at %s", rec.ID, rec.NextStep)
		e.launch(rec.ID)
	}
	return len(running), nil
}

// Shutdown stops launching chains, cancels in-flight actions and waits for drivers to exit.
// Workflows interrupted mid-step stay running and are resumed by Recover.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	e.mu.Unlock()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until no step chain is active. Useful for tests and one-shot runs.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) launch(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closing {
		return
	}
	if _, ok := e.active[id]; ok {
		return
	}
	e.active[id] = struct{}{}
	e.wg.Add(1)
	go e.drive(id)
}

func (e *Engine) release(id string) {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()
	e.wg.Done()
}

// mutate runs load, change and commit for a lifecycle call inside the workflow's exclusive section
func (e *Engine) mutate(ctx context.Context, id string, change func(rec *types.WorkflowRecord) error) error {
	unlock := e.locks.Lock(id)
	defer unlock()

	rec, err := e.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		rec, err = types.NewWorkflowRecord(id), nil
	}
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", id, err)
	}
	if rec.Status.Terminal() {
		return ErrWorkflowEnded
	}

	if err := change(rec); err != nil {
		return err
	}
	if err := e.store.Commit(ctx, rec); err != nil {
		return fmt.Errorf("failed to commit workflow %s: %w", id, err)
	}
	return nil
}

func (e *Engine) checkStartRequirements(state types.WorkflowState) error {
	err := e.validate.Struct(types.StartRequirements{
		Resume:          state.ResumeBytes,
		ApplicationForm: state.ApplicationFormBytes,
	})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	switch fieldErrs[0].StructField() {
	case "Resume":
		return &ValidationError{Field: "resume", Message: MissingResumeMessage}
	default:
		return &ValidationError{Field: "application form", Message: MissingApplicationFormMessage}
	}
}
