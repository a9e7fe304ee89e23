// Package jobpoll waits for asynchronous document-parsing jobs to reach a terminal status.
package jobpoll

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-analysis/internal/types"
)

// DefaultInterval is the wait between two status queries.
const DefaultInterval = 3 * time.Second

// DefaultDeadline bounds the total polling time measured from submission.
const DefaultDeadline = 30 * time.Second

// DocumentJobService is the status/result side of a document-parsing service.
type DocumentJobService interface {
	GetJob(ctx context.Context, id uuid.UUID) (*types.JobRecord, error)
	GetResult(ctx context.Context, id uuid.UUID) (string, error)
}

// SubmitFunc submits a document and returns the initial job descriptor.
type SubmitFunc func(ctx context.Context, document []byte) (*types.JobRecord, error)

// Clock abstracts time for the polling loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// JobFailedError is returned when a job ends in any status other than SUCCESS.
// A job still PENDING when the deadline passes is reported with Status PENDING.
type JobFailedError struct {
	JobID        uuid.UUID
	Status       types.JobStatus
	ErrorCode    string
	ErrorMessage string
}

func (e *JobFailedError) Error() string {
	if e.ErrorCode != "" || e.ErrorMessage != "" {
		return fmt.Sprintf("job %s failed with status %s: %s %s", e.JobID, e.Status, e.ErrorCode, e.ErrorMessage)
	}
	return fmt.Sprintf("job %s failed with status %s", e.JobID, e.Status)
}

// Poller drives submit, poll and fetch for a single document.
type Poller struct {
	Service  DocumentJobService
	Interval time.Duration
	Deadline time.Duration
	Clock    Clock
	Verbose  bool
}

// New creates a Poller with the default interval and deadline.
func New(service DocumentJobService) *Poller {
	return &Poller{
		Service:  service,
		Interval: DefaultInterval,
		Deadline: DefaultDeadline,
	}
}

func (p *Poller) clock() Clock {
	if p.Clock == nil {
		return realClock{}
	}
	return p.Clock
}

// Poll submits the document, waits until the job leaves PENDING or the deadline passes,
// and returns the job's markdown result.
// Status queries for a job are strictly sequential. A failed status query is logged and
// the loop continues with the last known status.
func (p *Poller) Poll(ctx context.Context, submit SubmitFunc, document []byte) (string, error) {
	clock := p.clock()

	job, err := submit(ctx, document)
	if err != nil {
		return "", err
	}
	submittedAt := clock.Now()
	deadline := submittedAt.Add(p.Deadline)
	status := job.Status

	if p.Verbose {
		log.Printf("[jobpoll] job %s submitted with status %s", job.ID, status)
	}

	for status == types.JobStatusPending && clock.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-clock.After(p.Interval):
		}

		latest, err := p.Service.GetJob(ctx, job.ID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Printf("[jobpoll] status query for job %s failed: %v", job.ID, err)
			continue
		}
		job = latest
		status = latest.Status
		if p.Verbose {
			log.Printf("[jobpoll] job %s status %s", job.ID, status)
		}
	}

	if status != types.JobStatusSuccess {
		return "", &JobFailedError{
			JobID:        job.ID,
			Status:       status,
			ErrorCode:    job.ErrorCode,
			ErrorMessage: job.ErrorMessage,
		}
	}

	return p.Service.GetResult(ctx, job.ID)
}
