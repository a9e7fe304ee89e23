package workflow

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-analysis/internal/types"
)

// Event types published on each commit
const (
	EventStep     = "step"
	EventComplete = "complete"
	EventError    = "error"
)

const subscriberBuffer = 16

// Event describes a committed transition of a workflow
type Event struct {
	Type       string      `json:"type"`
	WorkflowID string      `json:"workflow_id"`
	Step       string      `json:"step,omitempty"`
	NextStep   string      `json:"next_step,omitempty"`
	Stage      types.Stage `json:"stage"`
	Message    string      `json:"message,omitempty"`
	Time       time.Time   `json:"time"`
}

// broker fans committed events out to per-workflow subscribers.
// Slow subscribers lose events rather than block the executor.
type broker struct {
	mu   sync.Mutex
	subs map[string]map[uuid.UUID]chan Event
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[uuid.UUID]chan Event)}
}

func (b *broker) subscribe(workflowID string) (<-chan Event, func()) {
	id := uuid.New()
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[workflowID] == nil {
		b.subs[workflowID] = make(map[uuid.UUID]chan Event)
	}
	b.subs[workflowID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[workflowID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.subs, workflowID)
				}
			}
			close(ch)
		})
	}
}

func (b *broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[ev.WorkflowID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
