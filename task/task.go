package task

import (
	"context"
	"time"

	"videoquery/workflow"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Task is one asynchronous video question.
type Task struct {
	ID          string          `json:"id"`
	Status      Status          `json:"status"`
	Source      workflow.Source `json:"source"`
	Query       string          `json:"query"`
	Content     string          `json:"content,omitempty"`
	Model       string          `json:"model,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   time.Time       `json:"startedAt,omitempty"`
	CompletedAt time.Time       `json:"completedAt,omitempty"`
	cancelFunc  context.CancelFunc
}

func (t *Task) finished() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// snapshot returns a copy safe to hand out of the manager's lock.
func (t *Task) snapshot() Task {
	c := *t
	c.cancelFunc = nil
	return c
}
