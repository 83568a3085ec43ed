package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"videoquery/agent"
	"videoquery/config"
	"videoquery/media"
	"videoquery/workflow"

	"github.com/lithammer/shortuuid/v4"
)

var (
	ErrQueueFull = errors.New("task queue is full, try again later")
	ErrNotFound  = errors.New("task not found")
)

type Analyzer interface {
	Analyze(ctx context.Context, src workflow.Source, query string) (*agent.Result, error)
}

type Manager struct {
	cfg            *config.Config
	mu             sync.Mutex
	tasks          map[string]*Task
	taskQueue      chan *Task
	concurrencySem chan struct{}
	analyzer       Analyzer
}

func NewManager(cfg *config.Config, analyzer Analyzer) (*Manager, error) {
	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("invalid max concurrency %d", cfg.MaxConcurrency)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Manager{
		cfg:            cfg,
		tasks:          make(map[string]*Task),
		taskQueue:      make(chan *Task, queueSize),
		concurrencySem: make(chan struct{}, cfg.MaxConcurrency),
		analyzer:       analyzer,
	}, nil
}

func (m *Manager) Start(ctx context.Context) {
	slog.Info("task manager started", slog.Int("concurrency", m.cfg.MaxConcurrency))
	go m.expiryLoop(ctx)
	go m.workerLoop(ctx)
}

// workerLoop pulls tasks from the queue and processes them
func (m *Manager) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker loop shutting down")
			m.drain()
			return
		case t := <-m.taskQueue:
			// Wait for a free processing slot
			select {
			case m.concurrencySem <- struct{}{}:
			case <-ctx.Done():
				m.abandon(t, "Service shutting down")
				m.drain()
				return
			}
			go func(t *Task) {
				defer func() { <-m.concurrencySem }()
				m.processTask(ctx, t)
			}(t)
		}
	}
}

func (m *Manager) processTask(parentCtx context.Context, t *Task) {
	var (
		taskCtx context.Context
		cancel  context.CancelFunc
	)
	if m.cfg.RequestTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(parentCtx, m.cfg.RequestTimeout)
	} else {
		taskCtx, cancel = context.WithCancel(parentCtx)
	}
	defer cancel()

	m.mu.Lock()
	if t.Status == StatusCanceled {
		m.mu.Unlock()
		slog.Info("task canceled before processing", slog.String("task", t.ID))
		return
	}
	t.Status = StatusProcessing
	t.StartedAt = time.Now()
	t.cancelFunc = cancel
	src, query := t.Source, t.Query
	m.mu.Unlock()

	slog.Info("processing task", slog.String("task", t.ID), slog.String("kind", string(src.Kind)))
	res, err := m.analyzer.Analyze(taskCtx, src, query)

	m.mu.Lock()
	defer m.mu.Unlock()
	t.cancelFunc = nil
	t.CompletedAt = time.Now()
	switch {
	case err == nil:
		slog.Info("task completed", slog.String("task", t.ID), slog.Duration("took", t.CompletedAt.Sub(t.StartedAt)))
		t.Status = StatusCompleted
		t.Content = res.Content
		t.Model = res.Model
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		slog.Info("task canceled or timed out", slog.String("task", t.ID))
		t.Status = StatusCanceled
		t.Error = "Task was canceled or timed out"
	default:
		slog.Warn("task failed", slog.String("task", t.ID), slog.Any("error", err))
		t.Status = StatusFailed
		t.Error = err.Error()
	}
}

// expiryLoop forgets finished tasks after the configured lifetime.
func (m *Manager) expiryLoop(ctx context.Context) {
	if m.cfg.TaskLifetime <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.TaskLifetime / 4) // Check 4 times per lifetime
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.expire(time.Now())
		}
	}
}

func (m *Manager) expire(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.tasks {
		if t.finished() && now.Sub(t.CompletedAt) > m.cfg.TaskLifetime {
			delete(m.tasks, id)
			n++
		}
	}
	if n > 0 {
		slog.Debug("expired tasks", slog.Int("count", n))
	}
	return n
}

// Submit queues a question. On error the caller keeps ownership of any local file in src.
func (m *Manager) Submit(src workflow.Source, query string) (Task, error) {
	now := time.Now()
	t := &Task{
		ID:        fmt.Sprintf("%s_%d", shortuuid.New(), now.Unix()),
		Status:    StatusQueued,
		Source:    src,
		Query:     query,
		CreatedAt: now,
	}

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()

	select {
	case m.taskQueue <- t:
	default:
		m.mu.Lock()
		delete(m.tasks, t.ID)
		m.mu.Unlock()
		return Task{}, ErrQueueFull
	}
	slog.Info("task submitted", slog.String("task", t.ID))

	m.mu.Lock()
	defer m.mu.Unlock()
	return t.snapshot(), nil
}

func (m *Manager) Get(taskID string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return t.snapshot(), true
}

// List returns all known tasks, oldest first.
func (m *Manager) List() []Task {
	m.mu.Lock()
	taskList := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		taskList = append(taskList, t.snapshot())
	}
	m.mu.Unlock()

	sort.Slice(taskList, func(i, j int) bool {
		return taskList[i].CreatedAt.Before(taskList[j].CreatedAt)
	})
	return taskList
}

func (m *Manager) Cancel(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}

	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return fmt.Errorf("cannot cancel task in state: %s", t.Status)
	case StatusQueued:
		m.cancelQueued(t, "Canceled by user while in queue")
		slog.Info("task canceled in queue", slog.String("task", t.ID))
	case StatusProcessing:
		if t.cancelFunc == nil {
			return fmt.Errorf("task %s is processing but has no cancellation handle", t.ID)
		}
		t.cancelFunc()
		slog.Info("cancellation signal sent to running task", slog.String("task", t.ID))
	}
	return nil
}

// cancelQueued marks a task that never ran as canceled and releases its upload.
// The workflow never sees such a task, so the temp file is removed here instead.
// Callers hold m.mu.
func (m *Manager) cancelQueued(t *Task, reason string) {
	t.Status = StatusCanceled
	t.Error = reason
	t.CompletedAt = time.Now()
	if t.Source.Kind == workflow.KindLocal {
		media.Remove(t.Source.Path)
	}
}

func (m *Manager) abandon(t *Task, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Status == StatusQueued {
		m.cancelQueued(t, reason)
	}
}

// drain cancels everything still waiting in the queue.
func (m *Manager) drain() {
	for {
		select {
		case t := <-m.taskQueue:
			m.abandon(t, "Service shutting down")
		default:
			return
		}
	}
}
