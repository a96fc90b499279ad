package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
	taskTimeout       = 30 * time.Minute
)

type TaskResult struct {
	Name     string
	Type     TaskType
	Source   string
	Attempts int
	Duration time.Duration
	Err      error
}

type node struct {
	task       TaskInterface
	upstream   []string
	downstream []string
	pending    int
}

// Graph runs tasks once all of their upstream tasks have finished,
// successfully or not. Independent tasks run in parallel on a worker pool.
type Graph struct {
	nodes      map[string]*node
	order      []string
	retryDelay time.Duration
}

func NewGraph(retryDelay time.Duration) *Graph {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Graph{
		nodes:      make(map[string]*node),
		retryDelay: retryDelay,
	}
}

// Add registers task downstream of the named tasks, which must already
// have been added.
func (g *Graph) Add(task TaskInterface, upstream ...string) error {
	name := task.GetName()
	if _, ok := g.nodes[name]; ok {
		return fmt.Errorf("task %s already added", name)
	}
	for _, up := range upstream {
		if _, ok := g.nodes[up]; !ok {
			return fmt.Errorf("task %s depends on unknown task %s", name, up)
		}
	}

	g.nodes[name] = &node{task: task, upstream: upstream, pending: len(upstream)}
	for _, up := range upstream {
		g.nodes[up].downstream = append(g.nodes[up].downstream, name)
	}
	g.order = append(g.order, name)
	return nil
}

func (g *Graph) Len() int {
	return len(g.order)
}

// Run blocks until every task has finished and returns the results in the
// order tasks were added. A graph can only be run once.
func (g *Graph) Run(ctx context.Context, workerCount int) []TaskResult {
	if workerCount <= 0 {
		workerCount = 1
	}

	if len(g.nodes) == 0 {
		return nil
	}
	results := make(map[string]TaskResult, len(g.nodes))

	taskQueue := make(chan *node, len(g.nodes))
	done := make(chan TaskResult, len(g.nodes))

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for n := range taskQueue {
				done <- g.executeTask(ctx, id, n.task)
			}
		}(i)
	}

	for _, name := range g.order {
		if n := g.nodes[name]; n.pending == 0 {
			taskQueue <- n
		}
	}

	for len(results) < len(g.nodes) {
		res := <-done
		results[res.Name] = res

		for _, name := range g.nodes[res.Name].downstream {
			down := g.nodes[name]
			down.pending--
			if down.pending == 0 {
				taskQueue <- down
			}
		}
	}

	close(taskQueue)
	wg.Wait()

	ordered := make([]TaskResult, 0, len(g.order))
	for _, name := range g.order {
		ordered = append(ordered, results[name])
	}
	return ordered
}

func (g *Graph) executeTask(ctx context.Context, workerID int, task TaskInterface) TaskResult {
	task.Start()

	for {
		taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
		err := task.Execute(taskCtx)
		cancel()

		if err == nil {
			return g.result(task, nil)
		}

		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if !task.CanRetry() || errors.Is(err, context.Canceled) {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
			return g.result(task, err)
		}

		task.IncrementRetryCount()
		retryDelay := g.retryDelay * time.Duration(1<<uint(task.GetRetryCount()-1))
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}

		slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

		select {
		case <-ctx.Done():
			slog.Debug("Run stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return g.result(task, ctx.Err())
		case <-time.After(retryDelay):
		}
	}
}

func (g *Graph) result(task TaskInterface, err error) TaskResult {
	return TaskResult{
		Name:     task.GetName(),
		Type:     task.GetType(),
		Source:   task.GetSourceName(),
		Attempts: task.GetRetryCount() + 1,
		Duration: task.GetDuration(),
		Err:      err,
	}
}
