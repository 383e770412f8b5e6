package generations

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"photoshoot-backend/internal/shared/telemetry"
)

// TaskSet runs background jobs and lets shutdown wait for them. A panic in
// a task is logged and does not take the process down.
type TaskSet struct {
	wg sync.WaitGroup
}

func NewTaskSet() *TaskSet {
	return &TaskSet{}
}

// Go runs fn on its own goroutine.
func (t *TaskSet) Go(name string, fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				telemetry.Error("task.panic", map[string]any{
					"task":  name,
					"error": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				})
			}
		}()
		fn()
	}()
}

// Wait blocks until every task has returned or ctx is done.
func (t *TaskSet) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
