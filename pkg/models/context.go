package models

import "sync"

// ExecutionContext is the mutable key-value context shared by all node
// executions within one workflow execution. Writes are last-write-wins:
// concurrent branches writing disjoint keys are safe, concurrent writes to
// the same key are resolved by write order. Node configurations that need
// determinism must not write the same key from sibling branches.
type ExecutionContext struct {
	ExecutionID string
	WorkflowID  string

	mu     sync.RWMutex
	values map[string]any
}

// NewExecutionContext builds a context seeded with the given values.
// The seed map is copied, not retained.
func NewExecutionContext(executionID, workflowID string, seed map[string]any) *ExecutionContext {
	values := make(map[string]any, len(seed))
	for k, v := range seed {
		values[k] = v
	}

	return &ExecutionContext{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		values:      values,
	}
}

// Get returns the value stored under key.
func (c *ExecutionContext) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.values[key]

	return value, ok
}

// Set stores value under key.
func (c *ExecutionContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = value
}

// Merge applies patch key by key, last write wins.
func (c *ExecutionContext) Merge(patch map[string]any) {
	if len(patch) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range patch {
		c.values[k] = v
	}
}

// Snapshot returns a shallow copy of the current values, safe to persist
// or hand to an evaluator while branches keep writing.
func (c *ExecutionContext) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]any, len(c.values))
	for k, v := range c.values {
		snapshot[k] = v
	}

	return snapshot
}

// Len returns the number of stored keys.
func (c *ExecutionContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.values)
}
