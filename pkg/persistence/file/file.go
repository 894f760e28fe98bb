// Package file provides JSON-file persistence for workflows and
// executions, used in development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/persistence"
)

// Persistence stores every entity as one JSON file under root:
//
//	definitions/<workflow-id>/<version>.json
//	executions/<execution-id>.json
//	steps/<execution-id>/<step-id>.json
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates the directory layout under root.
func NewPersistence(root string) (*Persistence, error) {
	for _, dir := range []string{"definitions", "executions", "steps"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	return &Persistence{root: root}, nil
}

func (p *Persistence) Definitions(_ context.Context) ([]*models.WorkflowDefinition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(p.root, "definitions"))
	if err != nil {
		return nil, persistence.NewStoreError("Definitions", "definition", "", err)
	}

	definitions := make([]*models.WorkflowDefinition, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		definition, err := p.latestDefinition(entry.Name())
		if err != nil {
			return nil, err
		}

		definitions = append(definitions, definition)
	}

	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].ID < definitions[j].ID
	})

	return definitions, nil
}

func (p *Persistence) DefinitionByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.latestDefinition(id)
}

func (p *Persistence) DefinitionByVersion(_ context.Context, id string, version int) (*models.WorkflowDefinition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var definition models.WorkflowDefinition

	path := filepath.Join(p.root, "definitions", id, strconv.Itoa(version)+".json")
	if err := p.readJSON(path, &definition); err != nil {
		return nil, persistence.NewStoreError("DefinitionByVersion", "definition", id, err)
	}

	return &definition, nil
}

func (p *Persistence) SaveDefinition(_ context.Context, definition *models.WorkflowDefinition) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Join(p.root, "definitions", definition.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return persistence.NewStoreError("SaveDefinition", "definition", definition.ID, err)
	}

	path := filepath.Join(dir, strconv.Itoa(definition.Version)+".json")
	if err := p.writeJSON(path, definition); err != nil {
		return persistence.NewStoreError("SaveDefinition", "definition", definition.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteDefinition(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Join(p.root, "definitions", id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return persistence.NewStoreError("DeleteDefinition", "definition", id, persistence.ErrDefinitionNotFound)
	}

	if err := os.RemoveAll(dir); err != nil {
		return persistence.NewStoreError("DeleteDefinition", "definition", id, err)
	}

	return nil
}

func (p *Persistence) SaveExecution(_ context.Context, execution *models.WorkflowExecution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := filepath.Join(p.root, "executions", execution.ID+".json")
	if err := p.writeJSON(path, execution); err != nil {
		return persistence.NewStoreError("SaveExecution", "execution", execution.ID, err)
	}

	return nil
}

func (p *Persistence) ExecutionByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var execution models.WorkflowExecution

	path := filepath.Join(p.root, "executions", id+".json")
	if err := p.readJSON(path, &execution); err != nil {
		return nil, persistence.NewStoreError("ExecutionByID", "execution", id, err)
	}

	return &execution, nil
}

func (p *Persistence) ExecutionsByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(p.root, "executions"))
	if err != nil {
		return nil, persistence.NewStoreError("ExecutionsByWorkflow", "execution", workflowID, err)
	}

	var executions []*models.WorkflowExecution

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var execution models.WorkflowExecution
		if err := p.readJSON(filepath.Join(p.root, "executions", entry.Name()), &execution); err != nil {
			return nil, persistence.NewStoreError("ExecutionsByWorkflow", "execution", workflowID, err)
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, &execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.Before(executions[j].StartedAt)
	})

	return executions, nil
}

func (p *Persistence) SaveStep(_ context.Context, step *models.StepExecution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Join(p.root, "steps", step.ExecutionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return persistence.NewStoreError("SaveStep", "step", step.ID, err)
	}

	if err := p.writeJSON(filepath.Join(dir, step.ID+".json"), step); err != nil {
		return persistence.NewStoreError("SaveStep", "step", step.ID, err)
	}

	return nil
}

func (p *Persistence) StepByID(_ context.Context, id string) (*models.StepExecution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	executions, err := os.ReadDir(filepath.Join(p.root, "steps"))
	if err != nil {
		return nil, persistence.NewStoreError("StepByID", "step", id, err)
	}

	for _, executionDir := range executions {
		if !executionDir.IsDir() {
			continue
		}

		path := filepath.Join(p.root, "steps", executionDir.Name(), id+".json")
		if _, err := os.Stat(path); err != nil {
			continue
		}

		var step models.StepExecution
		if err := p.readJSON(path, &step); err != nil {
			return nil, persistence.NewStoreError("StepByID", "step", id, err)
		}

		return &step, nil
	}

	return nil, persistence.NewStoreError("StepByID", "step", id, persistence.ErrStepNotFound)
}

func (p *Persistence) StepsByExecution(_ context.Context, executionID string) ([]*models.StepExecution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	dir := filepath.Join(p.root, "steps", executionID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, persistence.NewStoreError("StepsByExecution", "step", executionID, err)
	}

	steps := make([]*models.StepExecution, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var step models.StepExecution
		if err := p.readJSON(filepath.Join(dir, entry.Name()), &step); err != nil {
			return nil, persistence.NewStoreError("StepsByExecution", "step", executionID, err)
		}

		steps = append(steps, &step)
	}

	sort.Slice(steps, func(i, j int) bool {
		return steps[i].NodeID < steps[j].NodeID
	})

	return steps, nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); err != nil {
		return fmt.Errorf("data directory unavailable: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// latestDefinition returns the highest stored version for id. Callers hold
// at least the read lock.
func (p *Persistence) latestDefinition(id string) (*models.WorkflowDefinition, error) {
	dir := filepath.Join(p.root, "definitions", id)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStoreError("DefinitionByID", "definition", id, persistence.ErrDefinitionNotFound)
		}

		return nil, persistence.NewStoreError("DefinitionByID", "definition", id, err)
	}

	latest := 0

	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".json")

		version, err := strconv.Atoi(name)
		if err == nil && version > latest {
			latest = version
		}
	}

	if latest == 0 {
		return nil, persistence.NewStoreError("DefinitionByID", "definition", id, persistence.ErrDefinitionNotFound)
	}

	var definition models.WorkflowDefinition
	if err := p.readJSON(filepath.Join(dir, strconv.Itoa(latest)+".json"), &definition); err != nil {
		return nil, persistence.NewStoreError("DefinitionByID", "definition", id, err)
	}

	return &definition, nil
}

func (p *Persistence) readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return notFoundFor(path)
		}

		return err
	}

	return json.Unmarshal(data, target)
}

func (p *Persistence) writeJSON(path string, source any) error {
	data, err := json.MarshalIndent(source, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func notFoundFor(path string) error {
	switch {
	case strings.Contains(path, string(filepath.Separator)+"executions"+string(filepath.Separator)):
		return persistence.ErrExecutionNotFound
	case strings.Contains(path, string(filepath.Separator)+"steps"+string(filepath.Separator)):
		return persistence.ErrStepNotFound
	default:
		return persistence.ErrDefinitionNotFound
	}
}
