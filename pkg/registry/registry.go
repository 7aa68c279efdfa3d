// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"credit-risk/internal/common/validation"
)

var ErrActivityNotFound = errors.New("activity not found")

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// SaveRegistry stamps LastUpdated and writes the registry atomically.
func SaveRegistry(path string, reg *ActivityRegistry) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".registry-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// FindByTaskType returns the activity bound to a Zeebe task type.
func (r *ActivityRegistry) FindByTaskType(taskType string) (*Activity, error) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], nil
		}
	}
	return nil, fmt.Errorf("%w: task type %q", ErrActivityNotFound, taskType)
}

// Validate reports every structural problem in the registry.
func (r *ActivityRegistry) Validate() []error {
	var errs []error
	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)

	for _, a := range r.Activities {
		if err := validation.ValidateActivityNaming(a.ID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.ID, err))
		}
		if ids[a.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate activity id", a.ID))
		}
		ids[a.ID] = true

		if a.TaskType == "" {
			errs = append(errs, fmt.Errorf("%s: taskType is required", a.ID))
		} else if taskTypes[a.TaskType] {
			errs = append(errs, fmt.Errorf("%s: task type %q registered twice", a.ID, a.TaskType))
		}
		taskTypes[a.TaskType] = true

		if !implementationStatuses[a.ImplementationStatus] {
			errs = append(errs, fmt.Errorf("%s: unknown implementationStatus %q", a.ID, a.ImplementationStatus))
		}
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				errs = append(errs, fmt.Errorf("%s: timeout: %w", a.ID, err))
			}
		}
		if len(a.InputSchema) > 0 {
			if err := validation.CompileSchema(a.InputSchema); err != nil {
				errs = append(errs, fmt.Errorf("%s: inputSchema: %w", a.ID, err))
			}
		}
		if len(a.OutputSchema) > 0 {
			if err := validation.CompileSchema(a.OutputSchema); err != nil {
				errs = append(errs, fmt.Errorf("%s: outputSchema: %w", a.ID, err))
			}
		}
	}
	return errs
}
