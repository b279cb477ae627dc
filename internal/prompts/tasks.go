package prompts

import (
	"encoding/json"
	"slices"
)

// TaskType identifies what a prompt asks the model to do.
type TaskType string

// Batch validation prompts list several requirements of one type through
// {{requirements}}; the other task types address one requirement.
const (
	TaskValidation      TaskType = "validation"
	TaskBatchValidation TaskType = "batch_validation"
	TaskRevalidation    TaskType = "revalidation"
)

var taskTypes = []TaskType{
	TaskValidation,
	TaskBatchValidation,
	TaskRevalidation,
}

// TaskTypes returns the list of valid task types.
func TaskTypes() []TaskType {
	return slices.Clone(taskTypes)
}

// UnmarshalJSON validates that the decoded string is a known task type.
func (t *TaskType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseTaskType(raw)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseTaskType validates a string as a known task type.
// Returns ErrInvalidTaskType if the value is not recognized.
func ParseTaskType(s string) (TaskType, error) {
	v := TaskType(s)
	if !slices.Contains(taskTypes, v) {
		return "", ErrInvalidTaskType
	}
	return v, nil
}
