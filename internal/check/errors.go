package check

import (
	"errors"
	"fmt"
)

// StepFailure is an assertion that did not hold. It is recorded, not returned.
type StepFailure struct {
	Step   string
	Reason string
}

// Label is the human-readable failure label.
func (f StepFailure) Label() string {
	return f.Step + " failed"
}

func (f StepFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Label(), f.Reason)
}

// ScenarioError aborts the remaining steps of a scenario. It wraps an
// external-call error or a recovered panic.
type ScenarioError struct {
	Scenario string
	Step     string
	Cause    error
	Stack    string
}

func (e *ScenarioError) Error() string {
	return fmt.Sprintf("scenario %s: step %s: %v", e.Scenario, e.Step, e.Cause)
}

func (e *ScenarioError) Unwrap() error {
	return e.Cause
}

// Label is the single failed-check label recorded for an aborted scenario.
func (e *ScenarioError) Label() string {
	return fmt.Sprintf("%s: %s aborted", e.Scenario, e.Step)
}

// IsScenarioError reports whether err is or wraps a *ScenarioError.
func IsScenarioError(err error) bool {
	var se *ScenarioError
	return errors.As(err, &se)
}

// Abort records err as the one failure of an aborted scenario.
func (r *Results) Abort(err *ScenarioError) {
	r.Checks = append(r.Checks, Check{
		Scenario: err.Scenario,
		Step:     err.Step,
		Label:    err.Label(),
		Reason:   err.Cause.Error(),
	})
}
