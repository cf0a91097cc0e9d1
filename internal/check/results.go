// Package check records pass/fail outcomes of a verification run.
//
// Every check lands in exactly one of the passed or failed lists. Step
// functions build a Results value locally and return it; the caller merges.
package check

import "fmt"

// Check is one recorded outcome.
type Check struct {
	Scenario string `json:"scenario,omitempty"`
	Step     string `json:"step,omitempty"`
	Label    string `json:"label"`
	Passed   bool   `json:"passed"`
	Reason   string `json:"reason,omitempty"`
}

// Results is an append-only, ordered list of checks.
type Results struct {
	Checks []Check `json:"checks"`
}

// Record appends a check and reports ok back so callers can branch on it.
func (r *Results) Record(label string, ok bool) bool {
	r.Checks = append(r.Checks, Check{Label: label, Passed: ok})
	return ok
}

// Pass records a passed check.
func (r *Results) Pass(label string) {
	r.Record(label, true)
}

// Fail records a failed check with a reason.
func (r *Results) Fail(label, reason string) {
	r.Checks = append(r.Checks, Check{Label: label, Reason: reason})
}

// Failf records a failed check with a formatted reason.
func (r *Results) Failf(label, format string, args ...any) {
	r.Fail(label, fmt.Sprintf(format, args...))
}

// RecordFailure records a StepFailure as a failed check.
func (r *Results) RecordFailure(f StepFailure) {
	r.Checks = append(r.Checks, Check{Label: f.Label(), Reason: f.Reason})
}

// RecordErr records label as passed when err is nil, and "<label> failed"
// otherwise.
func (r *Results) RecordErr(label string, err error) bool {
	if err != nil {
		r.RecordFailure(StepFailure{Step: label, Reason: err.Error()})
		return false
	}
	r.Pass(label)
	return true
}

// Merge appends other's checks in order.
func (r *Results) Merge(other Results) {
	r.Checks = append(r.Checks, other.Checks...)
}

// Tag fills Scenario and Step on checks that don't have them yet.
func (r Results) Tag(scenario, step string) Results {
	out := Results{Checks: make([]Check, len(r.Checks))}
	for i, c := range r.Checks {
		if c.Scenario == "" {
			c.Scenario = scenario
		}
		if c.Step == "" {
			c.Step = step
		}
		out.Checks[i] = c
	}
	return out
}

// Passed returns passed labels in record order.
func (r Results) Passed() []string {
	labels := make([]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		if c.Passed {
			labels = append(labels, c.Label)
		}
	}
	return labels
}

// Failed returns failed labels in record order.
func (r Results) Failed() []string {
	labels := make([]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		if !c.Passed {
			labels = append(labels, c.Label)
		}
	}
	return labels
}

// FailedChecks returns the failed checks with their reasons.
func (r Results) FailedChecks() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Total is the number of recorded checks.
func (r Results) Total() int {
	return len(r.Checks)
}

// PassRate is passed/total in [0,1]; 0 for an empty run.
func (r Results) PassRate() float64 {
	if len(r.Checks) == 0 {
		return 0
	}
	return float64(len(r.Passed())) / float64(len(r.Checks))
}

// OK reports whether nothing failed.
func (r Results) OK() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// ExitCode is 0 iff no check failed.
func (r Results) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}
