// Package meshpolicy implements the governance contracts evaluated before a
// tool invocation, model inference call, or event emission proceeds: the
// action/context/request/decision types, an in-process rule-based engine,
// and a delegating adapter for remote governance backends.
package meshpolicy

import "fmt"

// InvalidRuleError reports a policy rule that failed validation.
type InvalidRuleError struct {
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid policy rule: %s", e.Reason)
}

// BackendError wraps a failure reported by a remote governance backend.
type BackendError struct {
	Reason string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("policy backend failure: %s", e.Reason)
}
