// Package meshexec executes mesh Call messages: it decodes the payload,
// checks policy, runs any requested tool invocations, drives the
// configured model adapter to completion, and journals the exchange onto
// the memory bus.
package meshexec

import "fmt"

// DecodeError reports a Call payload that failed to decode.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode call payload: %s", e.Reason) }

// PolicyDeniedError reports a policy engine denying an action the call
// pipeline attempted.
type PolicyDeniedError struct {
	Action string
	Reason string
}

func (e *PolicyDeniedError) Error() string {
	return fmt.Sprintf("policy denied %s: %s", e.Action, e.Reason)
}

// PolicyEscalatedError reports a policy engine requiring approval before
// an action can proceed. The call pipeline treats escalation the same as
// denial: it cannot itself grant the approval, so it surfaces the
// decision to the caller rather than blocking.
type PolicyEscalatedError struct {
	Action    string
	Reason    string
	Approvers []string
}

func (e *PolicyEscalatedError) Error() string {
	return fmt.Sprintf("policy escalated %s: %s (approvers: %v)", e.Action, e.Reason, e.Approvers)
}

// ToolInvocationError wraps a failure from a named tool invocation.
type ToolInvocationError struct {
	Tool   string
	Reason string
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("tool `%s` failed: %s", e.Tool, e.Reason)
}

// AdapterInvocationError wraps a failure surfaced by a model adapter.
type AdapterInvocationError struct {
	Provider string
	Model    string
	Reason   string
}

func (e *AdapterInvocationError) Error() string {
	return fmt.Sprintf("adapter `%s/%s` error: %s", e.Provider, e.Model, e.Reason)
}
