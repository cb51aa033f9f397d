// Package meshtools implements the tool registry that agents consult before
// invoking a named capability: metadata validation, registration, lookup,
// and invocation, plus an optional JSON-schema input validation hook.
package meshtools

import "fmt"

// InvalidMetadataError reports tool metadata that failed validation.
type InvalidMetadataError struct {
	Reason string
}

func (e *InvalidMetadataError) Error() string {
	return fmt.Sprintf("invalid tool metadata: %s", e.Reason)
}

// DuplicateToolError reports a tool name collision at registration time.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool `%s` is already registered", e.Name)
}

// UnknownToolError reports a lookup or invocation against a name that was
// never registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool `%s` is not registered", e.Name)
}

// ExecutionError wraps a failure returned by a tool's own Invoke
// implementation.
type ExecutionError struct {
	Reason string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool execution failed: %s", e.Reason)
}

// SchemaValidationError reports input that failed a tool's declared JSON
// schema before invocation was attempted.
type SchemaValidationError struct {
	ToolName string
	Reason   string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("tool `%s` input failed schema validation: %s", e.ToolName, e.Reason)
}
