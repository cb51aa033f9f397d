// Package meshproto holds the wire-level structs that cross package
// boundaries in this module: call payloads and outcomes decoded and produced
// by meshexec, and the directory payloads exchanged between
// meshregistration/directoryclient and the mesh directory service.
package meshproto

import "encoding/json"

// PromptMessageWire is the JSON shape of a single prompt message inside a
// CallPayload. It deliberately does not reuse meshadapter.PromptMessage,
// which is an immutable value type built with NewPromptMessage; meshexec
// decodes this wire struct, checks the role, and builds PromptMessage
// values from it.
type PromptMessageWire struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolInvocationWire requests execution of a named tool with a raw JSON
// input payload, as carried inside a CallPayload.
type ToolInvocationWire struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// CallPayload is the decoded body of a mesh Call message.
type CallPayload struct {
	Messages        []PromptMessageWire `json:"messages"`
	Temperature     *float32            `json:"temperature,omitempty"`
	MaxOutputTokens *int                `json:"max_output_tokens,omitempty"`
	Tools           []ToolInvocationWire `json:"tools,omitempty"`
}

// ToolInvocationResult records the output of one executed tool invocation.
type ToolInvocationResult struct {
	Name   string          `json:"name"`
	Output json.RawMessage `json:"output"`
}

// CallOutcome is the result of executing a CallPayload: the aggregated
// model response together with every tool invocation that ran along the
// way.
type CallOutcome struct {
	Response    string                  `json:"response"`
	ToolResults []ToolInvocationResult  `json:"tool_results,omitempty"`
}
