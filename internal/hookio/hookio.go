// Package hookio defines the JSON wire schemas the gate reads from stdin
// and writes to stdout, per the Claude Code PreToolUse hook contract.
package hookio

import (
	"encoding/json"
	"fmt"
	"io"
)

// Request is the single JSON document a host agent sends on stdin before
// executing a tool. It is consumed once and never mutated.
type Request struct {
	SessionID      string                 `json:"session_id"`
	TranscriptPath string                 `json:"transcript_path"`
	Cwd            string                 `json:"cwd"`
	HookEventName  string                 `json:"hook_event_name"`
	ToolName       string                 `json:"tool_name"`
	ToolInput      map[string]interface{} `json:"tool_input"`
}

// ReadRequest decodes a single Request from r.
func ReadRequest(r io.Reader) (*Request, error) {
	var req Request
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode hook input: %w", err)
	}
	if req.ToolInput == nil {
		req.ToolInput = map[string]interface{}{}
	}
	return &req, nil
}

// StringField returns the named tool_input field as a string, if present
// and string-typed.
func (r *Request) StringField(name string) (string, bool) {
	v, ok := r.ToolInput[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// HookOutput is the gate's reply document. A pass-through decision is
// represented by writing nothing at all, so there is no "ask" variant here.
type HookOutput struct {
	HookSpecificOutput HookSpecificOutput `json:"hookSpecificOutput"`
	SuppressOutput     bool               `json:"suppressOutput"`
}

// HookSpecificOutput carries the actual permission decision.
type HookSpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason"`
}

// Allow builds an allow decision with the given reasoning text.
func Allow(reason string) HookOutput {
	return HookOutput{
		HookSpecificOutput: HookSpecificOutput{
			HookEventName:            "PreToolUse",
			PermissionDecision:       "allow",
			PermissionDecisionReason: reason,
		},
		SuppressOutput: true,
	}
}

// Deny builds a deny decision with the given reasoning text.
func Deny(reason string) HookOutput {
	return HookOutput{
		HookSpecificOutput: HookSpecificOutput{
			HookEventName:            "PreToolUse",
			PermissionDecision:       "deny",
			PermissionDecisionReason: reason,
		},
		SuppressOutput: true,
	}
}

// WriteTo serializes the output as a single JSON document to w.
func (o HookOutput) WriteTo(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(o); err != nil {
		return fmt.Errorf("encode hook output: %w", err)
	}
	return nil
}
