package hookio

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestReadRequest(t *testing.T) {
	body := `{"session_id":"s1","transcript_path":"/tmp/t","cwd":"/home/u","hook_event_name":"PreToolUse","tool_name":"Read","tool_input":{"file_path":"/home/u/x"}}`
	req, err := ReadRequest(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ReadRequest error: %v", err)
	}
	if req.ToolName != "Read" {
		t.Errorf("ToolName = %q, want Read", req.ToolName)
	}
	fp, ok := req.StringField("file_path")
	if !ok || fp != "/home/u/x" {
		t.Errorf("StringField(file_path) = (%q, %v)", fp, ok)
	}
	if _, ok := req.StringField("missing"); ok {
		t.Errorf("StringField(missing) should not be ok")
	}
}

func TestReadRequestInvalidJSON(t *testing.T) {
	if _, err := ReadRequest(strings.NewReader("not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestAllowDeny(t *testing.T) {
	a := Allow("looks fine")
	if a.HookSpecificOutput.PermissionDecision != "allow" {
		t.Errorf("Allow: PermissionDecision = %q", a.HookSpecificOutput.PermissionDecision)
	}
	d := Deny("nope")
	if d.HookSpecificOutput.PermissionDecision != "deny" {
		t.Errorf("Deny: PermissionDecision = %q", d.HookSpecificOutput.PermissionDecision)
	}
	if !a.SuppressOutput || !d.SuppressOutput {
		t.Error("expected SuppressOutput true for both")
	}
}

func TestWriteTo(t *testing.T) {
	var buf bytes.Buffer
	if err := Allow("ok").WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo error: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	hso, ok := decoded["hookSpecificOutput"].(map[string]interface{})
	if !ok {
		t.Fatal("missing hookSpecificOutput")
	}
	if hso["permissionDecision"] != "allow" {
		t.Errorf("permissionDecision = %v", hso["permissionDecision"])
	}
	if hso["hookEventName"] != "PreToolUse" {
		t.Errorf("hookEventName = %v", hso["hookEventName"])
	}
}
