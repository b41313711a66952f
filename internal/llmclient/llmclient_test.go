package llmclient

import "testing"

func TestParseResponsePlain(t *testing.T) {
	a, err := parseResponse(`{"classification": "ALLOW", "reasoning": "Read-only operation"}`)
	if err != nil {
		t.Fatalf("parseResponse error: %v", err)
	}
	if a.Classification != ClassificationAllow || a.Reasoning != "Read-only operation" {
		t.Errorf("got %+v", a)
	}
}

func TestParseResponseWithPreamble(t *testing.T) {
	raw := "Sure, here's my assessment:\n{\"classification\": \"QUERY\", \"reasoning\": \"Destructive command\"}\nHope this helps!"
	a, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("parseResponse error: %v", err)
	}
	if a.Classification != ClassificationQuery || a.Reasoning != "Destructive command" {
		t.Errorf("got %+v", a)
	}
}

func TestParseResponseMarkdownFence(t *testing.T) {
	raw := "```json\n{\"classification\": \"ALLOW\", \"reasoning\": \"Safe operation\"}\n```"
	a, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("parseResponse error: %v", err)
	}
	if a.Classification != ClassificationAllow {
		t.Errorf("got %+v", a)
	}
}

func TestParseResponseTrailingComma(t *testing.T) {
	raw := `{"classification": "QUERY", "reasoning": "Cannot determine",}`
	a, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("parseResponse error: %v", err)
	}
	if a.Classification != ClassificationQuery || a.Reasoning != "Cannot determine" {
		t.Errorf("got %+v", a)
	}
}

func TestParseResponseLegacyVocabulary(t *testing.T) {
	cases := map[string]Classification{
		"SAFE":    ClassificationAllow,
		"UNSAFE":  ClassificationQuery,
		"UNKNOWN": ClassificationQuery,
	}
	for label, want := range cases {
		t.Run(label, func(t *testing.T) {
			raw := `{"classification": "` + label + `", "reasoning": "legacy"}`
			a, err := parseResponse(raw)
			if err != nil {
				t.Fatalf("parseResponse error: %v", err)
			}
			if a.Classification != want {
				t.Errorf("classification = %v, want %v", a.Classification, want)
			}
		})
	}
}

func TestParseResponseInvalidClassification(t *testing.T) {
	if _, err := parseResponse(`{"classification": "MAYBE", "reasoning": "Unsure"}`); err == nil {
		t.Fatal("expected error for invalid classification")
	}
}

func TestParseResponseNoJSON(t *testing.T) {
	if _, err := parseResponse("This is just plain text without any JSON"); err == nil {
		t.Fatal("expected error when no JSON object is present")
	}
}

func TestApplyAllowAlwaysEmitsAllow(t *testing.T) {
	result := assessmentOutcome(SafetyAssessment{Classification: ClassificationAllow, Reasoning: "standard"})
	for _, testMode := range []bool{false, true} {
		out, ok := Apply(result, testMode)
		if !ok {
			t.Fatalf("testMode=%v: expected ok=true", testMode)
		}
		if out.HookSpecificOutput.PermissionDecision != "allow" {
			t.Errorf("testMode=%v: PermissionDecision = %q", testMode, out.HookSpecificOutput.PermissionDecision)
		}
	}
}

func TestApplyQueryNeverDeniesInNormalMode(t *testing.T) {
	result := assessmentOutcome(SafetyAssessment{Classification: ClassificationQuery, Reasoning: "unclear"})
	if _, ok := Apply(result, false); ok {
		t.Error("normal mode: QUERY must pass through, not emit a decision")
	}
	out, ok := Apply(result, true)
	if !ok || out.HookSpecificOutput.PermissionDecision != "deny" {
		t.Errorf("test mode: QUERY should emit deny, got %+v ok=%v", out, ok)
	}
}

func TestApplyTimeoutAndErrorNeverDenyInNormalMode(t *testing.T) {
	for _, result := range []AssessmentResult{timeoutOutcome(), errorOutcome(errText("boom"))} {
		if _, ok := Apply(result, false); ok {
			t.Errorf("normal mode: %+v must pass through", result)
		}
		out, ok := Apply(result, true)
		if !ok || out.HookSpecificOutput.PermissionDecision != "deny" {
			t.Errorf("test mode: %+v should emit deny, got %+v ok=%v", result, out, ok)
		}
	}
}

type errText string

func (e errText) Error() string { return string(e) }
