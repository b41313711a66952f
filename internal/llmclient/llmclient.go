// Package llmclient consults a remote OpenAI-compatible chat completion
// endpoint for requests the declarative rule engine did not cover, and
// turns its reply into a typed, retried, timeout-bounded assessment.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"cc-gate/internal/gateconfig"
	"cc-gate/internal/hookio"
)

// Classification is the normalized two-way outcome of an LLM reply.
type Classification int

const (
	// ClassificationAllow means the model is confident the operation is safe.
	ClassificationAllow Classification = iota
	// ClassificationQuery means the model wants a human to decide.
	ClassificationQuery
)

// SafetyAssessment is a successfully parsed LLM reply.
type SafetyAssessment struct {
	Classification Classification
	Reasoning      string
}

// AssessmentKind tags which variant of AssessmentResult is populated.
type AssessmentKind int

const (
	KindAssessment AssessmentKind = iota
	KindTimeout
	KindError
)

// AssessmentResult is the outer result of one Assess call: exactly one
// of Assessment (when Kind == KindAssessment) or ErrMessage (when Kind
// == KindError) is meaningful; KindTimeout carries neither.
type AssessmentResult struct {
	Kind       AssessmentKind
	Assessment SafetyAssessment
	ErrMessage string
}

func assessmentOutcome(a SafetyAssessment) AssessmentResult {
	return AssessmentResult{Kind: KindAssessment, Assessment: a}
}

func timeoutOutcome() AssessmentResult {
	return AssessmentResult{Kind: KindTimeout}
}

func errorOutcome(err error) AssessmentResult {
	return AssessmentResult{Kind: KindError, ErrMessage: err.Error()}
}

// jsonCandidateRe finds the first outermost-balanced-looking {...} blob
// in a free-form reply, matching dot-all so embedded newlines don't
// split the match.
var jsonCandidateRe = regexp.MustCompile(`(?s)\{.*\}`)

// llmResponse is the wire shape the model is instructed to reply with.
type llmResponse struct {
	Classification string `json:"classification"`
	Reasoning      string `json:"reasoning"`
}

// Assess sends req to the configured endpoint and returns within
// cfg.TimeoutSecs regardless of how many retries it took internally.
func Assess(ctx context.Context, cfg gateconfig.LLMFallbackConfig, req *hookio.Request) AssessmentResult {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSecs)*time.Second)
	defer cancel()

	type outcome struct {
		assessment SafetyAssessment
		err        error
	}
	done := make(chan outcome, 1)
	go func() {
		assessment, err := callWithRetries(ctx, cfg, req)
		done <- outcome{assessment, err}
	}()

	select {
	case <-ctx.Done():
		return timeoutOutcome()
	case o := <-done:
		if o.err != nil {
			return errorOutcome(o.err)
		}
		return assessmentOutcome(o.assessment)
	}
}

func callWithRetries(ctx context.Context, cfg gateconfig.LLMFallbackConfig, req *hookio.Request) (SafetyAssessment, error) {
	client := newClient(cfg)
	prompt := buildPrompt(req)

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		content, err := callOnce(ctx, client, cfg, prompt)
		if err != nil {
			// Transport errors terminate immediately; they are not
			// retried, only parse failures are.
			return SafetyAssessment{}, err
		}

		assessment, parseErr := parseResponse(content)
		if parseErr == nil {
			return assessment, nil
		}
		lastErr = parseErr
	}
	return SafetyAssessment{}, fmt.Errorf("failed to parse LLM response after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

func newClient(cfg gateconfig.LLMFallbackConfig) openai.Client {
	opts := []option.RequestOption{option.WithBaseURL(cfg.Endpoint)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if len(cfg.ProviderPreferences) > 0 {
		opts = append(opts, option.WithJSONSet("provider", map[string]interface{}{
			"order": cfg.ProviderPreferences,
		}))
	}
	return openai.NewClient(opts...)
}

func callOnce(ctx context.Context, client openai.Client, cfg gateconfig.LLMFallbackConfig, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       cfg.Model,
		Temperature: openai.Float(cfg.Temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(cfg.SystemPrompt),
			openai.UserMessage(prompt),
		},
	}

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	content := completion.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("llm returned empty content")
	}
	return content, nil
}

func buildPrompt(req *hookio.Request) string {
	params, err := json.MarshalIndent(req.ToolInput, "", "  ")
	if err != nil {
		params = []byte("{}")
	}
	return fmt.Sprintf(`Classify the following tool request as ALLOW or QUERY based on the system prompt's rules.

Tool: %s
Parameters:
%s

CRITICAL: When uncertain, choose QUERY.

Respond in this exact JSON format:
{
  "classification": "ALLOW|QUERY",
  "reasoning": "brief explanation"
}

Respond ONLY with valid JSON.`, req.ToolName, string(params))
}

// parseResponse extracts the JSON object from content, decodes it
// (repairing trailing commas once if direct decode fails), and maps
// the classification, tolerating the legacy SAFE/UNSAFE/UNKNOWN
// vocabulary alongside the modern ALLOW/QUERY one.
func parseResponse(content string) (SafetyAssessment, error) {
	jsonStr := jsonCandidateRe.FindString(content)
	if jsonStr == "" {
		return SafetyAssessment{}, fmt.Errorf("no JSON object found in LLM response")
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		repaired := simpleJSONRepair(jsonStr)
		if err2 := json.Unmarshal([]byte(repaired), &resp); err2 != nil {
			return SafetyAssessment{}, fmt.Errorf("failed to parse JSON even after repair: %w", err)
		}
	}

	classification, err := classify(resp.Classification)
	if err != nil {
		return SafetyAssessment{}, err
	}
	return SafetyAssessment{Classification: classification, Reasoning: resp.Reasoning}, nil
}

// simpleJSONRepair strips trailing commas before a closing brace or
// bracket, the single most common malformation in LLM JSON replies.
func simpleJSONRepair(s string) string {
	s = strings.ReplaceAll(s, ",}", "}")
	s = strings.ReplaceAll(s, ",]", "]")
	return strings.TrimSpace(s)
}

func classify(raw string) (Classification, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ALLOW", "SAFE":
		return ClassificationAllow, nil
	case "QUERY", "UNSAFE", "UNKNOWN":
		return ClassificationQuery, nil
	default:
		return 0, fmt.Errorf("invalid classification %q: must be ALLOW or QUERY", raw)
	}
}
