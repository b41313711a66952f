package main

import (
	"context"
	"time"

	"cc-gate/internal/audit"
	"cc-gate/internal/gateconfig"
	"cc-gate/internal/hookio"
	"cc-gate/internal/llmclient"
	"cc-gate/internal/matcher"
)

// decision is the outcome of one pipeline run: at most one of output is
// set (a pass-through leaves it nil), paired with the audit records
// that should be logged regardless.
type decision struct {
	output         *hookio.HookOutput
	operational    audit.OperationalEntry
	review         audit.ReviewEntry
	llmProcessedMs int64
}

// evaluate runs the full pipeline: deny rules, then allow rules, then
// the LLM fallback (if enabled and nothing matched), and builds the
// audit records for whichever branch fired.
func evaluate(ctx context.Context, cfg *gateconfig.CompiledConfig, configPath string, req *hookio.Request, testMode bool) decision {
	if info, ok := matcher.Match(cfg.DenyRules, req); ok {
		return ruleDecision(configPath, req, info, cfg.DenyRules[info.RuleIndex], "deny", audit.DecisionDeny)
	}
	if info, ok := matcher.Match(cfg.AllowRules, req); ok {
		return ruleDecision(configPath, req, info, cfg.AllowRules[info.RuleIndex], "allow", audit.DecisionAllow)
	}
	if cfg.LLMFallback.Enabled {
		return llmDecision(ctx, cfg, req, testMode)
	}
	return passthroughDecision(req)
}

func ruleDecision(configPath string, req *hookio.Request, info *matcher.DecisionInfo, rule matcher.Rule, ruleType string, dec audit.Decision) decision {
	var out hookio.HookOutput
	if dec == audit.DecisionDeny {
		out = hookio.Deny(info.Reasoning)
	} else {
		out = hookio.Allow(info.Reasoning)
	}

	ruleMeta := &audit.RuleMetadata{
		RuleID:          info.RuleID,
		SectionName:     info.SectionName,
		RuleType:        ruleType,
		RuleIndex:       info.RuleIndex,
		RuleDescription: rule.Description,
		ConfigFile:      configPath,
		MatchedPattern:  info.MatchedPattern,
	}

	command, _ := req.StringField("command")
	flags := audit.EvaluateRisk(dec, audit.SourceRule, "", "", command)

	return decision{
		output:      &out,
		operational: audit.NewOperationalEntry(req, dec, audit.SourceRule),
		review: audit.ReviewEntry{
			Timestamp:      time.Now().UTC(),
			SessionID:      req.SessionID,
			ToolName:       req.ToolName,
			ToolInput:      req.ToolInput,
			Cwd:            req.Cwd,
			Decision:       dec,
			DecisionSource: audit.SourceRule,
			Reasoning:      info.Reasoning,
			RuleMetadata:   ruleMeta,
			ReviewFlags:    flags,
		},
	}
}

func llmDecision(ctx context.Context, cfg *gateconfig.CompiledConfig, req *hookio.Request, testMode bool) decision {
	start := time.Now()
	result := llmclient.Assess(ctx, cfg.LLMFallback, req)
	elapsed := time.Since(start).Milliseconds()

	out, ok := llmclient.Apply(result, testMode)

	assessment, reasoning := llmOutcomeStrings(result)
	dec := audit.DecisionPassthrough
	source := audit.SourcePassthrough
	if ok {
		dec = audit.Decision(out.HookSpecificOutput.PermissionDecision)
		source = audit.SourceLLM
	}

	command, _ := req.StringField("command")
	flags := audit.EvaluateRisk(dec, source, assessment, reasoning, command)

	elapsedCopy := elapsed
	llmMeta := &audit.LLMMetadata{
		Assessment:       assessment,
		Reasoning:        reasoning,
		ProcessingTimeMs: &elapsedCopy,
		Model:            cfg.LLMFallback.Model,
	}

	d := decision{
		operational: audit.NewOperationalEntry(req, dec, source),
		review: audit.ReviewEntry{
			Timestamp:      time.Now().UTC(),
			SessionID:      req.SessionID,
			ToolName:       req.ToolName,
			ToolInput:      req.ToolInput,
			Cwd:            req.Cwd,
			Decision:       dec,
			DecisionSource: source,
			Reasoning:      reasoning,
			LLMMetadata:    llmMeta,
			ReviewFlags:    flags,
		},
		llmProcessedMs: elapsed,
	}
	if ok {
		d.output = &out
	}
	return d
}

func passthroughDecision(req *hookio.Request) decision {
	command, _ := req.StringField("command")
	flags := audit.EvaluateRisk(audit.DecisionPassthrough, audit.SourcePassthrough, "", "", command)
	return decision{
		operational: audit.NewOperationalEntry(req, audit.DecisionPassthrough, audit.SourcePassthrough),
		review: audit.ReviewEntry{
			Timestamp:      time.Now().UTC(),
			SessionID:      req.SessionID,
			ToolName:       req.ToolName,
			ToolInput:      req.ToolInput,
			Cwd:            req.Cwd,
			Decision:       audit.DecisionPassthrough,
			DecisionSource: audit.SourcePassthrough,
			Reasoning:      "no rule matched and LLM fallback disabled or unavailable",
			ReviewFlags:    flags,
		},
	}
}

// llmOutcomeStrings reduces an AssessmentResult to the two plain strings
// the audit log and risk heuristics need, independent of hook-output
// shape.
func llmOutcomeStrings(result llmclient.AssessmentResult) (assessment, reasoning string) {
	switch result.Kind {
	case llmclient.KindAssessment:
		if result.Assessment.Classification == llmclient.ClassificationAllow {
			return "allow", result.Assessment.Reasoning
		}
		return "query", result.Assessment.Reasoning
	case llmclient.KindTimeout:
		return "timeout", "LLM assessment timed out"
	default:
		return "error", result.ErrMessage
	}
}
