package audit

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// riskyBinaries are command names whose mere presence in an LLM-allowed
// Bash command warrants a second look, independent of the textual scan.
var riskyBinaries = map[string]bool{
	"rm": true, "dd": true, "mkfs": true, "shred": true,
	"sudo": true, "su": true, "curl": true, "wget": true,
}

// riskLevelRank lets callers take the max of two independently
// computed risk levels.
func riskLevelRank(r RiskLevel) int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

func maxRiskLevel(a, b RiskLevel) RiskLevel {
	if riskLevelRank(b) > riskLevelRank(a) {
		return b
	}
	return a
}

// EvaluateRisk runs both the textual and AST-aware heuristic passes
// described for review-log enrichment and returns the combined flags.
// decision and decisionSource are the outcome being logged; llmAssessment
// is the LLM outcome string ("allow", "query", "timeout" or "error") when
// the LLM fallback was consulted, empty otherwise; command is the Bash
// command string when the tool is Bash, empty otherwise.
func EvaluateRisk(decision Decision, decisionSource Source, llmAssessment, llmReasoning, command string) ReviewFlags {
	flags := ReviewFlags{RiskLevel: RiskLow}

	if decisionSource == SourcePassthrough {
		flags.NeedsReview = true
		flags.RiskLevel = maxRiskLevel(flags.RiskLevel, RiskMedium)
		flags.Reasons = append(flags.Reasons, "pass-through decision")
	}

	if decisionSource == SourceLLM && strings.EqualFold(llmAssessment, "allow") && command != "" {
		if textual := textualCommandRisk(command); textual != "" {
			flags.NeedsReview = true
			flags.RiskLevel = maxRiskLevel(flags.RiskLevel, RiskHigh)
			flags.Reasons = append(flags.Reasons, textual)
		}
		if astReason, astLevel := astCommandRisk(command); astReason != "" {
			flags.NeedsReview = true
			flags.RiskLevel = maxRiskLevel(flags.RiskLevel, astLevel)
			flags.Reasons = append(flags.Reasons, astReason)
		}
	}

	if decisionSource == SourceLLM {
		lower := strings.ToLower(llmReasoning)
		if strings.Contains(lower, "uncertain") || strings.Contains(lower, "unclear") || strings.Contains(lower, "might") {
			flags.NeedsReview = true
			flags.RiskLevel = maxRiskLevel(flags.RiskLevel, RiskMedium)
			flags.Reasons = append(flags.Reasons, "LLM reasoning expresses uncertainty")
		}
	}

	if decisionSource == SourceLLM && decision == DecisionDeny {
		if strings.Contains(command, "cargo test") || strings.Contains(command, "npm install") || strings.Contains(command, "git status") {
			flags.NeedsReview = true
			flags.RiskLevel = maxRiskLevel(flags.RiskLevel, RiskMedium)
			flags.Reasons = append(flags.Reasons, "likely false-positive denial of a routine dev command")
		}
	}

	return flags
}

// textualCommandRisk is the fast substring pass from spec.md §4.4.
func textualCommandRisk(command string) string {
	switch {
	case strings.Contains(command, "rm "):
		return `command contains "rm "`
	case strings.Contains(command, "delete"):
		return `command contains "delete"`
	case strings.Contains(command, "curl") && strings.Contains(command, "|"):
		return `command pipes curl output`
	case strings.Contains(command, "sudo"):
		return `command contains "sudo"`
	default:
		return ""
	}
}

// astCommandRisk parses command as shell syntax and checks every call
// expression's command name against riskyBinaries. An unparsable
// command is itself flagged medium risk: an LLM-allowed command the
// gate cannot parse is inherently suspicious.
func astCommandRisk(command string) (reason string, level RiskLevel) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	f, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return "unparsable shell syntax", RiskMedium
	}

	var found string
	syntax.Walk(f, func(node syntax.Node) bool {
		if found != "" {
			return false
		}
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		name := wordLiteral(call.Args[0])
		if riskyBinaries[name] {
			found = name
			return false
		}
		return true
	})
	if found == "" {
		return "", RiskLow
	}
	return "command invokes risk-bearing binary " + found, RiskHigh
}

// wordLiteral extracts the literal value of a word made only of plain
// literal parts; words containing expansions or substitutions return
// "" rather than a misleading partial string.
func wordLiteral(w *syntax.Word) string {
	if w == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range w.Parts {
		lit, ok := part.(*syntax.Lit)
		if !ok {
			return ""
		}
		b.WriteString(lit.Value)
	}
	return b.String()
}
