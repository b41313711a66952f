// Package matcher implements the priority-ordered rule matching algorithm:
// given a compiled rule list and a request, find the first rule that
// matches. Interpretation of a match (allow vs deny) belongs to the
// caller, which knows which list the rules came from.
package matcher

import (
	"fmt"
	"regexp"

	"cc-gate/internal/hookio"
)

// Rule is a single compiled policy rule. Exactly one of Tool or ToolRegex
// is set (enforced at compile time, never at match time).
type Rule struct {
	RuleID      string
	SectionName string
	Description string

	Tool             string
	ToolRegex        *regexp.Regexp
	ToolExcludeRegex *regexp.Regexp

	FilePathRegex        *regexp.Regexp
	FilePathExcludeRegex *regexp.Regexp

	CommandRegex        *regexp.Regexp
	CommandExcludeRegex *regexp.Regexp

	SubagentType             string
	SubagentTypeExcludeRegex *regexp.Regexp

	PromptRegex        *regexp.Regexp
	PromptExcludeRegex *regexp.Regexp
}

// DecisionInfo describes a matched rule, independent of allow/deny
// interpretation. The auditor consumes every field to build rule_metadata.
type DecisionInfo struct {
	RuleIndex      int
	RuleID         string
	SectionName    string
	MatchedPattern string
	Reasoning      string
}

// Match iterates rules in order and returns the first one that matches the
// request. A rule whose tool gate passes but whose field gate does not is
// skipped; for tools other than Read/Write/Edit/Glob/Bash/Task, a rule with
// no field patterns matches on tool identity alone. Whether a match means
// allow or deny is decided one level up, by which list the rules came from.
func Match(rules []Rule, req *hookio.Request) (*DecisionInfo, bool) {
	for idx, rule := range rules {
		if !toolMatches(rule, req.ToolName) {
			continue
		}
		reasoning, pattern, ok := checkFields(rule, req)
		if !ok {
			continue
		}
		return &DecisionInfo{
			RuleIndex:      idx,
			RuleID:         rule.RuleID,
			SectionName:    rule.SectionName,
			MatchedPattern: pattern,
			Reasoning:      reasoning,
		}, true
	}
	return nil, false
}

func toolMatches(rule Rule, toolName string) bool {
	if rule.Tool != "" {
		return rule.Tool == toolName
	}
	if rule.ToolRegex != nil {
		if !rule.ToolRegex.MatchString(toolName) {
			return false
		}
		if rule.ToolExcludeRegex != nil && rule.ToolExcludeRegex.MatchString(toolName) {
			return false
		}
		return true
	}
	return false
}

// checkFields dispatches on tool name and evaluates the field gate for that
// tool family, returning human-readable reasoning and the name of the
// pattern field that matched.
func checkFields(rule Rule, req *hookio.Request) (reasoning, pattern string, ok bool) {
	switch req.ToolName {
	case "Read", "Write", "Edit", "Glob":
		if filePath, present := req.StringField("file_path"); present {
			if matchWithExclude(filePath, rule.FilePathRegex, rule.FilePathExcludeRegex) {
				return fmt.Sprintf("Rule %s, file_path: %s", req.ToolName, filePath), "file_path_regex", true
			}
		}
	case "Bash":
		if command, present := req.StringField("command"); present {
			if matchWithExclude(command, rule.CommandRegex, rule.CommandExcludeRegex) {
				return fmt.Sprintf("Bash, command: %s", command), "command_regex", true
			}
		}
	case "Task":
		if subagentType, present := req.StringField("subagent_type"); present {
			if checkSubagentType(rule, subagentType) {
				return fmt.Sprintf("Task, subagent: %s", subagentType), "subagent_type", true
			}
		}
		if prompt, present := req.StringField("prompt"); present {
			if matchWithExclude(prompt, rule.PromptRegex, rule.PromptExcludeRegex) {
				return "Task, prompt pattern matched", "prompt_regex", true
			}
		}
	default:
		// MCP and other tools: match on tool identity alone, provided the
		// rule specifies none of the field-specific patterns above.
		if rule.FilePathRegex == nil && rule.CommandRegex == nil &&
			rule.SubagentType == "" && rule.PromptRegex == nil {
			return fmt.Sprintf("Tool: %s", req.ToolName), "tool_regex", true
		}
	}
	return "", "", false
}

// matchWithExclude reports whether value matches main and does not match
// exclude (when set). An unset main regex never matches.
func matchWithExclude(value string, main, exclude *regexp.Regexp) bool {
	if main == nil {
		return false
	}
	if !main.MatchString(value) {
		return false
	}
	if exclude != nil && exclude.MatchString(value) {
		return false
	}
	return true
}

func checkSubagentType(rule Rule, subagentType string) bool {
	if rule.SubagentType == "" {
		return false
	}
	if rule.SubagentType != subagentType {
		return false
	}
	if rule.SubagentTypeExcludeRegex != nil && rule.SubagentTypeExcludeRegex.MatchString(subagentType) {
		return false
	}
	return true
}
