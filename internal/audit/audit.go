// Package audit writes the gate's two append-only JSON-lines logs — an
// operational log and an enriched review log — and computes the
// deterministic risk heuristics that flag review-log entries for
// human follow-up.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"cc-gate/internal/hookio"
)

// Decision is the normalized outcome written to both logs.
type Decision string

const (
	DecisionAllow       Decision = "allow"
	DecisionDeny        Decision = "deny"
	DecisionPassthrough Decision = "passthrough"
)

// Source names which pipeline stage produced the Decision.
type Source string

const (
	SourceRule        Source = "rule"
	SourceLLM         Source = "llm"
	SourcePassthrough Source = "passthrough"
)

// RiskLevel is the review log's coarse severity bucket.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RuleMetadata is attached to a review log entry when Source == SourceRule.
type RuleMetadata struct {
	RuleID          string `json:"rule_id"`
	SectionName     string `json:"section_name"`
	RuleType        string `json:"rule_type"` // "allow" or "deny"
	RuleIndex       int    `json:"rule_index"`
	RuleDescription string `json:"rule_description,omitempty"`
	ConfigFile      string `json:"config_file"`
	MatchedPattern  string `json:"matched_pattern"`
}

// LLMMetadata is attached to a review log entry whenever the LLM fallback
// was consulted, whether its outcome was emitted (Source == SourceLLM) or
// became a pass-through (Source == SourcePassthrough).
type LLMMetadata struct {
	Assessment       string  `json:"assessment"`
	Reasoning        string  `json:"reasoning"`
	Confidence       *string `json:"confidence,omitempty"`
	ProcessingTimeMs *int64  `json:"processing_time_ms,omitempty"`
	Model            string  `json:"model,omitempty"`
}

// ReviewFlags carries the outcome of the risk heuristic pass.
type ReviewFlags struct {
	NeedsReview bool      `json:"needs_review"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Reasons     []string  `json:"reasons"`
}

// OperationalEntry is the minimal record written to the operational log.
type OperationalEntry struct {
	Timestamp      time.Time              `json:"timestamp"`
	SessionID      string                 `json:"session_id"`
	ToolName       string                 `json:"tool_name"`
	ToolInput      map[string]interface{} `json:"tool_input"`
	Decision       Decision               `json:"decision"`
	DecisionSource Source                 `json:"decision_source"`
}

// ReviewEntry is the enriched record written to the review log.
type ReviewEntry struct {
	EntryID        string                 `json:"entry_id"`
	Timestamp      time.Time              `json:"timestamp"`
	SessionID      string                 `json:"session_id"`
	ToolName       string                 `json:"tool_name"`
	ToolInput      map[string]interface{} `json:"tool_input"`
	Cwd            string                 `json:"cwd"`
	Decision       Decision               `json:"decision"`
	DecisionSource Source                 `json:"decision_source"`
	Reasoning      string                 `json:"reasoning"`
	RuleMetadata   *RuleMetadata          `json:"rule_metadata,omitempty"`
	LLMMetadata    *LLMMetadata           `json:"llm_metadata,omitempty"`
	ReviewFlags    ReviewFlags            `json:"review_flags"`
}

// Logger writes to the two configured log files. A Logger is safe to
// reuse across multiple records within one invocation; every write
// still opens, locks, appends, unlocks, and closes independently, so
// concurrent gate processes never interleave lines.
type Logger struct {
	OperationalPath string
	ReviewPath      string

	// Warn receives a one-line diagnostic whenever a write fails. A
	// logger failure is never fatal to the decision already made; nil
	// is a valid Warn (failures are silently swallowed).
	Warn func(format string, args ...interface{})
}

// LogOperational appends entry to the operational log. Failure is
// reported via Warn and otherwise ignored.
func (l *Logger) LogOperational(entry OperationalEntry) {
	if err := appendJSONLine(l.OperationalPath, entry); err != nil {
		l.warn("failed to write operational log: %v", err)
	}
}

// LogReview appends entry to the review log, assigning a fresh
// entry_id if one is not already set. Failure is reported via Warn and
// otherwise ignored.
func (l *Logger) LogReview(entry ReviewEntry) {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	if err := appendJSONLine(l.ReviewPath, entry); err != nil {
		l.warn("failed to write review log: %v", err)
	}
}

func (l *Logger) warn(format string, args ...interface{}) {
	if l.Warn != nil {
		l.Warn(format, args...)
	}
}

// appendJSONLine implements the open-append -> lock -> write -> unlock
// -> close discipline that is the only shared-resource policy in the
// system. It owns no long-lived file handle.
func appendJSONLine(path string, v interface{}) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	defer file.Close()

	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("lock log file %s: %w", path, err)
	}
	defer fl.Unlock()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write log file %s: %w", path, err)
	}
	return nil
}

// NewOperationalEntry builds the minimal operational record for req.
func NewOperationalEntry(req *hookio.Request, decision Decision, source Source) OperationalEntry {
	return OperationalEntry{
		Timestamp:      time.Now().UTC(),
		SessionID:      req.SessionID,
		ToolName:       req.ToolName,
		ToolInput:      req.ToolInput,
		Decision:       decision,
		DecisionSource: source,
	}
}
