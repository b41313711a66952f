// Package gateconfig loads, validates, and compiles the gate's TOML
// configuration into a CompiledConfig ready for the matcher.
package gateconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"cc-gate/internal/matcher"
)

// Current config version this build understands. A config declaring a
// newer major/minor is rejected rather than silently misinterpreted.
const (
	configVersionMajor = 1
	configVersionMinor = 0
)

var (
	sectionNameRe    = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	reservedSections = map[string]bool{"logging": true, "llm_fallback": true, "includes": true}
)

// LoggingConfig names the two audit log files and the diagnostic log level.
type LoggingConfig struct {
	LogFile       string
	ReviewLogFile string
	LogLevel      string
}

// LLMFallbackConfig parameterizes the remote-assessor consultation.
type LLMFallbackConfig struct {
	Enabled             bool
	Endpoint            string
	Model               string
	APIKey              string
	TimeoutSecs         int
	Temperature         float64
	MaxRetries          int
	SystemPrompt        string
	ProviderPreferences []string
}

// RuleConfig is a rule exactly as authored, before regex compilation.
type RuleConfig struct {
	ID                       string
	Description              string
	Tool                     string
	ToolRegex                string
	ToolExcludeRegex         string
	FilePathRegex            string
	FilePathExcludeRegex     string
	CommandRegex             string
	CommandExcludeRegex      string
	SubagentType             string
	SubagentTypeExcludeRegex string
	PromptRegex              string
	PromptExcludeRegex       string
}

// Section is a named, priority-tagged group of allow/deny rules.
type Section struct {
	Name        string
	Description string
	Priority    int
	Enabled     bool
	Allow       []RuleConfig
	Deny        []RuleConfig
}

// Config is the fully decoded, include-merged, but not-yet-compiled
// configuration document.
type Config struct {
	Version     string
	Logging     LoggingConfig
	LLMFallback LLMFallbackConfig
	Sections    []Section
}

// CompiledConfig is the read-only working set the pipeline driver runs
// against: pre-built regexes, flat ordered rule lists.
type CompiledConfig struct {
	Logging     LoggingConfig
	LLMFallback LLMFallbackConfig
	DenyRules   []matcher.Rule
	AllowRules  []matcher.Rule
}

// Load reads path, resolves includes, decodes, and validates, returning
// an uncompiled Config. Callers that only need the working set should
// use LoadCompiled instead.
func Load(path string) (*Config, error) {
	raw, err := loadWithIncludes(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeConfig(raw)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCompiled loads and compiles path in one step.
func LoadCompiled(path string) (*CompiledConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.Compile()
}

// loadWithIncludes reads path as TOML, then recursively (depth-first)
// resolves includes.files, merging each included document into the
// current one with base-wins semantics. The root document always wins
// on leaf conflicts; only holes are filled by includes.
func loadWithIncludes(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigRead, path, err)
	}

	var raw map[string]interface{}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigParse, path, err)
	}

	includesVal, hasIncludes := raw["includes"]
	delete(raw, "includes")
	if !hasIncludes {
		return raw, nil
	}

	includesTable, ok := includesVal.(map[string]interface{})
	if !ok {
		return raw, nil
	}
	filesVal, ok := includesTable["files"]
	if !ok {
		return raw, nil
	}
	files, ok := filesVal.([]interface{})
	if !ok {
		return raw, nil
	}

	baseDir := filepath.Dir(path)
	for _, fv := range files {
		includePath, ok := fv.(string)
		if !ok {
			continue
		}
		includeFile := includePath
		if !strings.HasPrefix(includePath, "/") {
			includeFile = filepath.Join(baseDir, includePath)
		}
		includeTable, err := loadWithIncludes(includeFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load included file %s: %w", includeFile, err)
		}
		mergeTables(raw, includeTable)
	}
	return raw, nil
}

// mergeTables merges other into base in place: base wins on any leaf
// conflict, matching tables recurse, keys base lacks are adopted from
// other. This is asymmetric by design — see SPEC_FULL §9.
func mergeTables(base, other map[string]interface{}) {
	for key, value := range other {
		existing, exists := base[key]
		if !exists {
			base[key] = value
			continue
		}
		existingTable, existingIsTable := existing.(map[string]interface{})
		otherTable, otherIsTable := value.(map[string]interface{})
		if existingIsTable && otherIsTable {
			mergeTables(existingTable, otherTable)
		}
		// else: base already has a non-table (or type-mismatched) value here — it wins.
	}
}

func decodeConfig(raw map[string]interface{}) (*Config, error) {
	cfg := &Config{}

	if v, ok := raw["version"].(string); ok {
		cfg.Version = v
	}
	if err := validateVersion(cfg.Version); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	loggingRaw, ok := raw["logging"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: missing required [logging] section", ErrInvalidConfig)
	}
	logging, err := decodeLogging(loggingRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: logging: %w", ErrInvalidConfig, err)
	}
	cfg.Logging = logging

	if llmRaw, ok := raw["llm_fallback"].(map[string]interface{}); ok {
		llm, err := decodeLLMFallback(llmRaw)
		if err != nil {
			return nil, fmt.Errorf("%w: llm_fallback: %w", ErrInvalidConfig, err)
		}
		cfg.LLMFallback = llm
	} else {
		cfg.LLMFallback = defaultLLMFallback()
	}

	for name, value := range raw {
		if name == "version" || reservedSections[name] {
			continue
		}
		sectionTable, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: top-level key %q is not a table", ErrInvalidConfig, name)
		}
		section, err := decodeSection(name, sectionTable)
		if err != nil {
			return nil, fmt.Errorf("%w: section %q: %w", ErrInvalidConfig, name, err)
		}
		cfg.Sections = append(cfg.Sections, section)
	}

	return cfg, nil
}

func decodeLogging(raw map[string]interface{}) (LoggingConfig, error) {
	logFile, ok := raw["log_file"].(string)
	if !ok || logFile == "" {
		return LoggingConfig{}, fmt.Errorf("log_file is required")
	}
	reviewLogFile, ok := raw["review_log_file"].(string)
	if !ok || reviewLogFile == "" {
		return LoggingConfig{}, fmt.Errorf("review_log_file is required")
	}
	level := "info"
	if v, ok := raw["log_level"].(string); ok && v != "" {
		level = v
	}
	return LoggingConfig{LogFile: logFile, ReviewLogFile: reviewLogFile, LogLevel: level}, nil
}

func defaultLLMFallback() LLMFallbackConfig {
	return LLMFallbackConfig{
		Enabled:      false,
		Endpoint:     "http://localhost:11434/v1",
		Model:        "llama3.2:3b",
		TimeoutSecs:  5,
		Temperature:  0.1,
		MaxRetries:   2,
		SystemPrompt: defaultSystemPrompt,
	}
}

func decodeLLMFallback(raw map[string]interface{}) (LLMFallbackConfig, error) {
	cfg := defaultLLMFallback()

	if v, ok := raw["enabled"].(bool); ok {
		cfg.Enabled = v
	}
	if v, ok := raw["endpoint"].(string); ok && v != "" {
		cfg.Endpoint = v
	}
	if v, ok := raw["model"].(string); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := raw["api_key"].(string); ok {
		cfg.APIKey = v
	}
	if v, ok := raw["timeout_secs"].(int64); ok {
		cfg.TimeoutSecs = int(v)
	}
	if v, ok := raw["temperature"].(float64); ok {
		cfg.Temperature = v
	}
	if v, ok := raw["max_retries"].(int64); ok {
		cfg.MaxRetries = int(v)
	}
	if v, ok := raw["system_prompt"].(string); ok && v != "" {
		cfg.SystemPrompt = v
	}
	if v, ok := raw["provider_preferences"].([]interface{}); ok {
		for _, item := range v {
			if s, ok := item.(string); ok {
				cfg.ProviderPreferences = append(cfg.ProviderPreferences, s)
			}
		}
	}

	if cfg.Enabled {
		if cfg.Endpoint == "" || cfg.Model == "" {
			return LLMFallbackConfig{}, fmt.Errorf("llm_fallback.enabled requires endpoint and model")
		}
		if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
			return LLMFallbackConfig{}, fmt.Errorf("llm_fallback.endpoint must begin with http:// or https://, got %q", cfg.Endpoint)
		}
	}
	return cfg, nil
}

func decodeSection(name string, raw map[string]interface{}) (Section, error) {
	if !sectionNameRe.MatchString(name) {
		return Section{}, fmt.Errorf("section name %q must match ^[a-z][a-z0-9-]*$", name)
	}
	sec := Section{Name: name, Priority: 50, Enabled: true}

	if v, ok := raw["description"].(string); ok {
		sec.Description = v
	}
	if v, ok := raw["priority"].(int64); ok {
		sec.Priority = int(v)
	}
	if v, ok := raw["enabled"].(bool); ok {
		sec.Enabled = v
	}

	if allowRaw, ok := raw["allow"].([]interface{}); ok {
		for i, item := range allowRaw {
			table, ok := item.(map[string]interface{})
			if !ok {
				return Section{}, fmt.Errorf("allow[%d]: not a table", i)
			}
			rule, err := decodeRuleConfig(table)
			if err != nil {
				return Section{}, fmt.Errorf("allow[%d]: %w", i, err)
			}
			sec.Allow = append(sec.Allow, rule)
		}
	}

	if denyRaw, ok := raw["deny"].([]interface{}); ok {
		for i, item := range denyRaw {
			table, ok := item.(map[string]interface{})
			if !ok {
				return Section{}, fmt.Errorf("deny[%d]: not a table", i)
			}
			rule, err := decodeRuleConfig(table)
			if err != nil {
				return Section{}, fmt.Errorf("deny[%d]: %w", i, err)
			}
			sec.Deny = append(sec.Deny, rule)
		}
	}

	return sec, nil
}

func decodeRuleConfig(raw map[string]interface{}) (RuleConfig, error) {
	id, ok := raw["id"].(string)
	if !ok || id == "" {
		return RuleConfig{}, fmt.Errorf("rule missing required id")
	}
	r := RuleConfig{ID: id}
	r.Description, _ = raw["description"].(string)
	r.Tool, _ = raw["tool"].(string)
	r.ToolRegex, _ = raw["tool_regex"].(string)
	r.ToolExcludeRegex, _ = raw["tool_exclude_regex"].(string)
	r.FilePathRegex, _ = raw["file_path_regex"].(string)
	r.FilePathExcludeRegex, _ = raw["file_path_exclude_regex"].(string)
	r.CommandRegex, _ = raw["command_regex"].(string)
	r.CommandExcludeRegex, _ = raw["command_exclude_regex"].(string)
	r.SubagentType, _ = raw["subagent_type"].(string)
	r.SubagentTypeExcludeRegex, _ = raw["subagent_type_exclude_regex"].(string)
	r.PromptRegex, _ = raw["prompt_regex"].(string)
	r.PromptExcludeRegex, _ = raw["prompt_exclude_regex"].(string)
	return r, nil
}

// validateVersion rejects an optional top-level version newer than this
// build supports. An unset version is assumed to be the current format.
func validateVersion(version string) error {
	if version == "" {
		return nil
	}
	parts := strings.Split(version, ".")
	if len(parts) != 2 {
		return fmt.Errorf("invalid version format %q: expected major.minor (e.g. \"1.0\")", version)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("invalid version major %q: %w", parts[0], err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("invalid version minor %q: %w", parts[1], err)
	}
	if major > configVersionMajor || (major == configVersionMajor && minor > configVersionMinor) {
		return fmt.Errorf("config version %q is not supported (max supported: %d.%d)", version, configVersionMajor, configVersionMinor)
	}
	return nil
}

// Validate checks global invariants that span sections: unique rule
// ids and the tool/tool_regex exclusivity constraint. Per-field regex
// validity is checked during Compile, where the context of section and
// field name is naturally available alongside the compile error.
func (cfg *Config) Validate() error {
	seenBy := make(map[string]string)
	for _, sec := range cfg.Sections {
		for _, list := range [][]RuleConfig{sec.Deny, sec.Allow} {
			for _, r := range list {
				if prevSection, dup := seenBy[r.ID]; dup {
					return fmt.Errorf("%w: duplicate rule id %q (sections %q and %q)", ErrInvalidConfig, r.ID, prevSection, sec.Name)
				}
				seenBy[r.ID] = sec.Name

				hasTool := r.Tool != ""
				hasToolRegex := r.ToolRegex != ""
				if hasTool == hasToolRegex {
					return fmt.Errorf("%w: rule %q (section %q): exactly one of tool or tool_regex is required", ErrInvalidConfig, r.ID, sec.Name)
				}
			}
		}
	}
	return nil
}

// Compile drops disabled sections, sorts the rest by (priority asc,
// name asc), and emits the flat deny/allow rule lists with every regex
// pre-built.
func (cfg *Config) Compile() (*CompiledConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	enabled := make([]Section, 0, len(cfg.Sections))
	for _, sec := range cfg.Sections {
		if sec.Enabled {
			enabled = append(enabled, sec)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority < enabled[j].Priority
		}
		return enabled[i].Name < enabled[j].Name
	})

	compiled := &CompiledConfig{Logging: cfg.Logging, LLMFallback: cfg.LLMFallback}

	for _, sec := range enabled {
		for _, r := range sec.Deny {
			rule, err := compileRule(sec.Name, r)
			if err != nil {
				return nil, fmt.Errorf("section %q deny rule %q: %w", sec.Name, r.ID, err)
			}
			compiled.DenyRules = append(compiled.DenyRules, rule)
		}
	}
	for _, sec := range enabled {
		for _, r := range sec.Allow {
			rule, err := compileRule(sec.Name, r)
			if err != nil {
				return nil, fmt.Errorf("section %q allow rule %q: %w", sec.Name, r.ID, err)
			}
			compiled.AllowRules = append(compiled.AllowRules, rule)
		}
	}

	return compiled, nil
}

func compileRule(sectionName string, r RuleConfig) (matcher.Rule, error) {
	rule := matcher.Rule{
		RuleID:       r.ID,
		SectionName:  sectionName,
		Description:  r.Description,
		Tool:         r.Tool,
		SubagentType: r.SubagentType,
	}

	fields := []struct {
		name string
		src  string
		dst  **regexp.Regexp
	}{
		{"tool_regex", r.ToolRegex, &rule.ToolRegex},
		{"tool_exclude_regex", r.ToolExcludeRegex, &rule.ToolExcludeRegex},
		{"file_path_regex", r.FilePathRegex, &rule.FilePathRegex},
		{"file_path_exclude_regex", r.FilePathExcludeRegex, &rule.FilePathExcludeRegex},
		{"command_regex", r.CommandRegex, &rule.CommandRegex},
		{"command_exclude_regex", r.CommandExcludeRegex, &rule.CommandExcludeRegex},
		{"subagent_type_exclude_regex", r.SubagentTypeExcludeRegex, &rule.SubagentTypeExcludeRegex},
		{"prompt_regex", r.PromptRegex, &rule.PromptRegex},
		{"prompt_exclude_regex", r.PromptExcludeRegex, &rule.PromptExcludeRegex},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		compiledRe, err := regexp.Compile(f.src)
		if err != nil {
			return matcher.Rule{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = compiledRe
	}

	return rule, nil
}
