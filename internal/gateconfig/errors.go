package gateconfig

import "errors"

// Sentinel errors for gateconfig. Use errors.Is() to check for these.
var (
	// ErrConfigNotFound indicates a config file does not exist at the expected path.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigRead indicates an I/O error reading a config file that does exist.
	ErrConfigRead = errors.New("failed to read config file")

	// ErrConfigParse indicates a TOML syntax error.
	ErrConfigParse = errors.New("config parse error")

	// ErrInvalidConfig indicates the configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrLLMDisabled is returned by callers that require an enabled LLM
	// fallback but find one turned off.
	ErrLLMDisabled = errors.New("llm fallback is disabled")
)
