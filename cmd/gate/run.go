package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cc-gate/internal/audit"
	"cc-gate/internal/gateconfig"
	"cc-gate/internal/hookio"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var testMode bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate one hook request read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGate(configPath, testMode, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to TOML configuration file")
	cmd.Flags().BoolVar(&testMode, "test-mode", false, "surface LLM Query/Timeout/Error outcomes as explicit denies")
	cmd.MarkFlagRequired("config")
	return cmd
}

func runGate(configPath string, testMode bool, stdin *os.File, stdout *os.File) error {
	cfg, err := gateconfig.LoadCompiled(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newDiagLogger(cfg.Logging.LogLevel)
	defer logger.Sync()

	req, err := hookio.ReadRequest(stdin)
	if err != nil {
		return fmt.Errorf("read hook input: %w", err)
	}
	logger.Debug("request received", zap.String("session_id", req.SessionID), zap.String("tool", req.ToolName))

	auditLogger := &audit.Logger{
		OperationalPath: cfg.Logging.LogFile,
		ReviewPath:      cfg.Logging.ReviewLogFile,
		Warn: func(format string, args ...interface{}) {
			logger.Sugar().Warnf(format, args...)
		},
	}

	d := evaluate(context.Background(), cfg, configPath, req, testMode)
	auditLogger.LogOperational(d.operational)
	auditLogger.LogReview(d.review)

	if d.output == nil {
		logger.Debug("pass-through, writing nothing to stdout")
		return nil
	}
	if err := d.output.WriteTo(stdout); err != nil {
		return fmt.Errorf("write hook output: %w", err)
	}
	return nil
}

// newDiagLogger builds the zap logger used for the gate's own
// operational diagnostics (request and pass-through debug lines, audit
// log write failures) — distinct from the fixed-schema audit logs in
// internal/audit. configLevel is logging.log_level from the compiled
// config; an env var override always wins.
func newDiagLogger(configLevel string) *zap.Logger {
	level := configLevel
	if env := os.Getenv("CC_GATE_LOG_LEVEL"); env != "" {
		level = env
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
