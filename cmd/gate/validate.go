package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cc-gate/internal/gateconfig"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load, resolve includes, and validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(configPath, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to TOML configuration file")
	cmd.MarkFlagRequired("config")
	return cmd
}

func validateConfig(configPath string, out io.Writer) error {
	cfg, err := gateconfig.LoadCompiled(configPath)
	if err != nil {
		return fmt.Errorf("config is invalid: %w", err)
	}

	llmStatus := "disabled"
	if cfg.LLMFallback.Enabled {
		llmStatus = fmt.Sprintf("enabled (model=%s, endpoint=%s)", cfg.LLMFallback.Model, cfg.LLMFallback.Endpoint)
	}

	fmt.Fprintf(out, "config OK: %s\n", configPath)
	fmt.Fprintf(out, "  deny rules:   %d\n", len(cfg.DenyRules))
	fmt.Fprintf(out, "  allow rules:  %d\n", len(cfg.AllowRules))
	fmt.Fprintf(out, "  log file:     %s\n", cfg.Logging.LogFile)
	fmt.Fprintf(out, "  review log:   %s\n", cfg.Logging.ReviewLogFile)
	fmt.Fprintf(out, "  llm fallback: %s\n", llmStatus)
	return nil
}
