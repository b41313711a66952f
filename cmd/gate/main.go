// Command gate implements a Claude Code PreToolUse hook: it reads one
// tool-use request from stdin, decides allow/deny/pass-through against
// a compiled rule set (falling back to an LLM assessor when no rule
// covers the request), and writes at most one decision to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gate",
		Short:         "Declarative permission gate for Claude Code tool-use hooks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	return root
}
