package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/ralph-gate/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile      string
	verbose      bool
	yolo         bool
	allowTools   []string
	allowCats    []string
)

var rootCmd = &cobra.Command{
	Use:   "ralph",
	Short: "Ralph — the approval gate and safe tool-execution core",
	Long:  "Ralph intercepts every tool call an agent makes, classifies its risk, consults policy, and gates it behind user approval before it touches the filesystem, a shell, or the network.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ralph.config.json or $RALPH_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&yolo, "yolo", false, "auto-allow every Gate decision except dangerous shell commands")
	rootCmd.PersistentFlags().StringArrayVar(&allowTools, "allow", nil, "add a shell allowlist prefix for the session, as tool:tok,tok,... (repeatable)")
	rootCmd.PersistentFlags().StringArrayVar(&allowCats, "allow-category", nil, "always allow this gate category for the session (repeatable)")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(runCmd())
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("RALPH_CONFIG"); v != "" {
		return v
	}
	return "ralph.config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
