// Package main is the entry point for the drover CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/droverlabs/drover/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	registerQuitHandler()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "drover",
		Short:   "drover — iteration driver for an AI coding agent",
		Version: version,
	}

	root.AddCommand(
		runCmd(),
		statusCmd(),
		historyCmd(),
		initCmd(),
	)

	return root
}

func runCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run [prompt-file]",
		Short: "Drive the agent in a loop until it signals completion",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.promptFile = args[0]
			}
			return executeRun(opts)
		},
	}
	cmd.Flags().IntVar(&opts.max, "max", 0, "override max iterations (0 = use config)")
	cmd.Flags().BoolVar(&opts.unbounded, "unbounded", false, "ignore the iteration cap")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "plain log output instead of the TUI")
	cmd.Flags().IntVar(&opts.timeout, "timeout", -1, "per-invocation timeout in seconds (-1 = use config)")
	cmd.Flags().BoolVar(&opts.sandbox, "sandbox", false, "run the agent sandboxed")
	cmd.Flags().StringVar(&opts.doneSignal, "done-signal", "", "override the custom completion string")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the current or most recent run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past runs",
	}
	cmd.AddCommand(historyListCmd(), historyShowCmd())
	return cmd
}

func historyListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistoryList(limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 = all)")
	return cmd
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistoryEntry(args[0])
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create drover.toml and a starter prompt in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			created, err := config.ScaffoldProject(dir)
			if err != nil {
				return err
			}
			if len(created) == 0 {
				fmt.Println("Nothing to do; project already scaffolded")
				return nil
			}
			for _, path := range created {
				fmt.Printf("Created %s\n", path)
			}
			return nil
		},
	}
}
