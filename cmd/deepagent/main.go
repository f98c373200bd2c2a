// Package main provides the deepagent CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chrispangg/ai-sdk-deepagent/cli"
)

var opts cli.Options

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "deepagent",
		Short: "Long-running tool-using agents over a virtual filesystem",
		Long: `deepagent turns a chat model into a deep agent: it plans with a todo
list, works in a virtual filesystem, delegates to sub-agents, and can be
paused and resumed per thread with human approval gating.`,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.Provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&opts.DB, "db", "", "SQLite database path for thread checkpoints")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(threadsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Execute a task with the deep agent",
		Long: `Execute a task. With --thread and --db, the conversation and filesystem
state checkpoint after every step and a later run with the same thread
resumes where it left off.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Run(context.Background(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Thread, "thread", "t", "", "Thread ID for resumable state")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "Mirror the virtual filesystem onto this directory")
	cmd.Flags().StringVar(&opts.AgentsFile, "agents", "", "Path to an agents.yaml configuration")
	cmd.Flags().IntVarP(&opts.MaxSteps, "max-steps", "m", 0, "Maximum loop steps (default from AGENT_MAX_STEPS)")
	cmd.Flags().BoolVar(&opts.ApproveAll, "approve-all", false, "Approve every gated tool call without prompting")
	cmd.Flags().BoolVar(&opts.EnableExec, "exec", false, "Enable the execute tool (local sandbox)")
	cmd.Flags().BoolVar(&opts.EnableHTTP, "http", false, "Enable the http_request and fetch_url tools")

	return cmd
}

func threadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Manage saved threads",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved thread IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Threads(context.Background(), opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete [thread-id]",
		Short: "Delete a saved thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.DeleteThread(context.Background(), args[0], opts)
		},
	})

	return cmd
}
