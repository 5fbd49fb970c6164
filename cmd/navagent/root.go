package main

import (
	"fmt"
	"os"

	"nav-agent/internal/config"
	"nav-agent/internal/infrastructure/env"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "navagent",
	Short: "Screenshot-driven UI navigation agent",
	Long: `navagent turns a screenshot and a goal into one validated next action
(CLICK, TYPE, SCROLL, WAIT or COMPLETE) using a hosted vision model.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("provider", "", "Vision model provider: gemini or openrouter (overrides LLM_PROVIDER)")
	rootCmd.AddCommand(serveCmd, runCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if provider, _ := cmd.Flags().GetString("provider"); provider != "" {
		if err := os.Setenv("LLM_PROVIDER", provider); err != nil {
			return nil, err
		}
	}
	return config.Load(env.NewEnvService())
}
