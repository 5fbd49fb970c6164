package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"nav-agent/internal/application/port/input"
	"nav-agent/internal/di"
	"nav-agent/internal/domain/entity"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive a local browser towards a goal",
	Long: `Opens a browser, then loops screenshot -> turn -> action until the model
reports the goal complete or the step limit is hit. The run is exported as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		goal, _ := cmd.Flags().GetString("goal")
		steps, _ := cmd.Flags().GetStringSlice("step")
		sessionID, _ := cmd.Flags().GetString("session")
		exportDir, _ := cmd.Flags().GetString("export-dir")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("headless") {
			cfg.Browser.Headless, _ = cmd.Flags().GetBool("headless")
		}
		if cmd.Flags().Changed("max-steps") {
			cfg.Runner.MaxSteps, _ = cmd.Flags().GetInt("max-steps")
		}
		if exportDir == "" {
			exportDir = cfg.Runner.ExportDir
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		container, err := di.NewContainer(ctx, cfg)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		defer container.Close()

		runner, err := container.NewTaskExecutor(ctx, exportDir)
		if err != nil {
			return err
		}

		container.Logger.Info("Run started", "goal", goal, "url", url)
		wf, err := runner.Execute(ctx, input.RunRequest{
			StartURL:     url,
			Goal:         goal,
			PlannedSteps: steps,
			SessionID:    sessionID,
			Environment:  entity.Environment{Browser: "chromium"},
		})
		if err != nil {
			return err
		}
		if wf.Status != entity.RunStatusCompleted {
			return fmt.Errorf("run ended with status %s", wf.Status)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("url", "", "Start URL")
	runCmd.Flags().String("goal", "", "Overall goal for the run")
	runCmd.Flags().StringSlice("step", nil, "Planned sub-goal, repeatable and worked through in order")
	runCmd.Flags().String("session", "", "Session id (generated when empty)")
	runCmd.Flags().String("export-dir", "", "Directory for the exported workflow (overrides EXPORT_DIR)")
	runCmd.Flags().Bool("headless", false, "Run the browser headless (overrides BROWSER_HEADLESS)")
	runCmd.Flags().Int("max-steps", 0, "Step limit (overrides MAX_STEPS)")
	runCmd.Flags().Duration("timeout", 30*time.Minute, "Overall run timeout")
	_ = runCmd.MarkFlagRequired("goal")
}
