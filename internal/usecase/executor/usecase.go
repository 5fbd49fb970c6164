package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nav-agent/internal/application/port/input"
	"nav-agent/internal/application/port/output"
	"nav-agent/internal/domain/entity"
	"nav-agent/internal/domain/session"

	"github.com/cenkalti/backoff/v4"
)

var _ input.TaskExecutor = (*UseCase)(nil)

type Config struct {
	MaxSteps          int
	MaxRetriesPerGoal int
	WaitDuration      time.Duration
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxSteps:          30,
		MaxRetriesPerGoal: 3,
		WaitDuration:      2 * time.Second,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
	}
}

// UseCase drives a browser with the turn orchestrator until the model reports
// the goal done or the step budget runs out. It is the only place that retries.
type UseCase struct {
	turns    input.TurnTaker
	browser  output.BrowserPort
	ui       output.UserInteractionPort
	exporter output.WorkflowExporter
	logger   output.LoggerPort
	cfg      Config
}

func New(
	turns input.TurnTaker,
	browser output.BrowserPort,
	ui output.UserInteractionPort,
	exporter output.WorkflowExporter,
	logger output.LoggerPort,
	cfg Config,
) *UseCase {
	def := DefaultConfig()
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	if cfg.MaxRetriesPerGoal < 0 {
		cfg.MaxRetriesPerGoal = def.MaxRetriesPerGoal
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	return &UseCase{
		turns:    turns,
		browser:  browser,
		ui:       ui,
		exporter: exporter,
		logger:   logger,
		cfg:      cfg,
	}
}

func (uc *UseCase) Execute(ctx context.Context, req input.RunRequest) (*entity.Workflow, error) {
	goal := strings.TrimSpace(req.Goal)
	if goal == "" {
		return nil, fmt.Errorf("%w: goal must be a non-empty string", entity.ErrInvalidRequest)
	}

	c := session.New(req.SessionID)
	c = session.ReplaceGlobalGoal(c, goal)
	c = session.WithEnvironment(c, req.Environment)

	wf := &entity.Workflow{
		GlobalGoal:   goal,
		PlannedSteps: append([]string{}, req.PlannedSteps...),
		Actions:      []entity.Action{},
		Status:       entity.RunStatusRunning,
	}
	log := uc.logger.WithField("session_id", c.SessionID)

	runErr := uc.run(ctx, req.StartURL, wf, &c, log)
	switch {
	case runErr != nil:
		wf.Status = entity.RunStatusFailed
		wf.Error = runErr.Error()
		log.Error("Run failed", "error", runErr, "steps", len(wf.Actions))
	case wf.Status == entity.RunStatusRunning:
		wf.Status = entity.RunStatusExhausted
		log.Warn("Step limit reached", "maxSteps", uc.cfg.MaxSteps)
	default:
		log.Info("Run completed", "steps", len(wf.Actions))
	}

	wf.Context = c
	wf.ExportedAt = time.Now().UTC()
	if uc.ui != nil {
		uc.ui.ShowFinished(ctx, *wf)
	}
	if uc.exporter != nil {
		path, err := uc.exporter.Export(ctx, wf)
		if err != nil {
			return wf, errors.Join(runErr, fmt.Errorf("export workflow: %w", err))
		}
		log.Info("Workflow exported", "path", path)
	}
	return wf, runErr
}

func (uc *UseCase) run(ctx context.Context, startURL string, wf *entity.Workflow, c *entity.SessionContext, log output.LoggerPort) error {
	if startURL != "" {
		if err := uc.browser.Navigate(ctx, startURL); err != nil {
			return fmt.Errorf("open start page: %w", err)
		}
	}

	planIdx := 0
	for step := 1; step <= uc.cfg.MaxSteps; step++ {
		goal := currentGoal(wf, planIdx)
		if uc.ui != nil {
			uc.ui.ShowStep(ctx, step, uc.cfg.MaxSteps, goal)
		}

		res, err := uc.turnWithRetry(ctx, c, goal)
		if err != nil {
			return err
		}

		action := res.Action
		wf.Actions = append(wf.Actions, action)
		if uc.ui != nil {
			uc.ui.ShowAction(ctx, action)
		}
		log.Debug("Performing action", "step", step, "action", action.Action, "target", action.Target)

		if err := uc.perform(ctx, action); err != nil {
			return fmt.Errorf("step %d: %s %q: %w", step, action.Action, action.Target, err)
		}

		if action.Done() {
			if planIdx < len(wf.PlannedSteps)-1 {
				planIdx++
				continue
			}
			wf.Status = entity.RunStatusCompleted
			return nil
		}
	}
	return nil
}

// turnWithRetry captures a fresh screenshot per attempt and retries failed
// turns with exponential backoff until the goal's retry budget is spent.
func (uc *UseCase) turnWithRetry(ctx context.Context, c *entity.SessionContext, goal string) (*input.TurnResult, error) {
	var result *input.TurnResult

	op := func() error {
		shot, err := uc.browser.Screenshot(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("capture screenshot: %w", err))
		}

		res, err := uc.turns.TakeTurn(ctx, input.TurnRequest{Screenshot: *shot, Goal: goal, Context: *c})
		if err == nil {
			result = res
			*c = res.Context
			return nil
		}

		var turnErr *entity.TurnError
		if !errors.As(err, &turnErr) {
			return backoff.Permanent(err)
		}
		*c = turnErr.Context

		attempt := c.ErrorState.RetryCountForCurrentGoal
		if uc.ui != nil {
			uc.ui.ShowTurnError(ctx, err, attempt)
		}
		if attempt >= uc.cfg.MaxRetriesPerGoal || !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = uc.cfg.InitialBackoff
	b.MaxInterval = uc.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *entity.ProviderError
	if errors.As(err, &pe) && pe.Kind == entity.ProviderRefused {
		return false
	}
	return true
}

func (uc *UseCase) perform(ctx context.Context, action entity.Action) error {
	switch action.Action {
	case entity.ActionClick:
		return uc.browser.ClickAt(ctx, action.Coords)
	case entity.ActionTypeText:
		return uc.browser.TypeAt(ctx, action.Coords, action.TextInput)
	case entity.ActionScroll:
		return uc.browser.Scroll(ctx, scrollDirection(action))
	case entity.ActionWait:
		return uc.browser.Wait(ctx, uc.cfg.WaitDuration)
	case entity.ActionComplete:
		return nil
	}
	return fmt.Errorf("unsupported action %q", action.Action)
}

func scrollDirection(action entity.Action) string {
	words := strings.FieldsFunc(strings.ToLower(action.Target+" "+action.Plan), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	})
	for _, w := range words {
		switch w {
		case "up", "upward", "upwards":
			return "up"
		case "top":
			return "top"
		case "bottom":
			return "bottom"
		}
	}
	return "down"
}

func currentGoal(wf *entity.Workflow, planIdx int) string {
	if planIdx < len(wf.PlannedSteps) {
		if step := strings.TrimSpace(wf.PlannedSteps[planIdx]); step != "" {
			return step
		}
	}
	return wf.GlobalGoal
}
