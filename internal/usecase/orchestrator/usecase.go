package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"nav-agent/internal/application/port/input"
	"nav-agent/internal/application/port/output"
	"nav-agent/internal/domain/entity"
	"nav-agent/internal/domain/session"
	"nav-agent/internal/domain/validator"
	"nav-agent/internal/infrastructure/prompts"
)

var _ input.TurnTaker = (*UseCase)(nil)

type UseCase struct {
	model        output.VisionModelPort
	logger       output.LoggerPort
	preparer     output.ScreenshotPreparer
	metrics      output.MetricsPort
	systemPrompt string
	turnTemplate string
	temperature  float32
}

type Config struct {
	SystemPrompt string
	TurnTemplate string
	Temperature  float32
	Preparer     output.ScreenshotPreparer
	Metrics      output.MetricsPort
}

func DefaultConfig() Config {
	return Config{
		SystemPrompt: prompts.NavigationSystemPrompt,
		TurnTemplate: prompts.TurnTemplate,
	}
}

func New(model output.VisionModelPort, logger output.LoggerPort, cfg Config) *UseCase {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = prompts.NavigationSystemPrompt
	}
	if cfg.TurnTemplate == "" {
		cfg.TurnTemplate = prompts.TurnTemplate
	}
	return &UseCase{
		model:        model,
		logger:       logger,
		preparer:     cfg.Preparer,
		metrics:      cfg.Metrics,
		systemPrompt: cfg.SystemPrompt,
		turnTemplate: cfg.TurnTemplate,
		temperature:  cfg.Temperature,
	}
}

// TakeTurn sends one screenshot and goal to the model and returns the validated
// action together with the advanced context. The caller's context value is
// never modified; on failure the returned *entity.TurnError carries the context
// with the error recorded. Nothing is retried here.
func (uc *UseCase) TakeTurn(ctx context.Context, req input.TurnRequest) (*input.TurnResult, error) {
	goal := strings.TrimSpace(req.Goal)
	if err := checkRequest(goal, req.Screenshot); err != nil {
		return nil, err
	}

	c := session.ClearErrorOnGoalChange(req.Context, goal)
	log := uc.logger.WithFields(map[string]any{
		"session_id": c.SessionID,
		"loop_step":  c.LoopStep,
	})

	shot := req.Screenshot
	if shot.Ref == "" {
		shot.Ref = ScreenshotRef(shot.Data)
	}
	if uc.preparer != nil {
		prepared, err := uc.preparer.Prepare(shot)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrInvalidRequest, err)
		}
		shot = prepared
	}

	data, err := prompts.NewTurnPromptData(goal, c)
	if err != nil {
		return nil, fmt.Errorf("build turn prompt: %w", err)
	}
	userPrompt, err := prompts.GenerateTurnPrompt(uc.turnTemplate, data)
	if err != nil {
		return nil, fmt.Errorf("build turn prompt: %w", err)
	}

	log.Debug("Calling vision model", "provider", uc.model.Name(), "goal", goal, "imageBytes", len(shot.Data))

	start := time.Now()
	text, err := uc.model.DescribeScreen(ctx, output.VisionRequest{
		Image:        shot,
		SystemPrompt: uc.systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  uc.temperature,
	})
	if uc.metrics != nil {
		uc.metrics.ObserveModelCall(uc.model.Name(), time.Since(start))
	}
	if err != nil {
		outcome := output.OutcomeProviderError
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			outcome = output.OutcomeCanceled
		}
		log.Error("Vision model call failed", "error", err, "duration", time.Since(start))
		return nil, uc.fail(c, entity.StageModel, err, outcome)
	}

	raw, err := validator.DecodeResponse(text)
	if err == nil {
		var action entity.Action
		action, err = validator.Validate(raw)
		if err == nil {
			next := session.Advance(c, action, goal, shot.Ref)
			uc.observe(output.OutcomeSuccess)
			log.Info("Turn completed",
				"action", action.Action,
				"target", action.Target,
				"status", action.Status,
				"duration", time.Since(start),
			)
			return &input.TurnResult{Action: action, Context: next}, nil
		}
	}

	log.Warn("Model response rejected", "error", err, "responseLen", len(text))
	return nil, uc.fail(c, entity.StageValidation, err, output.OutcomeValidationError)
}

func (uc *UseCase) fail(c entity.SessionContext, stage entity.TurnStage, err error, outcome output.TurnOutcome) error {
	uc.observe(outcome)
	return &entity.TurnError{
		Stage:   stage,
		Err:     err,
		Context: session.RecordError(c, err.Error()),
	}
}

func (uc *UseCase) observe(outcome output.TurnOutcome) {
	if uc.metrics != nil {
		uc.metrics.ObserveTurn(outcome)
	}
}

func checkRequest(goal string, shot entity.Screenshot) error {
	if goal == "" {
		return fmt.Errorf("%w: goal must be a non-empty string", entity.ErrInvalidRequest)
	}
	if len(shot.Data) == 0 {
		return fmt.Errorf("%w: screenshot is empty", entity.ErrInvalidRequest)
	}
	if !entity.SupportedMimeType(shot.MimeType) {
		return fmt.Errorf("%w: unsupported image MIME type %q, use image/png, image/jpeg or image/webp",
			entity.ErrInvalidRequest, shot.MimeType)
	}
	return nil
}

// ScreenshotRef derives a short content identifier for an image.
func ScreenshotRef(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:8])
}
