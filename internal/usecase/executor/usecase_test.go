package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nav-agent/internal/application/port/input"
	"nav-agent/internal/domain/entity"
	"nav-agent/internal/domain/session"
	"nav-agent/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBrowser struct {
	mu       sync.Mutex
	calls    []string
	shotErr  error
	clickErr error
}

func (b *fakeBrowser) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error {
	b.record("navigate " + url)
	return nil
}

func (b *fakeBrowser) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	if b.shotErr != nil {
		return nil, b.shotErr
	}
	return &entity.Screenshot{Data: []byte("jpeg"), MimeType: entity.MimeJPEG, Width: 1280, Height: 800}, nil
}

func (b *fakeBrowser) Info(ctx context.Context) (*entity.PageInfo, error) {
	return &entity.PageInfo{Width: 1280, Height: 800}, nil
}

func (b *fakeBrowser) ClickAt(ctx context.Context, at entity.Coords) error {
	b.record("click")
	return b.clickErr
}

func (b *fakeBrowser) TypeAt(ctx context.Context, at entity.Coords, text string) error {
	b.record("type " + text)
	return nil
}

func (b *fakeBrowser) Scroll(ctx context.Context, direction string) error {
	b.record("scroll " + direction)
	return nil
}

func (b *fakeBrowser) Wait(ctx context.Context, d time.Duration) error {
	b.record("wait")
	return nil
}

func (b *fakeBrowser) Close() {}

// scriptedTurns replays actions or errors in order, advancing the context the
// way the orchestrator does.
type scriptedTurns struct {
	mu    sync.Mutex
	steps []any
	goals []string
}

func (s *scriptedTurns) TakeTurn(ctx context.Context, req input.TurnRequest) (*input.TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append(s.goals, req.Goal)

	c := session.ClearErrorOnGoalChange(req.Context, req.Goal)
	if len(s.steps) == 0 {
		return nil, errors.New("script exhausted")
	}
	next := s.steps[0]
	s.steps = s.steps[1:]

	switch v := next.(type) {
	case entity.Action:
		return &input.TurnResult{Action: v, Context: session.Advance(c, v, req.Goal, "ref")}, nil
	case error:
		return nil, &entity.TurnError{Stage: entity.StageModel, Err: v, Context: session.RecordError(c, v.Error())}
	}
	panic("bad script step")
}

type memoryExporter struct {
	exported *entity.Workflow
}

func (e *memoryExporter) Export(ctx context.Context, wf *entity.Workflow) (string, error) {
	e.exported = wf
	return "memory", nil
}

func act(kind entity.ActionType, status entity.ActionStatus) entity.Action {
	a := entity.Action{Plan: "p", Action: kind, Target: "t", Coords: entity.Coords{X: 10, Y: 20}, Status: status}
	if kind == entity.ActionTypeText {
		a.TextInput = "hello"
	}
	return a
}

func testConfig() Config {
	return Config{MaxSteps: 5, MaxRetriesPerGoal: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestExecute_CompletesRun(t *testing.T) {
	browser := &fakeBrowser{}
	turns := &scriptedTurns{steps: []any{
		act(entity.ActionClick, entity.StatusInProgress),
		act(entity.ActionTypeText, entity.StatusInProgress),
		act(entity.ActionWait, entity.StatusInProgress),
		act(entity.ActionComplete, entity.StatusSuccess),
	}}
	exporter := &memoryExporter{}
	uc := New(turns, browser, nil, exporter, logger.NewNop(), testConfig())

	wf, err := uc.Execute(context.Background(), input.RunRequest{StartURL: "http://localhost", Goal: "log in", SessionID: "run-1"})

	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, wf.Status)
	assert.Len(t, wf.Actions, 4)
	assert.Equal(t, []string{"navigate http://localhost", "click", "type hello", "wait"}, browser.calls)
	assert.Equal(t, "run-1", wf.Context.SessionID)
	assert.Equal(t, 5, wf.Context.LoopStep)
	assert.Equal(t, "log in", wf.Context.GlobalGoal)
	assert.Same(t, wf, exporter.exported)
	assert.False(t, wf.ExportedAt.IsZero())
}

func TestExecute_RetriesWithinBudget(t *testing.T) {
	turns := &scriptedTurns{steps: []any{
		errors.New("invalid json"),
		errors.New("invalid json"),
		act(entity.ActionComplete, entity.StatusSuccess),
	}}
	uc := New(turns, &fakeBrowser{}, nil, nil, logger.NewNop(), testConfig())

	wf, err := uc.Execute(context.Background(), input.RunRequest{Goal: "log in"})

	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, wf.Status)
	assert.Equal(t, 2, wf.Context.ErrorState.RetryCountForCurrentGoal)
	assert.False(t, wf.Context.ErrorState.HasError)
}

func TestExecute_GivesUpAfterRetryBudget(t *testing.T) {
	turns := &scriptedTurns{steps: []any{
		errors.New("bad 1"), errors.New("bad 2"), errors.New("bad 3"),
		act(entity.ActionComplete, entity.StatusSuccess),
	}}
	uc := New(turns, &fakeBrowser{}, nil, nil, logger.NewNop(), testConfig())

	wf, err := uc.Execute(context.Background(), input.RunRequest{Goal: "log in"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad 3")
	assert.Equal(t, entity.RunStatusFailed, wf.Status)
	assert.Equal(t, 3, wf.Context.ErrorState.RetryCountForCurrentGoal)
	assert.Empty(t, wf.Actions)
}

func TestExecute_ZeroRetryBudgetMakesOneAttempt(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetriesPerGoal = 0
	turns := &scriptedTurns{steps: []any{
		errors.New("bad 1"),
		act(entity.ActionComplete, entity.StatusSuccess),
	}}
	uc := New(turns, &fakeBrowser{}, nil, nil, logger.NewNop(), cfg)
	require.Equal(t, 0, uc.cfg.MaxRetriesPerGoal)

	wf, err := uc.Execute(context.Background(), input.RunRequest{Goal: "log in"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad 1")
	assert.Equal(t, entity.RunStatusFailed, wf.Status)
	assert.Len(t, turns.goals, 1)
}

func TestNew_NegativeRetryBudgetUsesDefault(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetriesPerGoal = -1

	uc := New(&scriptedTurns{}, &fakeBrowser{}, nil, nil, logger.NewNop(), cfg)
	assert.Equal(t, DefaultConfig().MaxRetriesPerGoal, uc.cfg.MaxRetriesPerGoal)
}

func TestExecute_RefusalIsNotRetried(t *testing.T) {
	refused := &entity.ProviderError{Provider: "gemini", Kind: entity.ProviderRefused, Message: "blocked"}
	turns := &scriptedTurns{steps: []any{refused, act(entity.ActionComplete, entity.StatusSuccess)}}
	uc := New(turns, &fakeBrowser{}, nil, nil, logger.NewNop(), testConfig())

	wf, err := uc.Execute(context.Background(), input.RunRequest{Goal: "log in"})

	require.Error(t, err)
	assert.Equal(t, entity.RunStatusFailed, wf.Status)
	assert.Len(t, turns.goals, 1)
}

func TestExecute_StepLimit(t *testing.T) {
	steps := make([]any, 0, 5)
	for i := 0; i < 5; i++ {
		steps = append(steps, act(entity.ActionScroll, entity.StatusInProgress))
	}
	browser := &fakeBrowser{}
	uc := New(&scriptedTurns{steps: steps}, browser, nil, nil, logger.NewNop(), testConfig())

	wf, err := uc.Execute(context.Background(), input.RunRequest{Goal: "find footer"})

	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusExhausted, wf.Status)
	assert.Len(t, wf.Actions, 5)
	assert.Equal(t, "scroll down", browser.calls[0])
}

func TestExecute_PlannedSteps(t *testing.T) {
	turns := &scriptedTurns{steps: []any{
		act(entity.ActionClick, entity.StatusInProgress),
		act(entity.ActionComplete, entity.StatusSuccess),
		act(entity.ActionComplete, entity.StatusSuccess),
	}}
	uc := New(turns, &fakeBrowser{}, nil, nil, logger.NewNop(), testConfig())

	wf, err := uc.Execute(context.Background(), input.RunRequest{
		Goal:         "sign up",
		PlannedSteps: []string{"open signup form", "submit form"},
	})

	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, wf.Status)
	assert.Equal(t, []string{"open signup form", "open signup form", "submit form"}, turns.goals)
	assert.Equal(t, "sign up", wf.Context.GlobalGoal)
}

func TestExecute_BrowserFailure(t *testing.T) {
	browser := &fakeBrowser{clickErr: errors.New("node detached")}
	turns := &scriptedTurns{steps: []any{act(entity.ActionClick, entity.StatusInProgress)}}
	uc := New(turns, browser, nil, nil, logger.NewNop(), testConfig())

	wf, err := uc.Execute(context.Background(), input.RunRequest{Goal: "g"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "node detached")
	assert.Equal(t, entity.RunStatusFailed, wf.Status)
	assert.Len(t, wf.Actions, 1)
}

func TestExecute_EmptyGoal(t *testing.T) {
	uc := New(&scriptedTurns{}, &fakeBrowser{}, nil, nil, logger.NewNop(), testConfig())

	_, err := uc.Execute(context.Background(), input.RunRequest{Goal: "  "})

	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
}

func TestScrollDirection(t *testing.T) {
	assert.Equal(t, "up", scrollDirection(entity.Action{Target: "Scroll up to the header"}))
	assert.Equal(t, "bottom", scrollDirection(entity.Action{Plan: "go to the bottom of the page"}))
	assert.Equal(t, "down", scrollDirection(entity.Action{Target: "update popup list"}))
}
