package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"nav-agent/internal/application/port/input"
	"nav-agent/internal/application/port/output"
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

type fakeModel struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []output.VisionRequest
	block     bool
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) DescribeScreen(ctx context.Context, req output.VisionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return `{"plan":"wait","action":"WAIT","target":"page","coords":{"x":0,"y":0},"text_input":"","status":"IN_PROGRESS"}`, nil
	}
	out := f.responses[0]
	f.responses = f.responses[1:]
	return out, nil
}

func (f *fakeModel) lastRequest(t *testing.T) output.VisionRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

type fakeMetrics struct {
	mu       sync.Mutex
	outcomes []output.TurnOutcome
	calls    int
}

func (m *fakeMetrics) ObserveTurn(outcome output.TurnOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *fakeMetrics) ObserveModelCall(string, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

type failingPreparer struct{}

func (failingPreparer) Prepare(entity.Screenshot) (entity.Screenshot, error) {
	return entity.Screenshot{}, errors.New("image: unknown format")
}

const clickLogin = `{"plan":"Click login","action":"CLICK","target":"Login button","coords":{"x":512,"y":920},"text_input":"","status":"IN_PROGRESS"}`

func newUseCase(model *fakeModel, metrics *fakeMetrics) *UseCase {
	cfg := DefaultConfig()
	if metrics != nil {
		cfg.Metrics = metrics
	}
	return New(model, logger.NewNop(), cfg)
}

func pngShot() entity.Screenshot {
	return entity.Screenshot{Data: []byte("\x89PNG fake"), MimeType: entity.MimePNG}
}

func TestTakeTurn_ValidClick(t *testing.T) {
	model := &fakeModel{responses: []string{clickLogin}}
	metrics := &fakeMetrics{}
	uc := newUseCase(model, metrics)
	start := session.New("s1")

	res, err := uc.TakeTurn(context.Background(), input.TurnRequest{
		Screenshot: pngShot(),
		Goal:       "  log in  ",
		Context:    start,
	})

	require.NoError(t, err)
	assert.Equal(t, entity.ActionClick, res.Action.Action)
	assert.Equal(t, entity.Coords{X: 512, Y: 920}, res.Action.Coords)
	assert.Equal(t, 2, res.Context.LoopStep)
	require.Len(t, res.Context.RecentHistory, 1)
	assert.Equal(t, "log in", res.Context.RecentHistory[0].Goal)
	assert.Equal(t, ScreenshotRef(pngShot().Data), res.Context.LastScreenshot)
	assert.Equal(t, "log in", res.Context.CurrentSubgoal)

	assert.Equal(t, 1, start.LoopStep, "caller context must not change")
	assert.Equal(t, []output.TurnOutcome{output.OutcomeSuccess}, metrics.outcomes)
	assert.Equal(t, 1, metrics.calls)
}

func TestTakeTurn_PromptCarriesGoalAndContext(t *testing.T) {
	model := &fakeModel{responses: []string{clickLogin}}
	uc := newUseCase(model, nil)
	c := session.ReplaceGlobalGoal(session.New("s9"), "buy a ticket")

	_, err := uc.TakeTurn(context.Background(), input.TurnRequest{
		Screenshot: pngShot(),
		Goal:       "open search",
		Context:    c,
	})
	require.NoError(t, err)

	req := model.lastRequest(t)
	assert.Contains(t, req.UserPrompt, "User Goal: open search")
	assert.Contains(t, req.UserPrompt, "Overall Objective: buy a ticket")
	assert.Contains(t, req.UserPrompt, `"session_id":"s9"`)
	assert.NotEmpty(t, req.SystemPrompt)
	assert.Equal(t, entity.MimePNG, req.Image.MimeType)
}

func TestTakeTurn_FencedResponse(t *testing.T) {
	model := &fakeModel{responses: []string{"```json\n" + clickLogin + "\n```"}}
	uc := newUseCase(model, nil)

	res, err := uc.TakeTurn(context.Background(), input.TurnRequest{
		Screenshot: pngShot(), Goal: "log in", Context: session.New("s1"),
	})

	require.NoError(t, err)
	assert.Equal(t, "Login button", res.Action.Target)
}

func TestTakeTurn_MissingField(t *testing.T) {
	model := &fakeModel{responses: []string{`{"plan":"p","action":"CLICK","target":"t","coords":{"x":1,"y":1},"text_input":""}`}}
	metrics := &fakeMetrics{}
	uc := newUseCase(model, metrics)
	start := session.New("s1")

	res, err := uc.TakeTurn(context.Background(), input.TurnRequest{
		Screenshot: pngShot(), Goal: "log in", Context: start,
	})

	require.Nil(t, res)
	var turnErr *entity.TurnError
	require.True(t, errors.As(err, &turnErr))
	assert.Equal(t, entity.StageValidation, turnErr.Stage)

	var vErr *entity.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "status", vErr.Field)

	assert.True(t, turnErr.Context.ErrorState.HasError)
	assert.Equal(t, 1, turnErr.Context.ErrorState.RetryCountForCurrentGoal)
	assert.Equal(t, start.LoopStep, turnErr.Context.LoopStep)
	assert.Empty(t, turnErr.Context.RecentHistory)
	assert.Equal(t, []output.TurnOutcome{output.OutcomeValidationError}, metrics.outcomes)
}

func TestTakeTurn_OutOfRangeCoords(t *testing.T) {
	model := &fakeModel{responses: []string{`{"plan":"p","action":"CLICK","target":"t","coords":{"x":1200,"y":10},"text_input":"","status":"IN_PROGRESS"}`}}
	uc := newUseCase(model, nil)

	_, err := uc.TakeTurn(context.Background(), input.TurnRequest{
		Screenshot: pngShot(), Goal: "log in", Context: session.New("s1"),
	})

	var vErr *entity.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "coords.x", vErr.Field)
}

func TestTakeTurn_ProseResponse(t *testing.T) {
	model := &fakeModel{responses: []string{"I think you should click the login button."}}
	uc := newUseCase(model, nil)

	_, err := uc.TakeTurn(context.Background(), input.TurnRequest{
		Screenshot: pngShot(), Goal: "log in", Context: session.New("s1"),
	})

	var turnErr *entity.TurnError
	require.True(t, errors.As(err, &turnErr))
	assert.Equal(t, entity.StageValidation, turnErr.Stage)
}

func TestTakeTurn_ProviderError(t *testing.T) {
	providerErr := &entity.ProviderError{Provider: "fake", Kind: entity.ProviderRateLimited, StatusCode: 429, Message: "quota exceeded"}
	model := &fakeModel{err: providerErr}
	metrics := &fakeMetrics{}
	uc := newUseCase(model, metrics)

	_, err := uc.TakeTurn(context.Background(), input.TurnRequest{
		Screenshot: pngShot(), Goal: "log in", Context: session.New("s1"),
	})

	var turnErr *entity.TurnError
	require.True(t, errors.As(err, &turnErr))
	assert.Equal(t, entity.StageModel, turnErr.Stage)

	var pe *entity.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "quota exceeded", pe.Message)

	require.NotNil(t, turnErr.Context.ErrorState.LastErrorMessage)
	assert.Contains(t, *turnErr.Context.ErrorState.LastErrorMessage, "quota exceeded")
	assert.Equal(t, []output.TurnOutcome{output.OutcomeProviderError}, metrics.outcomes)
}

func TestTakeTurn_InvalidRequests(t *testing.T) {
	for name, req := range map[string]input.TurnRequest{
		"blank goal":  {Screenshot: pngShot(), Goal: "   "},
		"empty image": {Screenshot: entity.Screenshot{MimeType: entity.MimePNG}, Goal: "g"},
		"gif":         {Screenshot: entity.Screenshot{Data: []byte("GIF89a"), MimeType: "image/gif"}, Goal: "g"},
	} {
		t.Run(name, func(t *testing.T) {
			model := &fakeModel{}
			uc := newUseCase(model, nil)

			_, err := uc.TakeTurn(context.Background(), req)

			require.Error(t, err)
			assert.True(t, errors.Is(err, entity.ErrInvalidRequest))
			assert.Empty(t, model.requests, "model must not be called")
		})
	}
}

func TestTakeTurn_PreparerFailure(t *testing.T) {
	model := &fakeModel{}
	cfg := DefaultConfig()
	cfg.Preparer = failingPreparer{}
	uc := New(model, logger.NewNop(), cfg)

	_, err := uc.TakeTurn(context.Background(), input.TurnRequest{
		Screenshot: pngShot(), Goal: "g", Context: session.New("s1"),
	})

	assert.True(t, errors.Is(err, entity.ErrInvalidRequest))
	assert.Empty(t, model.requests)
}

func TestTakeTurn_RetryThenGoalChange(t *testing.T) {
	model := &fakeModel{responses: []string{"not json", "still not json", clickLogin}}
	uc := newUseCase(model, nil)
	c := session.New("s1")

	for i := 0; i < 2; i++ {
		_, err := uc.TakeTurn(context.Background(), input.TurnRequest{Screenshot: pngShot(), Goal: "log in", Context: c})
		var turnErr *entity.TurnError
		require.True(t, errors.As(err, &turnErr))
		c = turnErr.Context
	}
	assert.Equal(t, 2, c.ErrorState.RetryCountForCurrentGoal)
	assert.Contains(t, model.lastRequest(t).UserPrompt, "retry 1 for this goal")

	res, err := uc.TakeTurn(context.Background(), input.TurnRequest{Screenshot: pngShot(), Goal: "open settings", Context: c})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Context.ErrorState.RetryCountForCurrentGoal)
	assert.False(t, res.Context.ErrorState.HasError)
	assert.NotContains(t, model.lastRequest(t).UserPrompt, "Previous attempt failed")
}

func TestTakeTurn_ElevenTurns(t *testing.T) {
	model := &fakeModel{}
	uc := newUseCase(model, nil)
	c := session.New("s1")

	for i := 0; i < 11; i++ {
		res, err := uc.TakeTurn(context.Background(), input.TurnRequest{
			Screenshot: entity.Screenshot{Data: []byte(fmt.Sprintf("shot-%d", i)), MimeType: entity.MimeJPEG},
			Goal:       "wait for page",
			Context:    c,
		})
		require.NoError(t, err)
		c = res.Context
	}

	assert.Equal(t, 12, c.LoopStep)
	require.Len(t, c.RecentHistory, entity.HistoryCapacity)
	assert.Equal(t, 2, c.RecentHistory[0].Step)
	assert.Equal(t, 11, c.RecentHistory[9].Step)
}

func TestTakeTurn_Canceled(t *testing.T) {
	model := &fakeModel{block: true}
	metrics := &fakeMetrics{}
	uc := newUseCase(model, metrics)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := uc.TakeTurn(ctx, input.TurnRequest{Screenshot: pngShot(), Goal: "log in", Context: session.New("s1")})

	var turnErr *entity.TurnError
	require.True(t, errors.As(err, &turnErr))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, []output.TurnOutcome{output.OutcomeCanceled}, metrics.outcomes)
}

func TestTakeTurn_ParallelSessions(t *testing.T) {
	model := &fakeModel{}
	uc := newUseCase(model, &fakeMetrics{})

	var wg sync.WaitGroup
	results := make([]entity.SessionContext, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := session.New(fmt.Sprintf("s%d", i))
			for step := 0; step < 3; step++ {
				res, err := uc.TakeTurn(context.Background(), input.TurnRequest{Screenshot: pngShot(), Goal: "wait", Context: c})
				if !assert.NoError(t, err) {
					return
				}
				c = res.Context
			}
			results[i] = c
		}(i)
	}
	wg.Wait()

	for i, c := range results {
		assert.Equal(t, fmt.Sprintf("s%d", i), c.SessionID)
		assert.Equal(t, 4, c.LoopStep)
		assert.Len(t, c.RecentHistory, 3)
	}
}

func TestScreenshotRef(t *testing.T) {
	ref := ScreenshotRef([]byte("abc"))
	assert.True(t, strings.HasPrefix(ref, "sha256:"))
	assert.Len(t, ref, len("sha256:")+16)
	assert.Equal(t, ref, ScreenshotRef([]byte("abc")))
	assert.NotEqual(t, ref, ScreenshotRef([]byte("abd")))
}
