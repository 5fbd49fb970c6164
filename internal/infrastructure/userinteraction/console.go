package userinteraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"nav-agent/internal/application/port/output"
	"nav-agent/internal/domain/entity"

	"github.com/fatih/color"
)

var _ output.UserInteractionPort = (*ConsoleUserInteraction)(nil)

type ConsoleUserInteraction struct {
	out io.Writer
}

func NewConsoleUserInteraction() *ConsoleUserInteraction {
	return &ConsoleUserInteraction{out: color.Output}
}

func NewConsoleUserInteractionWithWriter(w io.Writer) *ConsoleUserInteraction {
	return &ConsoleUserInteraction{out: w}
}

func (u *ConsoleUserInteraction) ShowStep(ctx context.Context, step, maxSteps int, goal string) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(u.out, "\n━━━ Step %d/%d ━━━\n", step, maxSteps)

	dim := color.New(color.Faint)
	dim.Fprintf(u.out, "   goal: %s\n", truncate(goal, 200))
}

func (u *ConsoleUserInteraction) ShowAction(ctx context.Context, action entity.Action) {
	icon, name := actionDisplay(action.Action)

	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(u.out, "%s %s %q", icon, name, action.Target)
	if action.Action == entity.ActionClick || action.Action == entity.ActionTypeText {
		fmt.Fprintf(u.out, " at (%d, %d)", action.Coords.X, action.Coords.Y)
	}
	fmt.Fprintln(u.out)

	if action.TextInput != "" {
		color.New(color.Faint).Fprintf(u.out, "   text: %s\n", truncate(action.TextInput, 120))
	}
	if action.Plan != "" {
		color.New(color.FgBlue).Fprintf(u.out, "   plan: %s\n", truncate(action.Plan, 300))
	}
}

func (u *ConsoleUserInteraction) ShowTurnError(ctx context.Context, err error, attempt int) {
	red := color.New(color.FgRed)
	red.Fprintf(u.out, "✗ Turn failed (attempt %d): ", attempt)

	msg := err.Error()
	var te *entity.TurnError
	if errors.As(err, &te) {
		msg = fmt.Sprintf("[%s] %v", te.Stage, te.Err)
	}
	color.New(color.Faint).Fprintln(u.out, truncate(msg, 300))
}

func (u *ConsoleUserInteraction) ShowFinished(ctx context.Context, wf entity.Workflow) {
	switch wf.Status {
	case entity.RunStatusCompleted:
		color.New(color.FgGreen, color.Bold).Fprintf(u.out, "\n✓ Goal reached in %d actions\n", len(wf.Actions))
	case entity.RunStatusExhausted:
		color.New(color.FgYellow, color.Bold).Fprintf(u.out, "\n⚠ Step limit reached after %d actions\n", len(wf.Actions))
	default:
		color.New(color.FgRed, color.Bold).Fprintf(u.out, "\n✗ Run %s: %s\n", wf.Status, truncate(wf.Error, 300))
	}
	color.New(color.Faint).Fprintf(u.out, "   session: %s, steps: %d\n", wf.Context.SessionID, wf.Context.LoopStep-1)
}

func actionDisplay(a entity.ActionType) (string, string) {
	switch a {
	case entity.ActionClick:
		return "🖱️", "Click"
	case entity.ActionTypeText:
		return "✏️", "Type into"
	case entity.ActionScroll:
		return "📜", "Scroll"
	case entity.ActionWait:
		return "⏳", "Wait for"
	case entity.ActionComplete:
		return "🏁", "Complete"
	}
	return "🔧", string(a)
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
