package output

import (
	"context"
	"time"

	"nav-agent/internal/domain/entity"
)

// BrowserPort is what the automation harness needs to act on a page. Click and
// Type positions are in normalized coordinates; the adapter maps them to pixels.
type BrowserPort interface {
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context) (*entity.Screenshot, error)
	Info(ctx context.Context) (*entity.PageInfo, error)

	ClickAt(ctx context.Context, at entity.Coords) error
	TypeAt(ctx context.Context, at entity.Coords, text string) error
	Scroll(ctx context.Context, direction string) error
	Wait(ctx context.Context, d time.Duration) error

	Close()
}
