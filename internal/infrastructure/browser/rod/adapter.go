package rod

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"nav-agent/internal/application/port/output"
	"nav-agent/internal/domain/entity"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

var _ output.BrowserPort = (*BrowserAdapter)(nil)

var (
	ErrInvalidURL    = errors.New("invalid url")
	ErrBrowserClosed = errors.New("browser is closed")
)

const (
	defaultSlowMotion = 0
	defaultTimeout    = 15 * time.Second
	screenshotQuality = 85
)

type BrowserAdapter struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	timeout  time.Duration
	closed   bool
}

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
	DevTools   bool
	// Viewport is applied on start so normalized coordinates map onto a stable size.
	ViewportWidth  int
	ViewportHeight int
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless:       false,
		SlowMotion:     defaultSlowMotion,
		Timeout:        defaultTimeout,
		ViewportWidth:  1280,
		ViewportHeight: 800,
	}
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig) (*BrowserAdapter, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		Devtools(cfg.DevTools).
		NoSandbox(cfg.NoSandbox).
		Delete("use-mock-keychain")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             cfg.ViewportWidth,
			Height:            cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = browser.Close()
			l.Kill()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	return &BrowserAdapter{
		browser:  browser,
		launcher: l,
		page:     page,
		timeout:  cfg.Timeout,
	}, nil
}

func (b *BrowserAdapter) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.page != nil
}

// pageFor returns the page bound to ctx with the adapter timeout applied.
func (b *BrowserAdapter) pageFor(ctx context.Context) (*rod.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrowserClosed
	}
	return b.page.Context(ctx).Timeout(b.timeout), nil
}

func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed", ErrInvalidURL, u.Scheme)
	}
	return nil
}

func (b *BrowserAdapter) Navigate(ctx context.Context, rawURL string) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	page, err := b.pageFor(ctx)
	if err != nil {
		return err
	}
	if err := page.Navigate(rawURL); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load: %w", err)
	}
	_ = page.WaitIdle(2 * time.Second)
	return nil
}

// Screenshot captures the visible viewport, which is the frame normalized
// coordinates refer to.
func (b *BrowserAdapter) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	page, err := b.pageFor(ctx)
	if err != nil {
		return nil, err
	}

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(screenshotQuality),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	w, h, err := viewport(page)
	if err != nil {
		return nil, err
	}

	return &entity.Screenshot{
		Data:     data,
		MimeType: entity.MimeJPEG,
		Width:    w,
		Height:   h,
	}, nil
}

func (b *BrowserAdapter) Info(ctx context.Context) (*entity.PageInfo, error) {
	page, err := b.pageFor(ctx)
	if err != nil {
		return nil, err
	}
	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("page info: %w", err)
	}
	w, h, err := viewport(page)
	if err != nil {
		return nil, err
	}
	return &entity.PageInfo{URL: info.URL, Title: info.Title, Width: w, Height: h}, nil
}

func (b *BrowserAdapter) ClickAt(ctx context.Context, at entity.Coords) error {
	page, err := b.pageFor(ctx)
	if err != nil {
		return err
	}
	if err := clickAt(page, at); err != nil {
		return err
	}
	_ = page.WaitIdle(2 * time.Second)
	return nil
}

// TypeAt focuses whatever sits at the coordinates, clears it and inserts text.
func (b *BrowserAdapter) TypeAt(ctx context.Context, at entity.Coords, text string) error {
	page, err := b.pageFor(ctx)
	if err != nil {
		return err
	}
	if err := clickAt(page, at); err != nil {
		return err
	}
	if _, err := page.Eval(`() => { const el = document.activeElement; if (el && "value" in el) { el.value = ""; } }`); err != nil {
		return fmt.Errorf("clear focused field: %w", err)
	}
	if err := page.InsertText(text); err != nil {
		return fmt.Errorf("insert text: %w", err)
	}
	return nil
}

func (b *BrowserAdapter) Scroll(ctx context.Context, direction string) error {
	page, err := b.pageFor(ctx)
	if err != nil {
		return err
	}

	var js string
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "", "down":
		js = `() => window.scrollBy(0, window.innerHeight * 0.8)`
	case "up":
		js = `() => window.scrollBy(0, -window.innerHeight * 0.8)`
	case "top":
		js = `() => window.scrollTo(0, 0)`
	case "bottom":
		js = `() => window.scrollTo(0, document.body.scrollHeight)`
	default:
		return fmt.Errorf("unknown scroll direction: %s", direction)
	}
	if _, err := page.Eval(js); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	_ = page.WaitIdle(800 * time.Millisecond)
	return nil
}

func (b *BrowserAdapter) Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (b *BrowserAdapter) CurrentURL() string {
	page, err := b.pageFor(context.Background())
	if err != nil {
		return ""
	}
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (b *BrowserAdapter) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}

func clickAt(page *rod.Page, at entity.Coords) error {
	w, h, err := viewport(page)
	if err != nil {
		return err
	}
	x, y := at.ToPixels(w, h)
	if err := page.Mouse.MoveTo(proto.Point{X: float64(x), Y: float64(y)}); err != nil {
		return fmt.Errorf("move mouse: %w", err)
	}
	if err := page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func viewport(page *rod.Page) (int, int, error) {
	res, err := page.Eval(`() => ({ w: window.innerWidth, h: window.innerHeight })`)
	if err != nil {
		return 0, 0, fmt.Errorf("read viewport: %w", err)
	}
	return res.Value.Get("w").Int(), res.Value.Get("h").Int(), nil
}
