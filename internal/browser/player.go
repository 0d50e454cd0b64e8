package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/chromedp/chromedp"

	"github.com/codebuildervaibhav/sponsorskip/internal/monitor"
)

// PageLocator finds the player's video element in the page.
type PageLocator struct {
	ctx      context.Context
	selector string
}

// Locate implements monitor.Locator.
func (l *PageLocator) Locate(ctx context.Context) (monitor.Player, error) {
	var present bool
	if err := l.eval(ctx, existsScript(l.selector), &present); err != nil {
		return nil, err
	}
	if !present {
		return nil, monitor.ErrNoVideo
	}
	return &pagePlayer{locator: l}, nil
}

// eval runs script in the tab. ctx bounds the call on top of the tab's own
// lifetime.
func (l *PageLocator) eval(ctx context.Context, script string, res interface{}) error {
	runCtx := l.ctx
	if ctx != nil {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithCancel(l.ctx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
	}
	return chromedp.Run(runCtx, chromedp.Evaluate(script, res))
}

type pagePlayer struct {
	locator *PageLocator
}

func (p *pagePlayer) CurrentTime(ctx context.Context) (float64, error) {
	var pos float64
	if err := p.locator.eval(ctx, currentTimeScript(p.locator.selector), &pos); err != nil {
		return 0, err
	}
	if pos < 0 {
		return 0, monitor.ErrNoVideo
	}
	return pos, nil
}

func (p *pagePlayer) Seek(ctx context.Context, seconds float64) error {
	var ok bool
	if err := p.locator.eval(ctx, seekScript(p.locator.selector, seconds), &ok); err != nil {
		return err
	}
	if !ok {
		return monitor.ErrNoVideo
	}
	return nil
}

func (p *pagePlayer) Notify(ctx context.Context, text string) error {
	var shown bool
	if err := p.locator.eval(ctx, toastScript(text), &shown); err != nil {
		return err
	}
	if !shown {
		return errors.New("player toast unavailable")
	}
	return nil
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func existsScript(selector string) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, quote(selector))
}

func currentTimeScript(selector string) string {
	return fmt.Sprintf(`(() => { const v = document.querySelector(%s); return v ? v.currentTime : -1; })()`, quote(selector))
}

func seekScript(selector string, seconds float64) string {
	return fmt.Sprintf(`(() => { const v = document.querySelector(%s); if (!v) return false; v.currentTime = %s; return true; })()`,
		quote(selector), strconv.FormatFloat(seconds, 'f', -1, 64))
}

func toastScript(text string) string {
	return fmt.Sprintf(`(() => { const t = window.player && window.player.toast; if (!t) return false; t.create({ text: %s }); return true; })()`, quote(text))
}
