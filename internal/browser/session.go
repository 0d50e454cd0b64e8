// Package browser hosts the video page in Chrome and exposes its network
// traffic and video element to the agent.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/sponsorskip/internal/config"
	"github.com/codebuildervaibhav/sponsorskip/internal/intercept"
	"github.com/codebuildervaibhav/sponsorskip/internal/logging"
)

// Session is one Chrome tab.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	cfg         config.Browser
	log         logrus.FieldLogger
}

// NewSession starts Chrome. The browser process is launched lazily on the
// first action.
func NewSession(parent context.Context, cfg config.Browser, log logrus.FieldLogger) *Session {
	log = logging.Component(log, "browser")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Debugf),
		chromedp.WithErrorf(log.Errorf),
	)

	return &Session{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		cfg:         cfg,
		log:         log,
	}
}

// Observe installs hook on every completed XHR/Fetch response of the page.
// It must be called before Navigate.
func (s *Session) Observe(hook intercept.Hook) error {
	t := newTracker(s.cfg.ResourceTypes)

	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *network.EventResponseReceived:
			t.received(ev)
		case *network.EventLoadingFailed:
			t.failed(ev.RequestID)
		case *network.EventLoadingFinished:
			p, ok := t.finished(ev.RequestID)
			if !ok {
				return
			}
			// the listener runs on the event loop; commands must not block it
			go s.deliver(ev.RequestID, p, hook)
		}
	})

	if err := chromedp.Run(s.ctx, network.Enable()); err != nil {
		return fmt.Errorf("enable network domain: %w", err)
	}
	s.log.WithField("resource_types", s.cfg.ResourceTypes).Info("Network interception installed")
	return nil
}

func (s *Session) deliver(id network.RequestID, p pending, hook intercept.Hook) {
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return
	}

	body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(s.ctx, c.Target))
	if err != nil {
		s.log.WithError(err).WithField("url", p.url).Debug("Response body unavailable")
		return
	}

	if hook != nil {
		hook(intercept.Exchange{URL: p.url, Status: int(p.status), Body: body})
	}
}

// Navigate opens url in the tab.
func (s *Session) Navigate(url string) error {
	s.log.WithField("url", url).Info("Opening page")
	if err := chromedp.Run(s.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Locator returns a video element locator for this tab.
func (s *Session) Locator() *PageLocator {
	return &PageLocator{ctx: s.ctx, selector: s.cfg.VideoSelector}
}

// Done is closed when the browser goes away.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close shuts the tab and the browser process down.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}
