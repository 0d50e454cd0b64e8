// Package monitor polls playback position against the resolved segment set
// and skips past the first segment containing it.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/sponsorskip/internal/logging"
	"github.com/codebuildervaibhav/sponsorskip/internal/types"
)

// DefaultInterval is the poll period.
const DefaultInterval = 500 * time.Millisecond

// ErrNoVideo is returned by a Locator while the video element is absent.
var ErrNoVideo = errors.New("video element not found")

// Player is the host page's video element plus its notification surface.
type Player interface {
	CurrentTime(ctx context.Context) (float64, error)
	Seek(ctx context.Context, seconds float64) error
	Notify(ctx context.Context, text string) error
}

// Locator discovers the video element.
type Locator interface {
	Locate(ctx context.Context) (Player, error)
}

// SegmentSource yields the current read-only segment set.
type SegmentSource interface {
	Segments() []types.Segment
}

// Phase is the monitor lifecycle.
type Phase int

const (
	// Searching means no video element has been found yet.
	Searching Phase = iota
	// Found means the monitor is armed; it never reverts.
	Found
)

func (p Phase) String() string {
	if p == Found {
		return "found"
	}
	return "searching"
}

// Skip describes one skip action.
type Skip struct {
	Segment  types.Segment
	Position float64
}

// Monitor checks playback against segments on every tick.
type Monitor struct {
	locator      Locator
	segments     SegmentSource
	interval     time.Duration
	notifyPrefix string
	log          logrus.FieldLogger

	mu       sync.Mutex
	phase    Phase
	player   Player
	landing  float64
	landed   bool
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a monitor. A non-positive interval uses DefaultInterval.
func New(locator Locator, segments SegmentSource, interval time.Duration, notifyPrefix string, log logrus.FieldLogger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		locator:      locator,
		segments:     segments,
		interval:     interval,
		notifyPrefix: notifyPrefix,
		log:          logging.Component(log, "monitor"),
	}
}

// Phase returns the current lifecycle phase.
func (m *Monitor) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Start begins polling until Stop is called or ctx ends.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.stopChan != nil {
		m.mu.Unlock()
		return
	}
	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stopChan, m.done
	m.mu.Unlock()

	ticker := time.NewTicker(m.interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Tick(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	m.log.WithField("interval", m.interval).Info("Playback monitor started")
}

// Stop halts polling and waits for an in-progress tick to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop, done := m.stopChan, m.done
	m.stopChan = nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	m.log.Info("Playback monitor stopped")
}

// Tick runs one poll. It returns the skip performed, if any. Every failure
// degrades to a no-op.
func (m *Monitor) Tick(ctx context.Context) (Skip, bool) {
	player := m.arm(ctx)
	if player == nil {
		return Skip{}, false
	}

	segments := m.segments.Segments()
	if len(segments) == 0 {
		return Skip{}, false
	}

	pos, err := player.CurrentTime(ctx)
	if err != nil {
		m.log.WithError(err).Debug("Reading playback position failed")
		return Skip{}, false
	}

	m.mu.Lock()
	if m.landed && pos == m.landing {
		m.mu.Unlock()
		return Skip{}, false
	}
	m.landed = false
	m.mu.Unlock()

	for _, seg := range segments {
		if !seg.Contains(pos) {
			continue
		}

		log := m.log.WithFields(logrus.Fields{"position": pos, "start": seg.StartTime, "end": seg.EndTime, "topic": seg.Topic})
		log.Info("Ad segment detected, skipping to the end")

		if err := player.Seek(ctx, seg.EndTime); err != nil {
			log.WithError(err).Warn("Seek failed")
			return Skip{}, false
		}

		m.mu.Lock()
		m.landing, m.landed = seg.EndTime, true
		m.mu.Unlock()

		if err := player.Notify(ctx, m.notifyPrefix+seg.Topic); err != nil {
			log.WithError(err).Warn("Notification failed")
		}
		return Skip{Segment: seg, Position: pos}, true
	}
	return Skip{}, false
}

// arm returns the player, locating it on first use. Locate runs without the
// lock held since it may be a browser round trip.
func (m *Monitor) arm(ctx context.Context) Player {
	m.mu.Lock()
	if m.phase == Found {
		player := m.player
		m.mu.Unlock()
		return player
	}
	m.mu.Unlock()

	if m.locator == nil {
		return nil
	}

	player, err := m.locator.Locate(ctx)
	if err != nil || player == nil {
		if err != nil && !errors.Is(err, ErrNoVideo) {
			m.log.WithError(err).Debug("Video element discovery failed")
		}
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == Found {
		return m.player
	}
	m.player = player
	m.phase = Found
	m.log.Info("Video element found")
	return player
}
