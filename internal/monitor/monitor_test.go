package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/sponsorskip/internal/types"
)

type fakePlayer struct {
	mu      sync.Mutex
	pos     float64
	seeks   []float64
	notes   []string
	readErr error
}

func (p *fakePlayer) CurrentTime(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos, p.readErr
}

func (p *fakePlayer) Seek(_ context.Context, s float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = s
	p.seeks = append(p.seeks, s)
	return nil
}

func (p *fakePlayer) Notify(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, text)
	return nil
}

func (p *fakePlayer) setPos(s float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = s
}

type fakeLocator struct {
	mu     sync.Mutex
	player Player
	calls  int
}

func (l *fakeLocator) Locate(context.Context) (Player, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.player == nil {
		return nil, ErrNoVideo
	}
	return l.player, nil
}

func (l *fakeLocator) set(p Player) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.player = p
}

type staticSegments []types.Segment

func (s staticSegments) Segments() []types.Segment { return s }

func newMonitor(loc Locator, segs SegmentSource) *Monitor {
	log, _ := test.NewNullLogger()
	return New(loc, segs, 10*time.Millisecond, "跳过广告：", log)
}

func TestTickSkipsToSegmentEnd(t *testing.T) {
	player := &fakePlayer{pos: 35}
	m := newMonitor(&fakeLocator{player: player}, staticSegments{{StartTime: 30, EndTime: 45, Topic: "Sponsor"}})

	skip, ok := m.Tick(context.Background())
	require.True(t, ok)
	assert.Equal(t, 45.0, skip.Segment.EndTime)
	assert.Equal(t, []float64{45}, player.seeks)
	assert.Equal(t, []string{"跳过广告：Sponsor"}, player.notes)

	_, ok = m.Tick(context.Background())
	assert.False(t, ok, "landing exactly on end_time must not re-fire")
	assert.Len(t, player.notes, 1)
}

func TestTickFirstMatchWins(t *testing.T) {
	player := &fakePlayer{pos: 7}
	m := newMonitor(&fakeLocator{player: player}, staticSegments{
		{StartTime: 0, EndTime: 10, Topic: "S1"},
		{StartTime: 5, EndTime: 15, Topic: "S2"},
	})

	skip, ok := m.Tick(context.Background())
	require.True(t, ok)
	assert.Equal(t, "S1", skip.Segment.Topic)
	assert.Equal(t, []float64{10}, player.seeks)
}

func TestTickZeroLengthSegmentSkipsExactlyOnce(t *testing.T) {
	player := &fakePlayer{pos: 12}
	m := newMonitor(&fakeLocator{player: player}, staticSegments{{StartTime: 12, EndTime: 12, Topic: "blip"}})

	for i := 0; i < 3; i++ {
		m.Tick(context.Background())
	}
	assert.Equal(t, []float64{12}, player.seeks)
	assert.Len(t, player.notes, 1)
}

func TestTickRearmsAfterPlayerMoves(t *testing.T) {
	player := &fakePlayer{pos: 35}
	m := newMonitor(&fakeLocator{player: player}, staticSegments{{StartTime: 30, EndTime: 45, Topic: "Sponsor"}})

	_, ok := m.Tick(context.Background())
	require.True(t, ok)

	player.setPos(60)
	_, ok = m.Tick(context.Background())
	assert.False(t, ok)

	player.setPos(31)
	_, ok = m.Tick(context.Background())
	assert.True(t, ok, "seeking back into the segment skips again")
	assert.Len(t, player.notes, 2)
}

func TestTickBoundaries(t *testing.T) {
	player := &fakePlayer{pos: 9.9}
	m := newMonitor(&fakeLocator{player: player}, staticSegments{{StartTime: 10, EndTime: 20, Topic: "Ad"}})

	_, ok := m.Tick(context.Background())
	assert.False(t, ok)

	player.setPos(10.0)
	_, ok = m.Tick(context.Background())
	assert.True(t, ok)
	assert.Equal(t, []float64{20}, player.seeks)
}

func TestTickEmptySetIsNoop(t *testing.T) {
	player := &fakePlayer{pos: 5}
	m := newMonitor(&fakeLocator{player: player}, staticSegments{})

	_, ok := m.Tick(context.Background())
	assert.False(t, ok)
	assert.Empty(t, player.seeks)
	assert.Equal(t, Found, m.Phase())
}

func TestTickWithoutVideoIsNoop(t *testing.T) {
	loc := &fakeLocator{}
	m := newMonitor(loc, staticSegments{{StartTime: 0, EndTime: 100, Topic: "Ad"}})

	for i := 0; i < 5; i++ {
		_, ok := m.Tick(context.Background())
		assert.False(t, ok)
	}
	assert.Equal(t, Searching, m.Phase())
	assert.Equal(t, 5, loc.calls)
}

func TestArmsExactlyOnce(t *testing.T) {
	loc := &fakeLocator{}
	m := newMonitor(loc, staticSegments{})

	m.Tick(context.Background())
	assert.Equal(t, Searching, m.Phase())

	loc.set(&fakePlayer{})
	m.Tick(context.Background())
	assert.Equal(t, Found, m.Phase())

	loc.set(nil)
	m.Tick(context.Background())
	assert.Equal(t, Found, m.Phase(), "armed monitor never reverts")
	assert.Equal(t, 2, loc.calls)
}

func TestTickPositionReadErrorIsNoop(t *testing.T) {
	player := &fakePlayer{pos: 35, readErr: errors.New("context lost")}
	m := newMonitor(&fakeLocator{player: player}, staticSegments{{StartTime: 30, EndTime: 45}})

	_, ok := m.Tick(context.Background())
	assert.False(t, ok)
	assert.Empty(t, player.seeks)
}

func TestNilLocator(t *testing.T) {
	m := newMonitor(nil, staticSegments{{StartTime: 0, EndTime: 1}})
	assert.NotPanics(t, func() { m.Tick(context.Background()) })
}

func TestStartStop(t *testing.T) {
	player := &fakePlayer{pos: 35}
	m := newMonitor(&fakeLocator{player: player}, staticSegments{{StartTime: 30, EndTime: 45, Topic: "Sponsor"}})

	m.Start(context.Background())
	require.Eventually(t, func() bool {
		player.mu.Lock()
		defer player.mu.Unlock()
		return len(player.seeks) == 1
	}, time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()

	player.setPos(31)
	time.Sleep(30 * time.Millisecond)
	player.mu.Lock()
	defer player.mu.Unlock()
	assert.Len(t, player.seeks, 1, "no ticks after Stop")
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "searching", Searching.String())
	assert.Equal(t, "found", Found.String())
}

// blockingLocator parks in Locate until released.
type blockingLocator struct {
	entered chan struct{}
	release chan struct{}
	player  Player
}

func (l *blockingLocator) Locate(ctx context.Context) (Player, error) {
	close(l.entered)
	<-l.release
	return l.player, nil
}

func TestPhaseDoesNotWaitForLocate(t *testing.T) {
	loc := &blockingLocator{entered: make(chan struct{}), release: make(chan struct{}), player: &fakePlayer{}}
	m := newMonitor(loc, staticSegments{})

	ticked := make(chan struct{})
	go func() {
		m.Tick(context.Background())
		close(ticked)
	}()
	<-loc.entered

	phase := make(chan Phase, 1)
	go func() { phase <- m.Phase() }()
	select {
	case p := <-phase:
		assert.Equal(t, Searching, p)
	case <-time.After(time.Second):
		t.Fatal("Phase blocked behind Locate")
	}

	close(loc.release)
	<-ticked
	assert.Equal(t, Found, m.Phase())
}
