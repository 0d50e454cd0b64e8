package browser

import (
	"sync"

	"github.com/chromedp/cdproto/network"
)

// pending is a response whose body has not finished loading yet.
type pending struct {
	url    string
	status int64
}

// tracker correlates ResponseReceived and LoadingFinished events by request
// id, so concurrent requests never see each other's URL or body.
type tracker struct {
	types map[network.ResourceType]bool

	mu       sync.Mutex
	inflight map[network.RequestID]pending
}

func newTracker(resourceTypes []string) *tracker {
	t := &tracker{
		types:    make(map[network.ResourceType]bool, len(resourceTypes)),
		inflight: make(map[network.RequestID]pending),
	}
	for _, rt := range resourceTypes {
		t.types[network.ResourceType(rt)] = true
	}
	return t
}

func (t *tracker) received(ev *network.EventResponseReceived) {
	if ev.Response == nil || !t.types[ev.Type] {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[ev.RequestID] = pending{url: ev.Response.URL, status: ev.Response.Status}
}

// finished returns the response to deliver, if any. Only status 200
// completions are delivered.
func (t *tracker) finished(id network.RequestID) (pending, bool) {
	t.mu.Lock()
	p, ok := t.inflight[id]
	delete(t.inflight, id)
	t.mu.Unlock()

	if !ok || p.status != 200 {
		return pending{}, false
	}
	return p, true
}

func (t *tracker) failed(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, id)
}

func (t *tracker) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}
