// Package resolver turns a matched player metadata response into a segment
// set: transcript fetch, fingerprint, cache lookup, compute fallback.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"

	"github.com/codebuildervaibhav/sponsorskip/internal/adsapi"
	"github.com/codebuildervaibhav/sponsorskip/internal/fingerprint"
	"github.com/codebuildervaibhav/sponsorskip/internal/logging"
	"github.com/codebuildervaibhav/sponsorskip/internal/state"
	"github.com/codebuildervaibhav/sponsorskip/internal/types"
)

// DefaultMaxTranscriptBytes bounds transcript downloads when no limit is set.
const DefaultMaxTranscriptBytes = 10_000_000

var (
	// ErrFetch wraps every transcript download failure.
	ErrFetch = errors.New("transcript fetch failed")
	// ErrTooLarge is returned when a transcript exceeds the byte limit.
	ErrTooLarge = errors.New("transcript too large")
)

// Backend is the cache-then-compute segment service.
type Backend interface {
	Lookup(ctx context.Context, fp string) ([]types.Segment, error)
	Compute(ctx context.Context, transcript string) ([]types.Segment, error)
}

// Attempt is one matched metadata response to resolve.
type Attempt struct {
	ID   string
	Seq  uint64
	URL  string
	Body []byte
}

// Options tunes outbound requests.
type Options struct {
	MaxTranscriptBytes int64
	// RequestTimeout applies to each outbound call; zero means none.
	RequestTimeout time.Duration
}

// Resolver runs the segment-resolution pipeline and writes results to the store.
type Resolver struct {
	httpClient *http.Client
	backend    Backend
	store      *state.Store
	log        logrus.FieldLogger
	opts       Options
}

// New creates a resolver. A nil httpClient uses http.DefaultClient.
func New(httpClient *http.Client, backend Backend, store *state.Store, log logrus.FieldLogger, opts Options) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if opts.MaxTranscriptBytes <= 0 {
		opts.MaxTranscriptBytes = DefaultMaxTranscriptBytes
	}
	return &Resolver{
		httpClient: httpClient,
		backend:    backend,
		store:      store,
		log:        logging.Component(log, "resolver"),
		opts:       opts,
	}
}

// Resolve runs one attempt to completion. Every failure aborts the attempt and
// is returned; nothing is retried and nothing is cached locally.
func (r *Resolver) Resolve(ctx context.Context, a Attempt) (*types.Resolution, error) {
	log := r.log.WithFields(logrus.Fields{"attempt": a.ID, "seq": a.Seq})

	subtitleURL, err := ExtractSubtitleURL(a.Body)
	if err != nil {
		return nil, fmt.Errorf("resolve: extract subtitle url: %w", err)
	}
	log.WithField("subtitle_url", subtitleURL).Info("Subtitle URL found")

	transcript, err := r.fetchTranscript(ctx, subtitleURL)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	fp := fingerprint.Sum(transcript)
	log = log.WithField("sha256", fp)
	log.Debug("Transcript fingerprinted")

	source := types.SourceCache
	segments, err := r.lookup(ctx, fp)
	if err != nil {
		var be *adsapi.BackendError
		if !errors.As(err, &be) {
			return nil, fmt.Errorf("resolve: %w", err)
		}
		log.WithField("reason", be.Reason).Info("Cache not hit")

		source = types.SourceCompute
		segments, err = r.compute(ctx, transcript)
		if err != nil {
			return nil, fmt.Errorf("resolve: %w", err)
		}
	}

	res := &types.Resolution{
		AttemptID:   a.ID,
		Fingerprint: fp,
		Source:      source,
		Segments:    segments,
		ResolvedAt:  time.Now(),
	}

	res.Applied = r.store.Replace(state.Snapshot{
		Seq:         a.Seq,
		AttemptID:   a.ID,
		Fingerprint: fp,
		Source:      source,
		Segments:    segments,
		ResolvedAt:  res.ResolvedAt,
	})
	if !res.Applied {
		log.Warn("Discarding resolution superseded by a newer attempt")
		return res, nil
	}

	log.WithFields(logrus.Fields{"source": source, "segments": len(segments)}).Info("Ad segments loaded")
	return res, nil
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, r.opts.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *Resolver) lookup(ctx context.Context, fp string) ([]types.Segment, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.backend.Lookup(ctx, fp)
}

func (r *Resolver) compute(ctx context.Context, transcript string) ([]types.Segment, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.backend.Compute(ctx, transcript)
}

// fetchTranscript downloads the subtitle document as text.
func (r *Resolver) fetchTranscript(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: new request: %v", ErrFetch, err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: unexpected http status %s", ErrFetch, resp.Status)
	}

	limit := r.opts.MaxTranscriptBytes
	if resp.ContentLength > limit {
		return "", fmt.Errorf("%w: %w: content-length %d exceeds %d", ErrFetch, ErrTooLarge, resp.ContentLength, limit)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%w: %w: body exceeds %d bytes", ErrFetch, ErrTooLarge, limit)
	}
	return DecodeText(data)
}

// DecodeText reads a response body as UTF-8 text the way a browser does: a
// leading byte order mark is dropped and ill-formed bytes become U+FFFD.
// Fingerprints are taken over the decoded text, so they agree with clients
// hashing the page's decoded response.
func DecodeText(data []byte) (string, error) {
	text, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrFetch, err)
	}
	return string(text), nil
}
