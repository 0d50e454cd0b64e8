// Package agent wires interception, resolution, shared state and playback
// monitoring into one coordinator.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/sponsorskip/internal/adsapi"
	"github.com/codebuildervaibhav/sponsorskip/internal/config"
	"github.com/codebuildervaibhav/sponsorskip/internal/intercept"
	"github.com/codebuildervaibhav/sponsorskip/internal/logging"
	"github.com/codebuildervaibhav/sponsorskip/internal/monitor"
	"github.com/codebuildervaibhav/sponsorskip/internal/queue"
	"github.com/codebuildervaibhav/sponsorskip/internal/resolver"
	"github.com/codebuildervaibhav/sponsorskip/internal/state"
	"github.com/codebuildervaibhav/sponsorskip/internal/types"
)

// stopGrace is how long Stop lets in-flight resolutions finish.
const stopGrace = 5 * time.Second

// Options are the agent's collaborators.
type Options struct {
	Config     config.Agent
	HTTPClient *http.Client
	Locator    monitor.Locator
	Logger     logrus.FieldLogger
}

// Agent owns the segment store and is the only writer (through the resolver)
// and the only reader (through the monitor) of it.
type Agent struct {
	matcher  intercept.PrefixMatcher
	store    *state.Store
	resolver *resolver.Resolver
	pool     *queue.WorkerPool
	monitor  *monitor.Monitor
	log      logrus.FieldLogger
}

// New builds an agent from configuration.
func New(opts Options) (*Agent, error) {
	cfg := opts.Config
	log := logging.Component(opts.Logger, "agent")

	backend, err := adsapi.NewClient(cfg.BackendURL, opts.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}

	a := &Agent{
		matcher: intercept.NewPrefixMatcher(cfg.MetadataPrefix),
		store:   state.NewStore(),
		log:     log,
	}
	a.resolver = resolver.New(opts.HTTPClient, backend, a.store, opts.Logger, resolver.Options{
		MaxTranscriptBytes: cfg.MaxTranscriptBytes,
		RequestTimeout:     cfg.RequestTimeout(),
	})
	a.pool = queue.NewWorkerPool(queue.ProcessorFunc(a.process), cfg.History, opts.Logger)
	a.monitor = monitor.New(opts.Locator, a.store, cfg.PollInterval(), cfg.NotifyPrefix, opts.Logger)

	return a, nil
}

// Observe is the interception hook. Only responses under the metadata prefix
// start a resolution, each on its own goroutine; it never blocks the caller.
func (a *Agent) Observe(ex intercept.Exchange) {
	if !a.matcher.Match(ex.URL) {
		return
	}

	job := queue.NewJob(a.store.NextSeq(), ex.URL, ex.Body)
	a.log.WithFields(logrus.Fields{"job": job.ID, "seq": job.Seq, "url": ex.URL}).Info("Player metadata intercepted")
	a.pool.Submit(job)
}

func (a *Agent) process(ctx context.Context, job *queue.Job) (*types.Resolution, error) {
	return a.resolver.Resolve(ctx, resolver.Attempt{
		ID:   job.ID,
		Seq:  job.Seq,
		URL:  job.URL,
		Body: job.Body,
	})
}

// Start launches the playback monitor. Resolutions start as responses arrive.
func (a *Agent) Start(ctx context.Context) {
	a.monitor.Start(ctx)
}

// Stop tears down the monitor and drains in-flight resolutions.
func (a *Agent) Stop() {
	a.monitor.Stop()
	a.pool.Stop(stopGrace)
}

// Store exposes the current segment set.
func (a *Agent) Store() *state.Store {
	return a.store
}

// Attempts reports the most recent resolution attempts, oldest first.
func (a *Agent) Attempts() []queue.JobStatus {
	return a.pool.Jobs()
}

// Monitor exposes the playback monitor.
func (a *Agent) Monitor() *monitor.Monitor {
	return a.monitor
}
