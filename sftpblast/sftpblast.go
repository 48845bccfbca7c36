// Package sftpblast wires payload generation, the worker pool and result
// aggregation into one test run.
package sftpblast

import (
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/sftpblast/sftpblast/dispatch"
	"github.com/sftpblast/sftpblast/payload"
	"github.com/sftpblast/sftpblast/queue"
	"github.com/sftpblast/sftpblast/result"
	"github.com/sftpblast/sftpblast/sftpblast/types"
	"github.com/sftpblast/sftpblast/transfer"
)

// Test is one run from payload generation through the aggregated report.
// Runs do not share state; build a fresh Test per run.
type Test struct {
	Config *types.TestConfig

	// Fs carries scratch storage for generated artifacts. Defaults to the
	// OS filesystem.
	Fs afero.Fs
	// Sink optionally receives each outcome live.
	Sink queue.ResultSink
	// OnProgress optionally receives per-artifact bytes-transferred counts.
	OnProgress func(name string, transferred int64)

	report *result.TestReport
}

// NewTest returns a configured Test
func NewTest(config *types.TestConfig) (*Test, error) {
	if err := config.Check(); err != nil {
		return nil, err
	}
	return &Test{Config: config, Fs: afero.NewOsFs()}, nil
}

// Start generates the artifacts and launches the transfer workers,
// streaming one FileStat per artifact as transfers complete. The channel
// closes once every artifact is accounted for, all scratch storage is
// reclaimed and pooled sessions are closed. Errors returned here are setup
// failures; per-transfer failures only appear inside the streamed outcomes.
func (t *Test) Start() (<-chan result.FileStat, error) {
	gen, err := payload.NewGenerator(t.Fs, "")
	if err != nil {
		return nil, err
	}

	artifacts := make([]payload.Artifact, 0, t.Config.NumFiles)
	for i := 0; i < t.Config.NumFiles; i++ {
		size := payload.RandomSize(t.Config.MinFileSizeBytes, t.Config.MaxFileSizeBytes)
		artifact, gerr := gen.Generate(i, size)
		if gerr != nil {
			gen.Cleanup()
			return nil, fmt.Errorf("generating payloads: %v", gerr)
		}
		artifacts = append(artifacts, artifact)
	}

	pool := &dispatch.Pool{
		Dialer:     endpointDialer{transfer.NewEndpoint(t.Fs, t.Config)},
		KeepAlive:  t.Config.KeepAlive,
		Sleep:      t.Config.SleepInterval(),
		OnRemove:   gen.Remove,
		OnProgress: t.OnProgress,
	}

	t.report = &result.TestReport{}
	out := make(chan result.FileStat, len(artifacts))
	go func() {
		defer close(out)
		defer gen.Cleanup()
		for stat := range pool.Run(artifacts, t.Config.Workers()) {
			t.report.Add(stat)
			if t.Sink != nil {
				t.Sink.Send(stat)
			}
			out <- stat
		}
	}()
	return out, nil
}

// Run executes the whole lifecycle and blocks until the report is final.
func (t *Test) Run() (*result.TestReport, error) {
	results, err := t.Start()
	if err != nil {
		return nil, err
	}
	for range results {
	}
	return t.report, nil
}

// Report returns the aggregate. Only meaningful once the stream from Start
// has closed.
func (t *Test) Report() *result.TestReport {
	return t.report
}

// endpointDialer adapts transfer.Endpoint to the pool's Dialer interface.
type endpointDialer struct {
	endpoint *transfer.Endpoint
}

func (d endpointDialer) Dial() (dispatch.Session, time.Duration, error) {
	session, connectTime, err := d.endpoint.Dial()
	if err != nil {
		return nil, connectTime, err
	}
	return session, connectTime, nil
}
