// Package dispatch runs artifact uploads across a bounded worker pool and
// streams one outcome per artifact back to the caller.
package dispatch

import (
	"sync"
	"time"

	"github.com/sftpblast/sftpblast/payload"
	"github.com/sftpblast/sftpblast/result"
)

// Session is the per-transfer surface the pool drives. transfer.Session
// satisfies it; tests substitute fakes.
type Session interface {
	Upload(a payload.Artifact, progress func(int64)) (time.Duration, error)
	Close() error
}

// Dialer opens sessions against the target endpoint.
type Dialer interface {
	Dial() (Session, time.Duration, error)
}

// Pool owns the worker slots for one run. Workers never retry and never
// cancel each other; a failed artifact only fails itself.
type Pool struct {
	Dialer    Dialer
	KeepAlive bool
	Sleep     time.Duration

	// OnRemove reclaims an artifact's local storage once its attempt is
	// done, success or failure.
	OnRemove func(payload.Artifact)
	// OnProgress receives monotonically increasing bytes-transferred counts
	// per artifact. Never formatted here.
	OnProgress func(name string, transferred int64)
}

// Run dispatches every artifact over at most concurrency workers and
// returns a channel carrying exactly one FileStat per artifact. The channel
// closes once the pool has drained and pooled sessions are closed.
func (p *Pool) Run(artifacts []payload.Artifact, concurrency int) <-chan result.FileStat {
	results := make(chan result.FileStat, len(artifacts))
	go p.run(artifacts, concurrency, results)
	return results
}

func (p *Pool) run(artifacts []payload.Artifact, concurrency int, results chan result.FileStat) {
	defer close(results)

	workers := concurrency
	if len(artifacts) < workers {
		workers = len(artifacts)
	}
	if workers < 1 {
		return
	}

	var wg sync.WaitGroup
	if p.KeepAlive {
		// One session per slot for the whole run; artifact i always lands
		// on slot i mod workers.
		slots := make([]chan payload.Artifact, workers)
		for i := range slots {
			slots[i] = make(chan payload.Artifact, len(artifacts)/workers+1)
		}
		for i, artifact := range artifacts {
			slots[i%workers] <- artifact
		}
		for i := range slots {
			close(slots[i])
		}
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(jobs <-chan payload.Artifact) {
				defer wg.Done()
				session, _, dialErr := p.Dialer.Dial()
				for artifact := range jobs {
					results <- p.pooledAttempt(session, dialErr, artifact)
				}
				if session != nil {
					session.Close()
				}
			}(slots[i])
		}
	} else {
		jobs := make(chan payload.Artifact, len(artifacts))
		for _, artifact := range artifacts {
			jobs <- artifact
		}
		close(jobs)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for artifact := range jobs {
					results <- p.ephemeralAttempt(artifact)
				}
			}()
		}
	}
	wg.Wait()
}

// pooledAttempt reuses the slot's warm session. Connect time is attributed
// at warm-up, so outcomes report zero. A slot whose warm-up dial failed
// keeps that error for all of its artifacts; there is no reconnect.
func (p *Pool) pooledAttempt(session Session, dialErr error, artifact payload.Artifact) result.FileStat {
	stat := result.FileStat{Name: artifact.RemoteName, Size: artifact.Size}
	if dialErr != nil {
		stat.Error = dialErr.Error()
	} else {
		transferTime, err := session.Upload(artifact, p.progressFor(artifact))
		stat.TransferTime = transferTime
		if err != nil {
			stat.Error = err.Error()
		} else {
			stat.Success = true
		}
	}
	p.finish(artifact)
	return stat
}

func (p *Pool) ephemeralAttempt(artifact payload.Artifact) result.FileStat {
	stat := result.FileStat{Name: artifact.RemoteName, Size: artifact.Size}
	session, connectTime, err := p.Dialer.Dial()
	stat.ConnectTime = connectTime
	if err != nil {
		stat.Error = err.Error()
	} else {
		transferTime, uerr := session.Upload(artifact, p.progressFor(artifact))
		stat.TransferTime = transferTime
		if uerr != nil {
			stat.Error = uerr.Error()
		} else {
			stat.Success = true
		}
		session.Close()
	}
	p.finish(artifact)
	return stat
}

// finish runs after every attempt: reclaim local storage, then the optional
// load-shaping pause before the worker takes its next artifact.
func (p *Pool) finish(artifact payload.Artifact) {
	if p.OnRemove != nil {
		p.OnRemove(artifact)
	}
	if p.Sleep > 0 {
		time.Sleep(p.Sleep)
	}
}

func (p *Pool) progressFor(artifact payload.Artifact) func(int64) {
	if p.OnProgress == nil {
		return nil
	}
	name := artifact.RemoteName
	return func(transferred int64) {
		p.OnProgress(name, transferred)
	}
}
