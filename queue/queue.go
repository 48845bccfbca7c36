// Package queue ships live per-transfer outcomes to an external sink. The
// sink is observational only; a run behaves identically without one.
package queue

import (
	"github.com/sftpblast/sftpblast/result"
)

// ResultSink receives each FileStat as its transfer completes.
type ResultSink interface {
	Send(stat result.FileStat) error
	Close() error
}

// DummyAdaptor collects outcomes in memory, for tests and dry runs.
type DummyAdaptor struct {
	Stats []result.FileStat
}

// NewDummyAdaptor returns a new in-memory sink.
func NewDummyAdaptor() *DummyAdaptor {
	return &DummyAdaptor{}
}

func (d *DummyAdaptor) Send(stat result.FileStat) error {
	d.Stats = append(d.Stats, stat)
	return nil
}

func (d *DummyAdaptor) Close() error {
	return nil
}
