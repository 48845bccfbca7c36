package result

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// FileStat is the recorded outcome of one artifact's transfer attempt.
// Immutable once produced; produced exactly once per artifact.
type FileStat struct {
	Name         string        `json:"name"`
	Size         int64         `json:"size"`
	ConnectTime  time.Duration `json:"connect-time"`
	TransferTime time.Duration `json:"transfer-time"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
}

// TestReport accumulates FileStats in completion order. A single goroutine
// appends; concurrent workers hand their stats over a results channel.
type TestReport struct {
	Stats []FileStat `json:"stats"`
}

// Add appends one outcome. No deduplication, no validation.
func (r *TestReport) Add(stat FileStat) {
	r.Stats = append(r.Stats, stat)
}

func (r *TestReport) Len() int {
	return len(r.Stats)
}

// Summary type
type Summary struct {
	TotalFiles      int
	Failed          int
	TotalBytes      int64
	AveConnect      time.Duration
	AveTransfer     time.Duration
	FastestTransfer time.Duration
	SlowestTransfer time.Duration
}

// Summarize folds the accumulated stats into run-level totals. Timing
// averages and extremes only consider successful transfers.
func (r *TestReport) Summarize() Summary {
	summary := Summary{TotalFiles: len(r.Stats)}
	var okCount int64
	for _, stat := range r.Stats {
		summary.TotalBytes += stat.Size
		if !stat.Success {
			summary.Failed++
			continue
		}
		okCount++
		summary.AveConnect += stat.ConnectTime
		summary.AveTransfer += stat.TransferTime
		if stat.TransferTime > summary.SlowestTransfer {
			summary.SlowestTransfer = stat.TransferTime
		}
		if summary.FastestTransfer == 0 || stat.TransferTime < summary.FastestTransfer {
			summary.FastestTransfer = stat.TransferTime
		}
	}
	if okCount > 0 {
		summary.AveConnect = time.Duration(int64(summary.AveConnect) / okCount)
		summary.AveTransfer = time.Duration(int64(summary.AveTransfer) / okCount)
	}
	return summary
}

// String renders the report in the text format the report file uses: a
// header, one line per outcome sorted by name, and a summary footer.
func (r *TestReport) String() string {
	lines := []string{"SFTP Test Report", "================="}

	stats := make([]FileStat, len(r.Stats))
	copy(stats, r.Stats)
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

	for _, stat := range stats {
		line := fmt.Sprintf(
			"File: %s Size: %d bytes Success: %t ConnectTime: %.2fs TransferTime: %.2fs",
			stat.Name, stat.Size, stat.Success,
			stat.ConnectTime.Seconds(), stat.TransferTime.Seconds(),
		)
		if stat.Error != "" {
			line += " Error: " + stat.Error
		}
		lines = append(lines, line)
	}

	summary := r.Summarize()
	lines = append(lines, fmt.Sprintf(
		"Total: %d files (%s) Failed: %d Fastest: %.2fs Slowest: %.2fs",
		summary.TotalFiles, humanize.Bytes(uint64(summary.TotalBytes)), summary.Failed,
		summary.FastestTransfer.Seconds(), summary.SlowestTransfer.Seconds(),
	))

	return strings.Join(lines, "\n")
}

// Save writes the rendered report to path.
func (r *TestReport) Save(fs afero.Fs, path string) error {
	return afero.WriteFile(fs, path, []byte(r.String()), 0644)
}

// DefaultFilename returns the timestamped report name used when no output
// path is configured.
func DefaultFilename() string {
	return fmt.Sprintf("sftp_report_%d.txt", time.Now().Unix())
}
