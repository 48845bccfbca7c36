// Package ui renders live run progress on a termbox screen. It only
// consumes the outcome stream; the run itself never depends on it.
package ui

import (
	"fmt"

	termbox "github.com/nsf/termbox-go"

	"github.com/sftpblast/sftpblast/result"
)

// Watch draws each outcome as it arrives and blocks until the run has
// drained and the operator presses a key.
func Watch(results <-chan result.FileStat, total int) error {
	if err := termbox.Init(); err != nil {
		return err
	}
	defer termbox.Close()

	done := 0
	failed := 0
	var last result.FileStat
	draw(done, failed, total, last)

	for stat := range results {
		done++
		if !stat.Success {
			failed++
		}
		last = stat
		draw(done, failed, total, last)
	}

	printLine(5, "run complete, press any key to exit", termbox.AttrBold)
	termbox.Flush()
	waitForKey()
	return nil
}

func draw(done, failed, total int, last result.FileStat) {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	printLine(0, fmt.Sprintf("sftpblast - uploading %d files", total), termbox.AttrBold)
	printLine(1, progressBar(done, total), termbox.ColorDefault)
	printLine(2, fmt.Sprintf("completed: %d/%d  failed: %d", done, total, failed), termbox.ColorDefault)
	if last.Name != "" {
		if last.Success {
			printLine(3, fmt.Sprintf("last: %s ok (connect %.2fs, transfer %.2fs)",
				last.Name, last.ConnectTime.Seconds(), last.TransferTime.Seconds()), termbox.ColorGreen)
		} else {
			printLine(3, fmt.Sprintf("last: %s FAILED: %s", last.Name, last.Error), termbox.ColorRed)
		}
	}
	termbox.Flush()
}

func progressBar(done, total int) string {
	const width = 40
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	bar := make([]rune, width)
	for i := range bar {
		if i < filled {
			bar[i] = '#'
		} else {
			bar[i] = ' '
		}
	}
	return "[" + string(bar) + "]"
}

func printLine(y int, text string, fg termbox.Attribute) {
	for i, ch := range text {
		termbox.SetCell(i, y, ch, fg, termbox.ColorDefault)
	}
}

func waitForKey() {
	for {
		if ev := termbox.PollEvent(); ev.Type == termbox.EventKey {
			return
		}
	}
}
