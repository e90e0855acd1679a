package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"winnow/internal/pipeline"
)

const timingBarWidth = 20

// printRunReport renders the run statistics and per-stage timing breakdown
// that follow the answer on stdout.
func printRunReport(out io.Writer, run *pipeline.RunState) {
	stats := [][]string{
		{"Documents", strconv.Itoa(len(run.Documents))},
		{"Chunks", strconv.Itoa(len(run.Chunks))},
		{"Scanned", strconv.Itoa(len(run.Summaries))},
		{"Scan failures", strconv.Itoa(len(run.ScanFailures))},
		{"Cache hits", strconv.Itoa(run.CacheHits)},
		{"Selected", strconv.Itoa(len(run.Selected))},
		{"Evidence", strconv.Itoa(len(run.Evidence))},
	}
	fmt.Fprintln(out, renderTable([]string{"Stat", "Value"}, stats, []columnAlignment{alignLeft, alignRight}))
	printTimings(out, run.Timings)
}

// printFailureProgress reports how far a failed run got so partial work is
// visible without the full report. Runs that produced nothing stay silent;
// the error line already covers them.
func printFailureProgress(w io.Writer, run *pipeline.RunState) {
	if run == nil || len(run.Chunks) == 0 {
		return
	}
	line := fmt.Sprintf("Progress before failure: documents=%d chunks=%d", len(run.Documents), len(run.Chunks))
	if n := len(run.Summaries); n > 0 || len(run.ScanFailures) > 0 {
		line += fmt.Sprintf(" scanned=%d", n)
		if failed := len(run.ScanFailures); failed > 0 {
			line += fmt.Sprintf(" scan_failures=%d", failed)
		}
	}
	if n := len(run.Selected); n > 0 {
		line += fmt.Sprintf(" selected=%d", n)
	}
	if n := len(run.Evidence); n > 0 {
		line += fmt.Sprintf(" evidence=%d", n)
	}
	fmt.Fprintln(w, line)
}

func printTimings(out io.Writer, timings map[string]time.Duration) {
	var total time.Duration
	for _, stage := range pipeline.StageOrder {
		total += timings[stage]
	}

	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(pipeline.StageOrder)+1)
	for _, stage := range pipeline.StageOrder {
		duration, ok := timings[stage]
		if !ok {
			continue
		}
		share := 0.0
		if total > 0 {
			share = float64(duration) / float64(total)
		}
		rows = append(rows, []string{
			stage,
			formatDuration(duration),
			timingBar(share, colorize),
			fmt.Sprintf("%.1f%%", share*100),
		})
	}
	rows = append(rows, []string{"total", formatDuration(total), "", ""})

	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Duration", "", "Share"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
	))
}

func timingBar(share float64, colorize bool) string {
	filled := int(share*timingBarWidth + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > timingBarWidth {
		filled = timingBarWidth
	}
	bar := strings.Repeat("█", filled)
	if colorize && bar != "" {
		bar = ansiCyan + bar + ansiReset
	}
	return bar + strings.Repeat("░", timingBarWidth-filled)
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond && d > 0 {
		return d.Round(time.Microsecond).String()
	}
	return d.Round(time.Millisecond).String()
}
