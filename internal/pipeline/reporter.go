package pipeline

import (
	"fmt"
	"log"
	"time"
)

// RunStats holds the cumulative statistics for one filtering run.
// Particle totals follow the median quantile, matching how progress is
// reported.
type RunStats struct {
	FilesInput   int
	FilesParsed  int
	FilesSkipped int
	// EvtParticles is the total particle count of all parsed files.
	EvtParticles uint64
	// EvtSignalParticles is the count above the noise floor.
	EvtSignalParticles uint64
	// OppParticles is the focused count under the median quantile.
	OppParticles uint64
	Elapsed      time.Duration
}

// OppEvtRatio returns focused particles over above-noise particles.
func (s *RunStats) OppEvtRatio() float64 {
	return zerodiv(float64(s.OppParticles), float64(s.EvtSignalParticles))
}

// reporter is the single progress consumer. It aggregates saved results,
// prints a progress line whenever a resolution milestone is crossed, and
// ends with the cumulative summary.
func (p *Pipeline) reporter(stats <-chan *Result, fileCount int, done chan<- *RunStats) {
	out := p.opts.Progress
	every := p.opts.EveryPercent
	mid := p.params.Len() / 2

	runStats := &RunStats{FilesInput: fileCount}

	fmt.Fprintf(out, "\nFiltering %d EVT files. Progress for median quantile every ~ %v%%\n",
		fileCount, every)

	t0 := time.Now()
	seen := 0
	last := 0.0
	var evtBlock, signalBlock, oppBlock uint64

	for res := range stats {
		seen++
		switch {
		case res.Skipped:
			runStats.FilesSkipped++
		case res.ErrText != "":
			log.Printf("pipeline: %s", res.ErrText)
		default:
			runStats.FilesParsed++
			evtBlock += uint64(res.AllCount)
			signalBlock += uint64(res.EvtCount)
			oppBlock += uint64(res.OppCounts[mid])
		}

		perc := float64(seen) / float64(fileCount) * 100
		milestone := float64(int(perc/every)) * every
		if milestone > last {
			runStats.EvtParticles += evtBlock
			runStats.EvtSignalParticles += signalBlock
			runStats.OppParticles += oppBlock
			ratio := zerodiv(float64(oppBlock), float64(signalBlock))
			fmt.Fprintf(out,
				"File: %d/%d %5.4g%% OPP/EVT particles: %d / %d (%d total events) ratio: %.04f elapsed: %.2fs\n",
				seen, fileCount, perc, oppBlock, signalBlock, evtBlock,
				ratio, time.Since(t0).Seconds())
			last = milestone
			evtBlock, signalBlock, oppBlock = 0, 0, 0
		}
	}

	// Leftover partial block
	runStats.EvtParticles += evtBlock
	runStats.EvtSignalParticles += signalBlock
	runStats.OppParticles += oppBlock

	runStats.Elapsed = time.Since(t0)
	sec := runStats.Elapsed.Seconds()

	fmt.Fprintf(out, "\nInput EVT files = %d\n", runStats.FilesInput)
	fmt.Fprintf(out, "Parsed EVT files = %d\n", runStats.FilesParsed)
	if runStats.FilesSkipped > 0 {
		fmt.Fprintf(out, "Skipped EVT files = %d\n", runStats.FilesSkipped)
	}
	fmt.Fprintf(out, "EVT particles = %d (%.2f p/s)\n",
		runStats.EvtParticles, zerodiv(float64(runStats.EvtParticles), sec))
	fmt.Fprintf(out, "EVT noise filtered particles = %d (%.2f p/s)\n",
		runStats.EvtSignalParticles, zerodiv(float64(runStats.EvtSignalParticles), sec))
	fmt.Fprintf(out, "OPP particles = %d (%.2f p/s)\n",
		runStats.OppParticles, zerodiv(float64(runStats.OppParticles), sec))
	fmt.Fprintf(out, "OPP/EVT ratio = %.04f\n", runStats.OppEvtRatio())
	fmt.Fprintf(out, "Filtering completed in %.2f seconds\n", sec)

	done <- runStats
}

func zerodiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
