package pipeline

import (
	"context"
	"fmt"

	"github.com/seaflowlab/seafilter/internal/evtio"
	"github.com/seaflowlab/seafilter/internal/filter"
	"github.com/seaflowlab/seafilter/pkg/particle"
)

// worker consumes file paths from tasks until the channel closes, filters
// each file, and emits one Result per file on results. A file that fails
// to fetch, parse, or write is reported in its Result and never aborts
// the run.
func (p *Pipeline) worker(ctx context.Context, tasks <-chan string, results chan<- *Result) {
	for path := range tasks {
		res := p.filterFile(ctx, path)
		select {
		case results <- res:
		case <-ctx.Done():
			return
		}
	}
}

// filterFile runs the full per-file sequence: skip check, fetch, decode,
// classify, OPP writes.
func (p *Pipeline) filterFile(ctx context.Context, path string) *Result {
	res := &Result{
		Path:      path,
		FileID:    FileID(path),
		Quantiles: p.params.Quantiles(),
	}

	if p.opts.SkipSet != nil {
		skip, err := p.opts.SkipSet.ShouldSkip(ctx, res.FileID)
		if err != nil {
			res.ErrText = fmt.Sprintf("Could not check skip set for file %s: %v", path, err)
			return res
		}
		if skip {
			res.Skipped = true
			return res
		}
	}

	tbl, err := p.readEVT(ctx, path)
	if err != nil {
		// A malformed file yields zero particles and a recorded error.
		res.ErrText = fmt.Sprintf("Could not parse file %s: %v", path, err)
		res.OppCounts = make([]int, p.params.Len())
		return res
	}

	c := filter.MarkFocused(tbl, p.params)
	res.AllCount = tbl.Len()
	res.EvtCount = c.EvtCount()
	res.OppCounts = c.OppCounts()

	if p.opts.OppDir != "" {
		if err := p.writeOpp(tbl, c, res.FileID); err != nil {
			res.ErrText = fmt.Sprintf("Could not write OPP for file %s: %v", path, err)
		}
	}
	return res
}

// readEVT fetches and decodes one file, from object storage when
// configured, otherwise from the local filesystem.
func (p *Pipeline) readEVT(ctx context.Context, path string) (*particle.Table, error) {
	if p.opts.Storage != nil {
		data, err := p.opts.Storage.Get(ctx, path)
		if err != nil {
			return nil, err
		}
		return evtio.DecodeBytes(path, data)
	}
	return evtio.ReadFile(path)
}

// writeOpp writes the focused particle files for one input file: one
// plain file per quantile plus the combined bit flag file. With the
// all-or-nothing policy a quantile without focused particles suppresses
// every write for the file.
func (p *Pipeline) writeOpp(tbl *particle.Table, c *filter.Classification, fileID string) error {
	if !p.opts.AllowPartialOpp && !c.AllQuantiles() {
		return nil
	}

	for qi, q := range c.Quantiles {
		sub := filter.SelectQuantile(tbl, c, qi)
		if sub.Len() == 0 {
			continue
		}
		if err := evtio.WriteOppQuantile(p.opts.OppDir, q, fileID, sub); err != nil {
			return err
		}
	}

	focused, flags := filter.SelectFocused(tbl, c)
	if focused.Len() == 0 {
		return nil
	}
	return evtio.WriteOppBitFlags(p.opts.OppDir, fileID, focused, flags)
}
