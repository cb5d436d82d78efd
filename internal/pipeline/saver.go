package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/seaflowlab/seafilter/internal/errors"
)

// saver is the single persistence consumer. It drains results, writes
// statistics rows for every successfully filtered file, and forwards each
// result to the reporter. A gap longer than the stall timeout between
// results while files are still outstanding means the run is wedged, so
// the saver reports a fatal error instead of waiting forever.
func (p *Pipeline) saver(ctx context.Context, results <-chan *Result, stats chan<- *Result, filesLeft int, fatal chan<- error) {
	defer close(stats)

	timer := time.NewTimer(p.opts.StallTimeout)
	defer timer.Stop()

	for filesLeft > 0 {
		select {
		case res, ok := <-results:
			if !ok {
				return
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(p.opts.StallTimeout)

			filesLeft--
			if res.OK() {
				if err := p.saveResult(ctx, res); err != nil {
					res.ErrText = fmt.Sprintf("Could not save stats for file %s: %v", res.Path, err)
				}
			}

			select {
			case stats <- res:
			case <-ctx.Done():
				return
			}

		case <-timer.C:
			fatal <- errors.NewPipelineError(errors.CodeStall, fmt.Sprintf(
				"no filtering results for %s with %d files outstanding",
				p.opts.StallTimeout, filesLeft))
			return

		case <-ctx.Done():
			return
		}
	}
}

// saveResult writes the opp statistics rows and the outlier flag for one
// filtered file.
func (p *Pipeline) saveResult(ctx context.Context, res *Result) error {
	err := p.opts.DB.SaveOppStats(ctx, res.FileID, res.AllCount, res.EvtCount,
		res.Quantiles, res.OppCounts, p.params.ID)
	if err != nil {
		return err
	}
	return p.opts.DB.SaveOutlier(ctx, res.FileID, 0)
}
