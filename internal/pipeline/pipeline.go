// Package pipeline orchestrates concurrent filtering of SeaFlow EVT
// files: N file workers feed one persistence goroutine and one progress
// goroutine through bounded channels.
package pipeline

import (
	"context"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/seaflowlab/seafilter/internal/bloom"
	"github.com/seaflowlab/seafilter/internal/errors"
	"github.com/seaflowlab/seafilter/internal/filter"
	"github.com/seaflowlab/seafilter/internal/popdb"
	"github.com/seaflowlab/seafilter/internal/storage"
)

const (
	// DefaultQueueSize bounds the results channel so slow persistence
	// backpressures the workers.
	DefaultQueueSize = 100
	// DefaultStallTimeout is how long the saver waits for a result
	// before declaring the run wedged.
	DefaultStallTimeout = 60 * time.Second
	// DefaultEveryPercent is the progress reporting resolution.
	DefaultEveryPercent = 10.0
)

// Options configures one filtering run. DB is required; everything else
// has a usable default or is optional.
type Options struct {
	// Files is the ordered list of EVT paths or storage keys.
	Files []string
	// DB is the popcycle statistics sink.
	DB *popdb.DB
	// OppDir is where focused particle files are written. Empty
	// disables OPP file output.
	OppDir string
	// Params overrides loading the latest parameter set from DB.
	Params *filter.ParamSet
	// Workers is the file worker count, clamped to len(Files).
	Workers int
	// EveryPercent is the progress resolution in (0, 100].
	EveryPercent float64
	// QueueSize bounds the results channel.
	QueueSize int
	// StallTimeout is the saver's maximum wait between results.
	StallTimeout time.Duration
	// AllowPartialOpp writes OPP files even when some quantile has no
	// focused particles. The default all-or-nothing policy skips them.
	AllowPartialOpp bool
	// Storage fetches EVT bytes remotely. Nil reads the local
	// filesystem.
	Storage storage.ObjectStorage
	// Prefetch sets the concurrency for warming Storage ahead of the
	// workers. Zero disables prefetching.
	Prefetch int
	// SkipSet short-circuits files that already have saved results.
	SkipSet *bloom.SkipSet
	// Progress receives progress and summary lines. Defaults to stdout.
	Progress io.Writer
}

// Run states.
type state int

const (
	stateIdle state = iota
	stateDispatching
	stateDraining
	stateTerminated
)

// Pipeline is one configured filtering run.
type Pipeline struct {
	opts   Options
	params *filter.ParamSet
	state  state
}

// Run filters every file in opts and returns cumulative statistics. A
// per-file failure is logged and counted, never fatal; a stall or a
// context cancellation aborts the run with an error alongside the
// statistics gathered so far.
func Run(ctx context.Context, opts Options) (*RunStats, error) {
	p, err := newPipeline(ctx, opts)
	if err != nil {
		return nil, err
	}
	return p.run(ctx)
}

func newPipeline(ctx context.Context, opts Options) (*Pipeline, error) {
	if len(opts.Files) == 0 {
		return nil, errors.NewValidationError(errors.CodeNoFiles, "no input files")
	}
	if opts.DB == nil {
		return nil, errors.NewValidationError(errors.CodeBadConfig, "database is required")
	}
	if opts.Workers < 1 {
		return nil, errors.NewValidationError(errors.CodeBadWorkers,
			"worker count must be > 0")
	}
	if opts.EveryPercent == 0 {
		opts.EveryPercent = DefaultEveryPercent
	}
	if opts.EveryPercent <= 0 || opts.EveryPercent > 100 {
		return nil, errors.NewValidationError(errors.CodeBadResolution,
			"progress resolution must be > 0 and <= 100")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = DefaultStallTimeout
	}
	if opts.Progress == nil {
		opts.Progress = os.Stdout
	}
	if opts.Workers > len(opts.Files) {
		opts.Workers = len(opts.Files)
	}

	params := opts.Params
	if params == nil {
		var err error
		params, err = opts.DB.LatestFilter(ctx)
		if err != nil {
			return nil, err
		}
	}

	return &Pipeline{opts: opts, params: params, state: stateIdle}, nil
}

func (p *Pipeline) run(ctx context.Context) (*RunStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fileCount := len(p.opts.Files)
	tasks := make(chan string)
	results := make(chan *Result, p.opts.QueueSize)
	stats := make(chan *Result, p.opts.QueueSize)
	done := make(chan *RunStats, 1)
	fatal := make(chan error, 1)

	if p.opts.Prefetch > 0 && p.opts.Storage != nil {
		prefetcher := storage.NewPrefetcher(p.opts.Storage, p.opts.Prefetch)
		go prefetcher.Prefetch(ctx, p.opts.Files)
	}

	p.state = stateDispatching
	log.Printf("pipeline: filtering %d files with %d workers", fileCount, p.opts.Workers)

	var workers sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			p.worker(ctx, tasks, results)
		}()
	}

	go p.saver(ctx, results, stats, fileCount, fatal)
	go p.reporter(stats, fileCount, done)

	// Enqueue every file, then close: a closed task channel is the stop
	// signal for all workers.
	go func() {
		defer close(tasks)
		for _, f := range p.opts.Files {
			select {
			case tasks <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		workers.Wait()
		close(results)
	}()

	p.state = stateDraining
	var fatalErr error
	select {
	case fatalErr = <-fatal:
		log.Printf("pipeline: fatal: %v", fatalErr)
		cancel()
	case <-ctx.Done():
		fatalErr = ctx.Err()
		cancel()
	case runStats := <-done:
		p.state = stateTerminated
		return runStats, ctx.Err()
	}

	// Hard stop: the saver closes the stats channel on its way out, so
	// the reporter still delivers the statistics gathered so far.
	runStats := <-done
	p.state = stateTerminated
	return runStats, fatalErr
}
